// Package team はチームメンバーの招待・ロール変更・プロジェクト単位のアクセス権付与を提供する。
//
// チームはユーザーごとに1つで、チームIDは所有ユーザーのIDと等しい。
package team

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/hitoshi/portal/internal/security"
)

const (
	resourceMember  = "team member"
	resourceProject = "project"
	metricMember    = "team_member"

	// MaxNoteLength は招待メモの最大文字数。
	MaxNoteLength = 500
)

// OwnershipRecorder は所有者チェックで拒否された操作を記録する。
type OwnershipRecorder interface {
	RecordOwnershipDenied(resource string)
}

// InviteInput は招待の入力。
type InviteInput struct {
	Email string
	Role  string
	Note  string
}

// MemberGrant はメンバー単位のアクセス権置き換えの1エントリ。
type MemberGrant struct {
	ProjectID string
	Level     string
}

// Service はチーム管理のサービス層。
type Service struct {
	memberRepo  repository.TeamMemberRepository
	accessRepo  repository.ProjectAccessRepository
	projectRepo repository.ProjectRepository
	sanitizer   *security.TextSanitizer
	recorder    OwnershipRecorder
	now         func() time.Time
	newID       func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	memberRepo repository.TeamMemberRepository,
	accessRepo repository.ProjectAccessRepository,
	projectRepo repository.ProjectRepository,
	recorder OwnershipRecorder,
) *Service {
	return &Service{
		memberRepo:  memberRepo,
		accessRepo:  accessRepo,
		projectRepo: projectRepo,
		sanitizer:   security.NewTextSanitizer(),
		recorder:    recorder,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// List はチームのメンバー一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.TeamMember, error) {
	members, err := s.memberRepo.ListByTeam(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	if members == nil {
		members = []*model.TeamMember{}
	}
	return members, nil
}

// Invite はメールアドレスを招待する。ロール未指定はviewer。
func (s *Service) Invite(ctx context.Context, userID string, in InviteInput) (*model.TeamMember, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, ok := model.ParseTeamRole(in.Role)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("invalid role: %s", in.Role))
	}
	note := s.sanitizer.StripText(in.Note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, model.NewValidationError(fmt.Sprintf("note must be at most %d characters", MaxNoteLength))
	}

	existing, err := s.memberRepo.FindByTeamAndEmail(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("メンバーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewMemberExistsError(email)
	}

	now := s.now()
	m := &model.TeamMember{
		ID:        s.newID(),
		TeamID:    userID,
		Email:     email,
		Role:      role,
		Status:    model.MemberInvited,
		Note:      note,
		InvitedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		// 同時招待の競合は一意制約で検出する
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewMemberExistsError(email)
		}
		return nil, fmt.Errorf("招待の作成に失敗しました: %w", err)
	}
	return m, nil
}

// Remove はメンバーをチームから外す。付与済みのアクセス権も削除される。
func (s *Service) Remove(ctx context.Context, userID, memberID string) error {
	if _, err := s.authorize(ctx, userID, memberID, "remove"); err != nil {
		return err
	}
	if err := s.memberRepo.Delete(ctx, memberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewMemberNotFoundError(memberID)
		}
		return fmt.Errorf("メンバーの削除に失敗しました: %w", err)
	}
	return nil
}

// UpdateRole はメンバーのロールを変更する。
func (s *Service) UpdateRole(ctx context.Context, userID, memberID, role string) (*model.TeamMember, error) {
	parsed, ok := model.ParseTeamRole(role)
	if !ok || role == "" {
		return nil, model.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}
	m, err := s.authorize(ctx, userID, memberID, "update")
	if err != nil {
		return nil, err
	}
	if err := s.memberRepo.UpdateRole(ctx, memberID, parsed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewMemberNotFoundError(memberID)
		}
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}
	m.Role = parsed
	m.UpdatedAt = s.now()
	return m, nil
}

// GetAccess はメンバーに付与されたプロジェクトアクセス権を返す。
func (s *Service) GetAccess(ctx context.Context, userID, memberID string) ([]*model.ProjectAccess, error) {
	if _, err := s.authorize(ctx, userID, memberID, "view"); err != nil {
		return nil, err
	}
	grants, err := s.accessRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("アクセス権の取得に失敗しました: %w", err)
	}
	if grants == nil {
		grants = []*model.ProjectAccess{}
	}
	return grants, nil
}

// ReplaceAccess はメンバーのアクセス権を置き換える。
// 指定したプロジェクトはすべて呼び出し元の所有でなければならない。
func (s *Service) ReplaceAccess(ctx context.Context, userID, memberID string, in []MemberGrant) ([]*model.ProjectAccess, error) {
	m, err := s.authorize(ctx, userID, memberID, "update")
	if err != nil {
		return nil, err
	}

	now := s.now()
	byProject := make(map[string]*model.ProjectAccess, len(in))
	ids := make([]string, 0, len(in))
	for _, g := range in {
		if g.ProjectID == "" {
			return nil, model.NewValidationError("projectId is required")
		}
		if _, err := uuid.Parse(g.ProjectID); err != nil {
			return nil, model.NewProjectNotFoundError(g.ProjectID)
		}
		level, ok := model.ParseAccessLevel(g.Level)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("invalid access level: %s", g.Level))
		}
		if _, seen := byProject[g.ProjectID]; !seen {
			ids = append(ids, g.ProjectID)
		}
		byProject[g.ProjectID] = &model.ProjectAccess{
			ID:           s.newID(),
			ProjectID:    g.ProjectID,
			MemberID:     m.ID,
			MemberUserID: m.MemberUserID,
			UserID:       userID,
			Level:        level,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if len(ids) > 0 {
		owned, err := s.projectRepo.CountOwned(ctx, userID, ids)
		if err != nil {
			return nil, fmt.Errorf("プロジェクト所有者の確認に失敗しました: %w", err)
		}
		if owned != len(ids) {
			s.record(resourceProject)
			return nil, model.NewForbiddenError("share", resourceProject)
		}
	}

	grants := make([]*model.ProjectAccess, 0, len(ids))
	for _, id := range ids {
		grants = append(grants, byProject[id])
	}
	if err := s.accessRepo.ReplaceForMember(ctx, memberID, grants); err != nil {
		return nil, fmt.Errorf("アクセス権の更新に失敗しました: %w", err)
	}
	return grants, nil
}

// ExpireInvites はttlを過ぎた未受諾の招待を期限切れにする。ワーカーから呼ばれる。
func (s *Service) ExpireInvites(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.memberRepo.ExpirePending(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("招待の期限切れ処理に失敗しました: %w", err)
	}
	return n, nil
}

func (s *Service) authorize(ctx context.Context, userID, memberID, verb string) (*model.TeamMember, error) {
	if _, err := uuid.Parse(memberID); err != nil {
		return nil, model.NewMemberNotFoundError(memberID)
	}
	m, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("メンバーの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMemberNotFoundError(memberID)
	}
	if m.TeamID != userID {
		s.record(metricMember)
		return nil, model.NewForbiddenError(verb, resourceMember)
	}
	return m, nil
}

func (s *Service) record(resource string) {
	if s.recorder != nil {
		s.recorder.RecordOwnershipDenied(resource)
	}
}

// normalizeEmail はメールアドレスを検証し、小文字化したアドレス部分のみを返す。
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.NewValidationError("email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", model.NewValidationError(fmt.Sprintf("invalid email: %s", raw))
	}
	return strings.ToLower(addr.Address), nil
}
