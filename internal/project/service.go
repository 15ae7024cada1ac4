// Package project はプロジェクトとプロジェクト単位のアクセス権管理のドメインロジックを提供する。
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/hitoshi/portal/internal/security"
)

const (
	resourceProject = "project"

	// MaxNameLength はプロジェクト名の最大文字数。
	MaxNameLength = 100
	// MaxDescriptionLength は説明文の最大文字数。
	MaxDescriptionLength = 1000
)

// OwnershipRecorder は所有者チェックで拒否された操作を記録する。
type OwnershipRecorder interface {
	RecordOwnershipDenied(resource string)
}

// CreateInput はプロジェクト作成の入力。
type CreateInput struct {
	Name        string
	Description string
}

// UpdateInput はプロジェクト更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name        *string
	Description *string
}

// AccessGrant はアクセス権置き換えの1エントリ。
type AccessGrant struct {
	MemberID string
	Level    string
}

// Service はプロジェクト管理のサービス層。
type Service struct {
	projectRepo  repository.ProjectRepository
	accessRepo   repository.ProjectAccessRepository
	memberRepo   repository.TeamMemberRepository
	sanitizer    *security.TextSanitizer
	recorder     OwnershipRecorder
	deployDomain string
	now          func() time.Time
	newID        func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// deployDomainはデプロイURLのサフィックス（例: "apps.example.com"）。
func NewService(
	projectRepo repository.ProjectRepository,
	accessRepo repository.ProjectAccessRepository,
	memberRepo repository.TeamMemberRepository,
	recorder OwnershipRecorder,
	deployDomain string,
) *Service {
	return &Service{
		projectRepo:  projectRepo,
		accessRepo:   accessRepo,
		memberRepo:   memberRepo,
		sanitizer:    security.NewTextSanitizer(),
		recorder:     recorder,
		deployDomain: strings.Trim(deployDomain, "."),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// List はユーザーが所有するプロジェクトを返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Project, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	return projects, nil
}

// Get はプロジェクトを返す。所有者またはアクセス権を持つメンバーのみ参照できる。
func (s *Service) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if userID == p.UserID {
		return p, nil
	}
	grant, err := s.accessRepo.FindByProjectAndMemberUser(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("アクセス権の取得に失敗しました: %w", err)
	}
	if grant == nil {
		return nil, s.deny("view")
	}
	return p, nil
}

// Create は下書き状態のプロジェクトを作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Project, error) {
	name := s.sanitizer.StripText(in.Name)
	desc := s.sanitizer.StripText(in.Description)
	if err := validate(name, desc); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Project{
		ID:          s.newID(),
		UserID:      userID,
		Name:        name,
		Description: desc,
		Status:      model.ProjectStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Update はプロジェクトの名前と説明を更新する。所有者またはedit権限を持つメンバーのみ。
func (s *Service) Update(ctx context.Context, userID, projectID string, in UpdateInput) (*model.Project, error) {
	p, err := s.authorizeEdit(ctx, userID, projectID, "update")
	if err != nil {
		return nil, err
	}

	name, desc := p.Name, p.Description
	if in.Name != nil {
		name = s.sanitizer.StripText(*in.Name)
	}
	if in.Description != nil {
		desc = s.sanitizer.StripText(*in.Description)
	}
	if err := validate(name, desc); err != nil {
		return nil, err
	}

	p.Name = name
	p.Description = desc
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete はプロジェクトを削除する。所有者のみ。
func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.authorizeOwner(ctx, userID, projectID, "delete"); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProjectNotFoundError(projectID)
		}
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// Deploy はプロジェクトをデプロイ済みにし、デプロイURLを割り当てる。
// 実際のビルド・配信は外部サービスの責務で、ここでは状態のみを更新する。
func (s *Service) Deploy(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, err := s.authorizeEdit(ctx, userID, projectID, "deploy")
	if err != nil {
		return nil, err
	}

	now := s.now()
	p.Status = model.ProjectStatusDeployed
	p.DeploymentURL = s.deploymentURL(p.ID)
	p.DeployedAt = &now
	p.UpdatedAt = now
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetAccess はプロジェクトに付与されたアクセス権を返す。所有者のみ。
func (s *Service) GetAccess(ctx context.Context, userID, projectID string) ([]*model.ProjectAccess, error) {
	if _, err := s.authorizeOwner(ctx, userID, projectID, "manage access to"); err != nil {
		return nil, err
	}
	grants, err := s.accessRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("アクセス権の取得に失敗しました: %w", err)
	}
	if grants == nil {
		grants = []*model.ProjectAccess{}
	}
	return grants, nil
}

// ReplaceAccess はプロジェクトのアクセス権を置き換える。所有者のみ。
// メンバーは所有者のチームに属していなければならない。同一メンバーの重複指定は後勝ち。
func (s *Service) ReplaceAccess(ctx context.Context, userID, projectID string, in []AccessGrant) ([]*model.ProjectAccess, error) {
	if _, err := s.authorizeOwner(ctx, userID, projectID, "manage access to"); err != nil {
		return nil, err
	}

	now := s.now()
	byMember := make(map[string]*model.ProjectAccess, len(in))
	order := make([]string, 0, len(in))
	for _, g := range in {
		if g.MemberID == "" {
			return nil, model.NewValidationError("memberId is required")
		}
		level, ok := model.ParseAccessLevel(g.Level)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("invalid access level: %s", g.Level))
		}
		if _, err := uuid.Parse(g.MemberID); err != nil {
			return nil, model.NewMemberNotFoundError(g.MemberID)
		}
		member, err := s.memberRepo.FindByID(ctx, g.MemberID)
		if err != nil {
			return nil, fmt.Errorf("メンバーの取得に失敗しました: %w", err)
		}
		if member == nil || member.TeamID != userID {
			return nil, model.NewMemberNotFoundError(g.MemberID)
		}

		if _, seen := byMember[g.MemberID]; !seen {
			order = append(order, g.MemberID)
		}
		byMember[g.MemberID] = &model.ProjectAccess{
			ID:           s.newID(),
			ProjectID:    projectID,
			MemberID:     member.ID,
			MemberUserID: member.MemberUserID,
			UserID:       userID,
			Level:        level,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	grants := make([]*model.ProjectAccess, 0, len(order))
	for _, id := range order {
		grants = append(grants, byMember[id])
	}
	if err := s.accessRepo.ReplaceForProject(ctx, projectID, grants); err != nil {
		return nil, fmt.Errorf("アクセス権の更新に失敗しました: %w", err)
	}
	return grants, nil
}

// find はプロジェクトを取得する。UUIDとして解釈できないIDは存在しないものとして扱う。
func (s *Service) find(ctx context.Context, projectID string) (*model.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return p, nil
}

func (s *Service) authorizeOwner(ctx context.Context, userID, projectID, verb string) (*model.Project, error) {
	p, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if userID != p.UserID {
		return nil, s.deny(verb)
	}
	return p, nil
}

// authorizeEdit は所有者、またはedit権限を付与されたメンバーを許可する。
func (s *Service) authorizeEdit(ctx context.Context, userID, projectID, verb string) (*model.Project, error) {
	p, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if userID == p.UserID {
		return p, nil
	}
	grant, err := s.accessRepo.FindByProjectAndMemberUser(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("アクセス権の取得に失敗しました: %w", err)
	}
	if grant == nil || grant.Level != model.AccessEdit {
		return nil, s.deny(verb)
	}
	return p, nil
}

func (s *Service) deny(verb string) error {
	if s.recorder != nil {
		s.recorder.RecordOwnershipDenied(resourceProject)
	}
	return model.NewForbiddenError(verb, resourceProject)
}

func (s *Service) save(ctx context.Context, p *model.Project) error {
	if err := s.projectRepo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProjectNotFoundError(p.ID)
		}
		return fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) deploymentURL(projectID string) string {
	if s.deployDomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s", projectID, s.deployDomain)
}

func validate(name, desc string) error {
	if name == "" {
		return model.NewValidationError("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return model.NewValidationError(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	return nil
}
