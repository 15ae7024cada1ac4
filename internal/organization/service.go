// Package organization はユーザーの組織所属を提供する。
//
// 組織は初回参照時に個人用ワークスペースとして自動作成する。
// クライアントのセッションは先頭の所属をアクティブな組織として保持する。
package organization

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Service は組織所属のサービス層。
type Service struct {
	repo  repository.OrganizationRepository
	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.OrganizationRepository) *Service {
	return &Service{repo: repo, now: time.Now, newID: uuid.NewString}
}

// ListMemberships は呼び出し元の組織所属を返す。所属がなければ個人用組織を作成する。
func (s *Service) ListMemberships(ctx context.Context, identity *model.Identity) ([]*model.Membership, error) {
	if identity == nil || identity.UserID == "" {
		return nil, model.NewInvalidTokenError()
	}

	memberships, err := s.repo.ListMembershipsByUserID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("組織所属の取得に失敗しました: %w", err)
	}
	if len(memberships) > 0 {
		return memberships, nil
	}

	org := s.personalOrganization(identity)
	if err := s.repo.CreateWithOwner(ctx, org); err != nil {
		// 同時リクエストで作成済みの場合は読み直す
		if errors.Is(err, repository.ErrDuplicate) {
			return s.repo.ListMembershipsByUserID(ctx, identity.UserID)
		}
		return nil, fmt.Errorf("個人用組織の作成に失敗しました: %w", err)
	}

	return []*model.Membership{{
		OrganizationID:   org.ID,
		OrganizationSlug: org.Slug,
		OrganizationName: org.Name,
		UserID:           identity.UserID,
		Role:             model.RoleAdmin,
		CreatedAt:        org.CreatedAt,
	}}, nil
}

func (s *Service) personalOrganization(identity *model.Identity) *model.Organization {
	id := s.newID()
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = "Personal"
	}
	return &model.Organization{
		ID:        id,
		Slug:      Slug(identity, id),
		Name:      name + " workspace",
		OwnerID:   identity.UserID,
		CreatedAt: s.now(),
	}
}

// Slug はメールアドレスのローカル部（なければユーザーID）と組織IDの先頭8文字から
// URLに使えるスラッグを組み立てる。
func Slug(identity *model.Identity, orgID string) string {
	base := identity.Email
	if at := strings.IndexByte(base, '@'); at >= 0 {
		base = base[:at]
	}
	if base == "" {
		base = identity.UserID
	}
	base = strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if len(base) > 32 {
		base = strings.TrimRight(base[:32], "-")
	}
	if base == "" {
		base = "org"
	}
	suffix := strings.ReplaceAll(orgID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix
}
