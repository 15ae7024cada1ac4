// Package domain はカスタムドメインの登録・所有確認・削除を提供する。
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const resourceDomain = "domain"

// 検証結果のメトリクスラベル
const (
	ResultVerified = "verified"
	ResultFailed   = "failed"
	ResultError    = "error"
)

// Recorder はドメイン操作のメトリクスを記録する。
type Recorder interface {
	RecordOwnershipDenied(resource string)
	RecordDomainVerification(result string)
}

// HostValidator はユーザー入力のホスト名が外部到達可能な名前かを検証する。
type HostValidator interface {
	ValidateHost(host string) error
}

// Verifier はドメインに検証トークンが配置されているかを確認する。
// トークンが見つからない場合は(false, nil)、到達できない場合はエラーを返す。
type Verifier interface {
	Verify(ctx context.Context, domain, token string) (bool, error)
}

// AddInput はドメイン登録の入力。
type AddInput struct {
	Name      string
	ProjectID string
}

// Service はカスタムドメイン管理のサービス層。
type Service struct {
	domainRepo  repository.DomainRepository
	projectRepo repository.ProjectRepository
	verifier    Verifier
	hosts       HostValidator
	recorder    Recorder
	profile     *idna.Profile
	now         func() time.Time
	newID       func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	domainRepo repository.DomainRepository,
	projectRepo repository.ProjectRepository,
	verifier Verifier,
	hosts HostValidator,
	recorder Recorder,
) *Service {
	return &Service{
		domainRepo:  domainRepo,
		projectRepo: projectRepo,
		verifier:    verifier,
		hosts:       hosts,
		recorder:    recorder,
		profile:     idna.Lookup,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// List はユーザーのドメイン一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Domain, error) {
	domains, err := s.domainRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ドメイン一覧の取得に失敗しました: %w", err)
	}
	if domains == nil {
		domains = []*model.Domain{}
	}
	return domains, nil
}

// Get はドメインを返す。所有者のみ。
func (s *Service) Get(ctx context.Context, userID, domainID string) (*model.Domain, error) {
	return s.authorize(ctx, userID, domainID, "view")
}

// Add はドメインを検証待ちとして登録する。
// ProjectIDを指定する場合、そのプロジェクトは呼び出し元の所有でなければならない。
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*model.Domain, error) {
	name, err := s.Normalize(in.Name)
	if err != nil {
		return nil, err
	}

	if in.ProjectID != "" {
		if _, err := uuid.Parse(in.ProjectID); err != nil {
			return nil, model.NewProjectNotFoundError(in.ProjectID)
		}
		p, err := s.projectRepo.FindByID(ctx, in.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
		}
		if p == nil {
			return nil, model.NewProjectNotFoundError(in.ProjectID)
		}
		if p.UserID != userID {
			s.recordDenied("project")
			return nil, model.NewForbiddenError("attach a domain to", "project")
		}
	}

	existing, err := s.domainRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ドメインの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDomainExistsError(name)
	}

	now := s.now()
	d := &model.Domain{
		ID:                s.newID(),
		UserID:            userID,
		ProjectID:         in.ProjectID,
		Name:              name,
		Status:            model.DomainPending,
		VerificationToken: uuid.NewString(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.domainRepo.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDomainExistsError(name)
		}
		return nil, fmt.Errorf("ドメインの登録に失敗しました: %w", err)
	}
	return d, nil
}

// Delete はドメインを削除する。所有者のみ。
func (s *Service) Delete(ctx context.Context, userID, domainID string) error {
	if _, err := s.authorize(ctx, userID, domainID, "delete"); err != nil {
		return err
	}
	if err := s.domainRepo.Delete(ctx, domainID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewDomainNotFoundError(domainID)
		}
		return fmt.Errorf("ドメインの削除に失敗しました: %w", err)
	}
	return nil
}

// Verify は検証トークンの配置を確認し、結果をドメインの状態に反映する。
// 到達できなかった場合は状態を変更せずUpstreamエラーを返す。
func (s *Service) Verify(ctx context.Context, userID, domainID string) (*model.Domain, error) {
	d, err := s.authorize(ctx, userID, domainID, "verify")
	if err != nil {
		return nil, err
	}

	ok, err := s.verifier.Verify(ctx, d.Name, d.VerificationToken)
	if err != nil {
		s.recordVerification(ResultError)
		return nil, model.NewDomainVerifyFailedError(err.Error())
	}

	now := s.now()
	if ok {
		d.Status = model.DomainVerified
		d.VerifiedAt = &now
		s.recordVerification(ResultVerified)
	} else {
		d.Status = model.DomainFailed
		d.VerifiedAt = nil
		s.recordVerification(ResultFailed)
	}
	d.UpdatedAt = now

	if err := s.domainRepo.UpdateStatus(ctx, d); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewDomainNotFoundError(domainID)
		}
		return nil, fmt.Errorf("ドメイン状態の更新に失敗しました: %w", err)
	}
	return d, nil
}

// Normalize はドメイン名をIDNA（Lookupプロファイル）でASCII形式に正規化する。
// 公開サフィックスそのもの（例: "co.jp"）や内部向けホストは拒否する。
func (s *Service) Normalize(raw string) (string, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if name == "" {
		return "", model.NewValidationError("domain name is required")
	}
	ascii, err := s.profile.ToASCII(name)
	if err != nil {
		return "", model.NewValidationError(fmt.Sprintf("invalid domain name: %s", raw))
	}
	if !strings.Contains(ascii, ".") {
		return "", model.NewValidationError(fmt.Sprintf("invalid domain name: %s", raw))
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(ascii); err != nil {
		return "", model.NewValidationError(fmt.Sprintf("domain is a public suffix: %s", raw))
	}
	if s.hosts != nil {
		if err := s.hosts.ValidateHost(ascii); err != nil {
			return "", model.NewValidationError(fmt.Sprintf("domain is not publicly routable: %s", raw))
		}
	}
	return ascii, nil
}

func (s *Service) authorize(ctx context.Context, userID, domainID, verb string) (*model.Domain, error) {
	if _, err := uuid.Parse(domainID); err != nil {
		return nil, model.NewDomainNotFoundError(domainID)
	}
	d, err := s.domainRepo.FindByID(ctx, domainID)
	if err != nil {
		return nil, fmt.Errorf("ドメインの取得に失敗しました: %w", err)
	}
	if d == nil {
		return nil, model.NewDomainNotFoundError(domainID)
	}
	if d.UserID != userID {
		s.recordDenied(resourceDomain)
		return nil, model.NewForbiddenError(verb, resourceDomain)
	}
	return d, nil
}

func (s *Service) recordDenied(resource string) {
	if s.recorder != nil {
		s.recorder.RecordOwnershipDenied(resource)
	}
}

func (s *Service) recordVerification(result string) {
	if s.recorder != nil {
		s.recorder.RecordDomainVerification(result)
	}
}
