// Package billing は請求先情報と販売者情報を提供する。
package billing

import (
	"context"
	_ "embed"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/hitoshi/portal/internal/security"
	"gopkg.in/yaml.v3"
)

//go:embed company.yaml
var companyYAML []byte

const maxFieldLength = 200

// Input は請求先情報の更新入力。
type Input struct {
	CompanyName  string
	TaxID        string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	Country      string
	InvoiceEmail string
}

// Service は請求先情報のサービス層。
type Service struct {
	repo      repository.BillingRepository
	sanitizer *security.TextSanitizer
	company   model.Company
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.BillingRepository) (*Service, error) {
	var company model.Company
	if err := yaml.Unmarshal(companyYAML, &company); err != nil {
		return nil, fmt.Errorf("failed to parse company info: %w", err)
	}
	return &Service{
		repo:      repo,
		sanitizer: security.NewTextSanitizer(),
		company:   company,
		now:       time.Now,
	}, nil
}

// Company は請求書に記載する販売者情報を返す。
func (s *Service) Company() model.Company {
	return s.company
}

// Get はユーザーの請求先情報を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.BillingInfo, error) {
	info, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("請求先情報の取得に失敗しました: %w", err)
	}
	if info == nil {
		return nil, model.NewBillingNotFoundError()
	}
	return info, nil
}

// Put は請求先情報を作成または更新する。
func (s *Service) Put(ctx context.Context, userID string, in Input) (*model.BillingInfo, error) {
	s.sanitizer.StripAll(&in.CompanyName, &in.TaxID, &in.AddressLine1, &in.AddressLine2, &in.City, &in.PostalCode, &in.Country, &in.InvoiceEmail)
	if err := validate(&in); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("請求先情報の取得に失敗しました: %w", err)
	}

	now := s.now()
	info := &model.BillingInfo{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	if existing != nil {
		info.ID = existing.ID
		info.CreatedAt = existing.CreatedAt
	}
	info.CompanyName = in.CompanyName
	info.TaxID = in.TaxID
	info.AddressLine1 = in.AddressLine1
	info.AddressLine2 = in.AddressLine2
	info.City = in.City
	info.PostalCode = in.PostalCode
	info.Country = in.Country
	info.InvoiceEmail = in.InvoiceEmail
	info.UpdatedAt = now

	if err := s.repo.Upsert(ctx, info); err != nil {
		return nil, fmt.Errorf("請求先情報の保存に失敗しました: %w", err)
	}
	return info, nil
}

func validate(in *Input) error {
	if in.CompanyName == "" {
		return model.NewValidationError("companyName is required")
	}
	if in.AddressLine1 == "" || in.City == "" {
		return model.NewValidationError("address is required")
	}
	in.Country = strings.ToUpper(in.Country)
	if len(in.Country) != 2 {
		return model.NewValidationError("country must be an ISO 3166-1 alpha-2 code")
	}
	for _, f := range []string{in.CompanyName, in.TaxID, in.AddressLine1, in.AddressLine2, in.City, in.PostalCode} {
		if utf8.RuneCountInString(f) > maxFieldLength {
			return model.NewValidationError(fmt.Sprintf("fields must be at most %d characters", maxFieldLength))
		}
	}
	if in.InvoiceEmail != "" {
		if _, err := mail.ParseAddress(in.InvoiceEmail); err != nil {
			return model.NewValidationError(fmt.Sprintf("invalid invoiceEmail: %s", in.InvoiceEmail))
		}
	}
	return nil
}
