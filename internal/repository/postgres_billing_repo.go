package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresBillingRepo はPostgreSQLを使用した請求先情報リポジトリ。
type PostgresBillingRepo struct {
	db *sql.DB
}

// NewPostgresBillingRepo はPostgresBillingRepoを生成する。
func NewPostgresBillingRepo(db *sql.DB) *PostgresBillingRepo {
	return &PostgresBillingRepo{db: db}
}

// FindByUserID はユーザーの請求先情報を取得する。見つからない場合はnilを返す。
func (r *PostgresBillingRepo) FindByUserID(ctx context.Context, userID string) (*model.BillingInfo, error) {
	b := &model.BillingInfo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, company_name, tax_id, address_line1, address_line2, city, postal_code, country, invoice_email, created_at, updated_at
		 FROM billing_info WHERE user_id = $1`,
		userID,
	).Scan(&b.ID, &b.UserID, &b.CompanyName, &b.TaxID, &b.AddressLine1, &b.AddressLine2, &b.City, &b.PostalCode, &b.Country, &b.InvoiceEmail, &b.CreatedAt, &b.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("請求先情報の取得に失敗しました: %w", err)
	}
	return b, nil
}

// Upsert はuser_idをキーに請求先情報を作成または更新する。
func (r *PostgresBillingRepo) Upsert(ctx context.Context, b *model.BillingInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_info (id, user_id, company_name, tax_id, address_line1, address_line2, city, postal_code, country, invoice_email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id) DO UPDATE SET
		     company_name = EXCLUDED.company_name,
		     tax_id = EXCLUDED.tax_id,
		     address_line1 = EXCLUDED.address_line1,
		     address_line2 = EXCLUDED.address_line2,
		     city = EXCLUDED.city,
		     postal_code = EXCLUDED.postal_code,
		     country = EXCLUDED.country,
		     invoice_email = EXCLUDED.invoice_email,
		     updated_at = EXCLUDED.updated_at`,
		b.ID, b.UserID, b.CompanyName, b.TaxID, b.AddressLine1, b.AddressLine2, b.City, b.PostalCode, b.Country, b.InvoiceEmail, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("請求先情報の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BillingRepository = (*PostgresBillingRepo)(nil)
