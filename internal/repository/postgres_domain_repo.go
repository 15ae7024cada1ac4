package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresDomainRepo はPostgreSQLを使用したカスタムドメインリポジトリ。
type PostgresDomainRepo struct {
	db *sql.DB
}

// NewPostgresDomainRepo はPostgresDomainRepoを生成する。
func NewPostgresDomainRepo(db *sql.DB) *PostgresDomainRepo {
	return &PostgresDomainRepo{db: db}
}

const domainColumns = `id, user_id, project_id, name, status, verification_token, verified_at, created_at, updated_at`

func scanDomain(row interface{ Scan(...any) error }) (*model.Domain, error) {
	d := &model.Domain{}
	var projectID sql.NullString
	var verifiedAt sql.NullTime
	err := row.Scan(&d.ID, &d.UserID, &projectID, &d.Name, &d.Status, &d.VerificationToken, &verifiedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ProjectID = projectID.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		d.VerifiedAt = &t
	}
	return d, nil
}

func (r *PostgresDomainRepo) findOne(ctx context.Context, column, value string) (*model.Domain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE `+column+` = $1`,
		value,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find domain by %s: %w", column, err)
	}
	return d, nil
}

// FindByID は指定IDのドメインを取得する。見つからない場合はnilを返す。
func (r *PostgresDomainRepo) FindByID(ctx context.Context, id string) (*model.Domain, error) {
	return r.findOne(ctx, "id", id)
}

// FindByName はドメイン名で検索する。見つからない場合はnilを返す。
func (r *PostgresDomainRepo) FindByName(ctx context.Context, name string) (*model.Domain, error) {
	return r.findOne(ctx, "name", name)
}

// ListByUserID はユーザーのドメイン一覧を返す。
func (r *PostgresDomainRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Domain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []*model.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain row: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domain rows: %w", err)
	}
	return domains, nil
}

// Create はドメインを作成する。
func (r *PostgresDomainRepo) Create(ctx context.Context, d *model.Domain) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO domains (`+domainColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, nullString(d.ProjectID), d.Name, d.Status, d.VerificationToken, d.VerifiedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to create domain", err)
	}
	return nil
}

// UpdateStatus は検証状態と検証日時を更新する。
func (r *PostgresDomainRepo) UpdateStatus(ctx context.Context, d *model.Domain) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE domains SET status = $2, verified_at = $3, updated_at = $4 WHERE id = $1`,
		d.ID, d.Status, d.VerifiedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update domain status: %w", err)
	}
	return requireAffected(result, "failed to update domain status")
}

// Delete は指定IDのドメインを削除する。
func (r *PostgresDomainRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	return requireAffected(result, "failed to delete domain")
}

// compile-time interface check
var _ DomainRepository = (*PostgresDomainRepo)(nil)
