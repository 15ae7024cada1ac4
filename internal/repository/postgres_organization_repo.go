package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresOrganizationRepo はPostgreSQLを使用した組織リポジトリ。
type PostgresOrganizationRepo struct {
	db *sql.DB
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(db *sql.DB) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{db: db}
}

// ListMembershipsByUserID はユーザーの組織所属を所属日時順に返す。
func (r *PostgresOrganizationRepo) ListMembershipsByUserID(ctx context.Context, userID string) ([]*model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.slug, o.name, m.user_id, m.role, m.created_at
		 FROM organization_members m
		 JOIN organizations o ON o.id = m.organization_id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		m := &model.Membership{}
		if err := rows.Scan(&m.OrganizationID, &m.OrganizationSlug, &m.OrganizationName, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate membership rows: %w", err)
	}
	return memberships, nil
}

// CreateWithOwner は組織と所有者の所属を同一トランザクションで作成する。
// 所有者のロールはadmin。
func (r *PostgresOrganizationRepo) CreateWithOwner(ctx context.Context, org *model.Organization) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organizations (id, slug, name, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Slug, org.Name, org.OwnerID, org.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to insert organization", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organization_members (organization_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4)`,
		org.ID, org.OwnerID, model.RoleAdmin, org.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to insert organization member", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
