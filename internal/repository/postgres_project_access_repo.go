package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresProjectAccessRepo はPostgreSQLを使用したプロジェクトアクセス権リポジトリ。
type PostgresProjectAccessRepo struct {
	db *sql.DB
}

// NewPostgresProjectAccessRepo はPostgresProjectAccessRepoを生成する。
func NewPostgresProjectAccessRepo(db *sql.DB) *PostgresProjectAccessRepo {
	return &PostgresProjectAccessRepo{db: db}
}

const projectAccessColumns = `id, project_id, member_id, member_user_id, user_id, level, created_at, updated_at`

func scanProjectAccess(row interface{ Scan(...any) error }) (*model.ProjectAccess, error) {
	a := &model.ProjectAccess{}
	err := row.Scan(&a.ID, &a.ProjectID, &a.MemberID, &a.MemberUserID, &a.UserID, &a.Level, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresProjectAccessRepo) list(ctx context.Context, column, value string) ([]*model.ProjectAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectAccessColumns+` FROM project_access WHERE `+column+` = $1 ORDER BY created_at ASC`,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list project access by %s: %w", column, err)
	}
	defer rows.Close()

	var grants []*model.ProjectAccess
	for rows.Next() {
		a, err := scanProjectAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project access row: %w", err)
		}
		grants = append(grants, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project access rows: %w", err)
	}
	return grants, nil
}

// ListByProject はプロジェクトに付与されたアクセス権を返す。
func (r *PostgresProjectAccessRepo) ListByProject(ctx context.Context, projectID string) ([]*model.ProjectAccess, error) {
	return r.list(ctx, "project_id", projectID)
}

// ListByMember はチームメンバーに付与されたアクセス権を返す。
func (r *PostgresProjectAccessRepo) ListByMember(ctx context.Context, memberID string) ([]*model.ProjectAccess, error) {
	return r.list(ctx, "member_id", memberID)
}

// FindByProjectAndMemberUser はプロジェクトとメンバーのユーザーIDでアクセス権を検索する。
func (r *PostgresProjectAccessRepo) FindByProjectAndMemberUser(ctx context.Context, projectID, memberUserID string) (*model.ProjectAccess, error) {
	if memberUserID == "" {
		return nil, nil
	}
	a, err := scanProjectAccess(r.db.QueryRowContext(ctx,
		`SELECT `+projectAccessColumns+` FROM project_access
		 WHERE project_id = $1 AND member_user_id = $2
		 ORDER BY (level = 'edit') DESC
		 LIMIT 1`,
		projectID, memberUserID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project access: %w", err)
	}
	return a, nil
}

// ReplaceForProject はプロジェクトのアクセス権を同一トランザクションで置き換える。
func (r *PostgresProjectAccessRepo) ReplaceForProject(ctx context.Context, projectID string, grants []*model.ProjectAccess) error {
	return r.replace(ctx, "project_id", projectID, grants)
}

// ReplaceForMember はメンバーのアクセス権を同一トランザクションで置き換える。
func (r *PostgresProjectAccessRepo) ReplaceForMember(ctx context.Context, memberID string, grants []*model.ProjectAccess) error {
	return r.replace(ctx, "member_id", memberID, grants)
}

func (r *PostgresProjectAccessRepo) replace(ctx context.Context, column, value string, grants []*model.ProjectAccess) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_access WHERE `+column+` = $1`, value); err != nil {
		return fmt.Errorf("failed to clear project access: %w", err)
	}

	for _, a := range grants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO project_access (`+projectAccessColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, a.ProjectID, a.MemberID, a.MemberUserID, a.UserID, a.Level, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return wrapWriteError("failed to insert project access", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProjectAccessRepository = (*PostgresProjectAccessRepo)(nil)
