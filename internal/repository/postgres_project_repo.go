package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
	"github.com/lib/pq"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, user_id, name, description, status, deployment_url, deployed_at, created_at, updated_at`

// scanProject は1行をProjectに読み込む。
func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	var deployedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.DeploymentURL, &deployedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if deployedAt.Valid {
		t := deployedAt.Time
		p.DeployedAt = &t
	}
	return p, nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}
	return p, nil
}

// ListByUserID はユーザーが所有するプロジェクトを作成日時の降順で返す。
func (r *PostgresProjectRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return projects, nil
}

// CountOwned はidsのうちuserIDが所有するプロジェクト数を返す。
func (r *PostgresProjectRepo) CountOwned(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		userID, pq.Array(ids),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owned projects: %w", err)
	}
	return count, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.Name, p.Description, p.Status, p.DeploymentURL, p.DeployedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to create project", err)
	}
	return nil
}

// Update はプロジェクトの名前・説明・デプロイ状態を更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, p *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET name = $2, description = $3, status = $4, deployment_url = $5, deployed_at = $6, updated_at = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Status, p.DeploymentURL, p.DeployedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to update project", err)
	}
	return requireAffected(result, "failed to update project")
}

// Delete は指定IDのプロジェクトを削除する。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(result, "failed to delete project")
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
