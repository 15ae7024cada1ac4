package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresTeamMemberRepo はPostgreSQLを使用したチームメンバーリポジトリ。
type PostgresTeamMemberRepo struct {
	db *sql.DB
}

// NewPostgresTeamMemberRepo はPostgresTeamMemberRepoを生成する。
func NewPostgresTeamMemberRepo(db *sql.DB) *PostgresTeamMemberRepo {
	return &PostgresTeamMemberRepo{db: db}
}

const teamMemberColumns = `id, team_id, email, member_user_id, role, status, note, invited_at, updated_at`

func scanTeamMember(row interface{ Scan(...any) error }) (*model.TeamMember, error) {
	m := &model.TeamMember{}
	err := row.Scan(&m.ID, &m.TeamID, &m.Email, &m.MemberUserID, &m.Role, &m.Status, &m.Note, &m.InvitedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamMemberRepo) FindByID(ctx context.Context, id string) (*model.TeamMember, error) {
	m, err := scanTeamMember(r.db.QueryRowContext(ctx,
		`SELECT `+teamMemberColumns+` FROM team_members WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チームメンバーの取得に失敗しました: %w", err)
	}
	return m, nil
}

// FindByTeamAndEmail はチームIDとメールアドレスでメンバーを検索する。
func (r *PostgresTeamMemberRepo) FindByTeamAndEmail(ctx context.Context, teamID, email string) (*model.TeamMember, error) {
	m, err := scanTeamMember(r.db.QueryRowContext(ctx,
		`SELECT `+teamMemberColumns+` FROM team_members WHERE team_id = $1 AND email = $2`,
		teamID, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるチームメンバーの検索に失敗しました: %w", err)
	}
	return m, nil
}

// ListByTeam はチームのメンバー一覧を招待日時順に返す。
func (r *PostgresTeamMemberRepo) ListByTeam(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamMemberColumns+` FROM team_members WHERE team_id = $1 ORDER BY invited_at ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("チームメンバー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var members []*model.TeamMember
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, fmt.Errorf("チームメンバー行の読み取りに失敗しました: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チームメンバー一覧の走査に失敗しました: %w", err)
	}
	return members, nil
}

// Create はメンバーを作成する。
func (r *PostgresTeamMemberRepo) Create(ctx context.Context, m *model.TeamMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (`+teamMemberColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TeamID, m.Email, m.MemberUserID, m.Role, m.Status, m.Note, m.InvitedAt, m.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError("チームメンバーの作成に失敗しました", err)
	}
	return nil
}

// UpdateRole はメンバーのロールを更新する。
func (r *PostgresTeamMemberRepo) UpdateRole(ctx context.Context, id string, role model.TeamRole) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET role = $2, updated_at = NOW() WHERE id = $1`,
		id, role,
	)
	if err != nil {
		return fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}
	return requireAffected(result, "ロールの更新に失敗しました")
}

// Delete は指定IDのメンバーを削除する。
func (r *PostgresTeamMemberRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("チームメンバーの削除に失敗しました: %w", err)
	}
	return requireAffected(result, "チームメンバーの削除に失敗しました")
}

// ExpirePending はbefore以前に招待された未受諾の招待を期限切れにし、件数を返す。
func (r *PostgresTeamMemberRepo) ExpirePending(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND invited_at < $3`,
		model.MemberExpired, model.MemberInvited, before,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ招待の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ TeamMemberRepository = (*PostgresTeamMemberRepo)(nil)
