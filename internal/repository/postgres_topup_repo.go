package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresTopUpRepo はPostgreSQLを使用した支払い履歴リポジトリ。
type PostgresTopUpRepo struct {
	db *sql.DB
}

// NewPostgresTopUpRepo はPostgresTopUpRepoを生成する。
func NewPostgresTopUpRepo(db *sql.DB) *PostgresTopUpRepo {
	return &PostgresTopUpRepo{db: db}
}

// Create は支払い履歴を記録する。
func (r *PostgresTopUpRepo) Create(ctx context.Context, t *model.TopUp) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO topups (id, user_id, tokens, amount_cents, status, payment_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Tokens, t.AmountCents, t.Status, t.PaymentRef, t.CreatedAt,
	)
	if err != nil {
		return wrapWriteError("failed to create top-up", err)
	}
	return nil
}

// ListByUserID はユーザーの支払い履歴を新しい順に最大limit件返す。
// IDはULIDのため作成順に並ぶ。
func (r *PostgresTopUpRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.TopUp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, tokens, amount_cents, status, payment_ref, created_at
		 FROM topups WHERE user_id = $1 ORDER BY id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list top-ups: %w", err)
	}
	defer rows.Close()

	var topUps []*model.TopUp
	for rows.Next() {
		t := &model.TopUp{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Tokens, &t.AmountCents, &t.Status, &t.PaymentRef, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan top-up row: %w", err)
		}
		topUps = append(topUps, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top-up rows: %w", err)
	}
	return topUps, nil
}

// compile-time interface check
var _ TopUpRepository = (*PostgresTopUpRepo)(nil)
