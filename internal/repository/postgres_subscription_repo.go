package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/portal/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// FindByUserID はユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan_id, status, tokens_used, tokens_limit, current_period_end, cancel_at_period_end, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.TokensUsed, &s.TokensLimit, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return s, nil
}

// Upsert はuser_idをキーにサブスクリプションを作成または更新する。
// 既存行のidとcreated_atは保持する。
func (r *PostgresSubscriptionRepo) Upsert(ctx context.Context, s *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, status, tokens_used, tokens_limit, current_period_end, cancel_at_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     plan_id = EXCLUDED.plan_id,
		     status = EXCLUDED.status,
		     tokens_used = EXCLUDED.tokens_used,
		     tokens_limit = EXCLUDED.tokens_limit,
		     current_period_end = EXCLUDED.current_period_end,
		     cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		     updated_at = EXCLUDED.updated_at`,
		s.ID, s.UserID, s.PlanID, s.Status, s.TokensUsed, s.TokensLimit, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
