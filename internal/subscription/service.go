// Package subscription はプラン変更・解約・トークン追加購入と支払い履歴のドメインロジックを提供する。
package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/oklog/ulid/v2"
)

// 決済結果のメトリクスラベル
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// billingPeriod は1契約期間の長さ。
const billingPeriod = 30 * 24 * time.Hour

// topUpHistoryLimit は支払い履歴の返却件数上限。
const topUpHistoryLimit = 50

// PaymentRecorder は決済結果を記録する。
type PaymentRecorder interface {
	RecordPayment(status string)
}

// Service はサブスクリプション管理のサービス層。
type Service struct {
	subRepo   repository.SubscriptionRepository
	topUpRepo repository.TopUpRepository
	catalog   *Catalog
	gateway   PaymentGateway
	recorder  PaymentRecorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。catalogがnilの場合は埋め込みカタログを使う。
func NewService(
	subRepo repository.SubscriptionRepository,
	topUpRepo repository.TopUpRepository,
	catalog *Catalog,
	gateway PaymentGateway,
	recorder PaymentRecorder,
) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Service{
		subRepo:   subRepo,
		topUpRepo: topUpRepo,
		catalog:   catalog,
		gateway:   gateway,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Plans はプラン一覧を返す。
func (s *Service) Plans() []model.Plan {
	return s.catalog.Plans
}

// Get はユーザーのサブスクリプションを返す。
// 未作成の場合は保存せずにFreeプランの内容を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub != nil {
		return sub, nil
	}
	free, _ := s.catalog.Find(FreePlanID)
	return &model.Subscription{
		UserID:      userID,
		PlanID:      free.ID,
		Status:      model.SubscriptionActive,
		TokensLimit: free.TokensLimit,
	}, nil
}

// ChangePlan はプランを変更する。有料プランへの変更時は初月分を課金する。
// 解約予約済みの場合は予約を取り消す。
func (s *Service) ChangePlan(ctx context.Context, userID, planID string) (*model.Subscription, error) {
	plan, ok := s.catalog.Find(planID)
	if !ok {
		return nil, model.NewPlanNotFoundError(planID)
	}

	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}

	now := s.now()
	if sub == nil {
		sub = &model.Subscription{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
		}
	}
	if sub.PlanID == plan.ID && sub.Status == model.SubscriptionActive && !sub.CancelAtPeriodEnd {
		return sub, nil
	}

	if plan.PriceCents > 0 {
		if _, err := s.charge(ctx, userID, plan.PriceCents, fmt.Sprintf("%s plan", plan.Name)); err != nil {
			return nil, err
		}
	}

	sub.PlanID = plan.ID
	sub.Status = model.SubscriptionActive
	sub.TokensLimit = plan.TokensLimit
	sub.CancelAtPeriodEnd = false
	sub.CurrentPeriodEnd = now.Add(billingPeriod)
	sub.UpdatedAt = now
	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}
	return sub, nil
}

// Cancel は期間終了時の解約を予約する。
func (s *Service) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, model.NewSubscriptionNotFoundError()
	}
	if sub.Status == model.SubscriptionCanceled || sub.CancelAtPeriodEnd {
		return nil, model.NewAlreadyCanceledError()
	}

	sub.CancelAtPeriodEnd = true
	sub.UpdatedAt = s.now()
	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}
	return sub, nil
}

// ListTopUps は支払い履歴を新しい順に返す。
func (s *Service) ListTopUps(ctx context.Context, userID string) ([]*model.TopUp, error) {
	topUps, err := s.topUpRepo.ListByUserID(ctx, userID, topUpHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("支払い履歴の取得に失敗しました: %w", err)
	}
	if topUps == nil {
		topUps = []*model.TopUp{}
	}
	return topUps, nil
}

// TopUp はトークンを追加購入し、サブスクリプションの上限に加算する。
// 決済に失敗した場合も支払い履歴には失敗として記録する。
func (s *Service) TopUp(ctx context.Context, userID string, tokens int64) (*model.TopUp, error) {
	pricing := s.catalog.TopUp
	if tokens < pricing.MinTokens || tokens > pricing.MaxTokens {
		return nil, model.NewValidationError(fmt.Sprintf("tokens must be between %d and %d", pricing.MinTokens, pricing.MaxTokens))
	}

	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, model.NewSubscriptionNotFoundError()
	}
	if sub.Status == model.SubscriptionCanceled {
		return nil, model.NewAlreadyCanceledError()
	}

	now := s.now()
	amount := s.catalog.PriceForTokens(tokens)
	topUp := &model.TopUp{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:      userID,
		Tokens:      tokens,
		AmountCents: amount,
		CreatedAt:   now,
	}

	ref, chargeErr := s.charge(ctx, userID, amount, fmt.Sprintf("%d tokens", tokens))
	if chargeErr != nil {
		topUp.Status = model.TopUpFailed
		if err := s.topUpRepo.Create(ctx, topUp); err != nil {
			return nil, fmt.Errorf("支払い履歴の記録に失敗しました: %w", err)
		}
		return nil, chargeErr
	}

	topUp.Status = model.TopUpSucceeded
	topUp.PaymentRef = ref
	if err := s.topUpRepo.Create(ctx, topUp); err != nil {
		return nil, fmt.Errorf("支払い履歴の記録に失敗しました: %w", err)
	}

	sub.TokensLimit += tokens
	sub.UpdatedAt = now
	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("トークン上限の更新に失敗しました: %w", err)
	}
	return topUp, nil
}

func (s *Service) charge(ctx context.Context, userID string, amountCents int64, description string) (string, error) {
	ref, err := s.gateway.Charge(ctx, userID, amountCents, description)
	if err != nil {
		s.record(PaymentFailed)
		return "", model.NewPaymentFailedError(err.Error())
	}
	s.record(PaymentSucceeded)
	return ref, nil
}

func (s *Service) record(status string) {
	if s.recorder != nil {
		s.recorder.RecordPayment(status)
	}
}
