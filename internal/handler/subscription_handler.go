package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portal/internal/model"
)

// SubscriptionServiceInterface はサブスクリプションハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	Plans() []model.Plan
	Get(ctx context.Context, userID string) (*model.Subscription, error)
	ChangePlan(ctx context.Context, userID, planID string) (*model.Subscription, error)
	Cancel(ctx context.Context, userID string) (*model.Subscription, error)
	ListTopUps(ctx context.Context, userID string) ([]*model.TopUp, error)
	TopUp(ctx context.Context, userID string, tokens int64) (*model.TopUp, error)
}

// SubscriptionHandler はプラン・トークン購入のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

type changePlanRequest struct {
	PlanID string `json:"planId"`
}

type topUpRequest struct {
	Tokens int64 `json:"tokens"`
}

type subscriptionResponse struct {
	PlanID            string `json:"planId"`
	Status            string `json:"status"`
	TokensUsed        int64  `json:"tokensUsed"`
	TokensLimit       int64  `json:"tokensLimit"`
	CurrentPeriodEnd  string `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
}

type planResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PriceCents  int64    `json:"priceCents"`
	TokensLimit int64    `json:"tokensLimit"`
	Features    []string `json:"features"`
}

type topUpResponse struct {
	ID          string `json:"id"`
	Tokens      int64  `json:"tokens"`
	AmountCents int64  `json:"amountCents"`
	Status      string `json:"status"`
	PaymentRef  string `json:"paymentRef,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// Get は現在のサブスクリプションを返す。
// GET /api/subscription
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ChangePlan はプランを変更する。
// PUT /api/subscription
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req changePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.PlanID == "" {
		handleServiceError(w, r, model.NewValidationError("planId is required"))
		return
	}

	sub, err := h.service.ChangePlan(r.Context(), identity.UserID, req.PlanID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// Plans はプランカタログを返す。
// GET /api/subscription/plans
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans := h.service.Plans()
	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		features := p.Features
		if features == nil {
			features = []string{}
		}
		resp = append(resp, planResponse{
			ID:          p.ID,
			Name:        p.Name,
			PriceCents:  p.PriceCents,
			TokensLimit: p.TokensLimit,
			Features:    features,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cancel は期間終了時の解約を予約する。
// POST /api/subscription/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Cancel(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ListTopUps はトークン購入履歴を返す。
// GET /api/subscription/topup
func (h *SubscriptionHandler) ListTopUps(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	topUps, err := h.service.ListTopUps(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]topUpResponse, 0, len(topUps))
	for _, t := range topUps {
		resp = append(resp, toTopUpResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopUp はトークンを追加購入する。
// POST /api/subscription/topup
func (h *SubscriptionHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	t, err := h.service.TopUp(r.Context(), identity.UserID, req.Tokens)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTopUpResponse(t))
}

func toSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		PlanID:            s.PlanID,
		Status:            string(s.Status),
		TokensUsed:        s.TokensUsed,
		TokensLimit:       s.TokensLimit,
		CurrentPeriodEnd:  formatTime(s.CurrentPeriodEnd),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
}

func toTopUpResponse(t *model.TopUp) topUpResponse {
	return topUpResponse{
		ID:          t.ID,
		Tokens:      t.Tokens,
		AmountCents: t.AmountCents,
		Status:      string(t.Status),
		PaymentRef:  t.PaymentRef,
		CreatedAt:   formatTime(t.CreatedAt),
	}
}
