package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/portal/internal/model"
)

// profileResponse はGET /profile のレスポンス。トークンのクレームのみから組み立てる。
type profileResponse struct {
	UserID       string                    `json:"userId"`
	Email        string                    `json:"email"`
	FullName     string                    `json:"fullName"`
	Subscription model.SubscriptionSummary `json:"subscription"`
}

// Profile は呼び出し元のプロフィールを返す。
// GET /profile, GET /api/profile
func Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		UserID:       identity.UserID,
		Email:        identity.Email,
		FullName:     identity.Name,
		Subscription: identity.Subscription,
	})
}

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler は/healthのハンドラーを返す。
// checkerがnilの場合はプロセス生存のみを返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
