// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

// 認証失敗の理由（メトリクスのラベル値）
const (
	reasonMissingToken = "missing_token"
	reasonMalformed    = "malformed"
	reasonWrongType    = "wrong_type"
	reasonExpired      = "expired"
)

// AuthFailureRecorder は認証失敗の記録に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンをデコードし、
// 有効なアクセストークンであればIdentityをリクエストコンテキストに注入するミドルウェアを返す。
// 失敗時はすべて401とJSONエラーボディを返し、Identityは一切注入しない。
// recorderはnilでもよい。
func NewAuthMiddleware(decoder token.Decoder, recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	return newAuthMiddleware(decoder, recorder, time.Now)
}

func newAuthMiddleware(decoder token.Decoder, recorder AuthFailureRecorder, now func() time.Time) func(next http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason string, apiErr *model.APIError) {
		if recorder != nil {
			recorder.RecordAuthFailure(reason)
		}
		slog.Debug("authentication rejected",
			slog.String("reason", reason),
			slog.String("path", r.URL.Path),
		)
		WriteErrorResponse(w, apiErr)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorization: Bearer <token> を取得
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, reasonMissingToken, model.NewTokenRequiredError())
				return
			}

			// 2. クレームをデコード
			claims, err := decoder.Decode(raw)
			if err != nil || claims == nil {
				reject(w, r, reasonMalformed, model.NewInvalidTokenError())
				return
			}

			// 3. 種別・有効期限・ユーザーIDを検証
			if claims.Type != token.TypeAccess {
				reject(w, r, reasonWrongType, model.NewInvalidTokenError())
				return
			}
			if !token.IsValid(claims, now()) {
				reject(w, r, reasonExpired, model.NewInvalidTokenError())
				return
			}
			if claims.UserID == "" {
				reject(w, r, reasonMalformed, model.NewInvalidTokenError())
				return
			}

			// 4. Identityをコンテキストに注入
			ctx := ContextWithIdentity(r.Context(), claims.Identity())
			annotateUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダー値からトークン部分を取り出す。
// スキーム名は大文字小文字を区別しない。
func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil || identity.UserID == "" {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.UserID, nil
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// ContextWithUserID はユーザーIDのみを持つIdentityをコンテキストに注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithIdentity(ctx, &model.Identity{UserID: userID})
}
