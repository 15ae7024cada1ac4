// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONや未知のフィールドはValidationエラーとして扱う。
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return nil
}

// requireIdentity はコンテキストから認証済みIdentityを取り出す。
// 取得できない場合は401を書き込みfalseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewTokenRequiredError())
		return nil, false
	}
	return identity, true
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外は詳細をログにのみ残し500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// formatTime はRFC3339（UTC）文字列に変換する。ゼロ値は空文字列。
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatTimePtr はnil許容の時刻を変換する。
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
