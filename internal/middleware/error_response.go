package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/portal/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIErrorのKindから決定する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorStatus(w, apiErr.Kind.HTTPStatus(), apiErr.Code, apiErr.Message)
}

// WriteErrorStatus は任意のステータスコードでエラーボディを書き込む。
func WriteErrorStatus(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error: message,
		Code:  code,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
