package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー名。
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength はクライアント指定のリクエストIDとして受け付ける最大長。
const maxRequestIDLength = 128

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はWriteHeaderが未呼び出しの場合に200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLog はリクエストログに後段のミドルウェアが追記する値を保持する。
// 認証はLoggingより内側で行われるため、user_idはここ経由で受け取る。
type requestLog struct {
	requestID string

	mu     sync.Mutex
	userID string
}

type requestLogKey struct{}

func requestLogFromContext(ctx context.Context) *requestLog {
	rl, _ := ctx.Value(requestLogKey{}).(*requestLog)
	return rl
}

// RequestIDFromContext はLoggingミドルウェアが割り当てたリクエストIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	if rl := requestLogFromContext(ctx); rl != nil {
		return rl.requestID
	}
	return ""
}

// annotateUserID は認証済みユーザーIDをリクエストログに記録する。
func annotateUserID(ctx context.Context, userID string) {
	if rl := requestLogFromContext(ctx); rl != nil {
		rl.mu.Lock()
		rl.userID = userID
		rl.mu.Unlock()
	}
}

// requestIDFrom はクライアント指定のリクエストIDを検証し、使えない場合は新規に採番する。
func requestIDFrom(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return uuid.NewString()
		}
	}
	return id
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはrequest_id、method、path、status、duration_ms、user_id（認証済みの場合）を含む。
// リクエストIDはX-Request-IDレスポンスヘッダーでも返す。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rl := &requestLog{requestID: requestIDFrom(r)}
			w.Header().Set(RequestIDHeader, rl.requestID)

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, rl)))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("request_id", rl.requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			rl.mu.Lock()
			userID := rl.userID
			rl.mu.Unlock()
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
