// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthFailure(reason string)
	RecordOwnershipDenied(resource string)
	RecordDomainVerification(result string)
	RecordPayment(status string)
	RecordInvitesExpired(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	authFailures    *prometheus.CounterVec
	ownershipDenied *prometheus.CounterVec
	domainVerify    *prometheus.CounterVec
	payments        *prometheus.CounterVec
	invitesExpired  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータス別）",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_failures_total",
			Help: "認証失敗の合計数（理由別）",
		}, []string{"reason"}),
		ownershipDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_ownership_denied_total",
			Help: "所有者チェックで拒否された操作の合計数",
		}, []string{"resource"}),
		domainVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_domain_verifications_total",
			Help: "カスタムドメイン検証の結果別件数",
		}, []string{"result"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_payments_total",
			Help: "トークン追加購入の決済結果別件数",
		}, []string{"status"}),
		invitesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_invites_expired_total",
			Help: "期限切れにした招待の合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.authFailures,
		c.ownershipDenied,
		c.domainVerify,
		c.payments,
		c.invitesExpired,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数とレイテンシを記録する。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordOwnershipDenied は所有者チェックによる拒否を記録する。
func (c *Collector) RecordOwnershipDenied(resource string) {
	c.ownershipDenied.WithLabelValues(resource).Inc()
}

// RecordDomainVerification はドメイン検証の結果を記録する。
func (c *Collector) RecordDomainVerification(result string) {
	c.domainVerify.WithLabelValues(result).Inc()
}

// RecordPayment は決済結果を記録する。
func (c *Collector) RecordPayment(status string) {
	c.payments.WithLabelValues(status).Inc()
}

// RecordInvitesExpired は期限切れにした招待数を記録する。
func (c *Collector) RecordInvitesExpired(count int) {
	c.invitesExpired.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthFailure(string)                             {}
func (Nop) RecordOwnershipDenied(string)                         {}
func (Nop) RecordDomainVerification(string)                      {}
func (Nop) RecordPayment(string)                                 {}
func (Nop) RecordInvitesExpired(int)                             {}

// statusWriter はレスポンスのステータスコードを記録する。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// NewHTTPMiddleware はリクエスト数とレイテンシを記録するミドルウェアを返す。
// ルートラベルにはchiのルートパターンを使い、IDによるカーディナリティ増加を避ける。
func NewHTTPMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			c.RecordHTTPRequest(r.Method, route, sw.status, time.Since(start))
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
