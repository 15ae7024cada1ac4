package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/portal/internal/metrics"
	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Decoder           token.Decoder
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	ServiceName       string

	// リソースサービス
	ProjectService      ProjectServiceInterface
	TeamService         TeamServiceInterface
	DomainService       DomainServiceInterface
	SubscriptionService SubscriptionServiceInterface
	BillingService      BillingServiceInterface
	SettingsService     SettingsServiceInterface
	MembershipService   MembershipServiceInterface
	ChangelogService    ChangelogServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したhttp.Handlerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	otelhttp → Recovery → Logging → SecurityHeaders → CORS → Metrics → Auth → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(metrics.NewHTTPMiddleware(collector))

	projectHandler := NewProjectHandler(deps.ProjectService)
	teamHandler := NewTeamHandler(deps.TeamService)
	domainHandler := NewDomainHandler(deps.DomainService)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	accountHandler := NewAccountHandler(deps.BillingService, deps.SettingsService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Decoder, collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/profile", Profile)
		r.Get("/projects", projectHandler.List)

		r.Route("/api", func(r chi.Router) {
			r.Get("/profile", Profile)

			// プロジェクト
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)
					r.Post("/deploy", projectHandler.Deploy)
					r.Get("/access", projectHandler.GetAccess)
					r.Put("/access", projectHandler.ReplaceAccess)
				})
			})

			// 設定
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", accountHandler.GetSettings)
				r.Put("/", accountHandler.PutSettings)
				r.Get("/descriptions", accountHandler.SettingDescriptions)
			})

			// カスタムドメイン
			r.Route("/domains", func(r chi.Router) {
				r.Get("/", domainHandler.List)
				r.Post("/", domainHandler.Add)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", domainHandler.Get)
					r.Delete("/", domainHandler.Delete)
					r.Put("/verify", domainHandler.Verify)
				})
			})

			// サブスクリプション
			r.Route("/subscription", func(r chi.Router) {
				r.Get("/", subHandler.Get)
				r.Put("/", subHandler.ChangePlan)
				r.Get("/plans", subHandler.Plans)
				r.Get("/topup", subHandler.ListTopUps)
				r.Post("/topup", subHandler.TopUp)
				r.Post("/cancel", subHandler.Cancel)
			})

			// 請求先
			r.Route("/billing", func(r chi.Router) {
				r.Get("/", accountHandler.GetBilling)
				r.Put("/", accountHandler.PutBilling)
				r.Get("/company", accountHandler.Company)
			})

			// チーム（招待は専用レート制限を追加）
			r.Route("/team", func(r chi.Router) {
				r.Get("/", teamHandler.List)
				r.With(deps.RateLimiter.InviteMiddleware()).Post("/invite", teamHandler.Invite)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", teamHandler.Remove)
					r.Put("/role", teamHandler.UpdateRole)
					r.Get("/access", teamHandler.GetAccess)
					r.Put("/access", teamHandler.ReplaceAccess)
				})
			})

			r.Get("/organizations/memberships", NewMembershipsHandler(deps.MembershipService))
			r.Get("/changelog", NewChangelogHandler(deps.ChangelogService))
		})
	})

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "portal"
	}
	return otelhttp.NewHandler(r, serviceName)
}
