package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/portal/internal/billing"
	"github.com/hitoshi/portal/internal/changelog"
	"github.com/hitoshi/portal/internal/config"
	"github.com/hitoshi/portal/internal/database"
	"github.com/hitoshi/portal/internal/domain"
	"github.com/hitoshi/portal/internal/handler"
	"github.com/hitoshi/portal/internal/logger"
	"github.com/hitoshi/portal/internal/metrics"
	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/organization"
	"github.com/hitoshi/portal/internal/project"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/hitoshi/portal/internal/security"
	"github.com/hitoshi/portal/internal/settings"
	"github.com/hitoshi/portal/internal/subscription"
	"github.com/hitoshi/portal/internal/team"
	"github.com/hitoshi/portal/internal/telemetry"
	"github.com/hitoshi/portal/internal/token"
	"github.com/hitoshi/portal/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ServiceName はログとトレースに付与するサービス名。
const ServiceName = "portal"

// changelogFetchTimeout はリリースノートフィード取得のタイムアウト。
const changelogFetchTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, ServiceName, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, ServiceName, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		PrintUsage(w)
		return err
	}
	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// BuildRouterDeps はDB接続と設定から全サービスを組み立て、ルーターの依存関係を返す。
// 返されたRateLimiterの停止は呼び出し側の責務。
func BuildRouterDeps(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (*handler.RouterDeps, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	projectRepo := repository.NewPostgresProjectRepo(db)
	accessRepo := repository.NewPostgresProjectAccessRepo(db)
	memberRepo := repository.NewPostgresTeamMemberRepo(db)
	domainRepo := repository.NewPostgresDomainRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	topUpRepo := repository.NewPostgresTopUpRepo(db)
	billingRepo := repository.NewPostgresBillingRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	orgRepo := repository.NewPostgresOrganizationRepo(db)

	// 2. 外部呼び出しはSSRF対策済みのクライアントのみを使う
	guard := security.NewOutboundGuard()

	// 3. トークンデコーダー
	decoder, err := token.NewDecoder(cfg.TokenHMACSecret, cfg.TokenPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to build token decoder: %w", err)
	}

	// 4. ドメインサービスの初期化
	projectService := project.NewService(projectRepo, accessRepo, memberRepo, collector, cfg.DeployDomain)
	teamService := team.NewService(memberRepo, accessRepo, projectRepo, collector)
	domainService := domain.NewService(
		domainRepo, projectRepo,
		domain.NewHTTPVerifier(guard.NewSafeClient(cfg.DomainVerifyTimeout)),
		guard, collector,
	)
	subService := subscription.NewService(subRepo, topUpRepo, subscription.DefaultCatalog(), subscription.MockGateway{}, collector)
	billingService, err := billing.NewService(billingRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to build billing service: %w", err)
	}
	settingsService, err := settings.NewService(settingsRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to build settings service: %w", err)
	}
	orgService := organization.NewService(orgRepo)
	changelogService := changelog.NewService(
		cfg.ChangelogFeedURL,
		guard.NewSafeClient(changelogFetchTimeout),
		slog.Default(),
	)

	return &handler.RouterDeps{
		Decoder:           decoder,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitInvite),
		),
		Logger:      slog.Default(),
		ServiceName: ServiceName,

		ProjectService:      projectService,
		TeamService:         teamService,
		DomainService:       domainService,
		SubscriptionService: subService,
		BillingService:      billingService,
		SettingsService:     settingsService,
		MembershipService:   orgService,
		ChangelogService:    changelogService,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. トレースとメトリクス
	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, slog.Default())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, ServiceName),
	)

	// 3. ルーターの構築
	deps, err := BuildRouterDeps(cfg, db, reg)
	if err != nil {
		return err
	}
	defer deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. HTTPサーバーの起動
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 招待の期限切れジョブをWorkerInterval毎に実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	collector := metrics.NewCollector(prometheus.NewRegistry())
	teamService := team.NewService(
		repository.NewPostgresTeamMemberRepo(db),
		repository.NewPostgresProjectAccessRepo(db),
		repository.NewPostgresProjectRepo(db),
		collector,
	)

	job := cleanup.NewInviteExpiryJob(teamService, collector, slog.Default())
	job.TTL = cfg.InviteTTL

	slog.Info("worker starting",
		slog.Duration("interval", cfg.WorkerInterval),
		slog.Duration("invite_ttl", cfg.InviteTTL),
	)

	job.Loop(ctx, cfg.WorkerInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードとクエリをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
