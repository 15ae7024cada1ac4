package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はサーバー全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Token
	// どちらも未設定の場合は署名を検証せずにペイロードのみを読む。
	TokenHMACSecret   string
	TokenPublicKeyPEM string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitInvite  int

	// Resources
	DeployDomain        string
	DomainVerifyTimeout time.Duration
	ChangelogFeedURL    string

	// Worker
	InviteTTL      time.Duration
	WorkerInterval time.Duration

	// Telemetry
	OTLPEndpoint string
	OTLPInsecure bool

	// Logging
	LogLevel string

	// Server
	ServerPort      string
	BaseURL         string
	ShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.TokenHMACSecret = os.Getenv("TOKEN_HMAC_SECRET")
	cfg.TokenPublicKeyPEM = strings.ReplaceAll(os.Getenv("TOKEN_PUBLIC_KEY_PEM"), `\n`, "\n")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitInvite = getEnvInt("RATE_LIMIT_INVITE", 10)
	cfg.DeployDomain = getEnvString("DEPLOY_DOMAIN", "apps.portal.example.com")
	cfg.DomainVerifyTimeout = getEnvDuration("DOMAIN_VERIFY_TIMEOUT", 5*time.Second)
	cfg.ChangelogFeedURL = getEnvString("CHANGELOG_FEED_URL", "")
	cfg.InviteTTL = getEnvDuration("INVITE_TTL", 7*24*time.Hour)
	cfg.WorkerInterval = getEnvDuration("WORKER_INTERVAL", time.Hour)
	cfg.OTLPEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTLPInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.TokenHMACSecret != "" && cfg.TokenPublicKeyPEM != "" {
		return nil, fmt.Errorf("TOKEN_HMAC_SECRET and TOKEN_PUBLIC_KEY_PEM are mutually exclusive")
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
