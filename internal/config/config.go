package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 認証プロバイダー種別
const (
	IdentityProviderGoTrue = "gotrue"
	IdentityProviderLocal  = "local"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity
	IdentityProvider string
	GoTrueURL        string
	GoTrueServiceKey string
	IdentityTimeout  time.Duration
	BcryptCost       int
	// OrphanAuditInterval はローカル認証IDの孤立監査の実行間隔。0の場合は実行しない。
	OrphanAuditInterval time.Duration

	// Signup
	SignupTimeout   time.Duration
	RateLimitSignup int // 1分あたり・クライアントIPあたりのリクエスト数

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// TrustForwardedHeaders がtrueの場合、X-Forwarded-For等のヘッダーから接続元IPを復元する。
	// 信頼できるリバースプロキシの背後でのみ有効にする。
	TrustForwardedHeaders bool

	// Logging
	LogLevel string

	// Tracing
	OTelEndpoint string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdentityProvider = strings.ToLower(getEnvString("IDENTITY_PROVIDER", IdentityProviderGoTrue))
	switch cfg.IdentityProvider {
	case IdentityProviderGoTrue:
		// ホスト型認証サービスを使う場合のみ接続情報が必須
		cfg.GoTrueURL = os.Getenv("GOTRUE_URL")
		if cfg.GoTrueURL == "" {
			missing = append(missing, "GOTRUE_URL")
		}
		cfg.GoTrueServiceKey = os.Getenv("GOTRUE_SERVICE_KEY")
		if cfg.GoTrueServiceKey == "" {
			missing = append(missing, "GOTRUE_SERVICE_KEY")
		}
	case IdentityProviderLocal:
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_PROVIDER: %q", cfg.IdentityProvider)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.OrphanAuditInterval = getEnvDuration("ORPHAN_AUDIT_INTERVAL", time.Hour)
	if os.Getenv("ORPHAN_AUDIT_INTERVAL") == "0" {
		cfg.OrphanAuditInterval = 0
	}
	cfg.SignupTimeout = getEnvDuration("SIGNUP_TIMEOUT", 15*time.Second)
	cfg.RateLimitSignup = getEnvInt("RATE_LIMIT_SIGNUP", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.TrustForwardedHeaders = getEnvBool("TRUST_FORWARDED_HEADERS", false)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.OTelEndpoint = getEnvString("OTEL_ENDPOINT", "")

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31: %d", cfg.BcryptCost)
	}
	if cfg.RateLimitSignup <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_SIGNUP must be positive: %d", cfg.RateLimitSignup)
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
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
