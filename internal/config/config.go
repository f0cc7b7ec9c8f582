// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ストアの種別。
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
)

// EnvProduction は本番環境を示すAPP_ENVの値。
const EnvProduction = "production"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"3000"`
	ClientURL  string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`

	// OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionStore           string        `env:"SESSION_STORE" envDefault:"redis"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	// Whitelist
	WhitelistStore string `env:"WHITELIST_STORE" envDefault:"mongo"`

	// Backends
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"gatekeeper"`

	// Outbound
	OutboundTimeout time.Duration `env:"OUTBOUND_TIMEOUT" envDefault:"10s"`

	// Rate Limit (req/min/IP)
	RateLimitGeneral  int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitRegister int `env:"RATE_LIMIT_REGISTER" envDefault:"10"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// Proxy (CIDRまたはIPのカンマ区切り。X-Forwarded-Forはここからの接続のみ信頼する)
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Web client
	WebPort    string `env:"WEB_PORT" envDefault:"5173"`
	GatewayURL string `env:"GATEWAY_URL" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 値の型が不正な場合はエラーを返す。必須項目の検証はサブコマンドごとのValidate*で行う。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.ClientURL + "/auth/google/callback"
	}

	return cfg, nil
}

// ValidateGateway はAPIゲートウェイ（serve）の起動に必要な設定を検証する。
func (c *Config) ValidateGateway() error {
	var missing []string
	if c.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.usesPostgres() && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch c.SessionStore {
	case StoreRedis, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unsupported SESSION_STORE: %q", c.SessionStore)
	}
	switch c.WhitelistStore {
	case StoreMongo, StorePostgres:
	default:
		return fmt.Errorf("unsupported WHITELIST_STORE: %q", c.WhitelistStore)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive: %d", c.SessionMaxAge)
	}
	if c.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_TIMEOUT must be positive: %s", c.OutboundTimeout)
	}
	return nil
}

// ValidateWeb はWebクライアント（web）の起動に必要な設定を検証する。
func (c *Config) ValidateWeb() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("required environment variables are not set: [GATEWAY_URL]")
	}
	if c.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_TIMEOUT must be positive: %s", c.OutboundTimeout)
	}
	return nil
}

// ValidateDatabase はPostgreSQLを必要とするサブコマンド（migrate, worker）の設定を検証する。
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}
	return nil
}

// IsProduction は本番環境で動作しているかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// SessionTTL はセッションの固定有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

func (c *Config) usesPostgres() bool {
	return c.SessionStore == StorePostgres || c.WhitelistStore == StorePostgres
}
