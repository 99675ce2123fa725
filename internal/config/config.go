// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// セッション戦略とバックエンドの値。
const (
	StrategyCookie = "cookie"
	StrategyBearer = "bearer"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// OAuth
	GitHubClientID     string   `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string   `env:"GITHUB_REDIRECT_URL"`
	OAuthScopes        []string `env:"OAUTH_SCOPES" envDefault:"user,repo" envSeparator:","`

	// Session
	SessionSecret           string        `env:"SESSION_SECRET"`
	SessionStrategy         string        `env:"SESSION_STRATEGY" envDefault:"cookie"`
	SessionBackend          string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL              time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionCleanupInterval  time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m"`
	CredentialEncryptionKey string        `env:"CREDENTIAL_ENCRYPTION_KEY"`

	// Database（SESSION_BACKEND=postgres のときのみ使用）
	DatabaseURL string `env:"DATABASE_URL"`

	// Upstream
	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL" envDefault:"https://api.github.com"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	UpstreamMaxBody int64         `env:"UPSTREAM_MAX_BODY" envDefault:"5242880"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitSearch  int `env:"RATE_LIMIT_SEARCH" envDefault:"30"`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"3001"`
	FrontendURL string `env:"FRONTEND_URL"`
	TrustProxy  bool   `env:"TRUST_PROXY" envDefault:"true"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS。未設定ならFRONTEND_URLを使う
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`
}

// Load は環境変数からConfigを読み込み、検証する。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = cfg.FrontendURL
	}
	cfg.SessionStrategy = strings.ToLower(strings.TrimSpace(cfg.SessionStrategy))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	// 1. 必須項目
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"GITHUB_CLIENT_ID", c.GitHubClientID},
		{"GITHUB_CLIENT_SECRET", c.GitHubClientSecret},
		{"GITHUB_REDIRECT_URL", c.GitHubRedirectURL},
		{"SESSION_SECRET", c.SessionSecret},
		{"FRONTEND_URL", c.FrontendURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if c.SessionBackend == BackendPostgres && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// 2. 列挙値と範囲
	var errs []error
	switch c.SessionStrategy {
	case StrategyCookie, StrategyBearer:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STRATEGY must be %q or %q, got %q", StrategyCookie, StrategyBearer, c.SessionStrategy))
	}
	switch c.SessionBackend {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.SessionBackend))
	}
	if n := len(c.CredentialEncryptionKey); n != 0 && n != 32 {
		errs = append(errs, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be 32 bytes, got %d", n))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitSearch <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_GENERAL and RATE_LIMIT_SEARCH must be positive"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Scopes は空要素を除いたOAuthスコープを返す。
func (c *Config) Scopes() []string {
	scopes := make([]string, 0, len(c.OAuthScopes))
	for _, s := range c.OAuthScopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// ParseLogLevel はLOG_LEVELの文字列をslog.Levelに変換する。空文字列はinfo。
func ParseLogLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %q", s)
	}
	return level, nil
}
