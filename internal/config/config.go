// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is the development signing key. Load rejects it in production.
const DefaultJWTSecret = "@wk-blog"

// DefaultAllowList is the ALLOW_LIST default.
const DefaultAllowList = "/images/**,/files/**,/doc.html,/favicon.ico,/webjars/**,/swagger-resources/**,/v3/**,/swagger-ui/**,/swagger-ui.html,/ws/**"

// Authorization engines.
const (
	AuthzEngineSet = "set"
	AuthzEngineOPA = "opa"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr is the address of the HTTP API.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. Binaries that touch the database require it.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL selects the Redis kv store (redis://host:6379/0). Empty keeps state in process.
	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTTTL is the token lifetime (e.g. "24h").
	JWTTTL string `mapstructure:"JWT_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	RateLimitPeriodRaw   string `mapstructure:"RATE_LIMIT_PERIOD"`
	RateLimitCount       int64  `mapstructure:"RATE_LIMIT_COUNT"`
	VerifyCodeTTLRaw     string `mapstructure:"VERIFY_CODE_TTL"`

	// MailRelayURL receives verification codes. Empty logs them instead (development only).
	MailRelayURL string `mapstructure:"MAIL_RELAY_URL"`
	MailRelayKey string `mapstructure:"MAIL_RELAY_KEY"`

	// AuthzEngine is "set" or "opa".
	AuthzEngine string `mapstructure:"AUTHZ_ENGINE"`
	// AuthzPolicyFile optionally replaces the built-in Rego policy.
	AuthzPolicyFile string `mapstructure:"AUTHZ_POLICY_FILE"`

	// AllowList is a comma-separated list of path patterns reachable without a credential.
	AllowList string `mapstructure:"ALLOW_LIST"`
	// TrustedProxies is a comma-separated list of IPs or CIDRs whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty trusts none.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// QQ login is enabled when QQClientID is set.
	QQClientID     string `mapstructure:"QQ_CLIENT_ID"`
	QQClientSecret string `mapstructure:"QQ_CLIENT_SECRET"`
	QQRedirectURI  string `mapstructure:"QQ_REDIRECT_URI"`
	QQBaseURL      string `mapstructure:"QQ_BASE_URL"`

	// OTLPEndpoint is the collector address; empty disables export.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "nexus-auth")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "10m")
	v.SetDefault("RATE_LIMIT_PERIOD", "10s")
	v.SetDefault("RATE_LIMIT_COUNT", 10)
	v.SetDefault("VERIFY_CODE_TTL", "1m")
	v.SetDefault("MAIL_RELAY_URL", "")
	v.SetDefault("MAIL_RELAY_KEY", "")
	v.SetDefault("AUTHZ_ENGINE", AuthzEngineSet)
	v.SetDefault("AUTHZ_POLICY_FILE", "")
	v.SetDefault("ALLOW_LIST", DefaultAllowList)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("QQ_CLIENT_ID", "")
	v.SetDefault("QQ_CLIENT_SECRET", "")
	v.SetDefault("QQ_REDIRECT_URI", "")
	v.SetDefault("QQ_BASE_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "nexus-auth")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.IsProduction() && cfg.JWTSecret == DefaultJWTSecret {
		return nil, errors.New("config: JWT_SECRET must be overridden when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	cfg.AuthzEngine = strings.ToLower(strings.TrimSpace(cfg.AuthzEngine))
	if cfg.AuthzEngine != AuthzEngineSet && cfg.AuthzEngine != AuthzEngineOPA {
		return nil, errors.New("config: AUTHZ_ENGINE must be set or opa")
	}
	if cfg.QQClientID != "" && (cfg.QQClientSecret == "" || cfg.QQRedirectURI == "") {
		return nil, errors.New("config: QQ_CLIENT_SECRET and QQ_REDIRECT_URI are required with QQ_CLIENT_ID")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// RequireDatabase returns an error when DATABASE_URL is empty.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	return nil
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TokenTTL parses JWTTTL. Returns 24h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	return duration(c.JWTTTL, 24*time.Hour)
}

// SweepInterval parses SessionSweepInterval. Returns 10m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return duration(c.SessionSweepInterval, 10*time.Minute)
}

// RateLimitPeriod parses RateLimitPeriodRaw. Returns 10s if unset or invalid.
func (c *Config) RateLimitPeriod() time.Duration {
	return duration(c.RateLimitPeriodRaw, 10*time.Second)
}

// VerifyCodeTTL parses VerifyCodeTTLRaw. Returns 1m if unset or invalid.
func (c *Config) VerifyCodeTTL() time.Duration {
	return duration(c.VerifyCodeTTLRaw, time.Minute)
}

// AllowListPatterns returns the allow-list patterns from the comma-separated config.
func (c *Config) AllowListPatterns() []string {
	if c == nil {
		return nil
	}
	return splitList(c.AllowList)
}

// TrustedProxyList returns the trusted proxy addresses from the comma-separated config.
func (c *Config) TrustedProxyList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// QQEnabled reports whether the QQ login strategy should be registered.
func (c *Config) QQEnabled() bool {
	return c.QQClientID != ""
}
