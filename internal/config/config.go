package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	PublicBaseURL      string

	// Tip policy. Amounts are in minor units of CurrencyCode.
	CurrencyCode     string
	TipMinAmount     int64
	TipMaxAmount     int64
	TipPresetAmounts []int64

	StripeSecretKey     string
	StripeWebhookSecret string

	CoinbaseAPIKey        string
	CoinbaseWebhookSecret string
	CoinbaseBaseURL       string
	CoinbaseTimeout       time.Duration

	IdempotencyTTL      time.Duration
	RateLimitWindow     time.Duration
	RateLimitMax        int
	WebhookMaxBodyBytes int64
}

// Load reads configuration from environment variables and optional .env files.
// Provider credentials needed on every card payment are required here so a
// misconfigured deployment fails at startup rather than on the first tip.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:3000"), "/"),

		CurrencyCode:     strings.ToLower(valueOrDefault(k.String("CURRENCY_CODE"), "eur")),
		TipMinAmount:     parseInt64(k.String("TIP_MIN_AMOUNT"), 50),
		TipMaxAmount:     parseInt64(k.String("TIP_MAX_AMOUNT"), 100_000),
		TipPresetAmounts: parseInt64List(k.String("TIP_PRESET_AMOUNTS"), []int64{100, 200, 500, 1000}),

		StripeSecretKey:     strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),

		CoinbaseAPIKey:        strings.TrimSpace(k.String("COINBASE_API_KEY")),
		CoinbaseWebhookSecret: strings.TrimSpace(k.String("COINBASE_WEBHOOK_SECRET")),
		CoinbaseBaseURL:       valueOrDefault(k.String("COINBASE_BASE_URL"), "https://api.commerce.coinbase.com"),
		CoinbaseTimeout:       parseDuration(k.String("COINBASE_TIMEOUT"), "15s"),

		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitWindow:     parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:        int(parseInt64(k.String("RATE_LIMIT_MAX"), 30)),
		WebhookMaxBodyBytes: parseInt64(k.String("WEBHOOK_MAX_BODY_BYTES"), 65536),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required: the card checkout flow cannot start without it")
	}
	if cfg.TipMinAmount <= 0 || cfg.TipMaxAmount < cfg.TipMinAmount {
		return nil, fmt.Errorf("invalid tip bounds: min=%d max=%d", cfg.TipMinAmount, cfg.TipMaxAmount)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether detailed upstream errors must be withheld from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64List(value string, fallback []int64) []int64 {
	parts := splitAndTrim(value)
	if len(parts) == 0 {
		return fallback
	}
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.ParseInt(part, 10, 64)
		if err != nil || parsed <= 0 {
			continue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
