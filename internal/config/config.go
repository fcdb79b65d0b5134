// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage locations, rate limiting, badge
// caching, AI generation, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-badge-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig defines connection settings for the key-value store backing
// rate-limit windows and response caches.
type RedisConfig struct {
	Addr     string // REDIS_ADDR, host:port
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// RateLimitConfig defines the store-backed request limiter. Strategy selects
// between the fixed-window counter ("fixed") and the sorted-set sliding
// window ("sliding"); the two use distinct key prefixes and are never mixed
// against the same key.
type RateLimitConfig struct {
	Limit    int           // RATE_LIMIT, admissions per window
	Window   time.Duration // RATE_WINDOW
	Strategy string        // RATE_STRATEGY: fixed|sliding
}

// CounterConfig defines the visitor counter's cache and trusted-origin gate.
// Only requests whose User-Agent and relay header both match the configured
// image-proxy fingerprint trigger durable increments.
type CounterConfig struct {
	CacheTTL      time.Duration // VIEW_CACHE_TTL, fast-cache lifetime of a count snapshot
	ProfileMaxAge time.Duration // PROFILE_MAX_AGE, staleness window for cached profiles
	TrustedUA     string        // TRUSTED_UA_PREFIX, e.g. "github-camo"
	RelayHeader   string        // TRUSTED_RELAY_HEADER, e.g. "Via"
	RelayValue    string        // TRUSTED_RELAY_VALUE, substring expected in the relay header
}

// AIConfig defines generated-text badge settings: the per-client generation
// cooldown, the shared text cache TTL, and the upstream completion API.
type AIConfig struct {
	Cooldown  time.Duration // AI_COOLDOWN, min interval between generations per client
	CacheTTL  time.Duration // AI_CACHE_TTL, lifetime of a shared generated text
	APIKey    string        // AI_API_KEY
	BaseURL   string        // AI_BASE_URL, OpenAI-compatible endpoint
	Model     string        // AI_MODEL
	MaxTokens int           // AI_MAX_TOKENS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath string // SQLite path for durable counters and profile cache
	Redis  RedisConfig

	// Core pipeline
	RateLimit RateLimitConfig
	Counter   CounterConfig
	AI        AIConfig

	// GitHub profile lookups
	GitHubAPIBase string // GITHUB_API_BASE

	// Deferred work
	TaskTimeout time.Duration // TASK_TIMEOUT, per-task budget for deferred reconciliation

	// Web protection
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath: getenv("DB_PATH", "badges.db"),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Limit:    getint("RATE_LIMIT", 60),
			Window:   getdur("RATE_WINDOW", 60*time.Second),
			Strategy: strings.ToLower(getenv("RATE_STRATEGY", "fixed")),
		},

		// Visitor counter
		Counter: CounterConfig{
			CacheTTL:      getdur("VIEW_CACHE_TTL", 60*time.Second),
			ProfileMaxAge: getdur("PROFILE_MAX_AGE", 24*time.Hour),
			TrustedUA:     getenv("TRUSTED_UA_PREFIX", "github-camo"),
			RelayHeader:   getenv("TRUSTED_RELAY_HEADER", "Via"),
			RelayValue:    getenv("TRUSTED_RELAY_VALUE", "github-camo"),
		},

		// AI badge
		AI: AIConfig{
			Cooldown:  getdur("AI_COOLDOWN", 10*time.Second),
			CacheTTL:  getdur("AI_CACHE_TTL", 90*time.Second),
			APIKey:    getenv("AI_API_KEY", ""),
			BaseURL:   getenv("AI_BASE_URL", ""),
			Model:     getenv("AI_MODEL", "gpt-4o-mini"),
			MaxTokens: getint("AI_MAX_TOKENS", 50),
		},

		GitHubAPIBase: getenv("GITHUB_API_BASE", "https://api.github.com"),

		TaskTimeout: getdur("TASK_TIMEOUT", 10*time.Second),

		// Web protection
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-badge-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.RateLimit.Limit < 1 {
		return cfg, errors.New("RATE_LIMIT must be >= 1")
	}
	if cfg.RateLimit.Window <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	switch cfg.RateLimit.Strategy {
	case "fixed", "sliding":
	default:
		return cfg, errors.New("RATE_STRATEGY must be one of: fixed, sliding")
	}
	if cfg.Counter.CacheTTL <= 0 {
		return cfg, errors.New("VIEW_CACHE_TTL must be > 0")
	}
	if cfg.Counter.ProfileMaxAge <= 0 {
		return cfg, errors.New("PROFILE_MAX_AGE must be > 0")
	}
	if cfg.AI.Cooldown <= 0 {
		return cfg, errors.New("AI_COOLDOWN must be > 0")
	}
	if cfg.AI.CacheTTL <= 0 {
		return cfg, errors.New("AI_CACHE_TTL must be > 0")
	}
	if cfg.AI.MaxTokens < 1 {
		return cfg, errors.New("AI_MAX_TOKENS must be >= 1")
	}
	if cfg.TaskTimeout <= 0 {
		return cfg, errors.New("TASK_TIMEOUT must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
