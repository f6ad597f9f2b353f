package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetcher   FetcherConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Governor  GovernorConfig
	Cache     CacheConfig
	DNS       DNSConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the rod browser instance and pool.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// PoolSize is the warmed page pool capacity. Env: BROWSER_POOL_SIZE.
	PoolSize int // default: 8

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// IdleTTL closes idle pooled pages after this duration.
	IdleTTL time.Duration // default: 5m

	// BlockedResourceTypes lists resource types to block during renders.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks known ad/tracker domains during renders.
	BlockAds bool // default: true
}

// FetcherConfig controls the escalation ladder.
type FetcherConfig struct {
	// DefaultTimeout is the per-request fetch deadline.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps the client-supplied timeout.
	MaxTimeout time.Duration // default: 120s

	// MaxAttempts is the retry budget per rung.
	MaxAttempts int // default: 3

	// MinHTMLBytes is the lower bound below which a text/html body is
	// treated as suspect and escalated.
	MinHTMLBytes int // default: 512

	// Proxies is the default ordered proxy list. Env: PROXY_LIST.
	Proxies []string

	// WorkerAuthToken authenticates against the proxy-egress worker.
	WorkerAuthToken string

	// DomainMemoryTTL is how long a winning rung is remembered per domain.
	DomainMemoryTTL time.Duration // default: 24h
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	// Enabled toggles authentication.
	Enabled bool // default: true

	// APIKeys lists valid keys (prefix "wp_").
	APIKeys []string

	// JWTSecret verifies session JWTs. Env: JWT_SECRET.
	JWTSecret string

	// DatabaseURL is reserved for the external billing plane; the
	// pipeline never touches it. Env: DATABASE_URL.
	DatabaseURL string

	// WeeklyQuota is the per-key request quota (0 = unlimited).
	WeeklyQuota int
}

// RateLimitConfig controls per-key API rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// GovernorConfig controls the per-host fetch governor.
type GovernorConfig struct {
	// RequestsPerSecond is the default per-host refill rate.
	RequestsPerSecond float64 // default: 5

	// Burst is the default per-host bucket size.
	Burst int // default: 5

	// Overrides maps host → "rps:burst".
	Overrides map[string]string
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// TTL is the default entry lifetime. Env: CACHE_TTL.
	TTL time.Duration // default: 1h

	// MaxEntries is the LRU entry cap.
	MaxEntries int // default: 1000
}

// DNSConfig controls the DNS pre-resolver.
type DNSConfig struct {
	// Hosts are pre-resolved on a schedule.
	Hosts []string

	// RefreshInterval is the re-resolution period.
	RefreshInterval time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("WEBPEEL_HOST", "0.0.0.0"),
			Port: envIntOr("WEBPEEL_PORT", 8080),
			Mode: envOr("WEBPEEL_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("WEBPEEL_HEADLESS", true),
			PoolSize:   envIntOr("BROWSER_POOL_SIZE", 8),
			NoSandbox:  envBoolOr("WEBPEEL_NO_SANDBOX", false),
			BrowserBin: os.Getenv("WEBPEEL_BROWSER_BIN"),
			IdleTTL:    envDurationOr("WEBPEEL_BROWSER_IDLE_TTL", 5*time.Minute),
			BlockedResourceTypes: envSliceOr("WEBPEEL_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds: envBoolOr("WEBPEEL_BLOCK_ADS", true),
		},
		Fetcher: FetcherConfig{
			DefaultTimeout:  envDurationOr("WEBPEEL_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:      envDurationOr("WEBPEEL_MAX_TIMEOUT", 120*time.Second),
			MaxAttempts:     envIntOr("WEBPEEL_MAX_ATTEMPTS", 3),
			MinHTMLBytes:    envIntOr("WEBPEEL_MIN_HTML_BYTES", 512),
			Proxies:         envSliceOr("PROXY_LIST", nil),
			WorkerAuthToken: os.Getenv("WORKER_AUTH_TOKEN"),
			DomainMemoryTTL: envDurationOr("WEBPEEL_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled:     envBoolOr("WEBPEEL_AUTH_ENABLED", true),
			APIKeys:     envSliceOr("WEBPEEL_API_KEYS", nil),
			JWTSecret:   os.Getenv("JWT_SECRET"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			WeeklyQuota: envIntOr("WEBPEEL_WEEKLY_QUOTA", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("WEBPEEL_RATE_RPS", 5.0),
			Burst:             envIntOr("WEBPEEL_RATE_BURST", 10),
		},
		Governor: GovernorConfig{
			RequestsPerSecond: envFloatOr("WEBPEEL_HOST_RPS", 5.0),
			Burst:             envIntOr("WEBPEEL_HOST_BURST", 5),
			Overrides:         envMapOr("WEBPEEL_HOST_OVERRIDES"),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("CACHE_TTL", 1*time.Hour),
			MaxEntries: envIntOr("WEBPEEL_CACHE_MAX_ENTRIES", 1000),
		},
		DNS: DNSConfig{
			Hosts: envSliceOr("WEBPEEL_DNS_PREWARM", []string{
				"www.google.com", "www.youtube.com", "github.com",
				"en.wikipedia.org", "www.reddit.com", "news.ycombinator.com",
			}),
			RefreshInterval: envDurationOr("WEBPEEL_DNS_REFRESH", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("WEBPEEL_LOG_LEVEL", "info"),
			Format: envOr("WEBPEEL_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// CACHE_TTL is commonly given as bare seconds.
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// envMapOr parses "host=rps:burst,host2=rps:burst" into a map.
func envMapOr(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	m := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			m[k] = val
		}
	}
	return m
}
