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
	Site      SiteConfig
	Navigator NavigatorConfig
	Pipeline  PipelineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Publisher PublisherConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how the browser session is acquired.
type BrowserConfig struct {
	// CDPURL is the remote browser endpoint (ws:// or wss://, credentials
	// included). When empty a local Chromium is launched.
	CDPURL string

	// Headless controls whether a locally launched browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to a locally launched browser.
	Proxy string
}

// SiteConfig describes the target site and the default search.
type SiteConfig struct {
	// BaseURL is the site root; relative listing hrefs resolve against it.
	BaseURL string // default: "https://www.zoopla.co.uk"

	// Location is the default search location for CLI runs.
	Location string // default: "Oxford"
}

// NavigatorConfig controls the navigation state machine.
type NavigatorConfig struct {
	// SearchInputSelector locates the location-autocomplete input.
	SearchInputSelector string // default: input[name="autosuggest-input"]

	// ResultsSelector is the results container read after a search.
	ResultsSelector string // default: div[data-testid="regular-listings"]

	// DetailSelector is the container read on a listing page.
	DetailSelector string // default: div[data-testid="listing-details-page"]

	// FillTimeout bounds each attempt to fill the search input.
	FillTimeout time.Duration // default: 60s

	// FillAttempts is how many fill timeouts are tolerated before the run fails.
	FillAttempts int // default: 3

	// LoadTimeout bounds every wait for the page load signal.
	LoadTimeout time.Duration // default: 60s

	// ElementTimeout bounds the wait for a container before it counts as missing.
	ElementTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists resource types the page never loads.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// AcceptLanguage is sent as an extra header when non-empty.
	AcceptLanguage string // default: "en-GB,en;q=0.9"
}

// PipelineConfig controls a pipeline run.
type PipelineConfig struct {
	// MaxListings is how many result cards get a detail fetch. 0 = all.
	MaxListings int // default: 1

	// SkipMalformedCards skips cards missing anchor/address/heading instead
	// of failing the run.
	SkipMalformedCards bool // default: false

	// RunTimeout is the hard deadline for a whole run.
	RunTimeout time.Duration // default: 5m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 0.2

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// CacheConfig controls the listings response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 100

	// MemcacheAddrs enables a shared memcache tier when non-empty.
	MemcacheAddrs []string
}

// PublisherConfig controls streaming of records to Redis.
type PublisherConfig struct {
	// RedisAddr enables publishing when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int // default: 0

	// Stream is the Redis stream key records are appended to.
	Stream string // default: "propscrape:records"

	// StreamMaxLength approximately caps the stream. 0 = unbounded.
	StreamMaxLength int // default: 10000
}

// WebhookConfig sets the default webhook target for completed runs.
type WebhookConfig struct {
	URL    string
	Secret string
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
			Host: envOr("PROPSCRAPE_HOST", "0.0.0.0"),
			Port: envIntOr("PROPSCRAPE_PORT", 8080),
			Mode: envOr("PROPSCRAPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			CDPURL:     os.Getenv("PROPSCRAPE_CDP_URL"),
			Headless:   envBoolOr("PROPSCRAPE_HEADLESS", true),
			NoSandbox:  envBoolOr("PROPSCRAPE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PROPSCRAPE_BROWSER_BIN"),
			Proxy:      os.Getenv("PROPSCRAPE_PROXY"),
		},
		Site: SiteConfig{
			BaseURL:  strings.TrimRight(envOr("PROPSCRAPE_BASE_URL", "https://www.zoopla.co.uk"), "/"),
			Location: envOr("PROPSCRAPE_LOCATION", "Oxford"),
		},
		Navigator: NavigatorConfig{
			SearchInputSelector: envOr("PROPSCRAPE_SEARCH_INPUT_SELECTOR", `input[name="autosuggest-input"]`),
			ResultsSelector:     envOr("PROPSCRAPE_RESULTS_SELECTOR", `div[data-testid="regular-listings"]`),
			DetailSelector:      envOr("PROPSCRAPE_DETAIL_SELECTOR", `div[data-testid="listing-details-page"]`),
			FillTimeout:         envDurationOr("PROPSCRAPE_FILL_TIMEOUT", 60*time.Second),
			FillAttempts:        envIntOr("PROPSCRAPE_FILL_ATTEMPTS", 3),
			LoadTimeout:         envDurationOr("PROPSCRAPE_LOAD_TIMEOUT", 60*time.Second),
			ElementTimeout:      envDurationOr("PROPSCRAPE_ELEMENT_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("PROPSCRAPE_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			AcceptLanguage: envOr("PROPSCRAPE_ACCEPT_LANGUAGE", "en-GB,en;q=0.9"),
		},
		Pipeline: PipelineConfig{
			MaxListings:        envIntOr("PROPSCRAPE_MAX_LISTINGS", 1),
			SkipMalformedCards: envBoolOr("PROPSCRAPE_SKIP_MALFORMED_CARDS", false),
			RunTimeout:         envDurationOr("PROPSCRAPE_RUN_TIMEOUT", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PROPSCRAPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PROPSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PROPSCRAPE_RATE_RPS", 0.2),
			Burst:             envIntOr("PROPSCRAPE_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries:    envIntOr("PROPSCRAPE_CACHE_MAX_ENTRIES", 100),
			MemcacheAddrs: envSliceOr("PROPSCRAPE_MEMCACHE_ADDRS", nil),
		},
		Publisher: PublisherConfig{
			RedisAddr:       os.Getenv("PROPSCRAPE_REDIS_ADDR"),
			RedisPassword:   os.Getenv("PROPSCRAPE_REDIS_PASSWORD"),
			RedisDB:         envIntOr("PROPSCRAPE_REDIS_DB", 0),
			Stream:          envOr("PROPSCRAPE_REDIS_STREAM", "propscrape:records"),
			StreamMaxLength: envIntOr("PROPSCRAPE_REDIS_STREAM_MAXLEN", 10000),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PROPSCRAPE_WEBHOOK_URL"),
			Secret: os.Getenv("PROPSCRAPE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PROPSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("PROPSCRAPE_LOG_FORMAT", "json"),
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
		return result
	}
	return fallback
}
