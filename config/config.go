package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	ListenAddr  string
	MetricsAddr string

	// Market data provider
	ProviderBaseURL string // empty → public Yahoo Finance endpoint
	ProviderTimeout time.Duration

	// Caches
	RedisAddr     string // empty → redis cache disabled
	RedisPassword string
	SQLitePath    string
	EPSCacheTTL   time.Duration

	// Ticker universe
	UniversePath string // empty → embedded default list

	// Cache prewarm
	Watchlist    string // comma-separated symbols
	PrewarmCron  string
	LookbackDays int

	// Live quotes
	QuotePollInterval time.Duration

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", ""),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		EPSCacheTTL:   getDuration("EPS_CACHE_TTL", 6*time.Hour),

		UniversePath: getEnv("UNIVERSE_PATH", ""),

		Watchlist:    getEnv("WATCHLIST", "AAPL,MSFT,GOOGL,AMZN,NVDA"),
		PrewarmCron:  getEnv("PREWARM_CRON", "30 22 * * 1-5"),
		LookbackDays: getInt("LOOKBACK_DAYS", 400),

		QuotePollInterval: getDuration("QUOTE_POLL_INTERVAL", 15*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseWatchlist splits the watchlist into uppercase symbols.
func (c *Config) ParseWatchlist() []string {
	parts := strings.Split(c.Watchlist, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
