// Package redis provides a small TTL cache for provider lookups that are
// expensive relative to how often they change: trailing EPS figures and the
// latest quote per symbol. The cache is optional — a nil *Cache is safe to
// call and behaves as permanently empty.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"marketdash/internal/model"
)

const (
	epsKeyPrefix   = "eps:"
	quoteKeyPrefix = "quote:"

	defaultEPSTTL   = 6 * time.Hour
	defaultQuoteTTL = 5 * time.Minute
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	EPSTTL   time.Duration // 0 → defaultEPSTTL
}

// Cache caches trailing EPS values and latest quotes with a TTL.
type Cache struct {
	client *goredis.Client
	epsTTL time.Duration
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// New creates a new Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.EPSTTL
	if ttl <= 0 {
		ttl = defaultEPSTTL
	}

	slog.Info("redis cache connected", slog.String("addr", cfg.Addr))
	return &Cache{client: client, epsTTL: ttl}, nil
}

// GetEPS returns a cached trailing EPS for the symbol.
func (c *Cache) GetEPS(ctx context.Context, symbol string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, epsKeyPrefix+symbol).Result()
	if err != nil {
		return 0, false
	}
	eps, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return eps, true
}

// SetEPS caches a trailing EPS value with the configured TTL.
func (c *Cache) SetEPS(ctx context.Context, symbol string, eps float64) {
	if c == nil {
		return
	}
	val := strconv.FormatFloat(eps, 'f', -1, 64)
	if err := c.client.Set(ctx, epsKeyPrefix+symbol, val, c.epsTTL).Err(); err != nil {
		slog.Warn("redis set eps failed", slog.String("symbol", symbol), slog.Any("err", err))
	}
}

// SetQuote caches the latest quote for a symbol.
func (c *Cache) SetQuote(ctx context.Context, q model.Quote) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, quoteKeyPrefix+q.Symbol, q.JSON(), defaultQuoteTTL).Err(); err != nil {
		slog.Warn("redis set quote failed", slog.String("symbol", q.Symbol), slog.Any("err", err))
	}
}

// GetQuote returns the cached latest quote for a symbol.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (model.Quote, bool) {
	if c == nil {
		return model.Quote{}, false
	}
	val, err := c.client.Get(ctx, quoteKeyPrefix+symbol).Bytes()
	if err != nil {
		return model.Quote{}, false
	}
	var q model.Quote
	if err := json.Unmarshal(val, &q); err != nil {
		return model.Quote{}, false
	}
	return q, true
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
