package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/logger"
)

// Key layout: sf:<kind>:<parts...>. Carts live under sf:cart:guest:<token>.
const (
	keyNamespace   = "sf"
	kindCart       = "cart"
	kindIdempotent = "idempotency"
	kindRateLimit  = "rate_limit"
	guestCartScope = "guest"
)

var errNotInitialized = errors.New("redis client not initialized")

// windowIncr bumps a counter and arms its expiry in one round trip. A key
// that somehow lost its TTL gets it back on the next hit.
var windowIncr = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Client is the storefront's handle on Redis: cart blobs, idempotency
// records and rate-limit windows.
type Client struct {
	rdb *redis.Client
}

// New dials Redis from configuration and verifies it answers.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_addr", opts.Addr), "redis connection established")
	}
	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// optionsFromConfig prefers a redis:// URL; explicit pool and timeout
// settings fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) conn() (*redis.Client, error) {
	if c == nil || c.rdb == nil {
		return nil, errNotInitialized
	}
	return c.rdb, nil
}

// Get returns the string at key. Missing keys return redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.conn()
	if err != nil {
		return "", err
	}
	return rdb.Get(ctx, key).Result()
}

// Set stores value with ttl; zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX stores value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	rdb, err := c.conn()
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, value, ttl).Result()
}

// SetXX overwrites key only when it still exists and reports whether it did.
func (c *Client) SetXX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	rdb, err := c.conn()
	if err != nil {
		return false, err
	}
	return rdb.SetXX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}

// IncrWithTTL counts one hit in the fixed window stored at key.
func (c *Client) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error) {
	rdb, err := c.conn()
	if err != nil {
		return 0, err
	}
	if window <= 0 {
		return rdb.Incr(ctx, key).Result()
	}
	return windowIncr.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64()
}

// Watch runs fn as an optimistic transaction over keys. A concurrent write
// to any watched key makes EXEC fail with redis.TxFailedErr.
func (c *Client) Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Watch(ctx, fn, keys...)
}

func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// CartKey is where the guest cart for token is stored.
func (c *Client) CartKey(token string) string {
	return buildKey(kindCart, guestCartScope, token)
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(kindIdempotent, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(kindRateLimit, scope)
}

func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
