package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/microgem/storefront-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

func TestIncrWithTTLArmsWindowOnce(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := client.RateLimitKey("checkout:ip:shop:1.2.3.4")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected one minute window, got %v", ttl)
	}

	mr.FastForward(time.Minute)
	got, err := client.IncrWithTTL(ctx, key, time.Minute)
	if err != nil || got != 1 {
		t.Fatalf("expected fresh window after expiry, got %d err=%v", got, err)
	}
}

func TestIncrWithTTLRestoresLostExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := client.RateLimitKey("orphan")
	if err := mr.Set(key, "5"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := client.IncrWithTTL(ctx, key, 30*time.Second)
	if err != nil || got != 6 {
		t.Fatalf("expected 6, got %d err=%v", got, err)
	}
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("expected expiry to be restored, got %v", ttl)
	}
}

func TestSetNXAndSetXX(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	key := client.IdempotencyKey("shop|token|POST|/api/order/create", "k1")

	if ok, err := client.SetXX(ctx, key, "done", time.Hour); err != nil || ok {
		t.Fatalf("SetXX on missing key should not write, ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetNX(ctx, key, "pending", time.Hour); err != nil || !ok {
		t.Fatalf("first SetNX should claim, ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetNX(ctx, key, "other", time.Hour); err != nil || ok {
		t.Fatalf("second SetNX should lose, ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetXX(ctx, key, "done", time.Hour); err != nil || !ok {
		t.Fatalf("SetXX on claimed key should write, ok=%v err=%v", ok, err)
	}
	if got, _ := client.Get(ctx, key); got != "done" {
		t.Fatalf("expected done, got %q", got)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.CartKey("abc"):               "sf:cart:guest:abc",
		client.IdempotencyKey("scope", "id"): "sf:idempotency:scope:id",
		client.IdempotencyKey("", "id"):      "sf:idempotency:id",
		client.RateLimitKey(" scope "):      "sf:rate_limit:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Watch(context.Background(), func(*redis.Tx) error { return nil }, "k"); err == nil {
		t.Fatalf("expected error for uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:pw@cache.internal:6380/2",
		PoolSize:    25,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("url not applied: %+v", opts)
	}
	if opts.PoolSize != 25 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("config defaults not applied: pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}
}

func TestWatchDetectsConcurrentWrite(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := client.CartKey("token")

	write := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, "mine", time.Minute)
			return nil
		})
		return err
	}

	err := client.Watch(ctx, func(tx *redis.Tx) error {
		if err := mr.Set(key, "other"); err != nil {
			return err
		}
		return write(tx)
	}, key)
	if !errors.Is(err, redis.TxFailedErr) {
		t.Fatalf("expected TxFailedErr, got %v", err)
	}
	if got, _ := client.Get(ctx, key); got != "other" {
		t.Fatalf("expected concurrent value to win, got %q", got)
	}

	if err := client.Watch(ctx, write, key); err != nil {
		t.Fatalf("uncontended watch failed: %v", err)
	}
	if got, _ := client.Get(ctx, key); got != "mine" {
		t.Fatalf("expected write to apply, got %q", got)
	}
}
