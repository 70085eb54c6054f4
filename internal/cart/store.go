package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
)

// Store persists guest carts keyed by token.
type Store interface {
	Get(ctx context.Context, token string) (*Cart, error)
	Put(ctx context.Context, token string, cart *Cart) error
	CompareAndSwap(ctx context.Context, token string, expectedVersion int64, cart *Cart) (bool, error)
	Delete(ctx context.Context, token string) error
}

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error
	CartKey(token string) string
}

// RedisStore keeps each cart as a JSON blob with a sliding TTL.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore builds a cart store over the shared redis client.
func NewRedisStore(client redisClient, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}, nil
}

// Get returns the stored cart. Missing, expired or unreadable blobs read as an
// empty cart at version zero.
func (s *RedisStore) Get(ctx context.Context, token string) (*Cart, error) {
	if !ValidToken(token) {
		return emptyCart(), nil
	}
	raw, err := s.client.Get(ctx, s.client.CartKey(token))
	if errors.Is(err, redis.Nil) {
		return emptyCart(), nil
	}
	if err != nil {
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeStoreUnavailable, err, "read cart")
	}
	return decodeCart(raw), nil
}

// Put overwrites the cart unconditionally.
func (s *RedisStore) Put(ctx context.Context, token string, cart *Cart) error {
	if err := checkWritable(token, cart); err != nil {
		return err
	}
	next := s.stamp(cart, cart.Version+1)
	body, err := json.Marshal(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.client.Set(ctx, s.client.CartKey(token), body, s.ttl); err != nil {
		return pkgerrors.WrapInfra(pkgerrors.CodeStoreUnavailable, err, "write cart")
	}
	*cart = next
	return nil
}

// CompareAndSwap writes cart only if the stored version still equals
// expectedVersion. It reports false when another writer got there first.
func (s *RedisStore) CompareAndSwap(ctx context.Context, token string, expectedVersion int64, cart *Cart) (bool, error) {
	if err := checkWritable(token, cart); err != nil {
		return false, err
	}
	key := s.client.CartKey(token)
	next := s.stamp(cart, expectedVersion+1)
	body, err := json.Marshal(next)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}

	swapped := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current := int64(0)
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current = decodeCart(raw).Version
		}
		if current != expectedVersion {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.WrapInfra(pkgerrors.CodeStoreUnavailable, err, "write cart")
	}
	if swapped {
		*cart = next
	}
	return swapped, nil
}

// Delete forgets the cart. Deleting a missing cart is not an error.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if !ValidToken(token) {
		return nil
	}
	if err := s.client.Del(ctx, s.client.CartKey(token)); err != nil {
		return pkgerrors.WrapInfra(pkgerrors.CodeStoreUnavailable, err, "delete cart")
	}
	return nil
}

func (s *RedisStore) stamp(cart *Cart, version int64) Cart {
	items := make([]Line, len(cart.Items))
	copy(items, cart.Items)
	return Cart{
		Schema:    blobSchema,
		Version:   version,
		Items:     items,
		UpdatedAt: s.now().UTC(),
	}
}

func checkWritable(token string, cart *Cart) error {
	if !ValidToken(token) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart token")
	}
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart required")
	}
	return nil
}

func emptyCart() *Cart {
	return &Cart{Schema: blobSchema, Items: []Line{}}
}

func decodeCart(raw string) *Cart {
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.Schema != blobSchema {
		return emptyCart()
	}
	if c.Items == nil {
		c.Items = []Line{}
	}
	return &c
}
