package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/anecshop/marketplace/internal/domain/cart"
)

// DefaultCartTTL is how long an untouched cart survives. Every save renews
// the expiry, so only abandoned carts disappear.
const DefaultCartTTL = 30 * 24 * time.Hour

var _ cart.Store = (*CartStore)(nil)

// CartStore persists carts as one JSON document per user under "cart:<id>".
type CartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCartStore creates a CartStore. A non-positive ttl falls back to
// DefaultCartTTL.
func NewCartStore(rdb *redis.Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{rdb: rdb, ttl: ttl}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Load returns the user's cart, or an empty cart when none is stored.
func (s *CartStore) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := s.rdb.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &cart.Cart{UserID: userID}, nil
		}
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling cart for %q: %w", userID, err)
	}
	return &c, nil
}

// Save writes the cart back, renewing its expiry. An empty cart deletes the
// key instead of storing an empty document.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	key := cartKey(c.UserID)

	if len(c.Lines) == 0 {
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("deleting empty cart for %q: %w", c.UserID, err)
		}
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling cart for %q: %w", c.UserID, err)
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.UserID, err)
	}
	return nil
}
