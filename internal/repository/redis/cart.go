package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jashezan/HomifyHub/internal/domain"
	"github.com/jashezan/HomifyHub/pkg/database"
	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
)

const (
	keyPrefix = "cart:"
	itemSeq   = "cart:item_seq"
)

var errVersionMismatch = errors.New("cart version mismatch")

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a Redis-backed cart repository. Carts expire
// ttl after their last save.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cart stored for shopperKey.
func (r *CartRepository) Get(ctx context.Context, shopperKey string) (cart *domain.Cart, err error) {
	ctx, end := database.Trace(ctx, database.Redis, "GetCart", "GET cart:{shopper}")
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, keyPrefix+shopperKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", shopperKey)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	cart = &domain.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return cart, nil
}

// SaveIfVersion writes cart under WATCH so a concurrent writer that changed
// the key in between aborts this transaction.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) (saved bool, err error) {
	ctx, end := database.Trace(ctx, database.Redis, "SaveCart", "WATCH/MULTI SET cart:{shopper}")
	defer func() { end(err) }()

	key := keyPrefix + cart.ShopperKey

	txf := func(tx *redis.Tx) error {
		current := 0
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get cart: %w", err)
		default:
			var stored domain.Cart
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("unmarshal cart: %w", err)
			}
			current = stored.Version
		}
		if current != expected {
			return errVersionMismatch
		}

		next := *cart
		next.Version = expected + 1
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		cart.Version = expected + 1
		return true, nil
	case errors.Is(err, errVersionMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("redis save cart: %w", err)
	}
}

// NextItemID allocates an item id from a global counter.
func (r *CartRepository) NextItemID(ctx context.Context) (id int64, err error) {
	ctx, end := database.Trace(ctx, database.Redis, "NextItemID", "INCR cart:item_seq")
	defer func() { end(err) }()

	id, err = r.client.Incr(ctx, itemSeq).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr item id: %w", err)
	}
	return id, nil
}
