package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/models"

	"github.com/go-redis/redis/v8"
)

// ExpiredGrace keeps a cart readable for a while after it expires so callers
// can tell an expired cart from one that never existed.
const ExpiredGrace = 30 * time.Minute

type Store struct {
	Client *redis.Client
	Clock  clock.Clock
}

func NewStore(client *redis.Client, clk clock.Clock) *Store {
	return &Store{Client: client, Clock: clk}
}

func cartKey(id string) string {
	return "cart:" + id
}

func (s *Store) Save(ctx context.Context, c *models.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart %s: %w", c.ID, err)
	}
	ttl := c.ExpiresAt.Sub(s.Clock.Now()) + ExpiredGrace
	if ttl <= 0 {
		return apperr.New(apperr.CodeCartExpired, apperr.KindConflict, "Cart has expired")
	}
	return s.Client.Set(ctx, cartKey(c.ID), data, ttl).Err()
}

// Get returns the stored cart, expired or not. A cart that is unknown or
// past its grace period fails with CartNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Cart, error) {
	return decodeCart(id, s.Client.Get(ctx, cartKey(id)))
}

// Take reads and removes the cart in one GETDEL, so only one caller can
// convert a given cart. Save puts it back if the conversion is abandoned.
func (s *Store) Take(ctx context.Context, id string) (*models.Cart, error) {
	return decodeCart(id, s.Client.GetDel(ctx, cartKey(id)))
}

func decodeCart(id string, cmd *redis.StringCmd) (*models.Cart, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &apperr.Error{Code: apperr.CodeCartNotFound, Kind: apperr.KindNotFound, Entity: id, Message: "Cart not found"}
	}
	if err != nil {
		return nil, apperr.System("get cart", err)
	}

	var c models.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperr.System("decode cart", err)
	}
	return &c, nil
}
