// Package redis caches decided application lookups. Only terminal statuses
// are cached: they are immutable, so a hit can never serve a stale decision.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const decidedTTL = time.Hour

type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

func key(id uuid.UUID) string { return "application:decided:" + id.String() }

// GetDecided returns the cached masked view of a decided application.
func (c *Cache) GetDecided(ctx context.Context, id uuid.UUID, dest any) error {
	val, err := c.Client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(val, dest)
}

// SetDecided stores the masked view of a terminal application.
func (c *Cache) SetDecided(ctx context.Context, id uuid.UUID, view any) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(id), payload, decidedTTL).Err()
}

func (c *Cache) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.Client.Close() }
