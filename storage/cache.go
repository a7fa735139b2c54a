package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"event-scheduler/domain"
)

const allEventsCacheKey = "events:all"

// Writes replace the affected keys with a tombstone for evictionGuard. A
// lookup that read the backend before the write cannot re-cache its stale
// result while the tombstone is in place.
const (
	tombstone     = "-"
	evictionGuard = 5 * time.Second
)

// Cache wraps a Backend with Redis-backed caching for the unfiltered listing
// and single event lookups. Writes evict the affected keys once the backend
// accepts them.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client or zero TTL disables caching.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	if filter.From != nil || filter.To != nil {
		return c.base.ListEvents(ctx, filter)
	}
	var events []domain.Event
	if c.load(ctx, allEventsCacheKey, &events) {
		return events, nil
	}

	events, err := c.base.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.store(ctx, allEventsCacheKey, events)
	return events, nil
}

func (c *Cache) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var ev domain.Event
	if c.load(ctx, eventCacheKey(id), &ev) {
		return &ev, nil
	}

	found, err := c.base.GetEvent(ctx, id)
	if err != nil || found == nil {
		return found, err
	}
	c.store(ctx, eventCacheKey(id), found)
	return found, nil
}

func (c *Cache) InsertEvent(ctx context.Context, ev domain.Event) (string, error) {
	id, err := c.base.InsertEvent(ctx, ev)
	if err != nil {
		return "", err
	}
	c.evict(ctx, id)
	return id, nil
}

func (c *Cache) UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	ev, err := c.base.UpdateEvent(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, id)
	return ev, nil
}

func (c *Cache) DeleteEvent(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := c.base.DeleteEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, id)
	return ev, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if string(data) == tombstone {
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.SetNX(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, allEventsCacheKey, tombstone, evictionGuard)
		pipe.Set(ctx, eventCacheKey(id), tombstone, evictionGuard)
		return nil
	})
}

func eventCacheKey(id string) string {
	return "event:" + id
}
