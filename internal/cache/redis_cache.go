package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tarpaulin/backend/internal/aggregate"
)

type RedisDashboardCache struct {
	client *redis.Client
	prefix string
}

func NewRedisDashboardCache(addr string, password string, db int) *RedisDashboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDashboardCache{client: client, prefix: "tarpaulin:dashboard:"}
}

// Client exposes the connection so the sync lock can share it.
func (c *RedisDashboardCache) Client() *redis.Client {
	return c.client
}

func (c *RedisDashboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDashboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisDashboardCache) Get(ctx context.Context, key string) (*aggregate.Dashboard, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snapshot aggregate.Dashboard
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *RedisDashboardCache) Set(ctx context.Context, key string, value *aggregate.Dashboard, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, payload, ttl).Err()
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
