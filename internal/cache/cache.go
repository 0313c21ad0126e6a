package cache

import (
	"context"
	"time"

	"tarpaulin/backend/internal/aggregate"
)

// DashboardCache holds the last computed dashboard snapshot. Writes that
// change transactions call Invalidate.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*aggregate.Dashboard, bool, error)
	Set(ctx context.Context, key string, value *aggregate.Dashboard, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopDashboardCache struct{}

var (
	_ DashboardCache = NoopDashboardCache{}
	_ DashboardCache = (*MemoryDashboardCache)(nil)
	_ DashboardCache = (*RedisDashboardCache)(nil)
)

func (NoopDashboardCache) Get(_ context.Context, _ string) (*aggregate.Dashboard, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *aggregate.Dashboard, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
