package cache

import (
	"context"
	"time"

	"billdesk/backend/internal/domain"
)

// StatsCache fronts the dashboard stats aggregation. Implementations must
// treat a miss as (nil, false, nil); errors are reserved for backend
// failures so callers can degrade to the store.
type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, key string, stats *domain.DashboardStats, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

// Noop satisfies StatsCache without caching anything. It is the default
// when no redis address is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Get(context.Context, string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (*Noop) Set(context.Context, string, *domain.DashboardStats, time.Duration) error {
	return nil
}

func (*Noop) Invalidate(context.Context, string) error { return nil }

func (*Noop) Close() error { return nil }
