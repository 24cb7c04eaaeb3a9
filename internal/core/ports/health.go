package ports

import (
	"context"
	"time"
)

// LeaderLock elects one instance per probe cycle in a horizontally scaled
// deployment. TryAcquire returns false when another instance holds the lease.
type LeaderLock interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (bool, error)
}

// HealthChecker checks internal dependency health (the service's own
// PostgreSQL and Redis, not acquirer health — that is the health monitor's
// job).
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}
