package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProbeLock elects one instance to run each health-probe cycle, via a Redis
// SET NX lease. The lease TTL is sized to the probe interval so a crashed
// leader is replaced within one cycle.
type ProbeLock struct {
	client *goredis.Client
	key    string
}

// NewProbeLock creates a new probe-cycle leader lock.
func NewProbeLock(client *goredis.Client) *ProbeLock {
	return &ProbeLock{
		client: client,
		key:    "health_probe:leader",
	}
}

// TryAcquire takes the lease for one cycle. Returns false when another
// instance already probed this window.
func (l *ProbeLock) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis probe lock: %w", err)
	}
	return ok, nil
}
