package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupTTL = time.Hour

// JobDedup provides idempotency checks for queued cycle jobs.
// Key format: dedup:cycle:<trace_id>
type JobDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobDedup creates a JobDedup wrapping the given Redis client. A zero ttl
// falls back to one hour.
func NewJobDedup(client *redis.Client, ttl time.Duration) *JobDedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &JobDedup{client: client, ttl: ttl}
}

// IsDuplicate reports whether a job with this trace ID already ran.
func (d *JobDedup) IsDuplicate(ctx context.Context, traceID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(traceID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that the job ran (expires after the configured TTL).
func (d *JobDedup) Mark(ctx context.Context, traceID string) error {
	return d.client.Set(ctx, d.key(traceID), "1", d.ttl).Err()
}

func (d *JobDedup) key(traceID string) string {
	return fmt.Sprintf("dedup:cycle:%s", traceID)
}
