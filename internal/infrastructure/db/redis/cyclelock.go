package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

const (
	defaultLockTTL = time.Minute
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose TTL lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CycleLocker serialises cycles per user across processes.
// Key format: lock:cycle:<user_id>
type CycleLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

var _ ports.CycleLocker = (*CycleLocker)(nil)

// NewCycleLocker returns a locker whose locks expire after ttl even if the
// holder never releases them.
func NewCycleLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *CycleLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &CycleLocker{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "cycle_locker").Logger(),
	}
}

func (l *CycleLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := l.key(userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrCycleInProgress
	}

	return func() {
		// The caller's ctx may already be cancelled when release runs.
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("user_id", userID).Msg("cycle lock release failed")
		}
	}, nil
}

func (l *CycleLocker) key(userID string) string {
	return "lock:cycle:" + userID
}
