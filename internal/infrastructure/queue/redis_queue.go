package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

const (
	defaultQueueKey = "kernel:cycles"
	popTimeout      = time.Second
	retryBackoff    = time.Second
)

// Sink accepts cycle requests; the Dispatcher is the usual one.
type Sink interface {
	Enqueue(ctx context.Context, req ports.CycleRequest) error
}

// RedisQueue is a durable list of cycle requests shared by every process.
// Producers LPUSH JSON jobs; Consume pops them with BRPOP in FIFO order.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    zerolog.Logger
}

func NewRedisQueue(client *redis.Client, key string, log zerolog.Logger) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{
		client: client,
		key:    key,
		log:    log.With().Str("component", "redis_queue").Logger(),
	}
}

// Enqueue pushes req onto the shared list.
func (q *RedisQueue) Enqueue(ctx context.Context, req ports.CycleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode cycle job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("push cycle job: %w", err)
	}
	return nil
}

// Consume forwards jobs to sink until ctx is cancelled. Malformed jobs are
// logged and dropped.
func (q *RedisQueue) Consume(ctx context.Context, sink Sink) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			q.log.Error().Err(err).Msg("pop cycle job failed")
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// res is [key, value].
		var req ports.CycleRequest
		if err := json.Unmarshal([]byte(res[1]), &req); err != nil || req.UserID == "" {
			q.log.Warn().Err(err).Str("body", res[1]).Msg("dropping malformed cycle job")
			continue
		}
		if err := sink.Enqueue(ctx, req); err != nil {
			return nil
		}
	}
}
