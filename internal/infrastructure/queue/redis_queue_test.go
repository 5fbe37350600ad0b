package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

type chanSink struct {
	mu  sync.Mutex
	got []ports.CycleRequest
	ch  chan struct{}
}

func (s *chanSink) Enqueue(_ context.Context, req ports.CycleRequest) error {
	s.mu.Lock()
	s.got = append(s.got, req)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func TestRedisQueue_RoundTripFIFO(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisQueue(client, "", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for _, tr := range []string{"t1", "t2"} {
		if err := q.Enqueue(ctx, ports.CycleRequest{UserID: "u1", TraceID: tr, Timestamp: ts}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	// A malformed job is dropped without stopping the consumer.
	mr.Lpush(defaultQueueKey, "not json")
	if err := q.Enqueue(ctx, ports.CycleRequest{UserID: "u2", TraceID: "t3"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sink := &chanSink{ch: make(chan struct{}, 3)}
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, sink)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-sink.ch:
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for job %d", i+1)
		}
	}
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	want := []string{"t1", "t2", "t3"}
	for i, req := range sink.got {
		if req.TraceID != want[i] {
			t.Fatalf("job %d: trace %s, want %s", i, req.TraceID, want[i])
		}
	}
	if !sink.got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp not preserved: %v", sink.got[0].Timestamp)
	}
}
