package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatal("expected ping failure for unreachable address")
	}
}

func TestJobDedup(t *testing.T) {
	mr, client := newTestClient(t)
	d := NewJobDedup(client, time.Minute)
	ctx := context.Background()

	dup, err := d.IsDuplicate(ctx, "trace-1")
	if err != nil || dup {
		t.Fatalf("fresh trace: dup=%v err=%v", dup, err)
	}
	if err := d.Mark(ctx, "trace-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	dup, err = d.IsDuplicate(ctx, "trace-1")
	if err != nil || !dup {
		t.Fatalf("marked trace: dup=%v err=%v", dup, err)
	}

	mr.FastForward(2 * time.Minute)
	dup, _ = d.IsDuplicate(ctx, "trace-1")
	if dup {
		t.Fatal("expected mark to expire after ttl")
	}
}

func TestCycleLocker_ExclusiveAndRelease(t *testing.T) {
	_, client := newTestClient(t)
	l := NewCycleLocker(client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	release, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "u1"); !errors.Is(err, domain.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
	other, err := l.Acquire(ctx, "u2")
	if err != nil {
		t.Fatalf("other user should not be blocked: %v", err)
	}
	other()

	release()
	again, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestCycleLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewCycleLocker(client, time.Second, zerolog.Nop())
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * time.Second)

	current, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	defer current()

	stale()
	if !mr.Exists("lock:cycle:u1") {
		t.Fatal("stale release removed the current holder's lock")
	}
}
