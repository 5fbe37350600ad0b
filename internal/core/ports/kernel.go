package ports

import (
	"context"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// CycleRequest is the payload a dispatch path hands to the kernel.
type CycleRequest struct {
	UserID    string    `json:"userId"`
	TraceID   string    `json:"traceId"`
	Timestamp time.Time `json:"timestamp"`
}

// Kernel runs one discipline cycle for one user.
type Kernel interface {
	RunCycle(ctx context.Context, userID, traceID string, ts time.Time) error
}

// CycleLocker provides per-user mutual exclusion across cycles.
type CycleLocker interface {
	// Acquire returns a release func, or domain.ErrCycleInProgress when another
	// holder owns the user's lock.
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// EventHandler reacts to a published domain event.
type EventHandler func(ctx context.Context, evt domain.Event) error

// EventBus publishes domain events to registered observers.
type EventBus interface {
	Subscribe(eventType domain.EventType, name string, h EventHandler)
	Emit(ctx context.Context, evt domain.Event)
}
