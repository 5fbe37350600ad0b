// Package events implements the synchronous in-process domain event bus.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

type subscription struct {
	name    string
	handler ports.EventHandler
}

// Bus delivers each event to its subscribers in registration order, on the
// caller's goroutine. A failing handler is logged and skipped; it never stops
// later handlers and never reaches the emitter.
type Bus struct {
	mu   sync.RWMutex
	subs map[domain.EventType][]subscription
	log  zerolog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[domain.EventType][]subscription),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers h for eventType under name. Name is used in logs and metrics.
func (b *Bus) Subscribe(eventType domain.EventType, name string, h ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], subscription{name: name, handler: h})
}

// Emit invokes every handler registered for evt.Type.
func (b *Bus) Emit(ctx context.Context, evt domain.Event) {
	b.mu.RLock()
	subs := b.subs[evt.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.invoke(ctx, s, evt); err != nil {
			metrics.BusHandlerFailuresTotal.WithLabelValues(s.name).Inc()
			b.log.Error().Err(err).
				Str("handler", s.name).
				Str("event", string(evt.Type)).
				Str("user_id", evt.UserID).
				Str("trace_id", evt.TraceID).
				Msg("event handler failed")
		}
	}
}

func (b *Bus) invoke(ctx context.Context, s subscription, evt domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}
