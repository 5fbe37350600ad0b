package memory

import (
	"context"
	"sync"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

// CycleLocker is a process-local per-user lock.
type CycleLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ ports.CycleLocker = (*CycleLocker)(nil)

func NewCycleLocker() *CycleLocker {
	return &CycleLocker{held: make(map[string]struct{})}
}

func (l *CycleLocker) Acquire(_ context.Context, userID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[userID]; busy {
		return nil, domain.ErrCycleInProgress
	}
	l.held[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}
