package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/events"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Harness: a fully wired kernel over the in-memory store.
// ---------------------------------------------------------------------------

var allEventTypes = []domain.EventType{
	domain.EventInstanceMaterialized,
	domain.EventViolationDetected,
	domain.EventScoreUpdated,
	domain.EventCycleCompleted,
	domain.EventStageTiming,
	domain.EventAccountLocked,
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(_ context.Context, evt domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store     *memory.Store
	bus       *events.Bus
	rec       *recorder
	lifecycle *LifecycleManager
	kernel    *Kernel
}

type harnessOpts struct {
	instances func(*memory.Store) ports.InstanceRepository
	audit     ports.AuditRepository
}

func newHarness(t *testing.T, opts ...harnessOpts) *harness {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	bus := events.NewBus(log)

	var instances ports.InstanceRepository = store
	var audit ports.AuditRepository = store
	if len(opts) > 0 {
		if opts[0].instances != nil {
			instances = opts[0].instances(store)
		}
		if opts[0].audit != nil {
			audit = opts[0].audit
		}
	}

	NewEnforcementObserver(store, instances, bus, time.UTC, log).Register(bus)
	NewAuditObserver(audit, log).Register(bus)

	rec := &recorder{}
	for _, et := range allEventTypes {
		bus.Subscribe(et, "recorder", rec.handle)
	}

	lifecycle := NewLifecycleManager(store, store, store, instances, bus, log)
	kernel := NewKernel(lifecycle, NewViolationPipeline(bus), store, bus, memory.NewCycleLocker(), time.UTC, log)

	return &harness{store: store, bus: bus, rec: rec, lifecycle: lifecycle, kernel: kernel}
}

func (h *harness) addUser(id string, score int, roleID string) {
	h.store.PutUser(domain.User{ID: id, CurrentScore: score, Classification: domain.Classify(score)}, roleID)
}

func (h *harness) addHardRole(roleID, rules string) {
	h.store.PutPolicy(domain.Policy{
		ID:              "pol-" + roleID,
		Name:            roleID,
		Scope:           domain.ScopeRole,
		EnforcementMode: domain.ModeHard,
		RawRules:        rules,
	})
	h.store.PutRole(roleID, roleID, "pol-"+roleID)
}

func (h *harness) addDailyAction(id, userID, start string, minutes int) {
	h.store.PutAction(domain.Action{
		ID:                    id,
		UserID:                userID,
		Title:                 "commitment " + id,
		FrequencyRule:         domain.FrequencyDaily,
		WindowStartTime:       start,
		WindowDurationMinutes: minutes,
	})
}

func (h *harness) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := h.store.GetUserWithPolicy(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}
