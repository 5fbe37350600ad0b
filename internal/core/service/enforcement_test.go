package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/events"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/memory"
)

func seedMissed(t *testing.T, store *memory.Store, userID string, days ...int) {
	t.Helper()
	for _, d := range days {
		start := at(d, 9, 0)
		_, err := store.CreateInstance(context.Background(), &domain.ActionInstance{
			ID:                 fmt.Sprintf("%s-%d", userID, d),
			ActionID:           "a1",
			UserID:             userID,
			ScheduledDate:      start.Format(domain.DateLayout),
			ScheduledStartTime: start,
			ScheduledEndTime:   start.Add(30 * time.Minute),
			Status:             domain.StatusMissed,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func violation(userID string, mode domain.EnforcementMode, ts time.Time) domain.Event {
	return domain.Event{
		Type:      domain.EventViolationDetected,
		UserID:    userID,
		Timestamp: ts,
		Payload: domain.ViolationDetectedPayload{
			InstanceID:   "x",
			Reason:       domain.ReasonMissedAction,
			PolicyID:     mode,
			MaxMisses:    3,
			LockoutHours: 24,
		},
	}
}

func newEnforcement(store *memory.Store) (*EnforcementObserver, *recorder) {
	bus := events.NewBus(zerolog.Nop())
	rec := &recorder{}
	bus.Subscribe(domain.EventAccountLocked, "recorder", rec.handle)
	return NewEnforcementObserver(store, store, bus, time.UTC, zerolog.Nop()), rec
}

func TestEnforcement_LocksAtThreshold(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "u1"}, "")
	seedMissed(t, store, "u1", 2, 3, 4)
	obs, rec := newEnforcement(store)

	now := at(4, 12, 0)
	if err := obs.Handle(context.Background(), violation("u1", domain.ModeHard, now)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	u, _ := store.GetUserWithPolicy(context.Background(), "u1")
	if u.LockedUntil == nil || !u.LockedUntil.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expected lock until now+24h, got %v", u.LockedUntil)
	}
	if !u.AcknowledgmentRequired {
		t.Error("expected acknowledgment_required")
	}
	if n := len(rec.ofType(domain.EventAccountLocked)); n != 1 {
		t.Errorf("expected ACCOUNT_LOCKED, got %d", n)
	}
}

func TestEnforcement_BelowThresholdOrOutsideWindow(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "u1"}, "")
	// two recent misses plus one older than seven days
	seedMissed(t, store, "u1", 1, 10, 11)
	obs, _ := newEnforcement(store)

	if err := obs.Handle(context.Background(), violation("u1", domain.ModeHard, at(11, 12, 0))); err != nil {
		t.Fatalf("handle: %v", err)
	}
	u, _ := store.GetUserWithPolicy(context.Background(), "u1")
	if u.LockedUntil != nil {
		t.Fatalf("expected no lock, got %v", u.LockedUntil)
	}
}

func TestEnforcement_IgnoresNonHardModes(t *testing.T) {
	for _, mode := range []domain.EnforcementMode{domain.ModeSoft, domain.ModeNone} {
		store := memory.NewStore()
		store.PutUser(domain.User{ID: "u1"}, "")
		seedMissed(t, store, "u1", 2, 3, 4)
		obs, _ := newEnforcement(store)

		if err := obs.Handle(context.Background(), violation("u1", mode, at(4, 12, 0))); err != nil {
			t.Fatalf("%s: handle: %v", mode, err)
		}
		u, _ := store.GetUserWithPolicy(context.Background(), "u1")
		if u.LockedUntil != nil {
			t.Errorf("%s: expected no lock", mode)
		}
	}
}

func TestEnforcement_DuplicateTriggersAreIdempotent(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "u1"}, "")
	seedMissed(t, store, "u1", 2, 3, 4)
	obs, rec := newEnforcement(store)
	now := at(4, 12, 0)

	for i := 0; i < 3; i++ {
		if err := obs.Handle(context.Background(), violation("u1", domain.ModeHard, now)); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}

	if n := len(rec.ofType(domain.EventAccountLocked)); n != 1 {
		t.Errorf("expected a single lock transition, got %d", n)
	}
	u, _ := store.GetUserWithPolicy(context.Background(), "u1")
	if !u.LockedUntil.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("lock moved: %v", u.LockedUntil)
	}
}

func TestEnforcement_RejectsUnexpectedPayload(t *testing.T) {
	store := memory.NewStore()
	obs, _ := newEnforcement(store)
	err := obs.Handle(context.Background(), domain.Event{Type: domain.EventViolationDetected, Payload: "nope"})
	if err == nil {
		t.Fatal("expected error for wrong payload type")
	}
}
