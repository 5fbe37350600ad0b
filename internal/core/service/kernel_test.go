package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type failingCreateRepo struct {
	*memory.Store
}

func (r failingCreateRepo) CreateInstance(context.Context, *domain.ActionInstance) (string, error) {
	return "", errors.New("disk full")
}

type failingAuditRepo struct{}

func (failingAuditRepo) AppendAuditLog(context.Context, *domain.AuditLog) error {
	return errors.New("audit sink down")
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestKernel_ScenarioA_NoActions(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", domain.NeutralScore, "")

	if err := h.kernel.RunCycle(context.Background(), "u1", "trace-a", at(2, 10, 0)); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	completed := h.rec.ofType(domain.EventCycleCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected one KERNEL_CYCLE_COMPLETED, got %d", len(completed))
	}
	p := completed[0].Payload.(domain.CycleCompletedPayload)
	if p.Score != 50 || p.Violations != 0 || p.TraceID != "trace-a" {
		t.Errorf("unexpected payload: %+v", p)
	}
	for _, et := range []domain.EventType{domain.EventInstanceMaterialized, domain.EventViolationDetected, domain.EventScoreUpdated, domain.EventAccountLocked} {
		if n := len(h.rec.ofType(et)); n != 0 {
			t.Errorf("expected no %s events, got %d", et, n)
		}
	}
	insts, _ := h.store.ListInstances(context.Background(), "u1", domain.DateRange{From: "2026-03-01", To: "2026-03-31"})
	if len(insts) != 0 {
		t.Errorf("expected zero instances, got %d", len(insts))
	}
}

func TestKernel_ScenarioB_ThreeMissedDaysLockUser(t *testing.T) {
	h := newHarness(t)
	h.addHardRole("strict", `{"max_misses":3}`)
	h.addUser("u1", domain.NeutralScore, "strict")
	h.addDailyAction("a1", "u1", "09:00", 30)
	ctx := context.Background()

	for day := 2; day <= 4; day++ {
		if err := h.kernel.RunCycle(ctx, "u1", "trace", at(day, 10, 0)); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		u := h.user(t, "u1")
		if day < 4 && u.LockedUntil != nil {
			t.Fatalf("day %d: user locked too early until %v", day, u.LockedUntil)
		}
	}

	insts, _ := h.store.ListInstances(ctx, "u1", domain.DateRange{From: "2026-03-01", To: "2026-03-31"})
	if len(insts) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(insts))
	}
	for _, inst := range insts {
		if inst.Status != domain.StatusMissed {
			t.Errorf("instance %s: expected MISSED, got %s", inst.ScheduledDate, inst.Status)
		}
	}

	u := h.user(t, "u1")
	want := at(4, 10, 0).Add(24 * time.Hour)
	if u.LockedUntil == nil || !u.LockedUntil.Equal(want) {
		t.Fatalf("expected locked until %v, got %v", want, u.LockedUntil)
	}
	if !u.AcknowledgmentRequired {
		t.Error("expected acknowledgment_required")
	}
	if n := len(h.rec.ofType(domain.EventViolationDetected)); n != 3 {
		t.Errorf("expected 3 violations across the three days, got %d", n)
	}
	if n := len(h.rec.ofType(domain.EventAccountLocked)); n != 1 {
		t.Errorf("expected one ACCOUNT_LOCKED, got %d", n)
	}
	if u.CurrentScore != 0 || u.Classification != domain.ClassCritical {
		t.Errorf("expected score 0 / CRITICAL, got %d / %s", u.CurrentScore, u.Classification)
	}
}

func TestKernel_ScenarioC_OnTimeExecutionCountsAsCompleted(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", domain.NeutralScore, "")
	h.addDailyAction("a1", "u1", "09:00", 30)
	ctx := context.Background()

	if err := h.kernel.RunCycle(ctx, "u1", "t1", at(2, 8, 0)); err != nil {
		t.Fatalf("morning cycle: %v", err)
	}
	insts, _ := h.store.ListInstances(ctx, "u1", domain.DateRange{From: "2026-03-02", To: "2026-03-02"})
	if len(insts) != 1 {
		t.Fatalf("expected one instance, got %d", len(insts))
	}

	exec := NewExecutionService(h.store, zerolog.Nop())
	got, err := exec.LogExecution(ctx, "u1", insts[0].ID, at(2, 9, 10))
	if err != nil {
		t.Fatalf("log execution: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}

	if err := h.kernel.RunCycle(ctx, "u1", "t2", at(2, 10, 0)); err != nil {
		t.Fatalf("later cycle: %v", err)
	}
	if u := h.user(t, "u1"); u.CurrentScore != 100 {
		t.Errorf("expected score 100, got %d", u.CurrentScore)
	}
	updates := h.rec.ofType(domain.EventScoreUpdated)
	if len(updates) != 1 {
		t.Fatalf("expected one SCORE_UPDATED, got %d", len(updates))
	}
	p := updates[0].Payload.(domain.ScoreUpdatedPayload)
	if p.OldScore != 50 || p.NewScore != 100 || p.Reason != domain.ReasonDailyCalculation {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestKernel_ScenarioD_MalformedRoleRulesDoNotFailCycle(t *testing.T) {
	h := newHarness(t)
	h.addHardRole("broken", `{"max_misses": oops}`)
	h.addUser("u1", domain.NeutralScore, "broken")
	h.addDailyAction("a1", "u1", "09:00", 30)
	ctx := context.Background()

	cc, err := h.lifecycle.LoadContext(ctx, "u1", "t", at(2, 10, 0))
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if got := cc.Policy().Rules; got != domain.SystemDefaultRules() {
		t.Errorf("effective rules = %+v, want system defaults", got)
	}

	if err := h.kernel.RunCycle(ctx, "u1", "t", at(2, 10, 0)); err != nil {
		t.Fatalf("expected cycle to succeed, got %v", err)
	}

	violations := h.rec.ofType(domain.EventViolationDetected)
	if len(violations) != 1 {
		t.Fatalf("expected one violation for the closed window, got %d", len(violations))
	}
	p := violations[0].Payload.(domain.ViolationDetectedPayload)
	if p.MaxMisses != 3 || p.LockoutHours != 24 {
		t.Errorf("violation carried %d misses / %dh, want 3 / 24", p.MaxMisses, p.LockoutHours)
	}
	if p.PolicyID != domain.ModeHard {
		t.Errorf("mode = %s, want HARD from the role policy", p.PolicyID)
	}
}

// ---------------------------------------------------------------------------
// Properties & failure semantics
// ---------------------------------------------------------------------------

func TestKernel_UserNotFound(t *testing.T) {
	h := newHarness(t)
	err := h.kernel.RunCycle(context.Background(), "ghost", "t", at(2, 10, 0))
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if n := len(h.rec.ofType(domain.EventCycleCompleted)); n != 0 {
		t.Errorf("failed cycle must not emit completion, got %d", n)
	}
}

func TestKernel_RepeatedCyclesSameDayMaterializeOnce(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", domain.NeutralScore, "")
	h.addDailyAction("a1", "u1", "09:00", 30)
	h.addDailyAction("a2", "u1", "18:00", 60)
	ctx := context.Background()

	for _, ts := range []time.Time{at(2, 6, 0), at(2, 7, 0), at(2, 8, 30)} {
		if err := h.kernel.RunCycle(ctx, "u1", "t", ts); err != nil {
			t.Fatalf("cycle at %v: %v", ts, err)
		}
	}

	insts, _ := h.store.ListInstances(ctx, "u1", domain.DateRange{From: "2026-03-02", To: "2026-03-02"})
	if len(insts) != 2 {
		t.Fatalf("expected one instance per action, got %d", len(insts))
	}
	if n := len(h.rec.ofType(domain.EventInstanceMaterialized)); n != 2 {
		t.Errorf("expected 2 INSTANCE_MATERIALIZED events, got %d", n)
	}
}

func TestKernel_PersistenceFailureDuringMaterializeAborts(t *testing.T) {
	h := newHarness(t, harnessOpts{instances: func(s *memory.Store) ports.InstanceRepository {
		return failingCreateRepo{s}
	}})
	h.addUser("u1", domain.NeutralScore, "")
	h.addDailyAction("a1", "u1", "09:00", 30)

	err := h.kernel.RunCycle(context.Background(), "u1", "t", at(2, 8, 0))
	if err == nil {
		t.Fatal("expected materialize failure to abort the cycle")
	}
	if n := len(h.rec.ofType(domain.EventCycleCompleted)); n != 0 {
		t.Errorf("aborted cycle must not emit completion, got %d", n)
	}
}

func TestKernel_AuditFailureDoesNotFailCycle(t *testing.T) {
	h := newHarness(t, harnessOpts{audit: failingAuditRepo{}})
	h.addHardRole("strict", "")
	h.addUser("u1", 90, "strict")
	h.addDailyAction("a1", "u1", "09:00", 30)

	if err := h.kernel.RunCycle(context.Background(), "u1", "t", at(2, 10, 0)); err != nil {
		t.Fatalf("audit failure leaked into cycle: %v", err)
	}
	if n := len(h.rec.ofType(domain.EventViolationDetected)); n != 1 {
		t.Errorf("expected violation to still be published, got %d", n)
	}
}

func TestKernel_ConcurrentCycleForSameUserRejected(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", domain.NeutralScore, "")

	release, err := h.kernel.locker.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	err = h.kernel.RunCycle(context.Background(), "u1", "t", at(2, 10, 0))
	if !errors.Is(err, domain.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
}

func TestKernel_AuditRecordsKernelEvents(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", 90, "")
	h.addDailyAction("a1", "u1", "09:00", 30)

	if err := h.kernel.RunCycle(context.Background(), "u1", "trace-x", at(2, 10, 0)); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	seen := map[string]int{}
	for _, entry := range h.store.AuditLogs() {
		if entry.ActorID != nil {
			t.Errorf("system audit entry must have no actor, got %q", *entry.ActorID)
		}
		if entry.TargetUserID != "u1" || entry.TraceID != "trace-x" {
			t.Errorf("unexpected audit target: %+v", entry)
		}
		seen[entry.Action]++
	}
	for _, action := range []string{"INSTANCE_MATERIALIZED", "VIOLATION_DETECTED", "SCORE_UPDATED"} {
		if seen[action] != 1 {
			t.Errorf("expected one %s audit entry, got %d", action, seen[action])
		}
	}
	if seen["KERNEL_CYCLE_COMPLETED"] != 0 || seen["KERNEL_STAGE_TIMING"] != 0 {
		t.Errorf("telemetry events must not be audited: %v", seen)
	}
}

func TestScoringSet_DoesNotMutateSnapshot(t *testing.T) {
	snapshot := []domain.ActionInstance{{ID: "i1", Status: domain.StatusPending}}
	out := scoringSet(snapshot, nil, []string{"i1"})
	if out[0].Status != domain.StatusMissed {
		t.Errorf("expected derived set to carry MISSED, got %s", out[0].Status)
	}
	if snapshot[0].Status != domain.StatusPending {
		t.Errorf("snapshot was mutated: %s", snapshot[0].Status)
	}
}
