package domain

import (
	"testing"
	"time"
)

func TestInstanceStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to InstanceStatus
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusLate, true},
		{StatusPending, StatusMissed, true},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusMissed, false},
		{StatusLate, StatusCompleted, false},
		{StatusMissed, StatusCompleted, false},
		{StatusMissed, StatusLate, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInstanceStatus_TerminalStatesHaveNoExit(t *testing.T) {
	all := []InstanceStatus{StatusPending, StatusCompleted, StatusLate, StatusMissed}
	for _, from := range []InstanceStatus{StatusCompleted, StatusLate, StatusMissed} {
		if !from.IsTerminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
	if StatusPending.IsTerminal() {
		t.Error("PENDING must not be terminal")
	}
}

func TestActionInstance_ExecutionOutcome(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	inst := ActionInstance{ScheduledStartTime: start, ScheduledEndTime: start.Add(30 * time.Minute), Status: StatusPending}

	if got := inst.ExecutionOutcome(start.Add(10 * time.Minute)); got != StatusCompleted {
		t.Errorf("09:10 execution: got %s, want COMPLETED", got)
	}
	if got := inst.ExecutionOutcome(start.Add(30 * time.Minute)); got != StatusLate {
		t.Errorf("execution at end time: got %s, want LATE", got)
	}
}

func TestActionInstance_IsOverdue(t *testing.T) {
	end := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	inst := ActionInstance{ScheduledEndTime: end, Status: StatusPending}

	if inst.IsOverdue(end) {
		t.Error("instance must not be overdue exactly at its end time")
	}
	if !inst.IsOverdue(end.Add(time.Second)) {
		t.Error("instance should be overdue after its end time")
	}
	inst.Status = StatusCompleted
	if inst.IsOverdue(end.Add(time.Hour)) {
		t.Error("completed instance is never overdue")
	}
}
