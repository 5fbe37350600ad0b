package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

func instancesWith(statuses ...domain.InstanceStatus) []domain.ActionInstance {
	out := make([]domain.ActionInstance, len(statuses))
	for i, s := range statuses {
		out[i] = domain.ActionInstance{ScheduledDate: "2026-03-02", Status: s}
	}
	return out
}

func TestCalculateScore(t *testing.T) {
	P, C, L, M := domain.StatusPending, domain.StatusCompleted, domain.StatusLate, domain.StatusMissed
	cases := []struct {
		name string
		in   []domain.ActionInstance
		want int
	}{
		{"no instances is neutral", nil, 50},
		{"only pending is neutral", instancesWith(P, P), 50},
		{"all completed", instancesWith(C, C, P), 100},
		{"late counts against", instancesWith(C, L), 50},
		{"all missed", instancesWith(M, M, M), 0},
		{"rounds to nearest", instancesWith(C, C, M), 67},
		{"one in three", instancesWith(C, M, L), 33},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateScore(tc.in); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculateScore_AlwaysWithinBounds(t *testing.T) {
	all := []domain.InstanceStatus{domain.StatusPending, domain.StatusCompleted, domain.StatusLate, domain.StatusMissed}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := r.Intn(20)
		statuses := make([]domain.InstanceStatus, n)
		for j := range statuses {
			statuses[j] = all[r.Intn(len(all))]
		}
		if s := CalculateScore(instancesWith(statuses...)); s < 0 || s > 100 {
			t.Fatalf("score %d out of bounds for %v", s, statuses)
		}
	}
}

func TestComputeDailyScore(t *testing.T) {
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	C, L, M := domain.StatusCompleted, domain.StatusLate, domain.StatusMissed

	snap := ComputeDailyScore("u1", "2026-03-02", instancesWith(C, L, M), now)
	// execution 2/3, on time 1/3 → 0.7*0.667 + 0.3*0.333 ≈ 0.567
	if snap.Score != 57 {
		t.Errorf("score = %d, want 57", snap.Score)
	}
	if snap.ExecutionRate != 2.0/3.0 || snap.OnTimeRate != 1.0/3.0 {
		t.Errorf("rates = %v / %v", snap.ExecutionRate, snap.OnTimeRate)
	}

	empty := ComputeDailyScore("u1", "2026-03-01", instancesWith(C), now)
	if empty.Score != domain.NeutralScore {
		t.Errorf("no instances on date should be neutral, got %d", empty.Score)
	}
}
