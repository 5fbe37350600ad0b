package service

import (
	"math"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// CalculateScore is the per-cycle freshness score: the share of resolved
// instances that were COMPLETED, as a percentage. LATE and MISSED count toward
// the denominator only. With nothing resolved the score is neutral.
func CalculateScore(instances []domain.ActionInstance) int {
	if len(instances) == 0 {
		return domain.NeutralScore
	}

	var total, completed int
	for _, inst := range instances {
		if inst.Status == domain.StatusPending {
			continue
		}
		total++
		if inst.Status == domain.StatusCompleted {
			completed++
		}
	}
	if total == 0 {
		return domain.NeutralScore
	}

	rate := float64(completed) / float64(total)
	return clampScore(int(math.Round(rate * 100)))
}

// ComputeDailyScore builds the canonical daily snapshot for one user and date:
// 0.7 × execution rate + 0.3 × on-time rate. Only instances scheduled on date
// are considered.
func ComputeDailyScore(userID, date string, instances []domain.ActionInstance, computedAt time.Time) domain.DisciplineScore {
	snap := domain.DisciplineScore{
		UserID:     userID,
		Date:       date,
		Score:      domain.NeutralScore,
		ComputedAt: computedAt,
	}

	var total, completed, late int
	for _, inst := range instances {
		if inst.ScheduledDate != date {
			continue
		}
		total++
		switch inst.Status {
		case domain.StatusCompleted:
			completed++
		case domain.StatusLate:
			late++
		}
	}
	if total == 0 {
		return snap
	}

	snap.ExecutionRate = float64(completed+late) / float64(total)
	snap.OnTimeRate = float64(completed) / float64(total)
	snap.Score = clampScore(int(math.Round((0.7*snap.ExecutionRate + 0.3*snap.OnTimeRate) * 100)))
	return snap
}

func clampScore(s int) int {
	return max(0, min(100, s))
}
