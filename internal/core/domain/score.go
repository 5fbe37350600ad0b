package domain

import "time"

// NeutralScore is returned when there is no signal to score.
const NeutralScore = 50

// DisciplineScore is the immutable daily snapshot, unique per (UserID, Date).
type DisciplineScore struct {
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	Score         int       `json:"score"`
	ExecutionRate float64   `json:"execution_rate"`
	OnTimeRate    float64   `json:"on_time_rate"`
	ComputedAt    time.Time `json:"computed_at"`
}
