package handler

import "time"

// --- Request / Response types ---

type triggerCycleRequest struct {
	UserID    string     `json:"userId"    validate:"omitempty,max=128"`
	TraceID   string     `json:"traceId"   validate:"omitempty,max=128"`
	Timestamp *time.Time `json:"timestamp"`
}

type triggerCycleResponse struct {
	UserID  string `json:"user_id"`
	TraceID string `json:"trace_id"`
	Status  string `json:"status"`
}

type logExecutionRequest struct {
	ExecutedAt *time.Time `json:"executedAt"`
}

type instanceResponse struct {
	ID                 string     `json:"id"`
	ActionID           string     `json:"action_id"`
	UserID             string     `json:"user_id"`
	ScheduledDate      string     `json:"scheduled_date"`
	ScheduledStartTime time.Time  `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time  `json:"scheduled_end_time"`
	Status             string     `json:"status"`
	ExecutedAt         *time.Time `json:"executed_at,omitempty"`
}
