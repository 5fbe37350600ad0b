package domain

import "time"

// EventType names a domain event published on the bus.
type EventType string

const (
	EventInstanceMaterialized EventType = "INSTANCE_MATERIALIZED"
	EventViolationDetected    EventType = "VIOLATION_DETECTED"
	EventScoreUpdated         EventType = "SCORE_UPDATED"
	EventCycleCompleted       EventType = "KERNEL_CYCLE_COMPLETED"
	EventStageTiming          EventType = "KERNEL_STAGE_TIMING"
	EventAccountLocked        EventType = "ACCOUNT_LOCKED"
)

const (
	ReasonMissedAction     = "MISSED_ACTION"
	ReasonDailyCalculation = "DAILY_CALCULATION"
)

// Event is transient and in-memory only. Payload holds one of the typed
// payload structs below.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	TraceID   string    `json:"traceId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type InstanceMaterializedPayload struct {
	InstanceID    string    `json:"instanceId"`
	ActionID      string    `json:"actionId"`
	ScheduledDate string    `json:"scheduledDate"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
}

// ViolationDetectedPayload carries the resolved enforcement mode in PolicyID
// along with the rule values the enforcement observer needs.
type ViolationDetectedPayload struct {
	InstanceID   string          `json:"instanceId"`
	Reason       string          `json:"reason"`
	PolicyID     EnforcementMode `json:"policyId"`
	MaxMisses    int             `json:"maxMisses"`
	LockoutHours int             `json:"lockoutHours"`
}

type ScoreUpdatedPayload struct {
	OldScore int    `json:"oldScore"`
	NewScore int    `json:"newScore"`
	Reason   string `json:"reason"`
}

type CycleCompletedPayload struct {
	Score      int    `json:"score"`
	Violations int    `json:"violations"`
	TraceID    string `json:"traceId"`
}

type StageTimingPayload struct {
	LifecycleMs int64 `json:"lifecycleMs"`
	PipelineMs  int64 `json:"pipelineMs"`
	ScoringMs   int64 `json:"scoringMs"`
	TotalMs     int64 `json:"totalMs"`
}

type AccountLockedPayload struct {
	LockedUntil time.Time `json:"lockedUntil"`
	MissCount   int       `json:"missCount"`
}
