package domain

import "time"

// ActorSystem is recorded for kernel-originated audit entries.
const ActorSystem = "SYSTEM"

// AuditLog is an append-only record written by the audit observer.
type AuditLog struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Details      string    `json:"details"`
	TargetUserID string    `json:"target_user_id"`
	ActorID      *string   `json:"actor_id,omitempty"` // nil for system actions
	TraceID      string    `json:"trace_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
