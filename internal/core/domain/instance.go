package domain

import "time"

// InstanceStatus represents the lifecycle state of an action instance.
type InstanceStatus string

const (
	StatusPending   InstanceStatus = "PENDING"
	StatusCompleted InstanceStatus = "COMPLETED"
	StatusLate      InstanceStatus = "LATE"
	StatusMissed    InstanceStatus = "MISSED"
)

// validTransitions defines the allowed state machine transitions. Anything
// not listed is terminal.
var validTransitions = map[InstanceStatus][]InstanceStatus{
	StatusPending: {StatusCompleted, StatusLate, StatusMissed},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s InstanceStatus) CanTransitionTo(next InstanceStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s InstanceStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// ActionInstance is one scheduled occurrence of an action on a calendar date.
// At most one exists per (ActionID, ScheduledDate).
type ActionInstance struct {
	ID                 string         `json:"id"`
	ActionID           string         `json:"action_id"`
	UserID             string         `json:"user_id"`
	ScheduledDate      string         `json:"scheduled_date"`
	ScheduledStartTime time.Time      `json:"scheduled_start_time"`
	ScheduledEndTime   time.Time      `json:"scheduled_end_time"`
	Status             InstanceStatus `json:"status"`
	ExecutedAt         *time.Time     `json:"executed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// IsOverdue is the single rule shared by the live path and the system-wide
// sweep: a pending instance whose window closed strictly before now.
func (i *ActionInstance) IsOverdue(now time.Time) bool {
	return i.Status == StatusPending && i.ScheduledEndTime.Before(now)
}

// ExecutionOutcome returns the status an execution logged at executedAt earns.
func (i *ActionInstance) ExecutionOutcome(executedAt time.Time) InstanceStatus {
	if executedAt.Before(i.ScheduledEndTime) {
		return StatusCompleted
	}
	return StatusLate
}
