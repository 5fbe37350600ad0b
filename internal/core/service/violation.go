package service

import (
	"context"
	"time"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

// ViolationPipeline turns missed instances into VIOLATION_DETECTED events. It
// never enforces anything itself.
type ViolationPipeline struct {
	bus ports.EventBus
}

func NewViolationPipeline(bus ports.EventBus) *ViolationPipeline {
	return &ViolationPipeline{bus: bus}
}

// Publish emits one violation per missed instance and returns how many were emitted.
func (p *ViolationPipeline) Publish(ctx context.Context, userID, traceID string, ts time.Time, missedIDs []string, policy domain.ResolvedPolicy) int {
	for _, id := range missedIDs {
		p.bus.Emit(ctx, domain.Event{
			Type:      domain.EventViolationDetected,
			UserID:    userID,
			TraceID:   traceID,
			Timestamp: ts,
			Payload: domain.ViolationDetectedPayload{
				InstanceID:   id,
				Reason:       domain.ReasonMissedAction,
				PolicyID:     policy.Mode,
				MaxMisses:    policy.Rules.MaxMisses,
				LockoutHours: policy.Rules.LockoutHours,
			},
		})
		metrics.ViolationsTotal.WithLabelValues(string(policy.Mode)).Inc()
	}
	return len(missedIDs)
}
