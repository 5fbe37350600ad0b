package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

// auditedEvents are the event types the audit observer records.
var auditedEvents = []domain.EventType{
	domain.EventScoreUpdated,
	domain.EventViolationDetected,
	domain.EventInstanceMaterialized,
	domain.EventAccountLocked,
}

// AuditObserver writes one append-only record per audited event. Write
// failures are logged and dropped so a broken sink never blocks a cycle.
type AuditObserver struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

func NewAuditObserver(repo ports.AuditRepository, log zerolog.Logger) *AuditObserver {
	return &AuditObserver{
		repo: repo,
		log:  log.With().Str("component", "audit").Logger(),
	}
}

// Register subscribes the observer on bus for every audited event type.
func (o *AuditObserver) Register(bus ports.EventBus) {
	for _, t := range auditedEvents {
		bus.Subscribe(t, "audit", o.Handle)
	}
}

func (o *AuditObserver) Handle(ctx context.Context, evt domain.Event) error {
	details, err := json.Marshal(evt.Payload)
	if err != nil {
		o.log.Warn().Err(err).Str("event", string(evt.Type)).Msg("failed to serialize audit details")
		details = []byte("{}")
	}

	entry := &domain.AuditLog{
		ID:           uuid.NewString(),
		Action:       string(evt.Type),
		Details:      string(details),
		TargetUserID: evt.UserID,
		ActorID:      nil,
		TraceID:      evt.TraceID,
		Timestamp:    evt.Timestamp.UTC(),
	}
	if err := o.repo.AppendAuditLog(ctx, entry); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		o.log.Warn().Err(err).
			Str("event", string(evt.Type)).
			Str("user_id", evt.UserID).
			Str("trace_id", evt.TraceID).
			Msg("failed to write audit log")
	}
	return nil
}
