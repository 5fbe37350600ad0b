package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

// ExecutionService records that a user carried out a scheduled instance.
type ExecutionService struct {
	instances ports.InstanceRepository
	log       zerolog.Logger
}

func NewExecutionService(instances ports.InstanceRepository, log zerolog.Logger) *ExecutionService {
	return &ExecutionService{instances: instances, log: log}
}

// LogExecution moves a PENDING instance to COMPLETED when executedAt is before
// the window end, or to LATE otherwise. An empty userID skips the ownership
// check (admin callers).
func (s *ExecutionService) LogExecution(ctx context.Context, userID, instanceID string, executedAt time.Time) (*domain.ActionInstance, error) {
	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("log execution: %w", err)
	}
	if userID != "" && inst.UserID != userID {
		return nil, domain.ErrForbidden
	}

	next := inst.ExecutionOutcome(executedAt)
	if !inst.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("log execution: %w (from %s to %s)", domain.ErrInvalidTransition, inst.Status, next)
	}

	applied, err := s.instances.MarkExecuted(ctx, instanceID, next, executedAt)
	if err != nil {
		return nil, fmt.Errorf("log execution: %w", err)
	}
	if !applied {
		// Someone else resolved the instance between our read and write.
		return nil, fmt.Errorf("log execution: %w (instance no longer pending)", domain.ErrInvalidTransition)
	}

	inst.Status = next
	inst.ExecutedAt = &executedAt

	s.log.Info().
		Str("user_id", inst.UserID).
		Str("instance_id", instanceID).
		Str("status", string(next)).
		Msg("execution logged")
	return inst, nil
}
