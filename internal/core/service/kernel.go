package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

// Kernel sequences one discipline cycle:
// load context → materialize → detect missed → publish violations → score →
// cycle-level events. It behaves the same whichever dispatch path calls it.
type Kernel struct {
	lifecycle  *LifecycleManager
	violations *ViolationPipeline
	users      ports.UserRepository
	bus        ports.EventBus
	locker     ports.CycleLocker
	loc        *time.Location
	log        zerolog.Logger
}

var _ ports.Kernel = (*Kernel)(nil)

// NewKernel assembles the pipeline. locker may be nil when only one process
// ever runs cycles; loc defines the calendar day and defaults to UTC.
func NewKernel(
	lifecycle *LifecycleManager,
	violations *ViolationPipeline,
	users ports.UserRepository,
	bus ports.EventBus,
	locker ports.CycleLocker,
	loc *time.Location,
	log zerolog.Logger,
) *Kernel {
	if loc == nil {
		loc = time.UTC
	}
	return &Kernel{
		lifecycle:  lifecycle,
		violations: violations,
		users:      users,
		bus:        bus,
		locker:     locker,
		loc:        loc,
		log:        log.With().Str("component", "kernel").Logger(),
	}
}

// RunCycle executes the pipeline for userID at ts. domain.ErrUserNotFound and
// persistence errors propagate; observer failures never do.
func (k *Kernel) RunCycle(ctx context.Context, userID, traceID string, ts time.Time) error {
	ts = ts.In(k.loc)
	log := k.log.With().Str("user_id", userID).Str("trace_id", traceID).Logger()

	if k.locker != nil {
		release, err := k.locker.Acquire(ctx, userID)
		if err != nil {
			metrics.CyclesTotal.WithLabelValues(outcomeOf(err)).Inc()
			return fmt.Errorf("run cycle: %w", err)
		}
		defer release()
	}

	score, violations, timing, err := k.run(ctx, userID, traceID, ts)
	metrics.CyclesTotal.WithLabelValues(outcomeOf(err)).Inc()
	if err != nil {
		log.Error().Err(err).Msg("cycle failed")
		return err
	}

	k.bus.Emit(ctx, domain.Event{
		Type:      domain.EventCycleCompleted,
		UserID:    userID,
		TraceID:   traceID,
		Timestamp: ts,
		Payload:   domain.CycleCompletedPayload{Score: score, Violations: violations, TraceID: traceID},
	})
	k.bus.Emit(ctx, domain.Event{
		Type:      domain.EventStageTiming,
		UserID:    userID,
		TraceID:   traceID,
		Timestamp: ts,
		Payload:   timing,
	})

	log.Info().Int("score", score).Int("violations", violations).Int64("total_ms", timing.TotalMs).Msg("cycle completed")
	return nil
}

func (k *Kernel) run(ctx context.Context, userID, traceID string, ts time.Time) (int, int, domain.StageTimingPayload, error) {
	var timing domain.StageTimingPayload
	began := time.Now()

	// 1. Lifecycle: snapshot, materialize, detect missed.
	cc, err := k.lifecycle.LoadContext(ctx, userID, traceID, ts)
	if err != nil {
		return 0, 0, timing, err
	}
	created, err := k.lifecycle.Materialize(ctx, cc)
	if err != nil {
		return 0, 0, timing, err
	}
	missedIDs, err := k.lifecycle.DetectMissed(ctx, cc)
	if err != nil {
		return 0, 0, timing, err
	}
	lifecycleDone := time.Now()

	// 2. Violations.
	violations := 0
	if len(missedIDs) > 0 {
		violations = k.violations.Publish(ctx, userID, traceID, ts, missedIDs, cc.Policy())
	}
	pipelineDone := time.Now()

	// 3. Score over the snapshot plus what this cycle derived.
	user := cc.User()
	score := CalculateScore(scoringSet(cc.Instances(), created, missedIDs))
	class := domain.Classify(score)
	if score != user.CurrentScore || class != user.Classification {
		if err := k.users.UpdateUserScore(ctx, userID, score, class); err != nil {
			return 0, 0, timing, fmt.Errorf("run cycle: update score: %w", err)
		}
	}
	if score != user.CurrentScore {
		k.bus.Emit(ctx, domain.Event{
			Type:      domain.EventScoreUpdated,
			UserID:    userID,
			TraceID:   traceID,
			Timestamp: ts,
			Payload: domain.ScoreUpdatedPayload{
				OldScore: user.CurrentScore,
				NewScore: score,
				Reason:   domain.ReasonDailyCalculation,
			},
		})
	}
	scoringDone := time.Now()

	timing = domain.StageTimingPayload{
		LifecycleMs: lifecycleDone.Sub(began).Milliseconds(),
		PipelineMs:  pipelineDone.Sub(lifecycleDone).Milliseconds(),
		ScoringMs:   scoringDone.Sub(pipelineDone).Milliseconds(),
		TotalMs:     scoringDone.Sub(began).Milliseconds(),
	}
	metrics.CycleStageDuration.WithLabelValues("lifecycle").Observe(lifecycleDone.Sub(began).Seconds())
	metrics.CycleStageDuration.WithLabelValues("pipeline").Observe(pipelineDone.Sub(lifecycleDone).Seconds())
	metrics.CycleStageDuration.WithLabelValues("scoring").Observe(scoringDone.Sub(pipelineDone).Seconds())
	metrics.CycleStageDuration.WithLabelValues("total").Observe(scoringDone.Sub(began).Seconds())

	return score, violations, timing, nil
}

// scoringSet returns a new slice: the snapshot, plus instances created this
// cycle, with this cycle's missed IDs applied. The snapshot is not modified.
func scoringSet(snapshot, created []domain.ActionInstance, missedIDs []string) []domain.ActionInstance {
	missed := make(map[string]struct{}, len(missedIDs))
	for _, id := range missedIDs {
		missed[id] = struct{}{}
	}

	out := make([]domain.ActionInstance, 0, len(snapshot)+len(created))
	out = append(out, snapshot...)
	out = append(out, created...)
	for i := range out {
		if _, ok := missed[out[i].ID]; ok && out[i].Status.CanTransitionTo(domain.StatusMissed) {
			out[i].Status = domain.StatusMissed
		}
	}
	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrCycleInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
