package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

// EnforcementObserver locks accounts that keep missing actions under HARD
// enforcement. It reacts to VIOLATION_DETECTED only.
type EnforcementObserver struct {
	users     ports.UserRepository
	instances ports.InstanceRepository
	bus       ports.EventBus
	loc       *time.Location
	log       zerolog.Logger
}

func NewEnforcementObserver(
	users ports.UserRepository,
	instances ports.InstanceRepository,
	bus ports.EventBus,
	loc *time.Location,
	log zerolog.Logger,
) *EnforcementObserver {
	if loc == nil {
		loc = time.UTC
	}
	return &EnforcementObserver{
		users:     users,
		instances: instances,
		bus:       bus,
		loc:       loc,
		log:       log.With().Str("component", "enforcement").Logger(),
	}
}

// Register subscribes the observer on bus.
func (o *EnforcementObserver) Register(bus ports.EventBus) {
	bus.Subscribe(domain.EventViolationDetected, "enforcement", o.Handle)
}

// Handle counts the user's MISSED instances over the trailing seven days and,
// once the count reaches the policy's max misses, locks the account. Locking
// is check-and-set: a lock already reaching the target time is left alone, so
// duplicate violations for the same user are harmless.
func (o *EnforcementObserver) Handle(ctx context.Context, evt domain.Event) error {
	p, ok := evt.Payload.(domain.ViolationDetectedPayload)
	if !ok {
		return fmt.Errorf("enforcement: unexpected payload %T", evt.Payload)
	}

	switch p.PolicyID {
	case domain.ModeHard:
	case domain.ModeSoft:
		o.log.Warn().Str("user_id", evt.UserID).Str("instance_id", p.InstanceID).Msg("violation under soft enforcement")
		return nil
	default:
		return nil
	}

	threshold := p.MaxMisses
	if threshold <= 0 {
		threshold = domain.SystemDefaultRules().MaxMisses
	}
	lockoutHours := p.LockoutHours
	if lockoutHours <= 0 {
		lockoutHours = domain.SystemDefaultRules().LockoutHours
	}

	now := evt.Timestamp.In(o.loc)
	misses, err := o.countRecentMisses(ctx, evt.UserID, now)
	if err != nil {
		return err
	}
	if misses < threshold {
		return nil
	}

	target := now.Add(time.Duration(lockoutHours) * time.Hour)
	user, err := o.users.GetUserWithPolicy(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("enforcement: load user: %w", err)
	}
	if user.LockCovers(target) {
		return nil
	}

	applied, err := o.users.UpdateUserLock(ctx, evt.UserID, target, true)
	if err != nil {
		return fmt.Errorf("enforcement: lock user: %w", err)
	}
	if !applied {
		return nil
	}

	metrics.LockoutsTotal.Inc()
	o.log.Warn().
		Str("user_id", evt.UserID).
		Str("trace_id", evt.TraceID).
		Int("misses", misses).
		Time("locked_until", target).
		Msg("account locked")

	o.bus.Emit(ctx, domain.Event{
		Type:      domain.EventAccountLocked,
		UserID:    evt.UserID,
		TraceID:   evt.TraceID,
		Timestamp: evt.Timestamp,
		Payload:   domain.AccountLockedPayload{LockedUntil: target, MissCount: misses},
	})
	return nil
}

func (o *EnforcementObserver) countRecentMisses(ctx context.Context, userID string, now time.Time) (int, error) {
	since := now.Add(-missLookback)
	insts, err := o.instances.ListInstances(ctx, userID, domain.DateRange{
		From: since.Format(domain.DateLayout),
		To:   now.Format(domain.DateLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("enforcement: list instances: %w", err)
	}

	n := 0
	for _, inst := range insts {
		if inst.Status == domain.StatusMissed && inst.ScheduledEndTime.After(since) {
			n++
		}
	}
	return n, nil
}
