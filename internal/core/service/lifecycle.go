package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

// missLookback is how far back enforcement counts missed instances.
const missLookback = 7 * 24 * time.Hour

// CycleContext is the snapshot a cycle works from. Its fields are unexported
// and the accessors hand out copies, so later stages cannot change what
// earlier stages observed.
type CycleContext struct {
	traceID   string
	timestamp time.Time
	user      domain.User
	policy    domain.ResolvedPolicy
	window    domain.DateRange
	instances []domain.ActionInstance
}

func (c CycleContext) UserID() string { return c.user.ID }
func (c CycleContext) TraceID() string { return c.traceID }
func (c CycleContext) Timestamp() time.Time { return c.timestamp }
func (c CycleContext) User() domain.User { return c.user }
func (c CycleContext) Policy() domain.ResolvedPolicy { return c.policy }
func (c CycleContext) Window() domain.DateRange { return c.window }
func (c CycleContext) Today() string { return c.timestamp.Format(domain.DateLayout) }
func (c CycleContext) Instances() []domain.ActionInstance {
	return slices.Clone(c.instances)
}

// LifecycleManager loads cycle context, materializes today's instances and
// transitions overdue ones to MISSED.
type LifecycleManager struct {
	users     ports.UserRepository
	policies  ports.PolicyRepository
	actions   ports.ActionRepository
	instances ports.InstanceRepository
	bus       ports.EventBus
	log       zerolog.Logger
}

func NewLifecycleManager(
	users ports.UserRepository,
	policies ports.PolicyRepository,
	actions ports.ActionRepository,
	instances ports.InstanceRepository,
	bus ports.EventBus,
	log zerolog.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		users:     users,
		policies:  policies,
		actions:   actions,
		instances: instances,
		bus:       bus,
		log:       log.With().Str("component", "lifecycle").Logger(),
	}
}

// LoadContext fetches the user, resolves the policy and loads the instances
// scheduled between the start of ts's month and ts's day. ts must already be
// in the location that defines "today".
func (m *LifecycleManager) LoadContext(ctx context.Context, userID, traceID string, ts time.Time) (CycleContext, error) {
	user, err := m.users.GetUserWithPolicy(ctx, userID)
	if err != nil {
		return CycleContext{}, fmt.Errorf("load context: %w", err)
	}

	var orgDefault *domain.Policy
	if user.Role == nil || user.Role.Policy == nil {
		orgDefault, err = m.policies.GetDefaultOrgPolicy(ctx)
		if err != nil && !errors.Is(err, domain.ErrPolicyNotFound) {
			return CycleContext{}, fmt.Errorf("load context: default policy: %w", err)
		}
	}

	monthStart := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
	window := domain.DateRange{
		From: monthStart.Format(domain.DateLayout),
		To:   ts.Format(domain.DateLayout),
	}

	insts, err := m.instances.ListInstances(ctx, userID, window)
	if err != nil {
		return CycleContext{}, fmt.Errorf("load context: instances: %w", err)
	}

	return CycleContext{
		traceID:   traceID,
		timestamp: ts,
		user:      *user,
		policy:    ResolvePolicy(user, orgDefault, m.log),
		window:    window,
		instances: slices.Clone(insts),
	}, nil
}

// Materialize creates today's PENDING instance for every daily action that
// lacks one. Running it again for the same user and day creates nothing.
// INSTANCE_MATERIALIZED is emitted per created instance.
func (m *LifecycleManager) Materialize(ctx context.Context, cc CycleContext) ([]domain.ActionInstance, error) {
	actions, err := m.actions.ListActions(ctx, cc.UserID())
	if err != nil {
		return nil, fmt.Errorf("materialize: list actions: %w", err)
	}

	today := cc.Today()
	var created []domain.ActionInstance
	for _, a := range actions {
		if a.Archived || !a.IsDaily() {
			continue
		}

		exists, err := m.instances.InstanceExists(ctx, a.ID, today)
		if err != nil {
			return created, fmt.Errorf("materialize: action %s: %w", a.ID, err)
		}
		if exists {
			continue
		}

		start, end, err := a.WindowOn(cc.Timestamp())
		if err != nil {
			m.log.Warn().Err(err).Str("user_id", cc.UserID()).Str("action_id", a.ID).Msg("skipping action with invalid window")
			continue
		}

		inst := domain.ActionInstance{
			ID:                 uuid.NewString(),
			ActionID:           a.ID,
			UserID:             cc.UserID(),
			ScheduledDate:      today,
			ScheduledStartTime: start,
			ScheduledEndTime:   end,
			Status:             domain.StatusPending,
			CreatedAt:          cc.Timestamp(),
		}
		id, err := m.instances.CreateInstance(ctx, &inst)
		if errors.Is(err, domain.ErrDuplicateInstance) {
			// A concurrent cycle won the insert.
			continue
		}
		if err != nil {
			return created, fmt.Errorf("materialize: action %s: %w", a.ID, err)
		}
		inst.ID = id
		created = append(created, inst)

		metrics.InstancesMaterializedTotal.Inc()
		m.bus.Emit(ctx, domain.Event{
			Type:      domain.EventInstanceMaterialized,
			UserID:    cc.UserID(),
			TraceID:   cc.TraceID(),
			Timestamp: cc.Timestamp(),
			Payload: domain.InstanceMaterializedPayload{
				InstanceID:    inst.ID,
				ActionID:      a.ID,
				ScheduledDate: today,
				StartTime:     start,
				EndTime:       end,
			},
		})
	}

	if len(created) > 0 {
		m.log.Debug().Str("user_id", cc.UserID()).Int("created", len(created)).Msg("instances materialized")
	}
	return created, nil
}

// DetectMissed marks every PENDING instance whose window closed before the
// cycle timestamp as MISSED and returns the IDs it changed. It reads fresh
// state rather than the snapshot so instances materialized this cycle count,
// and it uses the same overdue filter as the sweep, with no date bound.
func (m *LifecycleManager) DetectMissed(ctx context.Context, cc CycleContext) ([]string, error) {
	insts, err := m.instances.ListOverdueInstances(ctx, cc.UserID(), cc.Timestamp())
	if err != nil {
		return nil, fmt.Errorf("detect missed: %w", err)
	}
	if len(insts) == 0 {
		return nil, nil
	}

	overdue := make([]string, 0, len(insts))
	for _, inst := range insts {
		overdue = append(overdue, inst.ID)
	}

	changed, err := m.instances.BulkMarkMissed(ctx, overdue)
	if err != nil {
		return nil, fmt.Errorf("detect missed: mark: %w", err)
	}
	if int(changed) == len(overdue) {
		return overdue, nil
	}

	// Some instances left PENDING between the read and the write; report only
	// the ones this cycle actually moved.
	m.log.Debug().Str("user_id", cc.UserID()).Int("overdue", len(overdue)).Int64("changed", changed).Msg("concurrent transition during detect missed")
	return m.confirmMissed(ctx, overdue)
}

func (m *LifecycleManager) confirmMissed(ctx context.Context, candidates []string) ([]string, error) {
	var out []string
	for _, id := range candidates {
		inst, err := m.instances.GetInstance(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("detect missed: confirm: %w", err)
		}
		if inst.Status == domain.StatusMissed {
			out = append(out, id)
		}
	}
	return out, nil
}
