package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

const defaultSweepConcurrency = 4

// SweepService backs the cron triggers: it fans cycles out to the users that
// need one and computes the daily batch score.
type SweepService struct {
	kernel      ports.Kernel
	users       ports.UserRepository
	instances   ports.InstanceRepository
	scores      ports.ScoreRepository
	loc         *time.Location
	concurrency int
	log         zerolog.Logger
}

func NewSweepService(
	kernel ports.Kernel,
	users ports.UserRepository,
	instances ports.InstanceRepository,
	scores ports.ScoreRepository,
	loc *time.Location,
	concurrency int,
	log zerolog.Logger,
) *SweepService {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SweepService{
		kernel:      kernel,
		users:       users,
		instances:   instances,
		scores:      scores,
		loc:         loc,
		concurrency: concurrency,
		log:         log.With().Str("component", "sweep").Logger(),
	}
}

// SweepOverdue runs a cycle for every user owning a PENDING instance whose
// window closed before now. It returns how many cycles failed.
func (s *SweepService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.instances.ListOverdueUserIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	return s.runCycles(ctx, ids, now), nil
}

// RunDaily runs a cycle for every user at the day boundary, materializing
// the new day, then writes the previous day's batch scores.
func (s *SweepService) RunDaily(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("run daily: %w", err)
	}
	failed := s.runCycles(ctx, ids, now)

	yesterday := domain.StartOfDay(now.In(s.loc)).AddDate(0, 0, -1).Format(domain.DateLayout)
	for _, id := range ids {
		if err := s.WriteDailyScore(ctx, id, yesterday, now); err != nil {
			failed++
			s.log.Error().Err(err).Str("user_id", id).Str("date", yesterday).Msg("daily score failed")
		}
	}
	return failed, nil
}

// WriteDailyScore computes and upserts one user's snapshot for date.
func (s *SweepService) WriteDailyScore(ctx context.Context, userID, date string, now time.Time) error {
	insts, err := s.instances.ListInstances(ctx, userID, domain.DateRange{From: date, To: date})
	if err != nil {
		return fmt.Errorf("daily score: %w", err)
	}
	snap := ComputeDailyScore(userID, date, insts, now.UTC())
	if err := s.scores.UpsertDailyScore(ctx, snap); err != nil {
		return fmt.Errorf("daily score: %w", err)
	}
	return nil
}

func (s *SweepService) runCycles(ctx context.Context, userIDs []string, now time.Time) int {
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range userIDs {
		g.Go(func() error {
			if err := s.kernel.RunCycle(gctx, id, uuid.NewString(), now); err != nil {
				failed.Add(1)
				s.log.Warn().Err(err).Str("user_id", id).Msg("scheduled cycle failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(userIDs) > 0 {
		s.log.Info().Int("users", len(userIDs)).Int64("failed", failed.Load()).Msg("scheduled cycles dispatched")
	}
	return int(failed.Load())
}
