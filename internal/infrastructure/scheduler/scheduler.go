// Package scheduler drives the time-based cycle triggers with cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/metrics"
)

const (
	TriggerSweep = "sweep"
	TriggerDaily = "daily"
)

// Sweeper is what the scheduler triggers. Both calls return how many per-user
// cycles failed.
type Sweeper interface {
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
	RunDaily(ctx context.Context, now time.Time) (int, error)
}

// Config holds the two cron expressions. Standard five-field specs and
// descriptors such as "@every 1m" are accepted.
type Config struct {
	SweepSchedule string
	DailySchedule string
	Location      *time.Location
	// RunTimeout bounds a single trigger run. Zero means no bound.
	RunTimeout time.Duration
}

// Scheduler owns the cron instance. Overlapping runs of the same trigger are
// skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	cfg     Config
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, sweeper Sweeper, log zerolog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log = log.With().Str("component", "scheduler").Logger()

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
	)
	s := &Scheduler{cron: c, sweeper: sweeper, cfg: cfg, log: log}

	if _, err := c.AddFunc(cfg.SweepSchedule, func() { s.Trigger(TriggerSweep) }); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := c.AddFunc(cfg.DailySchedule, func() { s.Trigger(TriggerDaily) }); err != nil {
		return nil, fmt.Errorf("daily schedule %q: %w", cfg.DailySchedule, err)
	}
	return s, nil
}

// Start begins firing triggers. Runs in flight observe ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.log.Info().Str("sweep", s.cfg.SweepSchedule).Str("daily", s.cfg.DailySchedule).Msg("scheduler started")
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Trigger runs one trigger synchronously.
func (s *Scheduler) Trigger(name string) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	now := time.Now().In(s.cfg.Location)
	var (
		failed int
		err    error
	)
	switch name {
	case TriggerSweep:
		failed, err = s.sweeper.SweepOverdue(ctx, now)
	case TriggerDaily:
		failed, err = s.sweeper.RunDaily(ctx, now)
	default:
		s.log.Error().Str("trigger", name).Msg("unknown trigger")
		return
	}

	metrics.ScheduledRunsTotal.WithLabelValues(name).Inc()
	if err != nil {
		s.log.Error().Err(err).Str("trigger", name).Msg("scheduled run failed")
		return
	}
	s.log.Debug().Str("trigger", name).Int("failed_cycles", failed).Dur("took", time.Since(now)).Msg("scheduled run finished")
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
