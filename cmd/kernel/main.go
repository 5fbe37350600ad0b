package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/disciplina/discipline-kernel/internal/api"
	"github.com/disciplina/discipline-kernel/internal/api/handler"
	"github.com/disciplina/discipline-kernel/internal/core/events"
	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/core/service"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/config"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/memory"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/mongo"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/db/redis"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/queue"
	"github.com/disciplina/discipline-kernel/internal/infrastructure/scheduler"
	"github.com/disciplina/discipline-kernel/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// repositories is the storage backend chosen by STORE.
type repositories struct {
	users     ports.UserRepository
	policies  ports.PolicyRepository
	actions   ports.ActionRepository
	instances ports.InstanceRepository
	audit     ports.AuditRepository
	scores    ports.ScoreRepository
	health    map[string]handler.Pinger
	close     func(context.Context)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "discipline-kernel",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("kernel exited with error")
	}
	log.Info().Msg("kernel stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repos, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		repos.close(cctx)
	}()

	// Redis is optional: without it locking and dedup stay in process and
	// the API feeds the dispatcher directly.
	var (
		rdb    *goredis.Client
		locker ports.CycleLocker = memory.NewCycleLocker()
		dedup  queue.Deduper
	)
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = redis.NewCycleLocker(rdb, cfg.Kernel.LockTTL, log)
		dedup = redis.NewJobDedup(rdb, cfg.Kernel.DedupTTL)
		repos.health["redis"] = redis.NewPinger(rdb)
	}

	// --- Core wiring ---
	bus := events.NewBus(log)
	service.NewEnforcementObserver(repos.users, repos.instances, bus, loc, log).Register(bus)
	service.NewAuditObserver(repos.audit, log).Register(bus)

	lifecycle := service.NewLifecycleManager(repos.users, repos.policies, repos.actions, repos.instances, bus, log)
	kernel := service.NewKernel(lifecycle, service.NewViolationPipeline(bus), repos.users, bus, locker, loc, log)
	executions := service.NewExecutionService(repos.instances, log)
	sweeps := service.NewSweepService(kernel, repos.users, repos.instances, repos.scores, loc, cfg.Scheduler.Concurrency, log)

	// --- Dispatch paths ---
	dispatcher := queue.NewDispatcher(cfg.Kernel.Workers, kernel, dedup, cfg.Kernel.CycleTimeout, log)
	var enqueuer handler.CycleEnqueuer = dispatcher
	var redisQueue *queue.RedisQueue
	if rdb != nil {
		redisQueue = queue.NewRedisQueue(rdb, cfg.Kernel.QueueKey, log)
		enqueuer = redisQueue
	}

	sched, err := scheduler.New(scheduler.Config{
		SweepSchedule: cfg.Scheduler.SweepSchedule,
		DailySchedule: cfg.Scheduler.DailySchedule,
		Location:      loc,
	}, sweeps, log)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		JWTSecret:  cfg.JWTSecret,
		Log:        log,
		Cycles:     enqueuer,
		Executions: executions,
		Health:     repos.health,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	dispatcher.Start(gctx)
	sched.Start(gctx)

	if redisQueue != nil {
		g.Go(func() error {
			return redisQueue.Consume(gctx, dispatcher)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Str("timezone", loc.String()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sched.Stop(sctx)
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Store == config.StoreMemory {
		store := memory.NewStore()
		if cfg.SeedFile != "" {
			if err := store.LoadSeedFile(cfg.SeedFile); err != nil {
				return nil, err
			}
			log.Info().Str("file", cfg.SeedFile).Msg("memory store seeded")
		}
		return &repositories{
			users:     store,
			policies:  store,
			actions:   store,
			instances: store,
			audit:     store,
			scores:    store,
			health:    map[string]handler.Pinger{"memory": store},
			close:     func(context.Context) {},
		}, nil
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo connected")

	users := mongo.NewUserRepository(db)
	return &repositories{
		users:     users,
		policies:  users,
		actions:   mongo.NewActionRepository(db),
		instances: mongo.NewInstanceRepository(db),
		audit:     mongo.NewAuditRepository(db),
		scores:    mongo.NewScoreRepository(db),
		health:    map[string]handler.Pinger{"mongodb": mongo.NewPinger(db)},
		close: func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		},
	}, nil
}
