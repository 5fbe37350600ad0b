package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	Timezone  string `env:"TIMEZONE,  default=UTC"`
	Store     string `env:"STORE,     default=mongo"`
	SeedFile  string `env:"SEED_FILE"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Kernel    KernelConfig
	Scheduler SchedulerConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=discipline"`
}

// RedisConfig is optional: an empty REDIS_ADDR keeps locking, dedup and the
// job queue in process.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type KernelConfig struct {
	Workers      int           `env:"KERNEL_WORKERS,       default=8"`
	CycleTimeout time.Duration `env:"KERNEL_CYCLE_TIMEOUT, default=30s"`
	LockTTL      time.Duration `env:"KERNEL_LOCK_TTL,      default=60s"`
	QueueKey     string        `env:"QUEUE_KEY,            default=kernel:cycles"`
	DedupTTL     time.Duration `env:"JOB_DEDUP_TTL,        default=1h"`
}

type SchedulerConfig struct {
	SweepSchedule string `env:"SWEEP_SCHEDULE,        default=@every 1m"`
	DailySchedule string `env:"DAILY_SCHEDULE,        default=0 0 * * *"`
	Concurrency   int    `env:"SCHEDULER_CONCURRENCY, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit source, for tests.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves TIMEZONE, which defines the calendar day for cycles.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("config: STORE must be %q or %q, got %q", StoreMongo, StoreMemory, c.Store)
	}
	if c.Kernel.Workers <= 0 {
		return fmt.Errorf("config: KERNEL_WORKERS must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
