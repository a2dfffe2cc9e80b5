package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// PolicyConfig holds the retry and worker settings for one job kind.
type PolicyConfig struct {
	MaxAttempts    int           `env:"MAX_ATTEMPTS,default=3"`
	BackoffBase    time.Duration `env:"BACKOFF_BASE,default=1m"`
	BackoffCap     time.Duration `env:"BACKOFF_CAP,default=0"`
	StaleThreshold time.Duration `env:"STALE_THRESHOLD,default=10m"`
	WorkerBatch    int           `env:"WORKER_BATCH,default=10"`
	WorkerInterval time.Duration `env:"WORKER_INTERVAL,default=5s"`
}

// Config carries the queue settings for every registered job kind plus the
// shared operational knobs. Values come from the environment with the
// defaults the original deployment ran with.
type Config struct {
	DataSourceSync PolicyConfig `env:",prefix=DATASOURCE_SYNC_"`
	GraphEmbedding PolicyConfig `env:",prefix=GRAPH_EMBEDDING_"`

	WorkerCount     int           `env:"MAX_WORKERS,default=4"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL,default=30s"`
	PurgeOlderThan  time.Duration `env:"DEAD_LETTER_PURGE_AGE,default=168h"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	for name, pc := range map[string]PolicyConfig{
		"DATASOURCE_SYNC": cfg.DataSourceSync,
		"GRAPH_EMBEDDING": cfg.GraphEmbedding,
	} {
		if pc.MaxAttempts < 1 {
			errs = append(errs, name+"_MAX_ATTEMPTS must be at least 1")
		}
		if pc.BackoffBase <= 0 {
			errs = append(errs, name+"_BACKOFF_BASE must be positive")
		}
		if pc.BackoffCap < 0 {
			errs = append(errs, name+"_BACKOFF_CAP must be non-negative")
		}
		if pc.StaleThreshold < time.Minute {
			errs = append(errs, name+"_STALE_THRESHOLD must be at least 1 minute")
		}
		if pc.WorkerBatch < 1 {
			errs = append(errs, name+"_WORKER_BATCH must be at least 1")
		}
	}

	if cfg.WorkerCount < 1 {
		errs = append(errs, "MAX_WORKERS must be at least 1")
	}

	if cfg.JanitorInterval <= 0 {
		errs = append(errs, "JANITOR_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
