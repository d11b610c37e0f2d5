package scheduler

import (
	"time"

	"github.com/smallbiznis/coverdesk/internal/config"
)

// Config controls the alert loop cadence and which jobs run.
type Config struct {
	RunInterval time.Duration
	LockTTL     time.Duration
	JobTimeout  time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		LockTTL:     4 * time.Minute,
		JobTimeout:  time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		LockTTL:     time.Duration(cfg.Scheduler.LockTTLSeconds) * time.Second,
		EnabledJobs: cfg.Scheduler.Jobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
