package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/durable-training-queue/pkg/internal/retry"
	"github.com/jdziat/durable-training-queue/pkg/schedule"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
)

// DefaultInterval is the trigger interval when no schedule is configured.
const DefaultInterval = time.Minute

// RetryConfig holds configuration for retry with backoff.
type RetryConfig = retry.Config

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return retry.DefaultConfig()
}

// RunnerOption configures a Runner.
type RunnerOption interface {
	ApplyRunner(*RunnerConfig)
}

type runnerOptionFunc func(*RunnerConfig)

func (f runnerOptionFunc) ApplyRunner(c *RunnerConfig) { f(c) }

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	Schedule     schedule.Schedule
	StorageRetry RetryConfig
	StuckAfter   time.Duration // 0 disables stuck-launch recovery
	RunnerID     string
	Logger       *slog.Logger
	OnTick       []func(*scheduler.TickResult, error)
}

// WithSchedule sets when the runner ticks.
func WithSchedule(s schedule.Schedule) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		if s != nil {
			c.Schedule = s
		}
	})
}

// WithStorageRetry sets the backoff for ticks that fail on storage.
func WithStorageRetry(cfg RetryConfig) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		c.StorageRetry = cfg
	})
}

// WithStuckAfter releases LAUNCHING entries older than d before each tick.
func WithStuckAfter(d time.Duration) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		if d >= 0 {
			c.StuckAfter = d
		}
	})
}

// WithRunnerID names the runner in logs.
func WithRunnerID(id string) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		if id != "" {
			c.RunnerID = id
		}
	})
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		if l != nil {
			c.Logger = l
		}
	})
}

// OnTick registers a hook called after every firing with its outcome.
func OnTick(fn func(*scheduler.TickResult, error)) RunnerOption {
	return runnerOptionFunc(func(c *RunnerConfig) {
		if fn != nil {
			c.OnTick = append(c.OnTick, fn)
		}
	})
}
