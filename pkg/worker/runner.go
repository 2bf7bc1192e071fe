package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/internal/retry"
	"github.com/jdziat/durable-training-queue/pkg/schedule"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
)

// Ticker is the part of a scheduler a Runner drives.
type Ticker interface {
	Tick(ctx context.Context) (*scheduler.TickResult, error)
	RecoverStuck(ctx context.Context, olderThan time.Duration) ([]int64, error)
}

// Runner triggers ticks on a schedule.
type Runner struct {
	ticker Ticker
	config RunnerConfig
	logger *slog.Logger
}

// NewRunner creates a runner for t.
func NewRunner(t Ticker, opts ...RunnerOption) *Runner {
	config := RunnerConfig{
		Schedule:     schedule.Every(DefaultInterval),
		StorageRetry: DefaultRetryConfig(),
		RunnerID:     uuid.New().String(),
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt.ApplyRunner(&config)
	}

	return &Runner{
		ticker: t,
		config: config,
		logger: config.Logger.With("runner_id", config.RunnerID),
	}
}

// Config returns the effective configuration.
func (r *Runner) Config() RunnerConfig {
	return r.config
}

// Start ticks whenever the schedule fires. Blocks until ctx is cancelled and
// returns ctx.Err().
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("runner started")
	defer r.logger.Info("runner stopped")

	for {
		now := time.Now()
		wait := r.config.Schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// RunOnce performs one firing: stuck-launch recovery when configured, then a
// tick. Storage failures are retried with backoff as long as the failed tick
// wrote nothing to the queue or history; a conflict with another writer is
// left for the next firing.
func (r *Runner) RunOnce(ctx context.Context) (res *scheduler.TickResult, err error) {
	defer func() {
		for _, fn := range r.config.OnTick {
			fn(res, err)
		}
	}()

	if r.config.StuckAfter > 0 {
		released, recoverErr := r.ticker.RecoverStuck(ctx, r.config.StuckAfter)
		if recoverErr != nil {
			r.logger.Warn("stuck launch recovery failed", "error", recoverErr)
		} else if len(released) > 0 {
			r.logger.Warn("released stuck launches", "entry_ids", released)
		}
	}

	err = retry.Do(ctx, r.config.StorageRetry, func() error {
		var tickErr error
		res, tickErr = r.ticker.Tick(ctx)
		if tickErr == nil {
			return nil
		}
		if errors.Is(tickErr, core.ErrStaleQueue) || (res != nil && (res.Saved || len(res.Archived) > 0)) {
			return retry.Permanent(tickErr)
		}
		r.logger.Debug("tick failed, retrying", "error", tickErr)
		return tickErr
	})

	if errors.Is(err, core.ErrStaleQueue) {
		r.logger.Info("queue changed by another writer, skipping until next firing")
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if res.Launched != nil {
		r.logger.Debug("tick launched entry", "entry_id", res.Launched.ID, "status", res.Launched.Status)
	}
	return res, nil
}
