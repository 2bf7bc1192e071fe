// Package app assembles queues, stores and schedulers from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jdziat/durable-training-queue/internal/config"
	"github.com/jdziat/durable-training-queue/pkg/compute"
	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/params"
	"github.com/jdziat/durable-training-queue/pkg/queue"
	"github.com/jdziat/durable-training-queue/pkg/schedule"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
	"github.com/jdziat/durable-training-queue/pkg/storage"
	"github.com/jdziat/durable-training-queue/pkg/worker"
)

// ErrNoCompute is returned when an operation needs the compute API but none
// is configured.
var ErrNoCompute = errors.New("trainq: compute.base_url is not configured")

// App holds the wired components for one configured queue.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *gorm.DB
	Store   *storage.BlobQueueStore
	History *storage.GormHistoryStore
	Queue   *queue.Queue

	closers []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New opens the database and queue store and builds the queue.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := storage.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN, storage.WithPool(storage.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}))
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	a.History = storage.NewGormHistoryStore(db)
	if err := a.History.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	storeOpts := []storage.StoreOption{storage.WithPrefix(cfg.Store.Prefix)}
	if cfg.Queue.SessionID != "" {
		storeOpts = append(storeOpts, storage.WithSessionID(cfg.Queue.SessionID))
	}
	a.Store = storage.NewBlobQueueStore(blobs, storeOpts...)

	defaults, err := params.Normalize(cfg.Defaults, core.JobParams{})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("defaults: %w", err)
	}

	a.Queue, err = queue.New(cfg.Queue.Name, a.Store, a.History,
		queue.WithDefaults(defaults),
		queue.WithLogger(logger),
		queue.WithConflictRetries(cfg.Queue.ConflictRetries),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "memory":
		return storage.NewMemoryBlobStore(), nil
	case "gorm":
		blobs := storage.NewGormBlobStore(a.DB)
		if err := blobs.Migrate(ctx); err != nil {
			return nil, err
		}
		return blobs, nil
	case "s3":
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3BlobStore(client, cfg.S3.Bucket), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisBlobStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// Compute returns the configured compute API client.
func (a *App) Compute() (*compute.HTTPClient, error) {
	cfg := a.Config.Compute
	if cfg.BaseURL == "" {
		return nil, ErrNoCompute
	}
	return compute.NewHTTPClient(cfg.BaseURL,
		compute.WithToken(cfg.Token),
		compute.WithOutputPrefix(cfg.OutputPrefix),
		compute.WithTimeout(cfg.Timeout),
		compute.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		compute.WithLogger(a.Logger),
	)
}

// Scheduler builds a scheduler over the compute API client.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	client, err := a.Compute()
	if err != nil {
		return nil, err
	}
	return a.SchedulerWith(client, client)
}

// SchedulerWith builds a scheduler over the given launcher and status provider.
func (a *App) SchedulerWith(launcher core.Launcher, status core.StatusProvider) (*scheduler.Scheduler, error) {
	return scheduler.New(a.Queue, launcher, status,
		scheduler.WithConditionalWrites(a.Config.Queue.ConditionalWrites),
		scheduler.WithLogger(a.Logger),
	)
}

// Runner builds a periodic trigger for s from the scheduler section.
func (a *App) Runner(s *scheduler.Scheduler, opts ...worker.RunnerOption) (*worker.Runner, error) {
	sched, err := schedule.Parse(a.Config.Scheduler.Schedule)
	if err != nil {
		return nil, err
	}
	all := []worker.RunnerOption{
		worker.WithSchedule(sched),
		worker.WithStuckAfter(a.Config.Scheduler.StuckAfter),
		worker.WithLogger(a.Logger),
	}
	return worker.NewRunner(s, append(all, opts...)...), nil
}

// Close releases database and client connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
