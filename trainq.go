// Package trainq provides a durable queue of model training jobs.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// The queue keeps no state in memory between operations: every call loads
// the queue document from its store, changes it and writes it back
// conditionally. Work only advances when something calls Tick.
//
// Basic usage:
//
//	db, _ := trainq.OpenDatabase("sqlite", "trainq.db")
//	blobs := trainq.NewGormBlobStore(db)
//	history := trainq.NewGormHistoryStore(db)
//	_ = blobs.Migrate(ctx)
//	_ = history.Migrate(ctx)
//
//	q, _ := trainq.NewQueue("models", trainq.NewBlobQueueStore(blobs), history)
//	res, _ := q.Enqueue(ctx, []map[string]any{
//	    {"country": "DE", "table": "project.dataset.sales", "iterations": 2000},
//	})
//
//	client, _ := trainq.NewHTTPClient("https://compute.example.com")
//	sched, _ := trainq.NewScheduler(q, client, client)
//	_ = q.SetRunning(ctx, true)
//
//	runner := trainq.NewRunner(sched, trainq.WithSchedule(trainq.Every(time.Minute)))
//	runner.Start(ctx)
package trainq

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/durable-training-queue/pkg/compute"
	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/params"
	"github.com/jdziat/durable-training-queue/pkg/queue"
	"github.com/jdziat/durable-training-queue/pkg/schedule"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
	"github.com/jdziat/durable-training-queue/pkg/storage"
	"github.com/jdziat/durable-training-queue/pkg/worker"
)

// Core types.
type (
	// JobParams is the normalized configuration of one training run.
	JobParams = core.JobParams
	// JobEntry is one queued training job.
	JobEntry = core.JobEntry
	// EntryStatus is the lifecycle state of an entry.
	EntryStatus = core.EntryStatus
	// QueuePayload is the durable queue document.
	QueuePayload = core.QueuePayload
	// HistoryRecord is an archived, finished entry.
	HistoryRecord = core.HistoryRecord
	// HistoryFilter narrows a history query.
	HistoryFilter = core.HistoryFilter
	// ExecutionStatus is a compute provider's view of one execution.
	ExecutionStatus = core.ExecutionStatus
	// Rejection explains why a submitted row was refused.
	Rejection = core.Rejection
	// RejectionReason tags a Rejection.
	RejectionReason = core.RejectionReason
	// LaunchError wraps a launcher failure with the entry it concerned.
	LaunchError = core.LaunchError
)

// Collaborator interfaces.
type (
	QueueStore     = core.QueueStore
	HistoryStore   = core.HistoryStore
	Launcher       = core.Launcher
	StatusProvider = core.StatusProvider
)

// Queue, scheduler and runner.
type (
	Queue            = queue.Queue
	QueueOption      = queue.Option
	Mutator          = queue.Mutator
	EnqueueResult    = queue.EnqueueResult
	DeleteResult     = queue.DeleteResult
	TransitionResult = queue.TransitionResult

	Scheduler       = scheduler.Scheduler
	SchedulerOption = scheduler.Option
	TickResult      = scheduler.TickResult

	Runner       = worker.Runner
	RunnerOption = worker.RunnerOption
	RetryConfig  = worker.RetryConfig
	Schedule     = schedule.Schedule
)

// Storage types.
type (
	BlobStore        = storage.BlobStore
	BlobQueueStore   = storage.BlobQueueStore
	StoreOption      = storage.StoreOption
	MemoryBlobStore  = storage.MemoryBlobStore
	GormBlobStore    = storage.GormBlobStore
	S3BlobStore      = storage.S3BlobStore
	S3Config         = storage.S3Config
	RedisBlobStore   = storage.RedisBlobStore
	GormHistoryStore = storage.GormHistoryStore
	PoolConfig       = storage.PoolConfig
	PoolOption       = storage.PoolOption
)

// Compute client types.
type (
	HTTPClient    = compute.HTTPClient
	ComputeOption = compute.Option
	APIError      = compute.APIError
)

// Event types.
type (
	Event             = core.Event
	EntryEnqueued     = core.EntryEnqueued
	EntryRejected     = core.EntryRejected
	EntryDeleted      = core.EntryDeleted
	EntryLaunched     = core.EntryLaunched
	EntryLaunchFailed = core.EntryLaunchFailed
	EntryArchived     = core.EntryArchived
	QueueStateChanged = core.QueueStateChanged
)

// Entry status constants.
const (
	StatusPending   = core.StatusPending
	StatusLaunching = core.StatusLaunching
	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
	StatusError     = core.StatusError
)

// Rejection reasons.
const (
	ReasonInQueue           = core.ReasonInQueue
	ReasonInHistory         = core.ReasonInHistory
	ReasonMissingDataSource = core.ReasonMissingDataSource
	ReasonInvalidParams     = core.ReasonInvalidParams
)

// Errors.
var (
	ErrInvalidQueueName  = core.ErrInvalidQueueName
	ErrQueueNameTooLong  = core.ErrQueueNameTooLong
	ErrBatchTooLarge     = core.ErrBatchTooLarge
	ErrMissingDataSource = core.ErrMissingDataSource
	ErrInvalidParams     = core.ErrInvalidParams
	ErrStaleQueue        = core.ErrStaleQueue
	ErrObjectNotFound    = core.ErrObjectNotFound
	ErrNoLauncher        = core.ErrNoLauncher
	ErrNoStatus          = core.ErrNoStatus
	ErrNoHistory         = core.ErrNoHistory
)

// NewQueue creates a queue named name over store, checking duplicates against history.
func NewQueue(name string, store QueueStore, history HistoryStore, opts ...QueueOption) (*Queue, error) {
	return queue.New(name, store, history, opts...)
}

// NewScheduler creates a Scheduler that ticks q.
func NewScheduler(q *Queue, launcher Launcher, status StatusProvider, opts ...SchedulerOption) (*Scheduler, error) {
	return scheduler.New(q, launcher, status, opts...)
}

// NewRunner creates a Runner that ticks s on a schedule.
func NewRunner(s *Scheduler, opts ...RunnerOption) *Runner {
	return worker.NewRunner(s, opts...)
}

// NewBlobQueueStore stores queue documents in blobs.
func NewBlobQueueStore(blobs BlobStore, opts ...StoreOption) *BlobQueueStore {
	return storage.NewBlobQueueStore(blobs, opts...)
}

// NewMemoryBlobStore creates a process-local blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return storage.NewMemoryBlobStore()
}

// NewGormBlobStore creates a blob store backed by a SQL table.
func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return storage.NewGormBlobStore(db)
}

// NewGormHistoryStore creates a history store backed by a SQL table.
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return storage.NewGormHistoryStore(db)
}

// NewS3BlobStore creates a blob store in an S3 bucket.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewS3BlobStore(client, cfg.Bucket), nil
}

// OpenDatabase opens a gorm database for the given driver (sqlite or postgres).
func OpenDatabase(driver, dsn string, opts ...PoolOption) (*gorm.DB, error) {
	return storage.OpenDatabase(driver, dsn, opts...)
}

// NewHTTPClient creates a compute client that launches and polls executions.
func NewHTTPClient(baseURL string, opts ...ComputeOption) (*HTTPClient, error) {
	return compute.NewHTTPClient(baseURL, opts...)
}

// Normalize turns a raw row into JobParams, filling blanks from defaults.
func Normalize(raw map[string]any, defaults JobParams) (JobParams, error) {
	return params.Normalize(raw, defaults)
}

// Signature returns the duplicate-detection key of p.
func Signature(p JobParams) string {
	return params.Signature(p)
}

// Every returns a schedule that fires every d.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Cron parses a standard five-field cron expression.
func Cron(expr string) (Schedule, error) {
	return schedule.Cron(expr)
}

// ParseSchedule accepts either a duration ("90s") or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	return schedule.Parse(spec)
}

// Queue options.
var (
	WithDefaults        = queue.WithDefaults
	WithConflictRetries = queue.WithConflictRetries
)

// Scheduler options.
var (
	WithConditionalWrites = scheduler.WithConditionalWrites
	WithTracer            = scheduler.WithTracer
)

// Runner options.
var (
	WithSchedule     = worker.WithSchedule
	WithStorageRetry = worker.WithStorageRetry
	WithStuckAfter   = worker.WithStuckAfter
	WithRunnerID     = worker.WithRunnerID
	OnTick           = worker.OnTick
)

// Store options.
var (
	WithPrefix    = storage.WithPrefix
	WithSessionID = storage.WithSessionID
)

// Compute options.
var (
	WithToken        = compute.WithToken
	WithOutputPrefix = compute.WithOutputPrefix
	WithTimeout      = compute.WithTimeout
	WithRateLimit    = compute.WithRateLimit
)
