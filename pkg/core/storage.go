package core

import (
	"context"
	"time"
)

// QueueStore persists the entire state of named queues.
//
// Implementations must treat a payload as one object: it is always read and
// written whole, never field-patched.
type QueueStore interface {
	// Load fetches the current durable state. A queue that was never saved
	// yields an empty payload with Running=false and SavedAt=0.
	Load(ctx context.Context, name string) (*QueuePayload, error)

	// Save writes the full payload unconditionally and returns the new marker.
	Save(ctx context.Context, name string, entries []JobEntry, running bool) (int64, error)

	// SaveIf writes the payload only if the durable marker still equals
	// expectedSavedAt. It returns ErrStaleQueue otherwise.
	SaveIf(ctx context.Context, payload *QueuePayload, expectedSavedAt int64) (int64, error)

	// Marker returns the durable saved_at marker, 0 when the queue is absent.
	Marker(ctx context.Context, name string) (int64, error)

	// RefreshIfStale re-reads the payload only when the durable marker differs
	// from localSavedAt. changed is false (and the payload nil) otherwise.
	RefreshIfStale(ctx context.Context, name string, localSavedAt int64) (payload *QueuePayload, changed bool, err error)
}

// HistoryStore is the append-only log of terminated jobs.
type HistoryStore interface {
	// Migrate creates the necessary tables.
	Migrate(ctx context.Context) error

	// Append adds one immutable record.
	Append(ctx context.Context, rec *HistoryRecord) error

	// QueryRecent returns records matching the filter, newest first.
	QueryRecent(ctx context.Context, filter HistoryFilter) ([]HistoryRecord, error)
}

// Launcher starts an external compute execution for a set of params.
// It is called at most once per LAUNCHING transition and never retried.
type Launcher interface {
	Launch(ctx context.Context, params JobParams, timestamp string) (handle string, outputLocation string, err error)
}

// StatusProvider reports the lifecycle state of an execution.
type StatusProvider interface {
	Status(ctx context.Context, handle string) (*ExecutionStatus, error)
}

// ExecutionStatus is a provider's view of one execution.
type ExecutionStatus struct {
	// State is the provider state mapped onto the entry state machine.
	// Only terminal states end an entry; anything else keeps it RUNNING.
	State     EntryStatus
	RawState  string
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *time.Duration
	Detail    string
}
