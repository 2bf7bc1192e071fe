package core

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidQueueName  = errors.New("trainq: invalid queue name")
	ErrQueueNameTooLong  = errors.New("trainq: queue name too long")
	ErrBatchTooLarge     = errors.New("trainq: batch exceeds size limit")
	ErrMissingDataSource = errors.New("trainq: params have no query, table or data path")
	ErrInvalidParams     = errors.New("trainq: invalid job params")
)

// Store and scheduling errors
var (
	ErrStaleQueue     = errors.New("trainq: queue was modified by another writer")
	ErrObjectNotFound = errors.New("trainq: object not found")
	ErrNoLauncher     = errors.New("trainq: no launcher configured")
	ErrNoStatus       = errors.New("trainq: no status provider configured")
	ErrNoHistory      = errors.New("trainq: no history store configured")
)

// RejectionReason tags why a submitted row did not enter the queue.
type RejectionReason string

const (
	ReasonInQueue           RejectionReason = "in_queue"
	ReasonInHistory         RejectionReason = "in_history"
	ReasonMissingDataSource RejectionReason = "missing_data_source"
	ReasonInvalidParams     RejectionReason = "invalid_params"
)

// Rejection attributes a refused row to its position in the submitted batch.
type Rejection struct {
	Index  int             `json:"index"`
	Reason RejectionReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

func (r Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("row %d: %s", r.Index, r.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", r.Index, r.Reason, r.Detail)
}

// LaunchError wraps a launcher failure for a leased entry.
type LaunchError struct {
	EntryID int64
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch entry %d: %v", e.EntryID, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
