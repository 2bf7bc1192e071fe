package compute

import (
	"strings"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

var providerStates = map[string]core.EntryStatus{
	"SUCCEEDED":           core.StatusSucceeded,
	"SUCCESS":             core.StatusSucceeded,
	"COMPLETED":           core.StatusSucceeded,
	"DONE":                core.StatusSucceeded,
	"EXECUTION_SUCCEEDED": core.StatusSucceeded,
	"JOB_STATE_SUCCEEDED": core.StatusSucceeded,

	"FAILED":           core.StatusFailed,
	"FAILURE":          core.StatusFailed,
	"ERROR":            core.StatusFailed,
	"EXECUTION_FAILED": core.StatusFailed,
	"JOB_STATE_FAILED": core.StatusFailed,

	"CANCELLED":           core.StatusCancelled,
	"CANCELED":            core.StatusCancelled,
	"ABORTED":             core.StatusCancelled,
	"EXECUTION_CANCELLED": core.StatusCancelled,
	"JOB_STATE_CANCELLED": core.StatusCancelled,

	"PENDING":            core.StatusRunning,
	"QUEUED":             core.StatusRunning,
	"STARTING":           core.StatusRunning,
	"RUNNING":            core.StatusRunning,
	"CANCELLING":         core.StatusRunning,
	"EXECUTION_PENDING":  core.StatusRunning,
	"EXECUTION_RUNNING":  core.StatusRunning,
	"JOB_STATE_PENDING":  core.StatusRunning,
	"JOB_STATE_QUEUED":   core.StatusRunning,
	"JOB_STATE_RUNNING":  core.StatusRunning,
}

// ParseState maps a provider state onto the entry state machine. Matching is
// case-insensitive. Unknown states map to RUNNING with ok=false so the entry
// keeps being polled.
func ParseState(raw string) (status core.EntryStatus, ok bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if s, found := providerStates[key]; found {
		return s, true
	}
	return core.StatusRunning, false
}
