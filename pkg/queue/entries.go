package queue

import (
	"context"
	"fmt"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// DeleteResult reports what happened to each requested id.
type DeleteResult struct {
	Deleted []int64 `json:"deleted"`
	Blocked []int64 `json:"blocked"` // LAUNCHING or RUNNING entries, which cannot be removed
	Missing []int64 `json:"missing"`
}

// TransitionResult reports the outcome of Retry and Cancel.
type TransitionResult struct {
	Updated []int64 `json:"updated"`
	Skipped []int64 `json:"skipped"` // entries whose status does not allow the transition
	Missing []int64 `json:"missing"`
}

// Delete removes PENDING, ERROR, CANCELLED and FAILED entries. Entries that
// are launching or running are reported as blocked and left untouched.
func (q *Queue) Delete(ctx context.Context, ids []int64) (*DeleteResult, error) {
	var res *DeleteResult
	var removed []core.JobEntry

	_, _, err := q.Update(ctx, func(p *core.QueuePayload) (bool, error) {
		res = &DeleteResult{}
		removed = removed[:0]
		for _, id := range ids {
			e := p.Find(id)
			switch {
			case e == nil:
				res.Missing = append(res.Missing, id)
			case !e.Status.IsDeletable():
				res.Blocked = append(res.Blocked, id)
			default:
				removed = append(removed, *e)
				p.Remove(id)
				res.Deleted = append(res.Deleted, id)
			}
		}
		return len(res.Deleted) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete: %w", err)
	}

	now := q.Now()
	for _, e := range removed {
		q.Emit(&core.EntryDeleted{Queue: q.name, Entry: e, Timestamp: now})
	}
	if len(res.Blocked) > 0 {
		q.logger.Warn("delete blocked for active entries", "entry_ids", res.Blocked)
	}
	return res, nil
}

// Retry puts ERROR, FAILED and CANCELLED entries back to PENDING so the next
// tick may launch them again. Launch details and messages are cleared.
func (q *Queue) Retry(ctx context.Context, ids []int64) (*TransitionResult, error) {
	res, err := q.transition(ctx, ids, func(e *core.JobEntry) bool {
		switch e.Status {
		case core.StatusError, core.StatusFailed, core.StatusCancelled:
		default:
			return false
		}
		e.Status = core.StatusPending
		e.Timestamp = ""
		e.ExecutionHandle = ""
		e.OutputLocation = ""
		e.Message = ""
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}
	return res, nil
}

// Cancel marks PENDING entries CANCELLED. Cancelling does not reach running
// executions; those are left to finish and be archived.
func (q *Queue) Cancel(ctx context.Context, ids []int64) (*TransitionResult, error) {
	res, err := q.transition(ctx, ids, func(e *core.JobEntry) bool {
		if e.Status != core.StatusPending {
			return false
		}
		e.Status = core.StatusCancelled
		e.Message = "cancelled by user"
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	return res, nil
}

func (q *Queue) transition(ctx context.Context, ids []int64, apply func(*core.JobEntry) bool) (*TransitionResult, error) {
	var res *TransitionResult
	_, _, err := q.Update(ctx, func(p *core.QueuePayload) (bool, error) {
		res = &TransitionResult{}
		for _, id := range ids {
			e := p.Find(id)
			switch {
			case e == nil:
				res.Missing = append(res.Missing, id)
			case apply(e):
				res.Updated = append(res.Updated, id)
			default:
				res.Skipped = append(res.Skipped, id)
			}
		}
		return len(res.Updated) > 0, nil
	})
	return res, err
}
