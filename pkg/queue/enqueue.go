package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/params"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// EnqueueResult reports the outcome of every submitted row.
type EnqueueResult struct {
	Accepted []core.JobEntry  `json:"accepted"`
	Rejected []core.Rejection `json:"rejected"`
}

// CountByReason tallies rejections per reason.
func (r *EnqueueResult) CountByReason() map[core.RejectionReason]int {
	counts := make(map[core.RejectionReason]int)
	for _, rej := range r.Rejected {
		counts[rej.Reason]++
	}
	return counts
}

type candidate struct {
	index     int
	params    core.JobParams
	signature string
}

// Enqueue normalizes rows, drops invalid and duplicate ones and appends the
// rest to the queue as PENDING entries.
//
// A row is a duplicate when its signature matches any entry already in the
// queue, an earlier row of the same batch (both tagged in_queue), or a
// SUCCEEDED or FAILED history record (in_history). Rejections never fail the
// call; store errors do, and then nothing was enqueued.
func (q *Queue) Enqueue(ctx context.Context, rows []map[string]any) (*EnqueueResult, error) {
	if err := security.ValidateBatchSize(len(rows)); err != nil {
		return nil, err
	}

	var invalid []core.Rejection
	var candidates []candidate
	for i, row := range rows {
		p, err := params.Normalize(row, q.opts.Defaults)
		if err == nil {
			err = params.Validate(p)
		}
		if err != nil {
			invalid = append(invalid, rejectionFor(i, err))
			continue
		}
		candidates = append(candidates, candidate{index: i, params: p, signature: params.Signature(p)})
	}

	completed, err := q.completedSignatures(ctx, candidates)
	if err != nil {
		return nil, err
	}

	result := &EnqueueResult{}
	_, _, err = q.Update(ctx, func(p *core.QueuePayload) (bool, error) {
		result.Accepted = nil
		result.Rejected = append([]core.Rejection(nil), invalid...)

		live := make(map[string]bool, len(p.Entries)+len(candidates))
		for _, e := range p.Entries {
			live[e.Signature] = true
		}

		now := q.Now().UTC()
		for _, c := range candidates {
			switch {
			case live[c.signature]:
				result.Rejected = append(result.Rejected, core.Rejection{Index: c.index, Reason: core.ReasonInQueue})
				continue
			case completed[c.signature]:
				result.Rejected = append(result.Rejected, core.Rejection{Index: c.index, Reason: core.ReasonInHistory})
				continue
			}
			live[c.signature] = true

			entry := core.JobEntry{
				ID:          p.Allocate(),
				Params:      c.params,
				Signature:   c.signature,
				Status:      core.StatusPending,
				SubmittedAt: now,
			}
			p.Entries = append(p.Entries, entry)
			result.Accepted = append(result.Accepted, entry)
		}
		return len(result.Accepted) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	sort.SliceStable(result.Rejected, func(i, j int) bool {
		return result.Rejected[i].Index < result.Rejected[j].Index
	})
	q.announceEnqueue(ctx, result)
	return result, nil
}

// completedSignatures returns the signatures of completed history records
// for the candidates' countries. Signatures are recomputed from the stored
// params so older records match under the current canonical form.
func (q *Queue) completedSignatures(ctx context.Context, candidates []candidate) (map[string]bool, error) {
	out := make(map[string]bool)
	if q.history == nil || len(candidates) == 0 {
		return out, nil
	}

	seen := make(map[string]bool)
	var countries []string
	for _, c := range candidates {
		if !seen[c.params.Country] {
			seen[c.params.Country] = true
			countries = append(countries, c.params.Country)
		}
	}

	records, err := q.history.QueryRecent(ctx, core.HistoryFilter{
		Countries: countries,
		States:    core.CompletedStatuses(),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: query history: %w", err)
	}
	for _, rec := range records {
		out[params.Signature(rec.Params)] = true
	}
	return out, nil
}

func (q *Queue) announceEnqueue(ctx context.Context, result *EnqueueResult) {
	now := q.Now()
	for _, e := range result.Accepted {
		q.Emit(&core.EntryEnqueued{Queue: q.name, Entry: e, Timestamp: now})
		q.CallEnqueueHooks(ctx, e)
	}
	for _, r := range result.Rejected {
		q.Emit(&core.EntryRejected{Queue: q.name, Rejection: r, Timestamp: now})
	}
	q.logger.Info("enqueue finished",
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
	)
}

func rejectionFor(index int, err error) core.Rejection {
	reason := core.ReasonInvalidParams
	if errors.Is(err, core.ErrMissingDataSource) {
		reason = core.ReasonMissingDataSource
	}
	return core.Rejection{
		Index:  index,
		Reason: reason,
		Detail: security.SanitizeErrorMessage(err.Error()),
	}
}
