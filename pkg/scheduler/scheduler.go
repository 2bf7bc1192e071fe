package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/queue"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// statusErrorPrefix marks entry messages written after a failed status query.
const statusErrorPrefix = "status check failed: "

// TickResult describes what one tick did.
type TickResult struct {
	// Launched is the leased entry after its launch attempt, nil when nothing
	// was leased. Its status is RUNNING or ERROR.
	Launched *core.JobEntry

	// LaunchErr is a *core.LaunchError when the launcher failed.
	LaunchErr error

	// Archived holds the history records appended by this tick.
	Archived []core.HistoryRecord

	// Polled counts status queries; StatusErrors holds the failed ones by entry id.
	Polled       int
	StatusErrors map[int64]error

	// Saved reports whether the tick wrote the queue.
	Saved   bool
	Running bool
	SavedAt int64
}

// Scheduler advances a queue's state machine, one tick at a time.
// It holds no queue state between ticks.
type Scheduler struct {
	queue    *queue.Queue
	launcher core.Launcher
	status   core.StatusProvider
	opts     *Options
	logger   *slog.Logger
}

// New creates a Scheduler for q. The queue must have a history store.
func New(q *queue.Queue, launcher core.Launcher, status core.StatusProvider, opts ...Option) (*Scheduler, error) {
	if q == nil {
		return nil, errors.New("trainq: scheduler requires a queue")
	}
	if launcher == nil {
		return nil, core.ErrNoLauncher
	}
	if status == nil {
		return nil, core.ErrNoStatus
	}
	if q.History() == nil {
		return nil, core.ErrNoHistory
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}
	logger := options.Logger
	if logger == nil {
		logger = q.Logger()
	}

	return &Scheduler{
		queue:    q,
		launcher: launcher,
		status:   status,
		opts:     options,
		logger:   logger,
	}, nil
}

// Queue returns the scheduled queue.
func (s *Scheduler) Queue() *queue.Queue {
	return s.queue
}

// Tick runs one scheduling step:
//
//  1. If the queue is running and has PENDING entries, the lowest-id one is
//     leased (LAUNCHING, persisted), handed to the launcher exactly once and
//     persisted again as RUNNING or ERROR.
//  2. Every RUNNING entry is polled; terminal ones are appended to history
//     and removed from the queue.
//  3. An empty queue is stopped.
//
// Nothing is written when nothing changed. Launcher failures are recorded on
// the entry and reported in the result, not as an error. Store and history
// failures are returned; whatever was already persisted stays persisted.
func (s *Scheduler) Tick(ctx context.Context) (res *TickResult, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "trainq.tick",
		trace.WithAttributes(attribute.String("trainq.queue", s.queue.Name())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, err := s.queue.Store().Load(ctx, s.queue.Name())
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}

	res = &TickResult{StatusErrors: make(map[int64]error)}
	t := &tick{s: s, payload: p, expected: p.SavedAt, result: res}
	defer func() {
		res.Running = t.payload.Running
		res.SavedAt = t.payload.SavedAt
		span.SetAttributes(
			attribute.Bool("trainq.saved", res.Saved),
			attribute.Int("trainq.archived", len(res.Archived)),
		)
	}()

	if p.Running {
		if next := p.NextPending(); next != nil {
			if err := t.launch(ctx, next.ID); err != nil {
				return res, err
			}
		}
	}

	if err := t.sweep(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// tick carries the payload through one Tick.
type tick struct {
	s        *Scheduler
	payload  *core.QueuePayload
	expected int64
	result   *TickResult
}

// commit applies fn to the tick's payload and persists it if fn changed
// anything. With conditional writes, a concurrent write either aborts the
// commit or, when reapply is set, reloads and re-applies fn.
func (t *tick) commit(ctx context.Context, fn queue.Mutator, reapply bool) error {
	changed, err := fn(t.payload)
	if err != nil || !changed {
		return err
	}

	store := t.s.queue.Store()
	if !t.s.opts.ConditionalWrites {
		marker, err := store.Save(ctx, t.payload.Name, t.payload.Entries, t.payload.Running)
		if err != nil {
			return err
		}
		t.payload.SavedAt = marker
		t.expected = marker
		t.result.Saved = true
		t.s.queue.Committed(t.payload)
		return nil
	}

	_, err = store.SaveIf(ctx, t.payload, t.expected)
	if err == nil {
		t.expected = t.payload.SavedAt
		t.result.Saved = true
		t.s.queue.Committed(t.payload)
		return nil
	}
	if !errors.Is(err, core.ErrStaleQueue) || !reapply {
		return err
	}

	t.s.logger.Warn("queue changed during tick, reapplying")
	fresh, written, err := t.s.queue.Update(ctx, fn)
	if err != nil {
		return err
	}
	t.payload = fresh
	t.expected = fresh.SavedAt
	if written {
		t.result.Saved = true
	}
	return nil
}

func (t *tick) launch(ctx context.Context, id int64) error {
	ctx, span := t.s.opts.Tracer.Start(ctx, "trainq.launch",
		trace.WithAttributes(attribute.Int64("trainq.entry_id", id)))
	defer span.End()

	ts := t.s.opts.Now().UTC().Format(core.TimestampLayout)

	lease := func(p *core.QueuePayload) (bool, error) {
		e := p.Find(id)
		if e == nil || e.Status != core.StatusPending {
			return false, nil
		}
		e.Status = core.StatusLaunching
		e.Timestamp = ts
		e.Message = ""
		return true, nil
	}
	if err := t.commit(ctx, lease, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("tick: lease entry %d: %w", id, err)
	}

	leased := t.payload.Find(id)
	if leased == nil || leased.Status != core.StatusLaunching {
		return nil
	}
	params := leased.Params

	handle, output, launchErr := t.s.launcher.Launch(ctx, params, ts)

	outcome := func(p *core.QueuePayload) (bool, error) {
		e := p.Find(id)
		if e == nil || e.Timestamp != ts {
			return false, nil
		}
		if launchErr != nil {
			e.Status = core.StatusError
			e.Message = security.SanitizeErrorMessage(launchErr.Error())
		} else {
			e.Status = core.StatusRunning
			e.ExecutionHandle = handle
			e.OutputLocation = output
			e.Message = ""
		}
		return true, nil
	}

	// The execution exists now; record it even if the caller has gone away.
	if err := t.commit(context.WithoutCancel(ctx), outcome, true); err != nil {
		t.s.logger.Error("launch outcome not persisted",
			"entry_id", id,
			"execution_handle", handle,
			"error", err,
		)
		span.RecordError(err)
		return fmt.Errorf("tick: record launch of entry %d: %w", id, err)
	}

	e := t.payload.Find(id)
	if e == nil {
		t.s.logger.Warn("launched entry vanished from queue", "entry_id", id, "execution_handle", handle)
		return nil
	}
	launched := *e
	t.result.Launched = &launched

	now := t.s.opts.Now()
	if launchErr != nil {
		t.result.LaunchErr = &core.LaunchError{EntryID: id, Err: launchErr}
		span.RecordError(launchErr)
		t.s.logger.Error("launch failed", "entry_id", id, "error", launchErr)
		t.s.queue.Emit(&core.EntryLaunchFailed{Queue: t.payload.Name, Entry: launched, Error: launchErr, Timestamp: now})
	} else {
		t.s.logger.Info("launched entry",
			"entry_id", id,
			"execution_handle", handle,
			"output_location", output,
		)
		t.s.queue.Emit(&core.EntryLaunched{Queue: t.payload.Name, Entry: launched, Timestamp: now})
	}
	t.s.queue.CallLaunchHooks(ctx, launched, launchErr)
	return nil
}

// alreadyArchived reports whether history holds rec's execution already,
// as it does when an earlier tick appended it but failed to save the queue.
func (t *tick) alreadyArchived(ctx context.Context, history core.HistoryStore, rec core.HistoryRecord) (bool, error) {
	recs, err := history.QueryRecent(ctx, core.HistoryFilter{Signatures: []string{rec.Signature}})
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if r.QueueName == rec.QueueName && r.EntryID == rec.EntryID && r.ExecutionHandle == rec.ExecutionHandle {
			return true, nil
		}
	}
	return false, nil
}

func (t *tick) sweep(ctx context.Context) error {
	ctx, span := t.s.opts.Tracer.Start(ctx, "trainq.sweep")
	defer span.End()

	var running []core.JobEntry
	for _, e := range t.payload.Entries {
		if e.Status == core.StatusRunning {
			running = append(running, e)
		}
	}

	history := t.s.queue.History()
	archived := make(map[int64]bool)
	messages := make(map[int64]string)
	var archiveErr error

	for _, e := range running {
		t.result.Polled++
		st, err := t.s.status.Status(ctx, e.ExecutionHandle)
		if err != nil {
			t.result.StatusErrors[e.ID] = err
			t.s.logger.Warn("status query failed",
				"entry_id", e.ID,
				"execution_handle", e.ExecutionHandle,
				"error", err,
			)
			messages[e.ID] = statusErrorPrefix + security.SanitizeErrorMessage(err.Error())
			continue
		}
		if !st.State.IsTerminal() {
			if strings.HasPrefix(e.Message, statusErrorPrefix) {
				messages[e.ID] = ""
			}
			continue
		}

		rec := t.record(e, st)
		seen, err := t.alreadyArchived(ctx, history, rec)
		if err != nil {
			archiveErr = fmt.Errorf("tick: archive entry %d: %w", e.ID, err)
			break
		}
		if seen {
			t.s.logger.Info("entry already archived, removing from queue",
				"entry_id", e.ID,
				"execution_handle", e.ExecutionHandle,
			)
			archived[e.ID] = true
			continue
		}
		if err := history.Append(ctx, &rec); err != nil {
			archiveErr = fmt.Errorf("tick: archive entry %d: %w", e.ID, err)
			break
		}
		archived[e.ID] = true
		t.result.Archived = append(t.result.Archived, rec)
	}

	apply := func(p *core.QueuePayload) (bool, error) {
		changed := false
		for id := range archived {
			if p.Remove(id) {
				changed = true
			}
		}
		for id, msg := range messages {
			if e := p.Find(id); e != nil && e.Status == core.StatusRunning && e.Message != msg {
				e.Message = msg
				changed = true
			}
		}
		if len(p.Entries) == 0 && p.Running {
			p.Running = false
			changed = true
		}
		return changed, nil
	}

	// History was already appended; the queue must forget those entries.
	if err := t.commit(context.WithoutCancel(ctx), apply, true); err != nil {
		err = errors.Join(archiveErr, fmt.Errorf("tick: persist sweep: %w", err))
		span.RecordError(err)
		return err
	}

	now := t.s.opts.Now()
	for _, rec := range t.result.Archived {
		t.s.logger.Info("archived entry",
			"entry_id", rec.EntryID,
			"state", rec.State,
			"duration_seconds", rec.Duration,
		)
		t.s.queue.Emit(&core.EntryArchived{Queue: t.payload.Name, Record: rec, Timestamp: now})
		t.s.queue.CallArchiveHooks(ctx, rec)
	}

	if archiveErr != nil {
		span.RecordError(archiveErr)
	}
	return archiveErr
}

// record builds the history row for a terminated entry. Missing provider
// timing falls back to the launch timestamp and the current time.
func (t *tick) record(e core.JobEntry, st *core.ExecutionStatus) core.HistoryRecord {
	now := t.s.opts.Now().UTC()

	start := st.StartTime
	if start == nil {
		if launched, ok := e.LaunchedAt(); ok {
			start = &launched
		}
	}
	end := st.EndTime
	if end == nil {
		end = &now
	}

	var duration float64
	switch {
	case st.Duration != nil:
		duration = st.Duration.Seconds()
	case start != nil && !end.Before(*start):
		duration = end.Sub(*start).Seconds()
	}

	message := st.Detail
	if message == "" && !strings.HasPrefix(e.Message, statusErrorPrefix) {
		message = e.Message
	}

	return core.HistoryRecord{
		Params:          e.Params,
		Signature:       e.Signature,
		QueueName:       t.payload.Name,
		EntryID:         e.ID,
		State:           st.State,
		StartTime:       start,
		EndTime:         end,
		Duration:        duration,
		OutputLocation:  e.OutputLocation,
		ExecutionHandle: e.ExecutionHandle,
		Message:         message,
	}
}
