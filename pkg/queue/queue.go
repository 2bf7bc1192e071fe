package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// Mutator applies a change to a freshly loaded payload and reports whether
// anything changed. It may run more than once when writers collide, so it must
// not keep state between calls.
type Mutator func(p *core.QueuePayload) (changed bool, err error)

// Queue is a stateless client of one named durable queue. Any number of Queue
// values, in any number of processes, may point at the same name.
type Queue struct {
	name    string
	store   core.QueueStore
	history core.HistoryStore
	opts    *Options
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *core.QueuePayload

	// Hooks
	onEnqueue []func(context.Context, core.JobEntry)
	onLaunch  []func(context.Context, core.JobEntry, error)
	onArchive []func(context.Context, core.HistoryRecord)

	// Event stream
	eventSubs []chan core.Event
}

// New creates a Queue for name. history may be nil, in which case
// submissions are only deduplicated against live entries.
func New(name string, store core.QueueStore, history core.HistoryStore, opts ...Option) (*Queue, error) {
	if err := security.ValidateQueueName(name); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("trainq: queue store is required")
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	return &Queue{
		name:    name,
		store:   store,
		history: history,
		opts:    options,
		logger:  options.Logger.With("queue", name),
	}, nil
}

// Name returns the durable queue name.
func (q *Queue) Name() string { return q.name }

// Store returns the queue store.
func (q *Queue) Store() core.QueueStore { return q.store }

// History returns the history store, which may be nil.
func (q *Queue) History() core.HistoryStore { return q.history }

// Logger returns the queue's logger.
func (q *Queue) Logger() *slog.Logger { return q.logger }

// Now returns the queue clock's current time.
func (q *Queue) Now() time.Time { return q.opts.Now() }

// Defaults returns the params applied to blank fields of submitted rows.
func (q *Queue) Defaults() core.JobParams { return q.opts.Defaults }

// Update loads the durable payload, applies fn and writes the result back
// only if the marker is unchanged. On a concurrent write it reloads and
// re-applies fn up to the configured retry limit. It returns the resulting
// payload and whether it was written.
func (q *Queue) Update(ctx context.Context, fn Mutator) (*core.QueuePayload, bool, error) {
	for attempt := 0; ; attempt++ {
		p, err := q.store.Load(ctx, q.name)
		if err != nil {
			return nil, false, err
		}
		expected := p.SavedAt

		changed, err := fn(p)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			q.remember(p)
			return p, false, nil
		}

		_, err = q.store.SaveIf(ctx, p, expected)
		if err == nil {
			q.Committed(p)
			return p, true, nil
		}
		if !errors.Is(err, core.ErrStaleQueue) || attempt >= q.opts.ConflictRetries {
			return nil, false, err
		}
		q.logger.Debug("concurrent write, reapplying", "attempt", attempt+1)
	}
}

// Committed records a payload that was just persisted and announces the new
// state to subscribers.
func (q *Queue) Committed(p *core.QueuePayload) {
	q.remember(p)
	q.Emit(&core.QueueStateChanged{
		Queue:     q.name,
		Running:   p.Running,
		Counts:    p.CountByStatus(),
		SavedAt:   p.SavedAt,
		Timestamp: q.Now(),
	})
}

func (q *Queue) remember(p *core.QueuePayload) {
	q.mu.Lock()
	q.cached = p.Clone()
	q.mu.Unlock()
}

// Snapshot loads the current durable state.
func (q *Queue) Snapshot(ctx context.Context) (*core.QueuePayload, error) {
	p, err := q.store.Load(ctx, q.name)
	if err != nil {
		return nil, err
	}
	q.remember(p)
	return p, nil
}

// Refresh returns the durable state, re-reading the payload only when its
// marker moved since this Queue last saw it. changed reports whether the
// returned payload differs from the previously seen one.
func (q *Queue) Refresh(ctx context.Context) (*core.QueuePayload, bool, error) {
	q.mu.RLock()
	cached := q.cached
	q.mu.RUnlock()

	if cached == nil {
		p, err := q.Snapshot(ctx)
		return p, true, err
	}

	p, changed, err := q.store.RefreshIfStale(ctx, q.name, cached.SavedAt)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return cached.Clone(), false, nil
	}
	q.remember(p)
	return p, true, nil
}

// SetRunning starts or stops the queue. A stopped queue launches nothing;
// entries already running keep being polled.
func (q *Queue) SetRunning(ctx context.Context, running bool) error {
	_, written, err := q.Update(ctx, func(p *core.QueuePayload) (bool, error) {
		if p.Running == running {
			return false, nil
		}
		p.Running = running
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("set running=%t: %w", running, err)
	}
	if written {
		q.logger.Info("queue state changed", "running", running)
	}
	return nil
}

// OnEnqueue registers a callback for every accepted entry.
func (q *Queue) OnEnqueue(fn func(context.Context, core.JobEntry)) {
	q.mu.Lock()
	q.onEnqueue = append(q.onEnqueue, fn)
	q.mu.Unlock()
}

// OnLaunch registers a callback for every launch attempt. err is nil when
// the launcher accepted the entry.
func (q *Queue) OnLaunch(fn func(context.Context, core.JobEntry, error)) {
	q.mu.Lock()
	q.onLaunch = append(q.onLaunch, fn)
	q.mu.Unlock()
}

// OnArchive registers a callback for every entry moved to history.
func (q *Queue) OnArchive(fn func(context.Context, core.HistoryRecord)) {
	q.mu.Lock()
	q.onArchive = append(q.onArchive, fn)
	q.mu.Unlock()
}

// CallEnqueueHooks calls all registered enqueue hooks.
func (q *Queue) CallEnqueueHooks(ctx context.Context, e core.JobEntry) {
	q.mu.RLock()
	hooks := make([]func(context.Context, core.JobEntry), len(q.onEnqueue))
	copy(hooks, q.onEnqueue)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, e)
	}
}

// CallLaunchHooks calls all registered launch hooks.
func (q *Queue) CallLaunchHooks(ctx context.Context, e core.JobEntry, err error) {
	q.mu.RLock()
	hooks := make([]func(context.Context, core.JobEntry, error), len(q.onLaunch))
	copy(hooks, q.onLaunch)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, e, err)
	}
}

// CallArchiveHooks calls all registered archive hooks.
func (q *Queue) CallArchiveHooks(ctx context.Context, rec core.HistoryRecord) {
	q.mu.RLock()
	hooks := make([]func(context.Context, core.HistoryRecord), len(q.onArchive))
	copy(hooks, q.onArchive)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, rec)
	}
}

// Events returns a channel for receiving queue events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (q *Queue) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	q.mu.Lock()
	q.eventSubs = append(q.eventSubs, ch)
	q.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
func (q *Queue) Unsubscribe(ch <-chan core.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.eventSubs {
		if sub == ch {
			q.eventSubs = append(q.eventSubs[:i], q.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers.
func (q *Queue) Emit(e core.Event) {
	q.mu.RLock()
	subs := make([]chan core.Event, len(q.eventSubs))
	copy(subs, q.eventSubs)
	q.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full so a slow consumer never blocks a tick.
		}
	}
}
