package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/params"
	"github.com/jdziat/durable-training-queue/pkg/queue"
	"github.com/jdziat/durable-training-queue/pkg/storage"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type launchCall struct {
	params    core.JobParams
	timestamp string
}

type fakeLauncher struct {
	mu     sync.Mutex
	calls  []launchCall
	err    error
	during func(ctx context.Context) // runs inside Launch
}

func (l *fakeLauncher) Launch(ctx context.Context, p core.JobParams, ts string) (string, string, error) {
	l.mu.Lock()
	l.calls = append(l.calls, launchCall{params: p, timestamp: ts})
	n := len(l.calls)
	l.mu.Unlock()

	if l.during != nil {
		l.during(ctx)
	}
	if l.err != nil {
		return "", "", l.err
	}
	return fmt.Sprintf("exec-%d", n), "gs://out/" + p.Country + "/" + ts + "/", nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeStatus struct {
	mu     sync.Mutex
	states map[string]*core.ExecutionStatus
	errs   map[string]error
	calls  int
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{states: make(map[string]*core.ExecutionStatus), errs: make(map[string]error)}
}

func (s *fakeStatus) Status(_ context.Context, handle string) (*core.ExecutionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.errs[handle]; err != nil {
		return nil, err
	}
	if st, ok := s.states[handle]; ok {
		return st, nil
	}
	return &core.ExecutionStatus{State: core.StatusRunning, RawState: "RUNNING"}, nil
}

func (s *fakeStatus) set(handle string, st *core.ExecutionStatus) {
	s.mu.Lock()
	s.states[handle] = st
	s.mu.Unlock()
}

// failingHistory rejects appends for one entry id.
type failingHistory struct {
	core.HistoryStore
	failFor int64
}

func (h *failingHistory) Append(ctx context.Context, rec *core.HistoryRecord) error {
	if rec.EntryID == h.failFor {
		return errors.New("history unavailable")
	}
	return h.HistoryStore.Append(ctx, rec)
}

// racingStore lets a rival session write right before the n-th conditional
// write (1-based).
type racingStore struct {
	*storage.BlobQueueStore
	rival  *storage.BlobQueueStore
	raceOn int
	saves  int
}

func (s *racingStore) SaveIf(ctx context.Context, p *core.QueuePayload, expected int64) (int64, error) {
	s.saves++
	if s.saves == s.raceOn {
		cur, err := s.rival.Load(ctx, p.Name)
		if err != nil {
			return 0, err
		}
		extra := entry(cur.Allocate(), core.StatusError)
		cur.Entries = append(cur.Entries, extra)
		if _, err := s.rival.SaveIf(ctx, cur, cur.SavedAt); err != nil {
			return 0, err
		}
	}
	return s.BlobQueueStore.SaveIf(ctx, p, expected)
}

// flakyStore fails the first fail writes with a transient error.
type flakyStore struct {
	*storage.BlobQueueStore
	fail int
}

func (s *flakyStore) Save(ctx context.Context, name string, entries []core.JobEntry, run bool) (int64, error) {
	if s.fail > 0 {
		s.fail--
		return 0, errors.New("store unavailable")
	}
	return s.BlobQueueStore.Save(ctx, name, entries, run)
}

func (s *flakyStore) SaveIf(ctx context.Context, p *core.QueuePayload, expected int64) (int64, error) {
	if s.fail > 0 {
		s.fail--
		return 0, errors.New("store unavailable")
	}
	return s.BlobQueueStore.SaveIf(ctx, p, expected)
}

type env struct {
	blobs    *storage.MemoryBlobStore
	store    core.QueueStore
	history  core.HistoryStore
	queue    *queue.Queue
	launcher *fakeLauncher
	status   *fakeStatus
	sched    *Scheduler
}

type envConfig struct {
	store     func(blobs *storage.MemoryBlobStore) core.QueueStore
	history   func(h core.HistoryStore) core.HistoryStore
	schedOpts []Option
}

func newEnv(t *testing.T, cfg envConfig) *env {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenDatabase(storage.DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	gh := storage.NewGormHistoryStore(db)
	require.NoError(t, gh.Migrate(ctx))

	var history core.HistoryStore = gh
	if cfg.history != nil {
		history = cfg.history(gh)
	}

	blobs := storage.NewMemoryBlobStore()
	var store core.QueueStore = storage.NewBlobQueueStore(blobs)
	if cfg.store != nil {
		store = cfg.store(blobs)
	}

	q, err := queue.New("main", store, history, queue.WithClock(testClock))
	require.NoError(t, err)

	e := &env{
		blobs:    blobs,
		store:    store,
		history:  gh,
		queue:    q,
		launcher: &fakeLauncher{},
		status:   newFakeStatus(),
	}
	opts := append([]Option{WithClock(testClock)}, cfg.schedOpts...)
	e.sched, err = New(q, e.launcher, e.status, opts...)
	require.NoError(t, err)
	return e
}

func entry(id int64, status core.EntryStatus) core.JobEntry {
	p := core.JobParams{Country: "us", Table: fmt.Sprintf("proj.ds.sales_%d", id), Iterations: 2000}
	return core.JobEntry{ID: id, Params: p, Signature: params.Signature(p), Status: status}
}

func running(id int64, handle string) core.JobEntry {
	e := entry(id, core.StatusRunning)
	e.ExecutionHandle = handle
	e.Timestamp = testNow.Add(-time.Hour).Format(core.TimestampLayout)
	e.OutputLocation = "gs://out/us/"
	return e
}

func (e *env) seed(t *testing.T, run bool, entries ...core.JobEntry) int64 {
	t.Helper()
	marker, err := e.store.Save(context.Background(), "main", entries, run)
	require.NoError(t, err)
	return marker
}

func (e *env) load(t *testing.T) *core.QueuePayload {
	t.Helper()
	p, err := e.store.Load(context.Background(), "main")
	require.NoError(t, err)
	return p
}

func statuses(p *core.QueuePayload) map[int64]core.EntryStatus {
	out := make(map[int64]core.EntryStatus, len(p.Entries))
	for _, e := range p.Entries {
		out[e.ID] = e.Status
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────────────────────────────────

func TestNew_RequiresCollaborators(t *testing.T) {
	store := storage.NewBlobQueueStore(storage.NewMemoryBlobStore())
	noHistory, err := queue.New("main", store, nil)
	require.NoError(t, err)

	_, err = New(noHistory, &fakeLauncher{}, newFakeStatus())
	assert.ErrorIs(t, err, core.ErrNoHistory)

	_, err = New(noHistory, nil, newFakeStatus())
	assert.ErrorIs(t, err, core.ErrNoLauncher)

	_, err = New(noHistory, &fakeLauncher{}, nil)
	assert.ErrorIs(t, err, core.ErrNoStatus)
}

func TestOptions_Defaults(t *testing.T) {
	o := NewOptions()
	assert.True(t, o.ConditionalWrites)
	assert.NotNil(t, o.Tracer)

	WithConditionalWrites(false).Apply(o)
	assert.False(t, o.ConditionalWrites)
}

// ──────────────────────────────────────────────────────────────────────────────
// Launching
// ──────────────────────────────────────────────────────────────────────────────

func TestTick_StoppedQueueIsNoOp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	marker := e.seed(t, false, entry(1, core.StatusPending))

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)

	assert.False(t, res.Saved)
	assert.Nil(t, res.Launched)
	assert.Equal(t, 0, e.launcher.count())

	p := e.load(t)
	assert.Equal(t, marker, p.SavedAt, "saved_at unchanged")
	assert.Equal(t, core.StatusPending, p.Entries[0].Status)
}

func TestTick_NothingPendingIsNoOp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	marker := e.seed(t, true, running(1, "exec-a"))

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)

	assert.False(t, res.Saved)
	assert.Equal(t, 1, res.Polled)
	assert.Equal(t, marker, e.load(t).SavedAt)
	assert.Equal(t, 0, e.launcher.count())
}

func TestTick_LaunchesLowestPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, entry(2, core.StatusPending), entry(1, core.StatusPending))

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)

	require.NotNil(t, res.Launched)
	assert.Equal(t, int64(1), res.Launched.ID)
	assert.Nil(t, res.LaunchErr)
	assert.True(t, res.Saved)
	assert.True(t, res.Running)

	require.Equal(t, 1, e.launcher.count())
	call := e.launcher.calls[0]
	assert.Equal(t, "20240501_120000", call.timestamp)
	assert.Equal(t, "proj.ds.sales_1", call.params.Table)

	p := e.load(t)
	assert.Equal(t, map[int64]core.EntryStatus{1: core.StatusRunning, 2: core.StatusPending}, statuses(p))
	assert.True(t, p.Running, "running stays true while PENDING entries remain")

	launched := p.Find(1)
	assert.Equal(t, "exec-1", launched.ExecutionHandle)
	assert.Equal(t, "gs://out/us/20240501_120000/", launched.OutputLocation)
	assert.Equal(t, "20240501_120000", launched.Timestamp)
}

func TestTick_LaunchesOnePerTick(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, entry(1, core.StatusPending), entry(2, core.StatusPending), entry(3, core.StatusPending))

	for i := 1; i <= 3; i++ {
		_, err := e.sched.Tick(ctx)
		require.NoError(t, err)

		counts := e.load(t).CountByStatus()
		assert.Equal(t, i, counts[core.StatusRunning])
		assert.Equal(t, 3-i, counts[core.StatusPending])
	}
	assert.Equal(t, 3, e.launcher.count())
}

func TestTick_LeasePersistedBeforeLaunch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, entry(1, core.StatusPending))

	var seen core.EntryStatus
	e.launcher.during = func(ctx context.Context) {
		p, err := e.store.Load(ctx, "main")
		require.NoError(t, err)
		seen = p.Find(1).Status
	}

	_, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusLaunching, seen)
}

func TestTick_LauncherError(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, entry(1, core.StatusPending), entry(2, core.StatusPending))
	e.launcher.err = errors.New("quota exceeded for region")

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err, "launch failures are recorded, not returned")

	var launchErr *core.LaunchError
	require.ErrorAs(t, res.LaunchErr, &launchErr)
	assert.Equal(t, int64(1), launchErr.EntryID)

	p := e.load(t)
	require.Len(t, p.Entries, 2, "queue length unchanged")
	failed := p.Find(1)
	assert.Equal(t, core.StatusError, failed.Status)
	assert.Equal(t, "quota exceeded for region", failed.Message)
	assert.Equal(t, core.StatusPending, p.Find(2).Status)

	// The failed entry is never retried automatically.
	e.launcher.err = nil
	res, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Launched)
	assert.Equal(t, int64(2), res.Launched.ID)
	assert.Equal(t, 2, e.launcher.count())
	assert.Equal(t, core.StatusError, e.load(t).Find(1).Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweeping
// ──────────────────────────────────────────────────────────────────────────────

func TestTick_ArchivesTerminalEntries(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	done := running(1, "exec-a")
	e.seed(t, true, done, running(2, "exec-b"))

	start := testNow.Add(-2 * time.Hour)
	end := testNow.Add(-10 * time.Minute)
	e.status.set("exec-a", &core.ExecutionStatus{
		State:     core.StatusSucceeded,
		RawState:  "EXECUTION_SUCCEEDED",
		StartTime: &start,
		EndTime:   &end,
		Detail:    "completed",
	})

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, res.Archived, 1)
	assert.Equal(t, 2, res.Polled)

	p := e.load(t)
	assert.Nil(t, p.Find(1), "archived entry leaves the queue")
	assert.NotNil(t, p.Find(2))
	assert.True(t, p.Running)

	recs, err := e.history.QueryRecent(ctx, core.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, done.Params, rec.Params)
	assert.Equal(t, done.Signature, rec.Signature)
	assert.Equal(t, params.Signature(done.Params), params.Signature(rec.Params))
	assert.Equal(t, core.StatusSucceeded, rec.State)
	assert.Equal(t, "exec-a", rec.ExecutionHandle)
	assert.Equal(t, "gs://out/us/", rec.OutputLocation)
	assert.Equal(t, "completed", rec.Message)
	assert.InDelta(t, (110 * time.Minute).Seconds(), rec.Duration, 0.001)
}

func TestTick_TimingFallback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, running(1, "exec-a"))
	e.status.set("exec-a", &core.ExecutionStatus{State: core.StatusFailed})

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, res.Archived, 1)

	rec := res.Archived[0]
	require.NotNil(t, rec.StartTime)
	require.NotNil(t, rec.EndTime)
	assert.True(t, rec.StartTime.Equal(testNow.Add(-time.Hour)), "start falls back to the launch timestamp")
	assert.True(t, rec.EndTime.Equal(testNow), "end falls back to now")
	assert.InDelta(t, 3600.0, rec.Duration, 0.001)
}

func TestTick_EmptyQueueStops(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, running(1, "exec-a"))
	e.status.set("exec-a", &core.ExecutionStatus{State: core.StatusCancelled})

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.Running)

	p := e.load(t)
	assert.Empty(t, p.Entries)
	assert.False(t, p.Running)
}

func TestTick_ErrorEntriesKeepQueueRunning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	marker := e.seed(t, true, entry(1, core.StatusError))

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.True(t, e.load(t).Running)
	assert.Equal(t, marker, e.load(t).SavedAt)
}

func TestTick_StatusErrorRecordedOnEntry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, running(1, "exec-a"))
	e.status.errs["exec-a"] = errors.New("deadline exceeded")

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	require.Contains(t, res.StatusErrors, int64(1))

	p := e.load(t)
	assert.Equal(t, core.StatusRunning, p.Find(1).Status)
	assert.Equal(t, "status check failed: deadline exceeded", p.Find(1).Message)

	// The same failure again writes nothing new.
	marker := p.SavedAt
	_, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, marker, e.load(t).SavedAt)

	// A successful poll clears the message.
	delete(e.status.errs, "exec-a")
	_, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, e.load(t).Find(1).Message)
}

func TestTick_HistoryFailurePersistsWhatWasSwept(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{
		history: func(h core.HistoryStore) core.HistoryStore { return &failingHistory{HistoryStore: h, failFor: 2} },
	})
	e.seed(t, true, running(1, "exec-a"), running(2, "exec-b"), running(3, "exec-c"))
	for _, h := range []string{"exec-a", "exec-b", "exec-c"} {
		e.status.set(h, &core.ExecutionStatus{State: core.StatusSucceeded})
	}

	res, err := e.sched.Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive entry 2")
	require.Len(t, res.Archived, 1)

	p := e.load(t)
	assert.Nil(t, p.Find(1), "entry archived before the failure is gone")
	assert.Equal(t, core.StatusRunning, p.Find(2).Status)
	assert.Equal(t, core.StatusRunning, p.Find(3).Status)
}

func TestTick_SweepSkipsEntriesAlreadyInHistory(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{}
	e := newEnv(t, envConfig{
		store: func(blobs *storage.MemoryBlobStore) core.QueueStore {
			flaky.BlobQueueStore = storage.NewBlobQueueStore(blobs)
			return flaky
		},
	})
	e.seed(t, true, running(1, "exec-a"), running(2, "exec-b"))
	e.status.set("exec-a", &core.ExecutionStatus{State: core.StatusSucceeded})

	flaky.fail = 1
	res, err := e.sched.Tick(ctx)
	require.Error(t, err)
	assert.Len(t, res.Archived, 1)
	assert.NotNil(t, e.load(t).Find(1), "queue write failed after the history append")

	res, err = e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Archived, "nothing new was appended")
	assert.True(t, res.Saved)

	p := e.load(t)
	assert.Nil(t, p.Find(1))
	assert.NotNil(t, p.Find(2))

	recs, err := e.history.QueryRecent(ctx, core.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrent sessions
// ──────────────────────────────────────────────────────────────────────────────

func TestTick_LeaseConflictAbortsLaunch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{
		store: func(blobs *storage.MemoryBlobStore) core.QueueStore {
			return &racingStore{
				BlobQueueStore: storage.NewBlobQueueStore(blobs),
				rival:          storage.NewBlobQueueStore(blobs),
				raceOn:         1,
			}
		},
	})
	e.seed(t, true, entry(1, core.StatusPending))

	_, err := e.sched.Tick(ctx)
	assert.ErrorIs(t, err, core.ErrStaleQueue)
	assert.Equal(t, 0, e.launcher.count(), "a lost lease launches nothing")
	assert.Equal(t, core.StatusPending, e.load(t).Find(1).Status)
}

func TestTick_LastWriterWinsWhenConditionalWritesOff(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{
		store: func(blobs *storage.MemoryBlobStore) core.QueueStore {
			return &racingStore{
				BlobQueueStore: storage.NewBlobQueueStore(blobs),
				rival:          storage.NewBlobQueueStore(blobs),
				raceOn:         1,
			}
		},
		schedOpts: []Option{WithConditionalWrites(false)},
	})
	e.seed(t, true, entry(1, core.StatusPending))

	_, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, e.launcher.count())
	assert.Equal(t, core.StatusRunning, e.load(t).Find(1).Status)
}

func TestTick_LaunchOutcomeReappliedAfterConflict(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{
		store: func(blobs *storage.MemoryBlobStore) core.QueueStore {
			return &racingStore{
				BlobQueueStore: storage.NewBlobQueueStore(blobs),
				rival:          storage.NewBlobQueueStore(blobs),
				raceOn:         2,
			}
		},
	})
	e.seed(t, true, entry(1, core.StatusPending))

	res, err := e.sched.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Launched)
	assert.Equal(t, 1, e.launcher.count())

	p := e.load(t)
	assert.Equal(t, core.StatusRunning, p.Find(1).Status)
	assert.Equal(t, "exec-1", p.Find(1).ExecutionHandle)
	assert.Len(t, p.Entries, 2, "the rival's write survives")
}

// ──────────────────────────────────────────────────────────────────────────────
// Recovery, events, tracing
// ──────────────────────────────────────────────────────────────────────────────

func TestRecoverStuck(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})

	stale := entry(1, core.StatusLaunching)
	stale.Timestamp = testNow.Add(-time.Hour).Format(core.TimestampLayout)
	fresh := entry(2, core.StatusLaunching)
	fresh.Timestamp = testNow.Add(-time.Minute).Format(core.TimestampLayout)
	e.seed(t, true, stale, fresh, entry(3, core.StatusPending))

	released, err := e.sched.RecoverStuck(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, released)

	p := e.load(t)
	assert.Equal(t, core.StatusError, p.Find(1).Status)
	assert.Equal(t, InterruptedMessage, p.Find(1).Message)
	assert.Equal(t, core.StatusLaunching, p.Find(2).Status)
	assert.Equal(t, core.StatusPending, p.Find(3).Status)
}

func TestTick_EmitsEventsAndHooks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, envConfig{})
	e.seed(t, true, entry(1, core.StatusPending), running(2, "exec-z"))
	e.status.set("exec-z", &core.ExecutionStatus{State: core.StatusSucceeded})

	events := e.queue.Events()
	defer e.queue.Unsubscribe(events)

	var launched, archived []int64
	e.queue.OnLaunch(func(_ context.Context, entry core.JobEntry, err error) {
		assert.NoError(t, err)
		launched = append(launched, entry.ID)
	})
	e.queue.OnArchive(func(_ context.Context, rec core.HistoryRecord) {
		archived = append(archived, rec.EntryID)
	})

	_, err := e.sched.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, launched)
	assert.Equal(t, []int64{2}, archived)

	var sawLaunch, sawArchive bool
	for len(events) > 0 {
		switch ev := (<-events).(type) {
		case *core.EntryLaunched:
			sawLaunch = ev.Entry.ID == 1
		case *core.EntryArchived:
			sawArchive = ev.Record.EntryID == 2
		}
	}
	assert.True(t, sawLaunch)
	assert.True(t, sawArchive)
}

func TestTick_Spans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	e := newEnv(t, envConfig{schedOpts: []Option{WithTracer(tp.Tracer("test"))}})
	e.seed(t, true, entry(1, core.StatusPending))

	_, err := e.sched.Tick(ctx)
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"trainq.launch", "trainq.sweep", "trainq.tick"}, names)
}
