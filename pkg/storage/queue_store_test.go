package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

func frozenClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func testEntry(id int64, status core.EntryStatus) core.JobEntry {
	return core.JobEntry{
		ID:          id,
		Params:      core.JobParams{Country: "us", Query: "select 1"},
		Signature:   "sig",
		Status:      status,
		SubmittedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Load / Save
// ──────────────────────────────────────────────────────────────────────────────

func TestBlobQueueStore_LoadAbsent(t *testing.T) {
	s := NewBlobQueueStore(NewMemoryBlobStore())

	p, err := s.Load(context.Background(), "main")
	require.NoError(t, err)

	assert.Equal(t, "main", p.Name)
	assert.Empty(t, p.Entries)
	assert.False(t, p.Running)
	assert.Equal(t, int64(0), p.SavedAt)
	assert.Equal(t, int64(1), p.NextID)
}

func TestBlobQueueStore_RoundTrip(t *testing.T) {
	for _, b := range blobBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewBlobQueueStore(b.open(t), WithPrefix("queues/"), WithSessionID("session-a"))

			payload := core.NewQueuePayload("main")
			payload.Entries = []core.JobEntry{testEntry(1, core.StatusPending), testEntry(2, core.StatusRunning)}
			payload.Running = true

			marker, err := s.SaveIf(ctx, payload, 0)
			require.NoError(t, err)
			assert.Positive(t, marker)
			assert.Equal(t, marker, payload.SavedAt)
			assert.Equal(t, "session-a", payload.SavedBy)

			loaded, err := s.Load(ctx, "main")
			require.NoError(t, err)
			assert.Equal(t, marker, loaded.SavedAt)
			assert.Equal(t, "session-a", loaded.SavedBy)
			assert.True(t, loaded.Running)
			assert.Equal(t, int64(3), loaded.NextID)
			require.Len(t, loaded.Entries, 2)
			assert.Equal(t, payload.Entries[1].Status, loaded.Entries[1].Status)
			assert.Equal(t, payload.Entries[0].Params, loaded.Entries[0].Params)
			assert.True(t, payload.Entries[0].SubmittedAt.Equal(loaded.Entries[0].SubmittedAt))
		})
	}
}

func TestBlobQueueStore_Key(t *testing.T) {
	s := NewBlobQueueStore(NewMemoryBlobStore(), WithPrefix("robyn/queues/"))
	assert.Equal(t, "robyn/queues/main.json", s.Key("main"))
}

func TestBlobQueueStore_InvalidName(t *testing.T) {
	ctx := context.Background()
	s := NewBlobQueueStore(NewMemoryBlobStore())

	_, err := s.Load(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, core.ErrInvalidQueueName)

	_, err = s.SaveIf(ctx, &core.QueuePayload{Name: ""}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidQueueName)
}

func TestBlobQueueStore_SaveUnconditional(t *testing.T) {
	ctx := context.Background()
	s := NewBlobQueueStore(NewMemoryBlobStore())

	first, err := s.Save(ctx, "main", []core.JobEntry{testEntry(1, core.StatusPending)}, true)
	require.NoError(t, err)

	second, err := s.Save(ctx, "main", nil, false)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	p, err := s.Load(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
	assert.False(t, p.Running)
	assert.Equal(t, int64(2), p.NextID, "ids are never reused after the entry is gone")
}

// ──────────────────────────────────────────────────────────────────────────────
// Markers
// ──────────────────────────────────────────────────────────────────────────────

func TestBlobQueueStore_MarkerStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	s := NewBlobQueueStore(NewMemoryBlobStore(), WithStoreClock(frozenClock()))

	var last int64
	for range 5 {
		p, err := s.Load(ctx, "main")
		require.NoError(t, err)
		marker, err := s.SaveIf(ctx, p, p.SavedAt)
		require.NoError(t, err)
		assert.Greater(t, marker, last)
		last = marker
	}

	m, err := s.Marker(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, last, m)
}

func TestBlobQueueStore_MarkerAbsent(t *testing.T) {
	s := NewBlobQueueStore(NewMemoryBlobStore())
	m, err := s.Marker(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int64(0), m)
}

func TestBlobQueueStore_SaveIfStale(t *testing.T) {
	for _, b := range blobBackends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			blobs := b.open(t)
			a := NewBlobQueueStore(blobs, WithSessionID("a"))
			other := NewBlobQueueStore(blobs, WithSessionID("b"))

			pa, err := a.Load(ctx, "main")
			require.NoError(t, err)
			pb, err := other.Load(ctx, "main")
			require.NoError(t, err)

			pb.Running = true
			_, err = other.SaveIf(ctx, pb, pb.SavedAt)
			require.NoError(t, err)

			pa.Entries = append(pa.Entries, testEntry(1, core.StatusPending))
			_, err = a.SaveIf(ctx, pa, pa.SavedAt)
			assert.ErrorIs(t, err, core.ErrStaleQueue)
			assert.Equal(t, int64(0), pa.SavedAt, "failed write leaves the local marker alone")

			durable, err := a.Load(ctx, "main")
			require.NoError(t, err)
			assert.True(t, durable.Running)
			assert.Empty(t, durable.Entries)
			assert.Equal(t, "b", durable.SavedBy)
		})
	}
}

func TestBlobQueueStore_RefreshIfStale(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	s := NewBlobQueueStore(blobs)

	p, err := s.Load(ctx, "main")
	require.NoError(t, err)
	_, err = s.SaveIf(ctx, p, 0)
	require.NoError(t, err)

	fresh, changed, err := s.RefreshIfStale(ctx, "main", p.SavedAt)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, fresh)

	other := NewBlobQueueStore(blobs)
	_, err = other.Save(ctx, "main", []core.JobEntry{testEntry(7, core.StatusPending)}, true)
	require.NoError(t, err)

	fresh, changed, err = s.RefreshIfStale(ctx, "main", p.SavedAt)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, fresh)
	require.Len(t, fresh.Entries, 1)
	assert.Equal(t, int64(7), fresh.Entries[0].ID)
}

func TestBlobQueueStore_RepairsNextID(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	require.NoError(t, blobs.Put(ctx, "main.json", []byte(`{"name":"main","entries":[{"id":9,"status":"PENDING"}],"running":false,"saved_at":5}`), 5))

	p, err := NewBlobQueueStore(blobs).Load(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.NextID)
	assert.Equal(t, int64(5), p.SavedAt)
}
