package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryStatus_Values(t *testing.T) {
	assert.Equal(t, EntryStatus("PENDING"), StatusPending)
	assert.Equal(t, EntryStatus("LAUNCHING"), StatusLaunching)
	assert.Equal(t, EntryStatus("RUNNING"), StatusRunning)
	assert.Equal(t, EntryStatus("SUCCEEDED"), StatusSucceeded)
	assert.Equal(t, EntryStatus("FAILED"), StatusFailed)
	assert.Equal(t, EntryStatus("CANCELLED"), StatusCancelled)
	assert.Equal(t, EntryStatus("ERROR"), StatusError)
}

func TestEntryStatus_Classification(t *testing.T) {
	tests := []struct {
		status    EntryStatus
		terminal  bool
		active    bool
		deletable bool
		completed bool
	}{
		{StatusPending, false, false, true, false},
		{StatusLaunching, false, true, false, false},
		{StatusRunning, false, true, false, false},
		{StatusSucceeded, true, false, false, true},
		{StatusFailed, true, false, true, true},
		{StatusCancelled, true, false, true, false},
		{StatusError, true, false, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.deletable, tt.status.IsDeletable())
			assert.Equal(t, tt.completed, tt.status.IsCompleted())
		})
	}
	assert.Len(t, Statuses, len(tests))
}

func TestCompletedStatuses(t *testing.T) {
	assert.Equal(t, []EntryStatus{StatusSucceeded, StatusFailed}, CompletedStatuses())
}

func TestJobParams_HasDataSource(t *testing.T) {
	assert.False(t, JobParams{Country: "us"}.HasDataSource())
	assert.True(t, JobParams{Query: "select 1"}.HasDataSource())
	assert.True(t, JobParams{Table: "proj.ds.t"}.HasDataSource())
	assert.True(t, JobParams{DataPath: "gs://b/data.csv"}.HasDataSource())

	assert.Equal(t, "query", JobParams{Query: "q", Table: "t"}.DataSourceKind())
	assert.Equal(t, "", JobParams{}.DataSourceKind())
}

func TestJobEntry_LaunchedAt(t *testing.T) {
	e := &JobEntry{}
	_, ok := e.LaunchedAt()
	assert.False(t, ok)

	e.Timestamp = "20240301_093000"
	ts, ok := e.LaunchedAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), ts)

	e.Timestamp = "yesterday"
	_, ok = e.LaunchedAt()
	assert.False(t, ok)
}

func TestQueuePayload_NextPending(t *testing.T) {
	p := NewQueuePayload("default")
	assert.Nil(t, p.NextPending())

	p.Entries = []JobEntry{
		{ID: 5, Status: StatusPending},
		{ID: 2, Status: StatusRunning},
		{ID: 3, Status: StatusPending},
	}
	next := p.NextPending()
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID)
}

func TestQueuePayload_AllocateNeverReuses(t *testing.T) {
	p := NewQueuePayload("default")
	id1 := p.Allocate()
	p.Entries = append(p.Entries, JobEntry{ID: id1})
	id2 := p.Allocate()
	p.Entries = append(p.Entries, JobEntry{ID: id2})

	require.True(t, p.Remove(id2))
	id3 := p.Allocate()

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	assert.Equal(t, int64(3), id3, "removed ids must not be handed out again")
}

func TestQueuePayload_AllocateSkipsPastExistingIDs(t *testing.T) {
	p := &QueuePayload{Entries: []JobEntry{{ID: 9}}}
	assert.Equal(t, int64(10), p.Allocate())
}

func TestQueuePayload_CloneIsIndependent(t *testing.T) {
	p := NewQueuePayload("default")
	p.Entries = append(p.Entries, JobEntry{ID: 1, Status: StatusPending})

	c := p.Clone()
	c.Entries[0].Status = StatusRunning
	c.Running = true

	assert.Equal(t, StatusPending, p.Entries[0].Status)
	assert.False(t, p.Running)
	assert.Equal(t, map[EntryStatus]int{StatusRunning: 1}, c.CountByStatus())
}
