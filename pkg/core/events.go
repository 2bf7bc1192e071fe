package core

import "time"

// Event is the interface for all queue events.
type Event interface {
	eventMarker()
}

// EntryEnqueued is emitted when a submitted row is accepted into the queue.
type EntryEnqueued struct {
	Queue     string
	Entry     JobEntry
	Timestamp time.Time
}

func (*EntryEnqueued) eventMarker() {}

// EntryRejected is emitted for every submitted row that did not enter the queue.
type EntryRejected struct {
	Queue     string
	Rejection Rejection
	Timestamp time.Time
}

func (*EntryRejected) eventMarker() {}

// EntryDeleted is emitted when a user removes an entry.
type EntryDeleted struct {
	Queue     string
	Entry     JobEntry
	Timestamp time.Time
}

func (*EntryDeleted) eventMarker() {}

// EntryLaunched is emitted when the launcher accepted a leased entry.
type EntryLaunched struct {
	Queue     string
	Entry     JobEntry
	Timestamp time.Time
}

func (*EntryLaunched) eventMarker() {}

// EntryLaunchFailed is emitted when the launcher call failed.
type EntryLaunchFailed struct {
	Queue     string
	Entry     JobEntry
	Error     error
	Timestamp time.Time
}

func (*EntryLaunchFailed) eventMarker() {}

// EntryArchived is emitted when a terminated entry moves to history.
type EntryArchived struct {
	Queue     string
	Record    HistoryRecord
	Timestamp time.Time
}

func (*EntryArchived) eventMarker() {}

// QueueStateChanged is emitted after every successful save.
type QueueStateChanged struct {
	Queue     string
	Running   bool
	Counts    map[EntryStatus]int
	SavedAt   int64
	Timestamp time.Time
}

func (*QueueStateChanged) eventMarker() {}
