// Package core provides the domain models and interfaces for the training queue.
package core

import (
	"time"
)

// EntryStatus represents the current state of a queue entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusLaunching EntryStatus = "LAUNCHING" // Leased, launcher call in flight
	StatusRunning   EntryStatus = "RUNNING"
	StatusSucceeded EntryStatus = "SUCCEEDED"
	StatusFailed    EntryStatus = "FAILED"
	StatusCancelled EntryStatus = "CANCELLED"
	StatusError     EntryStatus = "ERROR" // Launcher call itself failed
)

// Statuses lists every EntryStatus in lifecycle order.
var Statuses = []EntryStatus{
	StatusPending, StatusLaunching, StatusRunning,
	StatusSucceeded, StatusFailed, StatusCancelled, StatusError,
}

// TimestampLayout is the format of JobEntry.Timestamp. It is path-safe so it
// can be embedded in output locations.
const TimestampLayout = "20060102_150405"

// IsTerminal reports whether the status ends an entry's lifecycle.
func (s EntryStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusError:
		return true
	}
	return false
}

// IsActive reports whether an external execution may exist for the entry.
// Active entries can never be deleted.
func (s EntryStatus) IsActive() bool {
	return s == StatusLaunching || s == StatusRunning
}

// IsDeletable reports whether the entry may be removed by a user.
func (s EntryStatus) IsDeletable() bool {
	switch s {
	case StatusPending, StatusError, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// IsCompleted reports whether a history record in this state suppresses
// resubmission of the same parameters.
func (s EntryStatus) IsCompleted() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CompletedStatuses returns the statuses for which IsCompleted holds.
func CompletedStatuses() []EntryStatus {
	var out []EntryStatus
	for _, s := range Statuses {
		if s.IsCompleted() {
			out = append(out, s)
		}
	}
	return out
}

// JobEntry is one element of the queue.
type JobEntry struct {
	ID              int64       `json:"id"`
	Params          JobParams   `json:"params"`
	Signature       string      `json:"signature"`
	Status          EntryStatus `json:"status"`
	Timestamp       string      `json:"timestamp,omitempty"`
	ExecutionHandle string      `json:"execution_handle,omitempty"`
	OutputLocation  string      `json:"output_location,omitempty"`
	Message         string      `json:"message,omitempty"`
	SubmittedAt     time.Time   `json:"submitted_at"`
}

// LaunchedAt parses Timestamp. ok is false when no launch was attempted or the
// value is malformed.
func (e *JobEntry) LaunchedAt() (t time.Time, ok bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, e.Timestamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// QueuePayload is the unit of durable persistence for one named queue.
type QueuePayload struct {
	Name    string     `json:"name"`
	Entries []JobEntry `json:"entries"`
	Running bool       `json:"running"`
	SavedAt int64      `json:"saved_at"`
	SavedBy string     `json:"saved_by,omitempty"`
	NextID  int64      `json:"next_id"`
}

// NewQueuePayload returns the empty state of a queue that has never been saved.
func NewQueuePayload(name string) *QueuePayload {
	return &QueuePayload{Name: name, Entries: []JobEntry{}, NextID: 1}
}

// Find returns the entry with the given id, or nil.
func (p *QueuePayload) Find(id int64) *JobEntry {
	for i := range p.Entries {
		if p.Entries[i].ID == id {
			return &p.Entries[i]
		}
	}
	return nil
}

// NextPending returns the PENDING entry with the lowest id, or nil.
func (p *QueuePayload) NextPending() *JobEntry {
	var next *JobEntry
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.Status != StatusPending {
			continue
		}
		if next == nil || e.ID < next.ID {
			next = e
		}
	}
	return next
}

// Remove drops the entry with the given id. It reports whether it was present.
func (p *QueuePayload) Remove(id int64) bool {
	for i := range p.Entries {
		if p.Entries[i].ID == id {
			p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Allocate returns a fresh entry id. Ids are never reused within a queue.
func (p *QueuePayload) Allocate() int64 {
	if p.NextID < 1 {
		p.NextID = 1
	}
	for _, e := range p.Entries {
		if e.ID >= p.NextID {
			p.NextID = e.ID + 1
		}
	}
	id := p.NextID
	p.NextID++
	return id
}

// CountByStatus tallies entries per status.
func (p *QueuePayload) CountByStatus() map[EntryStatus]int {
	counts := make(map[EntryStatus]int)
	for _, e := range p.Entries {
		counts[e.Status]++
	}
	return counts
}

// Clone returns a deep copy so callers can mutate without touching a cached
// payload.
func (p *QueuePayload) Clone() *QueuePayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Entries = make([]JobEntry, len(p.Entries))
	copy(c.Entries, p.Entries)
	return &c
}
