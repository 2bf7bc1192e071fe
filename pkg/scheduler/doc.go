// Package scheduler implements the tick-driven state machine of a training queue.
//
// Entries move PENDING → LAUNCHING → RUNNING → {SUCCEEDED | FAILED |
// CANCELLED | ERROR}. There is no background process: something outside
// (a user action, cron, or worker.Runner) calls Tick, and each call leases at
// most one entry, polls running executions and archives finished ones.
//
// Conditional writes are on by default, so two sessions ticking the same
// queue cannot both launch the same entry: the slower one fails its lease
// with core.ErrStaleQueue and launches nothing.
package scheduler
