// Package queue provides the Queue type, the submission API of a named training queue.
//
// This package includes:
//   - Queue: enqueue, delete, retry, cancel and start/stop operations over a
//     durable core.QueueStore, with history-based deduplication
//   - Option: configuration for a Queue
//   - Hook registration for entry lifecycle events
//   - Event subscription for monitoring
//
// Every mutation reloads the durable payload, applies the change and writes it
// back conditionally, retrying when another session wrote in between.
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// which re-exports Queue and all option functions.
package queue
