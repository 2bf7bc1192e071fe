// Package core provides the fundamental types and interfaces for the training queue.
//
// This package contains:
//   - JobParams, JobEntry and QueuePayload, the queue's durable state
//   - HistoryRecord, the append-only log row for terminated jobs
//   - QueueStore, HistoryStore, Launcher and StatusProvider contracts
//   - Event types for queue monitoring
//   - Error types and rejection reasons
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// instead of this package directly.
package core
