// Package security provides validation, sanitization, and limits for the training queue.
//
// This package includes:
//   - Queue name validation (names become object keys in the durable store)
//   - Batch and payload size limits
//   - Error message sanitization before messages are persisted on entries
//   - Clamping for optimistic write retries
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// which re-exports these functions.
package security
