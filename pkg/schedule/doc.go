// Package schedule decides when a queue is ticked.
//
// This package includes:
//   - Schedule interface
//   - Every() for fixed-interval triggers
//   - Cron() for cron expression triggers
//   - Parse() for configuration strings ("30s", "@every 1m", "*/5 * * * *")
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// which re-exports these functions.
package schedule
