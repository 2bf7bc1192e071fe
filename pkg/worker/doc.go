// Package worker provides the Runner, an external periodic trigger for a
// queue's scheduler.
//
// The scheduler never runs on its own. A Runner calls Tick whenever its
// schedule fires, retrying transient storage failures with backoff and
// releasing stuck launches first when configured to.
//
// Most users should import the root package github.com/jdziat/durable-training-queue
// which re-exports the runner options.
package worker
