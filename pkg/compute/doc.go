// Package compute adapts an external compute API to the launcher and status
// contracts of the scheduler.
//
// HTTPClient implements both core.Launcher and core.StatusProvider against a
// JSON API:
//
//	POST {base}/executions           start an execution
//	GET  {base}/executions/{handle}  read its state
//
// Provider states are mapped onto the entry state machine by ParseState.
package compute
