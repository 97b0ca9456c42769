// Package queue provides the lane dispatcher that drives asynchronous job
// execution. Each lane owns a bounded worker pool; tasks submitted to a lane
// run with a per-task timeout and at-least-once semantics. Handler failures
// are logged and counted per lane, never silently swallowed.
package queue
