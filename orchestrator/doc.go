// Package orchestrator accepts tasks, binds each task kind to an agent and
// runs tasks under a concurrency ceiling.
//
// A task starts once every dependency has completed and a slot is free.
// Pending tasks are picked by priority, then submission order. Each attempt
// races the configured timeout; failed attempts are retried after a linearly
// increasing delay. A timed-out attempt is abandoned, not stopped: its side
// effects may still land after the task has been recorded as failed.
//
// Lifecycle events are delivered synchronously to listeners in emission
// order. Per task the order is submitted, started, zero or more progress
// events, then exactly one of completed, failed or cancelled.
//
// Cancellation never preempts. A pending task can be cancelled; a running
// task cannot, and CancelTask reports false for it.
package orchestrator
