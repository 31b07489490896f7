package core

import "time"

// EventType enumerates task lifecycle events.
type EventType uint8

const (
	EventTaskSubmitted EventType = iota + 1
	EventTaskStarted
	EventTaskProgress
	EventTaskCompleted
	EventTaskFailed
	EventTaskCancelled
)

// String returns the wire name, e.g. "task:completed".
func (t EventType) String() string {
	switch t {
	case EventTaskSubmitted:
		return "task:submitted"
	case EventTaskStarted:
		return "task:started"
	case EventTaskProgress:
		return "task:progress"
	case EventTaskCompleted:
		return "task:completed"
	case EventTaskFailed:
		return "task:failed"
	case EventTaskCancelled:
		return "task:cancelled"
	default:
		return "task:unknown"
	}
}

// Terminal reports whether the event closes a task's event stream.
func (t EventType) Terminal() bool {
	return t == EventTaskCompleted || t == EventTaskFailed || t == EventTaskCancelled
}

// Event is delivered to listeners once per transition. Result is set on
// completed and failed events; Err on failed; Percent and Message on progress.
// After emission it should be treated as immutable.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	Timestamp time.Time   `json:"timestamp"`
	Result    *TaskResult `json:"result,omitempty"`
	Err       error       `json:"-"`
	Percent   int         `json:"percent,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// NewEvent creates an event for taskID stamped with the current UTC time.
func NewEvent(t EventType, taskID string) Event {
	return Event{ID: NewID(), Type: t, TaskID: taskID, Timestamp: time.Now().UTC()}
}
