package core

import (
	"fmt"
	"strings"
	"time"
)

// TaskKind enumerates the closed set of work categories the orchestrator can
// dispatch. The zero value is TaskKindUnknown and is rejected on submission.
type TaskKind uint8

const (
	// TaskKindUnknown marks a missing or unparseable kind.
	TaskKindUnknown TaskKind = iota
	// TaskKindPlanning breaks a goal into ordered steps.
	TaskKindPlanning
	// TaskKindResearch gathers background information.
	TaskKindResearch
	// TaskKindCodeGeneration produces source files.
	TaskKindCodeGeneration
	// TaskKindTesting produces and optionally runs tests.
	TaskKindTesting
	// TaskKindPackaging produces build and distribution manifests.
	TaskKindPackaging
	// TaskKindReview reviews existing code.
	TaskKindReview
	// TaskKindSecurity scans for vulnerabilities and secrets.
	TaskKindSecurity
	// TaskKindDocumentation writes documentation.
	TaskKindDocumentation

	numTaskKinds
)

var taskKindNames = [...]string{
	TaskKindUnknown:        "unknown",
	TaskKindPlanning:       "planning",
	TaskKindResearch:       "research",
	TaskKindCodeGeneration: "code-generation",
	TaskKindTesting:        "testing",
	TaskKindPackaging:      "packaging",
	TaskKindReview:         "review",
	TaskKindSecurity:       "security",
	TaskKindDocumentation:  "documentation",
}

// taskKindNames must cover every TaskKind; a missing entry makes one of these
// array lengths negative and fails compilation.
var (
	_ [len(taskKindNames) - int(numTaskKinds)]struct{}
	_ [int(numTaskKinds) - len(taskKindNames)]struct{}
)

// String returns the canonical wire name of the kind.
func (k TaskKind) String() string {
	if int(k) < len(taskKindNames) {
		return taskKindNames[k]
	}
	return fmt.Sprintf("TaskKind(%d)", uint8(k))
}

// Valid reports whether k is one of the dispatchable kinds.
func (k TaskKind) Valid() bool {
	return k > TaskKindUnknown && k < numTaskKinds
}

// MarshalText implements encoding.TextMarshaler.
func (k TaskKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The zero kind round
// trips as "unknown" (or empty); rejecting it is left to validation.
func (k *TaskKind) UnmarshalText(b []byte) error {
	if isUnknownName(string(b)) {
		*k = TaskKindUnknown
		return nil
	}
	parsed, err := ParseTaskKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func isUnknownName(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "unknown")
}

// ParseTaskKind resolves a wire name (case-insensitive, '_' accepted for '-').
func ParseTaskKind(s string) (TaskKind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, name := range taskKindNames {
		if TaskKind(i) != TaskKindUnknown && name == norm {
			return TaskKind(i), nil
		}
	}
	return TaskKindUnknown, NewValidationError("core.ParseTaskKind", fmt.Sprintf("unknown task kind %q", s))
}

// TaskKinds returns every dispatchable kind in declaration order.
func TaskKinds() []TaskKind {
	kinds := make([]TaskKind, 0, numTaskKinds-1)
	for k := TaskKindPlanning; k < numTaskKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Priority orders pending tasks; higher priorities are scheduled first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank maps the priority onto an integer scale (critical highest).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// CanTransition reports whether moving from s to next is a forward lifecycle step.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a unit of work tracked by the orchestrator.
type Task struct {
	ID           string      `json:"id"`
	Description  string      `json:"description"`
	Kind         TaskKind    `json:"kind"`
	Priority     Priority    `json:"priority"`
	Status       TaskStatus  `json:"status"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Context      TaskContext `json:"context"`
	Result       *TaskResult `json:"result,omitempty"`
	Attempts     int         `json:"attempts"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// Transition moves the task to next, stamping timestamps. It refuses any
// step that is not a forward lifecycle move.
func (t *Task) Transition(next TaskStatus, now time.Time) error {
	if !t.Status.CanTransition(next) {
		return &Error{
			Kind:    KindConflict,
			Op:      "core.Task.Transition",
			Message: fmt.Sprintf("task %s cannot move from %s to %s", t.ID, t.Status, next),
		}
	}
	t.Status = next
	t.UpdatedAt = now
	switch {
	case next == TaskStatusInProgress:
		t.StartedAt = &now
	case next.Terminal():
		t.CompletedAt = &now
	}
	return nil
}

// Clone returns a deep copy safe to hand out to callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Dependencies = append([]string(nil), t.Dependencies...)
	cp.Context = t.Context.Clone()
	if t.Result != nil {
		cp.Result = t.Result.Clone()
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}
