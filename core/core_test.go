package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskKind_RoundTripNames(t *testing.T) {
	for _, k := range TaskKinds() {
		parsed, err := ParseTaskKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	k, err := ParseTaskKind("Code_Generation")
	assert.NoError(t, err)
	assert.Equal(t, TaskKindCodeGeneration, k)

	_, err = ParseTaskKind("juggling")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, TaskKindUnknown.Valid())
}

func TestAgentKindFor_IsTotal(t *testing.T) {
	seen := map[AgentKind]bool{}
	for _, k := range TaskKinds() {
		ak := AgentKindFor(k)
		assert.True(t, ak.Valid(), "task kind %s has no agent", k)
		seen[ak] = true
	}
	assert.Len(t, seen, len(AgentKinds()))
	assert.Equal(t, AgentKindUnknown, AgentKindFor(TaskKind(200)))
}

func TestTaskKind_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Kind TaskKind `json:"kind"`
	}{TaskKindSecurity})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"security"}`, string(b))

	var out struct {
		Kind AgentKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"security-scanner"}`), &out))
	assert.Equal(t, AgentKindSecurityScanner, out.Kind)
}

func TestKinds_ZeroValueRoundTrips(t *testing.T) {
	b, err := json.Marshal(&Task{ID: "t"})
	require.NoError(t, err)

	var task Task
	require.NoError(t, json.Unmarshal(b, &task))
	assert.Equal(t, TaskKindUnknown, task.Kind)

	b, err = json.Marshal(AgentConfig{ID: "a"})
	require.NoError(t, err)

	var cfg AgentConfig
	require.NoError(t, json.Unmarshal(b, &cfg))
	assert.Equal(t, AgentKindUnknown, cfg.Kind)
	assert.Error(t, cfg.Validate())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","kind":""}`), &cfg))
	assert.Equal(t, AgentKindUnknown, cfg.Kind)

	_, err = ParseTaskKind("unknown")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"juggling"}`), &task))
}

func TestTask_TransitionForwardOnly(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Status: TaskStatusPending}

	assert.Error(t, task.Transition(TaskStatusCompleted, now), "must not skip in_progress")
	require.NoError(t, task.Transition(TaskStatusInProgress, now))
	assert.NotNil(t, task.StartedAt)
	assert.Error(t, task.Transition(TaskStatusPending, now))
	assert.Error(t, task.Transition(TaskStatusCancelled, now), "running tasks cannot be cancelled")
	require.NoError(t, task.Transition(TaskStatusFailed, now))
	assert.NotNil(t, task.CompletedAt)

	for _, next := range []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled} {
		err := task.Transition(next, now)
		assert.True(t, errors.Is(err, ErrConflict))
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	orig := &Task{
		ID:           "t1",
		Dependencies: []string{"a"},
		Context:      TaskContext{Files: []FileContext{{Path: "main.go"}}, Metadata: map[string]string{"k": "v"}},
		Result:       &TaskResult{Errors: []string{"x"}, Artifacts: []Artifact{{Path: "p", Metadata: map[string]string{"a": "b"}}}},
	}
	cp := orig.Clone()
	cp.Dependencies[0] = "changed"
	cp.Context.Files[0].Path = "changed"
	cp.Context.Metadata["k"] = "changed"
	cp.Result.Errors[0] = "changed"
	cp.Result.Artifacts[0].Metadata["a"] = "changed"

	assert.Equal(t, "a", orig.Dependencies[0])
	assert.Equal(t, "main.go", orig.Context.Files[0].Path)
	assert.Equal(t, "v", orig.Context.Metadata["k"])
	assert.Equal(t, "x", orig.Result.Errors[0])
	assert.Equal(t, "b", orig.Result.Artifacts[0].Metadata["a"])
}

type notePayload struct {
	Note string `json:"note"`
}

func (notePayload) PayloadKind() string { return "note" }

func TestTaskResult_PayloadEnvelope(t *testing.T) {
	res := NewTaskResult()
	res.Success = true
	res.Output = notePayload{Note: "hello"}

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded TaskResult
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, decoded.Success)

	raw, ok := decoded.Output.(RawPayload)
	require.True(t, ok)
	assert.Equal(t, "note", raw.PayloadKind())

	var note notePayload
	require.NoError(t, raw.Decode(&note))
	assert.Equal(t, "hello", note.Note)
}

func TestError_KindMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("op", "tool", "x"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.False(t, IsRetryable(err))

	assert.True(t, IsRetryable(NewTimeoutError("op", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(errors.New("plain failure")))
	assert.False(t, IsRetryable(nil))

	v := NewValidationError("tool.Execute", "invalid arguments", "path is required", "mode must be one of [r w]")
	assert.Contains(t, v.Error(), "path is required")
	assert.Contains(t, v.Error(), "mode must be one of")
	assert.True(t, errors.Is(ErrAgentShutDown, ErrAgentShutDown))
}

func TestCallBudget(t *testing.T) {
	b := NewCallBudget(2)
	assert.NoError(t, b.Increment())
	assert.NoError(t, b.Increment())
	assert.Equal(t, 0, b.Remaining())
	assert.True(t, errors.Is(b.Increment(), ErrExecution))
	assert.Equal(t, 2, b.Count())

	unlimited := NewCallBudget(0)
	for i := 0; i < 10; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestReportProgress(t *testing.T) {
	var got []int
	ctx := WithProgress(context.Background(), func(p int, _ string) { got = append(got, p) })
	ReportProgress(ctx, -5, "")
	ReportProgress(ctx, 50, "half")
	ReportProgress(ctx, 150, "")
	ReportProgress(context.Background(), 10, "ignored")
	assert.Equal(t, []int{0, 50, 100}, got)
}

func TestAgentConfig_Validate(t *testing.T) {
	err := AgentConfig{Kind: AgentKindUnknown, Temperature: 3}.Validate()
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Len(t, e.Details, 3)

	cfg := AgentConfig{ID: "coder", Kind: AgentKindCodeGenerator, Tools: []string{"file_write"}}
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Allows("file_write"))
	assert.False(t, cfg.Allows("shell_exec"))
}
