package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achintir-projects/elite-ai-agent/agent"
	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/internal/testutil"
	"github.com/achintir-projects/elite-ai-agent/memory"
)

func newOrchestrator(t *testing.T, fns ...func(o *Options)) *Orchestrator {
	t.Helper()
	base := func(o *Options) {
		o.RetryDelay = time.Millisecond
		o.TaskTimeout = 2 * time.Second
	}
	o := New(append([]func(o *Options){base}, fns...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func bind(t *testing.T, o *Orchestrator, kind core.AgentKind, fn testutil.StubFunc) *testutil.StubAgent {
	t.Helper()
	a := testutil.NewStubAgent(kind, fn)
	require.NoError(t, o.BindAgent(context.Background(), a))
	return a
}

func submit(t *testing.T, o *Orchestrator, desc string, fns ...func(r *SubmitRequest)) string {
	t.Helper()
	req := SubmitRequest{Description: desc, Kind: core.TaskKindPlanning}
	for _, fn := range fns {
		fn(&req)
	}
	id, err := o.Submit(req)
	require.NoError(t, err)
	return id
}

func waitFor(t *testing.T, o *Orchestrator, id string) *core.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := o.Wait(ctx, id)
	require.NoError(t, err)
	return task
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) OnEvent(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types(taskID string) []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.EventType
	for _, e := range r.events {
		if e.TaskID == taskID {
			out = append(out, e.Type)
		}
	}
	return out
}

func (r *recorder) last(taskID string) core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].TaskID == taskID {
			return r.events[i]
		}
	}
	return core.Event{}
}

func countAction(log []core.AuditEntry, action string) int {
	n := 0
	for _, e := range log {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestSubmit_Validation(t *testing.T) {
	o := newOrchestrator(t)

	cases := []SubmitRequest{
		{Kind: core.TaskKindPlanning},
		{Description: "x", Kind: core.TaskKind(99)},
		{Description: "x", Kind: core.TaskKindPlanning, Priority: "urgent"},
		{Description: "x", Kind: core.TaskKindPlanning, Dependencies: []string{"ghost"}},
	}
	for _, req := range cases {
		_, err := o.Submit(req)
		assert.ErrorIs(t, err, core.ErrValidation)
	}
	assert.Equal(t, 0, o.Stats().Total)

	o2 := newOrchestrator(t, func(o *Options) { o.MaxConcurrentTasks = 1 })
	release := make(chan struct{})
	defer close(release)
	bind(t, o2, core.AgentKindPlanner, testutil.Block(release))
	id := submit(t, o2, "default priority")
	task, err := o2.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, core.PriorityMedium, task.Priority)

	_, err = o2.Submit(SubmitRequest{ID: id, Description: "dup", Kind: core.TaskKindPlanning})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = o2.GetTask("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTask_Completes(t *testing.T) {
	o := newOrchestrator(t)
	rec := &recorder{}
	o.SubscribeAll(rec)
	a := bind(t, o, core.AgentKindPlanner, testutil.Succeed("planned"))

	id := submit(t, o, "plan the service")
	task := waitFor(t, o, id)

	assert.Equal(t, core.TaskStatusCompleted, task.Status)
	assert.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.Result)
	assert.True(t, task.Result.Success)
	assert.Equal(t, testutil.Note("planned"), task.Result.Output)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.CompletedAt)
	assert.False(t, task.CompletedAt.Before(*task.StartedAt))
	assert.Equal(t, 1, a.Calls(id))

	require.Len(t, task.Result.AuditLog, 2)
	assert.Equal(t, "execute_attempt", task.Result.AuditLog[0].Action)
	assert.Equal(t, "task_completed", task.Result.AuditLog[1].Action)
	assert.Equal(t, a.ID(), task.Result.AuditLog[1].AgentID)

	assert.Equal(t, []core.EventType{core.EventTaskSubmitted, core.EventTaskStarted, core.EventTaskCompleted}, rec.types(id))
	done := rec.last(id)
	require.NotNil(t, done.Result)
	assert.True(t, done.Result.Success)
	assert.NoError(t, done.Err)

	all, err := o.GetAllTasks()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, Stats{Total: 1, Completed: 1}, o.Stats())
}

func TestTask_ProgressEventsPrecedeTerminal(t *testing.T) {
	o := newOrchestrator(t)
	rec := &recorder{}
	o.SubscribeAll(rec)
	bind(t, o, core.AgentKindPlanner, func(ctx context.Context, _ *core.Task, _ int) (*core.TaskResult, error) {
		core.ReportProgress(ctx, 50, "halfway")
		return testutil.Done("ok"), nil
	})

	id := submit(t, o, "report progress")
	waitFor(t, o, id)

	assert.Equal(t, []core.EventType{
		core.EventTaskSubmitted, core.EventTaskStarted, core.EventTaskProgress, core.EventTaskCompleted,
	}, rec.types(id))
}

func TestDependencies_WaitForCompletion(t *testing.T) {
	o := newOrchestrator(t)
	bind(t, o, core.AgentKindPlanner, func(context.Context, *core.Task, int) (*core.TaskResult, error) {
		time.Sleep(20 * time.Millisecond)
		return testutil.Done("ok"), nil
	})

	var (
		mu         sync.Mutex
		violations []string
	)
	o.SubscribeAll(ListenerFunc(func(e core.Event) {
		if e.Type != core.EventTaskStarted {
			return
		}
		task, err := o.GetTask(e.TaskID)
		if err != nil {
			return
		}
		for _, d := range task.Dependencies {
			dep, _ := o.GetTask(d)
			if dep == nil || dep.Status != core.TaskStatusCompleted {
				mu.Lock()
				violations = append(violations, e.TaskID+" started before "+d)
				mu.Unlock()
			}
		}
	}))

	a := submit(t, o, "a")
	b := submit(t, o, "b", func(r *SubmitRequest) { r.Dependencies = []string{a} })
	c := submit(t, o, "c", func(r *SubmitRequest) { r.Dependencies = []string{a, b} })

	tc := waitFor(t, o, c)
	ta := waitFor(t, o, a)
	tb := waitFor(t, o, b)

	assert.Equal(t, core.TaskStatusCompleted, tc.Status)
	assert.False(t, tb.StartedAt.Before(*ta.CompletedAt))
	assert.False(t, tc.StartedAt.Before(*tb.CompletedAt))
	mu.Lock()
	assert.Empty(t, violations)
	mu.Unlock()
}

func TestConcurrencyCeiling(t *testing.T) {
	const k = 2
	o := newOrchestrator(t, func(o *Options) { o.MaxConcurrentTasks = k })
	a := bind(t, o, core.AgentKindPlanner, func(context.Context, *core.Task, int) (*core.TaskResult, error) {
		time.Sleep(15 * time.Millisecond)
		return testutil.Done("ok"), nil
	})

	var (
		mu      sync.Mutex
		maxSeen int
	)
	o.SubscribeAll(ListenerFunc(func(e core.Event) {
		running := o.Stats().Running
		mu.Lock()
		if running > maxSeen {
			maxSeen = running
		}
		mu.Unlock()
	}))

	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, submit(t, o, "work"))
	}
	for _, id := range ids {
		assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, id).Status)
	}

	assert.LessOrEqual(t, a.Peak(), k)
	mu.Lock()
	assert.LessOrEqual(t, maxSeen, k)
	mu.Unlock()
}

func TestScheduler_PicksUpPendingWhenSlotFrees(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.MaxConcurrentTasks = 3 })
	release := make(chan struct{})
	bind(t, o, core.AgentKindPlanner, testutil.Block(release))

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, submit(t, o, "blocked"))
	}
	require.Eventually(t, func() bool { return o.Stats().Running == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, o.Stats().Pending)

	fourth, err := o.GetTask(ids[3])
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusPending, fourth.Status)

	release <- struct{}{}
	require.Eventually(t, func() bool {
		s := o.Stats()
		return s.Completed == 1 && s.Running == 3 && s.Pending == 0
	}, time.Second, 5*time.Millisecond)

	close(release)
	for _, id := range ids {
		assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, id).Status)
	}
}

func TestScheduler_PriorityOrder(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.MaxConcurrentTasks = 1 })
	release := make(chan struct{})
	a := bind(t, o, core.AgentKindPlanner, func(ctx context.Context, task *core.Task, _ int) (*core.TaskResult, error) {
		if task.Description == "blocker" {
			<-release
		}
		return testutil.Done(task.Description), nil
	})

	blocker := submit(t, o, "blocker")
	require.Eventually(t, func() bool { return o.Stats().Running == 1 }, time.Second, 5*time.Millisecond)

	pri := func(p core.Priority) func(r *SubmitRequest) { return func(r *SubmitRequest) { r.Priority = p } }
	low := submit(t, o, "low", pri(core.PriorityLow))
	crit := submit(t, o, "critical", pri(core.PriorityCritical))
	med := submit(t, o, "medium", pri(core.PriorityMedium))
	high := submit(t, o, "high", pri(core.PriorityHigh))
	med2 := submit(t, o, "medium-2", pri(core.PriorityMedium))

	close(release)
	waitFor(t, o, low)

	assert.Equal(t, []string{blocker, crit, high, med, med2, low}, a.Order())
}

func TestRetry_ThenSuccess(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.MaxRetries = 3 })
	flaky := core.NewExecutionError("stub", errors.New("flaky backend"))
	a := bind(t, o, core.AgentKindPlanner, testutil.FailFirst(2, flaky))

	id := submit(t, o, "flaky")
	task := waitFor(t, o, id)

	assert.Equal(t, core.TaskStatusCompleted, task.Status)
	assert.Equal(t, 3, task.Attempts)
	assert.Equal(t, 3, a.Calls(id))
	assert.Equal(t, 3, countAction(task.Result.AuditLog, "execute_attempt"))
	assert.Empty(t, task.Result.Errors)
}

func TestRetry_Exhausted(t *testing.T) {
	const delay = 10 * time.Millisecond
	o := newOrchestrator(t, func(o *Options) {
		o.MaxRetries = 2
		o.RetryDelay = delay
	})
	rec := &recorder{}
	o.SubscribeAll(rec)
	a := bind(t, o, core.AgentKindPlanner, testutil.FailFirst(100, errors.New("always broken")))

	start := time.Now()
	id := submit(t, o, "doomed")
	task := waitFor(t, o, id)
	elapsed := time.Since(start)

	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, 3, task.Attempts)
	assert.Equal(t, 3, a.Calls(id))
	assert.GreaterOrEqual(t, elapsed, delay+2*delay)
	require.NotNil(t, task.Result)
	assert.False(t, task.Result.Success)
	assert.NotEmpty(t, task.Result.Errors)
	assert.Equal(t, 1, countAction(task.Result.AuditLog, "task_failed"))

	failed := rec.last(id)
	assert.Equal(t, core.EventTaskFailed, failed.Type)
	assert.Error(t, failed.Err)
	require.NotNil(t, failed.Result)
	assert.NotEmpty(t, failed.Result.Errors)
}

func TestRetry_SkipsNonRetryable(t *testing.T) {
	o := newOrchestrator(t)
	a := bind(t, o, core.AgentKindPlanner, testutil.FailFirst(100, core.NewValidationError("stub", "bad input")))

	id := submit(t, o, "invalid")
	task := waitFor(t, o, id)

	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, 1, a.Calls(id))
}

func TestRetry_Disabled(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.EnableRetry = false })
	a := bind(t, o, core.AgentKindPlanner, testutil.FailFirst(1, errors.New("once")))

	id := submit(t, o, "no retry")
	assert.Equal(t, core.TaskStatusFailed, waitFor(t, o, id).Status)
	assert.Equal(t, 1, a.Calls(id))
}

func TestTimeout_AbandonsAttempt(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) {
		o.TaskTimeout = 20 * time.Millisecond
		o.EnableRetry = false
	})
	rec := &recorder{}
	o.SubscribeAll(rec)
	bind(t, o, core.AgentKindPlanner, func(context.Context, *core.Task, int) (*core.TaskResult, error) {
		time.Sleep(300 * time.Millisecond)
		return testutil.Done("late"), nil
	})

	start := time.Now()
	id := submit(t, o, "slow")
	task := waitFor(t, o, id)

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.ErrorIs(t, rec.last(id).Err, core.ErrTimeout)
}

func TestMissingAgent_FailsImmediately(t *testing.T) {
	o := newOrchestrator(t)
	rec := &recorder{}
	o.SubscribeAll(rec)

	id := submit(t, o, "nobody home", func(r *SubmitRequest) { r.Kind = core.TaskKindSecurity })
	task := waitFor(t, o, id)

	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Equal(t, 0, task.Attempts)
	assert.ErrorIs(t, rec.last(id).Err, core.ErrConfiguration)
	assert.Contains(t, task.Result.Errors[0], "security-scanner")
}

func TestCancelTask(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.MaxConcurrentTasks = 1 })
	rec := &recorder{}
	o.SubscribeAll(rec)
	release := make(chan struct{})
	a := bind(t, o, core.AgentKindPlanner, testutil.Block(release))

	running := submit(t, o, "running")
	require.Eventually(t, func() bool { return o.Stats().Running == 1 }, time.Second, 5*time.Millisecond)
	pending := submit(t, o, "pending")
	dependent := submit(t, o, "dependent", func(r *SubmitRequest) { r.Dependencies = []string{pending} })

	ok, err := o.CancelTask(pending)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.CancelTask(pending)
	require.NoError(t, err)
	assert.True(t, ok, "cancelling twice is idempotent")

	ok, err = o.CancelTask(running)
	require.NoError(t, err)
	assert.False(t, ok, "running tasks are not preempted")

	_, err = o.CancelTask("ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	dep, err := o.GetTask(dependent)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCancelled, dep.Status)
	assert.Contains(t, rec.last(dependent).Message, pending)
	assert.Equal(t, []core.EventType{core.EventTaskSubmitted, core.EventTaskCancelled}, rec.types(pending))

	close(release)
	assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, running).Status)
	ok, err = o.CancelTask(running)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, a.Calls(pending))
	assert.Equal(t, Stats{Total: 3, Completed: 1, Cancelled: 2}, o.Stats())

	_, err = o.Submit(SubmitRequest{Description: "late", Kind: core.TaskKindPlanning, Dependencies: []string{pending}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return o.Stats().Cancelled == 3 }, time.Second, 5*time.Millisecond)
}

func TestCancelTask_FromSubmittedListener(t *testing.T) {
	o := newOrchestrator(t)
	rec := &recorder{}
	o.SubscribeAll(rec)
	a := bind(t, o, core.AgentKindPlanner, nil)

	type outcome struct {
		ok  bool
		err error
	}
	results := make(chan outcome, 1)
	o.SubscribeAll(ListenerFunc(func(e core.Event) {
		if e.Type != core.EventTaskSubmitted {
			return
		}
		ok, err := o.CancelTask(e.TaskID)
		results <- outcome{ok, err}
	}))

	id := submit(t, o, "cancelled on arrival")
	got := <-results
	require.NoError(t, got.err)
	assert.True(t, got.ok)

	assert.Equal(t, core.TaskStatusCancelled, waitFor(t, o, id).Status)
	assert.Equal(t, []core.EventType{core.EventTaskSubmitted, core.EventTaskCancelled}, rec.types(id))
	assert.Zero(t, a.Calls(id))
	assert.Equal(t, Stats{Total: 1, Cancelled: 1}, o.Stats())
}

func TestFailedDependencyCancelsDependents(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.EnableRetry = false })
	bind(t, o, core.AgentKindPlanner, testutil.FailFirst(100, errors.New("broken")))
	bind(t, o, core.AgentKindDocumenter, nil)

	parent := submit(t, o, "parent")
	child := submit(t, o, "child", func(r *SubmitRequest) {
		r.Kind = core.TaskKindDocumentation
		r.Dependencies = []string{parent}
	})

	assert.Equal(t, core.TaskStatusFailed, waitFor(t, o, parent).Status)
	assert.Equal(t, core.TaskStatusCancelled, waitFor(t, o, child).Status)
}

func TestListenerPanicIsIsolated(t *testing.T) {
	o := newOrchestrator(t)
	o.SubscribeAll(ListenerFunc(func(core.Event) { panic("listener bug") }))
	rec := &recorder{}
	o.SubscribeAll(rec)
	bind(t, o, core.AgentKindPlanner, nil)

	id := submit(t, o, "survives")
	assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, id).Status)
	assert.Equal(t, []core.EventType{core.EventTaskSubmitted, core.EventTaskStarted, core.EventTaskCompleted}, rec.types(id))
}

func TestAgentPanicFailsAttempt(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.EnableRetry = false })
	bind(t, o, core.AgentKindPlanner, func(context.Context, *core.Task, int) (*core.TaskResult, error) {
		panic("agent bug")
	})

	id := submit(t, o, "panics")
	task := waitFor(t, o, id)
	assert.Equal(t, core.TaskStatusFailed, task.Status)
	assert.Contains(t, task.Result.Errors[0], "agent bug")
}

func TestSubscribe_PerTaskAndUnsubscribe(t *testing.T) {
	o := newOrchestrator(t)
	bind(t, o, core.AgentKindPlanner, nil)

	rec := &recorder{}
	o.Subscribe("mine", rec)
	other := &recorder{}
	unsub := o.SubscribeAll(other)
	unsub()

	submit(t, o, "mine", func(r *SubmitRequest) { r.ID = "mine" })
	theirs := submit(t, o, "theirs")
	waitFor(t, o, "mine")
	waitFor(t, o, theirs)

	assert.Len(t, rec.types("mine"), 3)
	assert.Empty(t, rec.types(theirs))
	assert.Empty(t, other.types("mine"))
}

func TestWatch(t *testing.T) {
	o := newOrchestrator(t)
	bind(t, o, core.AgentKindPlanner, nil)

	ch, stop := o.Watch("watched")
	defer stop()
	submit(t, o, "watched", func(r *SubmitRequest) { r.ID = "watched" })

	var got []core.EventType
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case e, ok := <-ch:
			if !ok {
				done = true
				break
			}
			got = append(got, e.Type)
		case <-timeout:
			t.Fatal("watch channel never closed")
		}
	}
	assert.Equal(t, []core.EventType{core.EventTaskSubmitted, core.EventTaskStarted, core.EventTaskCompleted}, got)

	after, stopAfter := o.Watch("watched")
	defer stopAfter()
	_, ok := <-after
	assert.False(t, ok, "watching a finished task closes at once")
}

func TestMemoryJournal(t *testing.T) {
	mgr, err := memory.New()
	require.NoError(t, err)
	o := newOrchestrator(t, func(o *Options) {
		o.Memory = mgr
		o.MaxRetries = 1
	})
	bind(t, o, core.AgentKindPlanner, testutil.FailFirst(1, errors.New("first try fails")))

	id := submit(t, o, "journaled", func(r *SubmitRequest) { r.Context.RepoID = "svc" })
	waitFor(t, o, id)

	tm, err := mgr.GetTaskMemory(id)
	require.NoError(t, err)
	assert.Equal(t, "svc", tm.Context.RepoID)
	require.Len(t, tm.Steps, 2)
	assert.Equal(t, memory.StepFailed, tm.Steps[0].Status)
	assert.Equal(t, memory.StepCompleted, tm.Steps[1].Status)
	require.Contains(t, tm.Results, "final")
	assert.True(t, tm.Results["final"].Success)
	assert.Equal(t, 2, countAction(tm.AuditLog, "execute_attempt"))
	assert.Equal(t, 1, countAction(tm.AuditLog, "task_completed"))
}

func TestNilMemoryManagerIsIgnored(t *testing.T) {
	var mgr *memory.Manager
	o := newOrchestrator(t, func(o *Options) { o.Memory = mgr })
	bind(t, o, core.AgentKindPlanner, nil)

	id := submit(t, o, "no journal")
	assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, id).Status)
	assert.Nil(t, o.opts.Memory)
}

func TestRegisterAgent(t *testing.T) {
	o := newOrchestrator(t)
	_, err := o.RegisterAgent(context.Background(), core.AgentConfig{ID: "doc", Kind: core.AgentKindDocumenter})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	f := agent.NewFactory(agent.Deps{})
	require.NoError(t, f.Register(core.AgentKindDocumenter, func(cfg core.AgentConfig, _ agent.Deps) (core.Agent, error) {
		return testutil.NewStubAgent(cfg.Kind, testutil.Succeed("docs")), nil
	}))
	o = newOrchestrator(t, func(o *Options) { o.Factory = f })

	_, err = o.RegisterAgent(context.Background(), core.AgentConfig{Kind: core.AgentKindDocumenter})
	assert.ErrorIs(t, err, core.ErrValidation)

	a, err := o.RegisterAgent(context.Background(), core.AgentConfig{ID: "doc", Kind: core.AgentKindDocumenter})
	require.NoError(t, err)
	assert.Equal(t, core.AgentKindDocumenter, a.Kind())

	replacement := bind(t, o, core.AgentKindDocumenter, nil)
	assert.True(t, a.(*testutil.StubAgent).IsShutDown())
	require.Len(t, o.Agents(), 1)
	assert.Same(t, replacement, o.Agents()[0])

	id := submit(t, o, "write docs", func(r *SubmitRequest) { r.Kind = core.TaskKindDocumentation })
	assert.Equal(t, core.TaskStatusCompleted, waitFor(t, o, id).Status)
	assert.Equal(t, 1, replacement.Calls(id))
}

func TestShutdown(t *testing.T) {
	o := New(func(o *Options) { o.MaxConcurrentTasks = 1 })
	release := make(chan struct{})
	a := bind(t, o, core.AgentKindPlanner, testutil.Block(release))

	running := submit(t, o, "running")
	require.Eventually(t, func() bool { return o.Stats().Running == 1 }, time.Second, 5*time.Millisecond)
	pending := submit(t, o, "pending")

	done := make(chan error, 1)
	go func() { done <- o.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		task, err := o.GetTask(pending)
		return err == nil && task.Status == core.TaskStatusCancelled
	}, time.Second, 5*time.Millisecond)

	_, err := o.Submit(SubmitRequest{Description: "too late", Kind: core.TaskKindPlanning})
	assert.ErrorIs(t, err, core.ErrValidation)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}

	task, err := o.GetTask(running)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, task.Status)
	assert.True(t, a.IsShutDown())
	assert.NoError(t, o.Shutdown(context.Background()))
}

func TestShutdown_ContextExpires(t *testing.T) {
	o := New(func(o *Options) { o.TaskTimeout = 0 })
	release := make(chan struct{})
	defer close(release)
	bind(t, o, core.AgentKindPlanner, func(_ context.Context, _ *core.Task, _ int) (*core.TaskResult, error) {
		<-release
		return testutil.Done("ok"), nil
	})
	submit(t, o, "stuck")
	require.Eventually(t, func() bool { return o.Stats().Running == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Shutdown(ctx), context.DeadlineExceeded)
}
