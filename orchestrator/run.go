package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/memory"
)

const orchestratorID = "orchestrator"

// gate orders a task's progress events before its terminal event.
type gate struct {
	mu     sync.Mutex
	closed bool
}

func (g *gate) do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		fn()
	}
}

func (g *gate) close(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	fn()
}

type cancellation struct {
	taskID string
	reason string
}

// cancelLocked moves a pending task to cancelled. o.mu must be held.
func (o *Orchestrator) cancelLocked(id, reason string) cancellation {
	rec := o.index[id]
	now := time.Now().UTC()
	if t, err := o.tasks.Get(id); err == nil {
		if err := t.Transition(core.TaskStatusCancelled, now); err == nil {
			if err := o.tasks.Put(id, t); err != nil {
				o.logger.Error("orchestrator.store.put_failed", "task_id", id, "error", err)
			}
		}
	} else {
		o.logger.Error("orchestrator.store.get_failed", "task_id", id, "error", err)
	}
	rec.status = core.TaskStatusCancelled
	return cancellation{taskID: id, reason: reason}
}

// cascadeLocked cancels pending tasks that can never run: those with a failed
// or cancelled dependency, transitively, and every pending task once the
// orchestrator is shut down. o.mu must be held.
func (o *Orchestrator) cascadeLocked() []cancellation {
	var out []cancellation
	for changed := true; changed; {
		changed = false
		for _, id := range o.order {
			rec := o.index[id]
			if rec.status != core.TaskStatusPending || !rec.admitted {
				continue
			}
			if o.closed {
				out = append(out, o.cancelLocked(id, "orchestrator shut down"))
				changed = true
				continue
			}
			for _, d := range rec.deps {
				if st := o.index[d].status; st == core.TaskStatusFailed || st == core.TaskStatusCancelled {
					out = append(out, o.cancelLocked(id, fmt.Sprintf("dependency %s %s", d, st)))
					changed = true
					break
				}
			}
		}
	}
	return out
}

func (o *Orchestrator) announce(cs []cancellation) {
	for _, c := range cs {
		o.logTransition(c.taskID, core.TaskStatusPending, core.TaskStatusCancelled, 0, nil)
		if o.opts.EnableAuditLog && o.opts.Memory != nil {
			o.journal(c.taskID, func(j Journal) error {
				return j.AddAuditEntry(c.taskID, core.NewAuditEntry(orchestratorID, "task_cancelled", "", c.reason, true))
			})
		}
		e := core.NewEvent(core.EventTaskCancelled, c.taskID)
		e.Message = c.reason
		o.bus.emit(e)
	}
}

// ready reports whether every dependency of rec completed. o.mu must be held.
func (o *Orchestrator) ready(rec *record) bool {
	for _, d := range rec.deps {
		if o.index[d].status != core.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// schedule starts as many eligible tasks as the concurrency ceiling allows,
// highest priority first and in submission order within a priority.
func (o *Orchestrator) schedule() {
	type start struct {
		task *core.Task
		g    *gate
	}

	o.mu.Lock()
	cancelled := o.cascadeLocked()

	var eligible []string
	if !o.closed {
		for _, id := range o.order {
			rec := o.index[id]
			if rec.status == core.TaskStatusPending && rec.admitted && o.ready(rec) {
				eligible = append(eligible, id)
			}
		}
		sort.SliceStable(eligible, func(i, j int) bool {
			a, b := o.index[eligible[i]], o.index[eligible[j]]
			if a.priority.Rank() != b.priority.Rank() {
				return a.priority.Rank() > b.priority.Rank()
			}
			return a.seq < b.seq
		})
	}

	var starts []start
	for _, id := range eligible {
		if o.opts.MaxConcurrentTasks > 0 && o.running >= o.opts.MaxConcurrentTasks {
			break
		}
		t, err := o.tasks.Get(id)
		if err != nil {
			o.logger.Error("orchestrator.store.get_failed", "task_id", id, "error", err)
			continue
		}
		if err := t.Transition(core.TaskStatusInProgress, time.Now().UTC()); err != nil {
			o.logger.Error("orchestrator.transition_failed", "task_id", id, "error", err)
			continue
		}
		if err := o.tasks.Put(id, t); err != nil {
			o.logger.Error("orchestrator.store.put_failed", "task_id", id, "error", err)
			continue
		}
		o.index[id].status = core.TaskStatusInProgress
		o.running++
		o.wg.Add(1)
		starts = append(starts, start{task: t, g: &gate{}})
	}
	o.mu.Unlock()

	o.announce(cancelled)
	for _, s := range starts {
		o.logTransition(s.task.ID, core.TaskStatusPending, core.TaskStatusInProgress, 0, nil)
		o.bus.emit(core.NewEvent(core.EventTaskStarted, s.task.ID))
		go o.run(s.task, s.g)
	}
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running--
	o.mu.Unlock()
	o.schedule()
}

// run drives one task through its attempts to a terminal status.
func (o *Orchestrator) run(task *core.Task, g *gate) {
	defer o.wg.Done()
	defer o.release()

	a, err := o.agentFor(task.Kind)
	if err != nil {
		o.finish(task, nil, err, 0, orchestratorID, nil, g)
		return
	}

	var trail []core.AuditEntry
	for attempt := 1; ; attempt++ {
		stepID := o.beginStep(task.ID, attempt, a.ID())
		res, err := o.attempt(task, a, attempt, g)
		o.endStep(task.ID, stepID, err)

		outcome := "ok"
		if err != nil {
			outcome = err.Error()
		}
		entry := core.NewAuditEntry(a.ID(), "execute_attempt", fmt.Sprintf("attempt %d: %s", attempt, task.Description), outcome, err == nil)
		trail = append(trail, entry)
		if o.opts.EnableAuditLog && o.opts.Memory != nil {
			o.journal(task.ID, func(j Journal) error { return j.AddAuditEntry(task.ID, entry) })
		}

		if err == nil || !o.shouldRetry(err, attempt) {
			o.finish(task, res, err, attempt, a.ID(), trail, g)
			return
		}

		delay := o.opts.RetryDelay * time.Duration(attempt)
		o.logger.Warn("task.retry", "task_id", task.ID, "attempt", attempt, "delay", delay, "error", err)
		if serr := sleep(o.ctx, delay); serr != nil {
			o.finish(task, res, fmt.Errorf("retry aborted: %w", err), attempt, a.ID(), trail, g)
			return
		}
	}
}

func (o *Orchestrator) shouldRetry(err error, attempt int) bool {
	return o.opts.EnableRetry && attempt <= o.opts.MaxRetries && core.IsRetryable(err) && o.ctx.Err() == nil
}

type outcome struct {
	res *core.TaskResult
	err error
}

// attempt runs the agent once. A timed out agent call is abandoned rather
// than interrupted; its goroutine finishes on its own.
func (o *Orchestrator) attempt(task *core.Task, a core.Agent, n int, g *gate) (res *core.TaskResult, err error) {
	const op = "orchestrator.attempt"
	ctx, span := o.tracer.Start(o.ctx, op, trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", task.Kind.String()),
		attribute.String("agent.id", a.ID()),
		attribute.Int("attempt", n),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if o.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TaskTimeout)
		defer cancel()
	}
	ctx = core.WithProgress(ctx, func(pct int, msg string) {
		g.do(func() {
			e := core.NewEvent(core.EventTaskProgress, task.ID)
			e.Percent, e.Message = pct, msg
			o.bus.emit(e)
		})
	})

	done := make(chan outcome, 1)
	snapshot := task.Clone()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("orchestrator.agent.panic", "task_id", task.ID, "agent_id", a.ID(),
					"panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: core.NewExecutionError(op, fmt.Errorf("agent panic: %v", r))}
			}
		}()
		r, e := a.Execute(ctx, snapshot)
		done <- outcome{res: r, err: e}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() != nil && o.ctx.Err() == nil {
				return out.res, core.NewTimeoutError(op, out.err)
			}
			return out.res, out.err
		}
		if out.res == nil {
			out.res = core.NewTaskResult()
			out.res.Success = true
		}
		if !out.res.Success {
			msg := strings.Join(out.res.Errors, "; ")
			if msg == "" {
				msg = "agent reported failure"
			}
			return out.res, core.NewExecutionError(op, errors.New(msg))
		}
		return out.res, nil
	case <-ctx.Done():
		if o.ctx.Err() != nil {
			return nil, core.NewExecutionError(op, o.ctx.Err())
		}
		return nil, core.NewTimeoutError(op, ctx.Err())
	}
}

// finish records the terminal status, result and audit trail, then emits the
// terminal event.
func (o *Orchestrator) finish(task *core.Task, res *core.TaskResult, cause error, attempts int, agentID string, trail []core.AuditEntry, g *gate) {
	if res == nil {
		res = core.NewTaskResult()
	} else {
		res = res.Clone()
	}

	status, evType, action := core.TaskStatusCompleted, core.EventTaskCompleted, "task_completed"
	summary := "completed"
	if cause != nil {
		status, evType, action = core.TaskStatusFailed, core.EventTaskFailed, "task_failed"
		summary = cause.Error()
		res.Success = false
		if !contains(res.Errors, summary) {
			res.Errors = append(res.Errors, summary)
		}
	} else {
		res.Success = true
	}

	final := core.NewAuditEntry(agentID, action, task.Description, summary, cause == nil)
	log := make([]core.AuditEntry, 0, len(trail)+len(res.AuditLog)+1)
	log = append(log, trail...)
	log = append(log, res.AuditLog...)
	res.AuditLog = append(log, final)

	if o.opts.Memory != nil {
		o.journal(task.ID, func(j Journal) error { return j.StoreTaskResult(task.ID, "final", res) })
		if o.opts.EnableAuditLog {
			o.journal(task.ID, func(j Journal) error { return j.AddAuditEntry(task.ID, final) })
		}
	}

	o.mu.Lock()
	t, err := o.tasks.Get(task.ID)
	if err != nil {
		o.logger.Error("orchestrator.store.get_failed", "task_id", task.ID, "error", err)
		t = task.Clone()
	}
	if err := t.Transition(status, time.Now().UTC()); err != nil {
		o.logger.Error("orchestrator.transition_failed", "task_id", task.ID, "error", err)
	}
	t.Attempts = attempts
	t.Result = res
	if err := o.tasks.Put(task.ID, t); err != nil {
		o.logger.Error("orchestrator.store.put_failed", "task_id", task.ID, "error", err)
	}
	o.index[task.ID].status = status
	o.mu.Unlock()

	o.logTransition(task.ID, core.TaskStatusInProgress, status, attempts, cause)

	e := core.NewEvent(evType, task.ID)
	e.Result = res.Clone()
	e.Err = cause
	g.close(func() { o.bus.emit(e) })
}

func (o *Orchestrator) beginStep(taskID string, attempt int, agentID string) string {
	if o.opts.Memory == nil {
		return ""
	}
	id, err := o.opts.Memory.AddTaskStep(taskID, memory.Step{
		Name:   fmt.Sprintf("attempt %d", attempt),
		Status: memory.StepRunning,
		Input:  agentID,
	})
	if err != nil {
		o.logger.Debug("orchestrator.memory.step_failed", "task_id", taskID, "error", err)
		return ""
	}
	return id
}

func (o *Orchestrator) endStep(taskID, stepID string, err error) {
	if o.opts.Memory == nil || stepID == "" {
		return
	}
	u := memory.StepUpdate{Status: memory.StepCompleted}
	if err != nil {
		u.Status = memory.StepFailed
		u.Error = err.Error()
	}
	o.journal(taskID, func(j Journal) error { return j.UpdateTaskStep(taskID, stepID, u) })
}

// journal runs fn against the memory manager. Failures are logged; an
// evicted task memory is not an error for the task itself.
func (o *Orchestrator) journal(taskID string, fn func(j Journal) error) {
	if o.opts.Memory == nil {
		return
	}
	if err := fn(o.opts.Memory); err != nil {
		o.logger.Debug("orchestrator.memory.write_failed", "task_id", taskID, "error", err)
	}
}

func (o *Orchestrator) logTransition(taskID string, from, to core.TaskStatus, attempt int, err error) {
	if sl, ok := o.logger.(*logging.StructuredLogger); ok {
		sl.LogTaskTransition(taskID, string(from), string(to), attempt, err)
		return
	}
	kv := []any{"task_id", taskID, "from", string(from), "to", string(to), "attempt", attempt}
	if err != nil {
		o.logger.Warn("task.transition", append(kv, "error", err)...)
		return
	}
	o.logger.Info("task.transition", kv...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
