package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
	"github.com/achintir-projects/elite-ai-agent/memory"
	"github.com/achintir-projects/elite-ai-agent/store"
	"github.com/achintir-projects/elite-ai-agent/telemetry"
)

// Journal records task working memory. *memory.Manager satisfies it.
type Journal interface {
	CreateTaskMemory(taskID string, tc core.TaskContext) (*memory.TaskMemory, error)
	AddTaskStep(taskID string, step memory.Step) (string, error)
	UpdateTaskStep(taskID, stepID string, u memory.StepUpdate) error
	StoreTaskResult(taskID, key string, result *core.TaskResult) error
	AddAuditEntry(taskID string, entry core.AuditEntry) error
}

var _ Journal = (*memory.Manager)(nil)

// SubmitRequest describes a task to run.
type SubmitRequest struct {
	// ID is optional; a fresh id is assigned when empty.
	ID           string
	Description  string
	Kind         core.TaskKind
	Priority     core.Priority
	Dependencies []string
	Context      core.TaskContext
}

func (r SubmitRequest) validate() error {
	var problems []string
	if r.Description == "" {
		problems = append(problems, "description is required")
	}
	if !r.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("kind %q is not a known task kind", r.Kind))
	}
	if r.Priority != "" && !r.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("priority %q is not valid", r.Priority))
	}
	if len(problems) > 0 {
		return core.NewValidationError("orchestrator.Submit", "invalid task", problems...)
	}
	return nil
}

// Stats counts tasks by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// record is the scheduler's view of a task.
type record struct {
	seq      uint64
	priority core.Priority
	status   core.TaskStatus
	deps     []string
	// admitted is set once the submitted event went out; only admitted
	// tasks are scheduled or cancelled.
	admitted bool
	// cancelRequested records a CancelTask that arrived before admission.
	cancelRequested bool
}

// Orchestrator owns the task table and drives task execution.
type Orchestrator struct {
	opts   Options
	tasks  core.Store[*core.Task]
	bus    *bus
	logger logging.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	index   map[string]*record
	order   []string
	seq     uint64
	running int
	agents  map[core.AgentKind]core.Agent
	closed  bool
}

// New creates an Orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if m, ok := opts.Memory.(*memory.Manager); ok && m == nil {
		opts.Memory = nil
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemory(func(o *store.InMemoryOptions[*core.Task]) {
			o.Clone = (*core.Task).Clone
			o.Name = "task"
		})
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer("elite/orchestrator")
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultConfig().EventBuffer
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("orchestrator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:   opts,
		tasks:  opts.Store,
		bus:    newBus(logger),
		logger: logger,
		tracer: opts.Tracer,
		ctx:    ctx,
		cancel: cancel,
		index:  make(map[string]*record),
		agents: make(map[core.AgentKind]core.Agent),
	}
}

// Config returns the effective scheduling configuration.
func (o *Orchestrator) Config() Config { return o.opts.Config }

// RegisterAgent builds an agent through the factory, initializes it and binds
// it to its kind.
func (o *Orchestrator) RegisterAgent(ctx context.Context, cfg core.AgentConfig) (core.Agent, error) {
	if o.opts.Factory == nil {
		return nil, core.NewConfigurationError("orchestrator.RegisterAgent", "no agent factory configured")
	}
	a, err := o.opts.Factory.Create(cfg)
	if err != nil {
		return nil, err
	}
	if err := o.BindAgent(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// BindAgent initializes a and makes it the handler for its kind. A
// previously bound agent of the same kind is shut down.
func (o *Orchestrator) BindAgent(ctx context.Context, a core.Agent) error {
	const op = "orchestrator.BindAgent"
	if a == nil {
		return core.NewValidationError(op, "agent is required")
	}
	if !a.Kind().Valid() {
		return core.NewConfigurationError(op, fmt.Sprintf("agent %s has unknown kind %q", a.ID(), a.Kind()))
	}
	if err := a.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize agent %s: %w", a.ID(), err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return core.NewValidationError(op, "orchestrator is shut down")
	}
	prev := o.agents[a.Kind()]
	o.agents[a.Kind()] = a
	o.mu.Unlock()

	o.logger.Info("orchestrator.agent.bound", "agent_id", a.ID(), "kind", a.Kind().String())
	if prev != nil && prev != a {
		if err := prev.Shutdown(ctx); err != nil {
			o.logger.Warn("orchestrator.agent.replace_shutdown_failed", "agent_id", prev.ID(), "error", err)
		}
	}
	return nil
}

// Agents returns the bound agents in kind order.
func (o *Orchestrator) Agents() []core.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.Agent, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind() < out[j].Kind() })
	return out
}

func (o *Orchestrator) agentFor(kind core.TaskKind) (core.Agent, error) {
	ak := core.AgentKindFor(kind)
	o.mu.Lock()
	a, ok := o.agents[ak]
	o.mu.Unlock()
	if !ok {
		return nil, core.NewConfigurationError("orchestrator.agentFor",
			fmt.Sprintf("no %s agent bound for %s tasks", ak, kind))
	}
	return a, nil
}

// Submit validates and stores a task, then schedules it. It never blocks on
// task execution.
func (o *Orchestrator) Submit(req SubmitRequest) (string, error) {
	const op = "orchestrator.Submit"
	if err := req.validate(); err != nil {
		return "", err
	}
	if req.Priority == "" {
		req.Priority = core.PriorityMedium
	}
	if req.ID == "" {
		req.ID = core.NewID()
	}

	now := time.Now().UTC()
	task := &core.Task{
		ID:           req.ID,
		Description:  req.Description,
		Kind:         req.Kind,
		Priority:     req.Priority,
		Status:       core.TaskStatusPending,
		Dependencies: append([]string(nil), req.Dependencies...),
		Context:      req.Context.Clone(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", core.NewValidationError(op, "orchestrator is shut down")
	}
	if _, exists := o.index[task.ID]; exists {
		o.mu.Unlock()
		return "", &core.Error{Kind: core.KindConflict, Op: op, Message: fmt.Sprintf("task %s already exists", task.ID)}
	}
	var unknown []string
	for _, d := range task.Dependencies {
		if _, ok := o.index[d]; !ok {
			unknown = append(unknown, d)
		}
	}
	if len(unknown) > 0 {
		o.mu.Unlock()
		return "", core.NewValidationError(op, "unknown dependencies", unknown...)
	}
	if err := o.tasks.Put(task.ID, task); err != nil {
		o.mu.Unlock()
		return "", fmt.Errorf("store task %s: %w", task.ID, err)
	}
	o.seq++
	rec := &record{seq: o.seq, priority: task.Priority, status: task.Status, deps: task.Dependencies}
	o.index[task.ID] = rec
	o.order = append(o.order, task.ID)
	o.mu.Unlock()

	if o.opts.Memory != nil {
		if _, err := o.opts.Memory.CreateTaskMemory(task.ID, task.Context); err != nil {
			o.logger.Warn("orchestrator.memory.create_failed", "task_id", task.ID, "error", err)
		}
	}
	o.logger.Info("task.submitted", "task_id", task.ID, "kind", task.Kind.String(), "priority", string(task.Priority),
		"dependencies", len(task.Dependencies))
	o.bus.emit(core.NewEvent(core.EventTaskSubmitted, task.ID))

	o.mu.Lock()
	rec.admitted = true
	var cancelled []cancellation
	if rec.cancelRequested && rec.status == core.TaskStatusPending {
		cancelled = append(cancelled, o.cancelLocked(task.ID, "cancelled by request"))
	}
	o.mu.Unlock()

	o.announce(cancelled)
	o.schedule()
	return task.ID, nil
}

// GetTask returns a snapshot of the task.
func (o *Orchestrator) GetTask(id string) (*core.Task, error) {
	t, err := o.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// GetAllTasks returns snapshots of every task in submission order.
func (o *Orchestrator) GetAllTasks() ([]*core.Task, error) {
	o.mu.Lock()
	ids := append([]string(nil), o.order...)
	o.mu.Unlock()

	out := make([]*core.Task, 0, len(ids))
	for _, id := range ids {
		t, err := o.tasks.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

// CancelTask cancels a pending task and, transitively, pending tasks that
// depend on it. It reports false for a task that is running, completed or
// failed; cancelling an already cancelled task reports true. A task whose
// submitted event is still being delivered is cancelled once admitted.
func (o *Orchestrator) CancelTask(id string) (bool, error) {
	o.mu.Lock()
	rec, ok := o.index[id]
	if !ok {
		o.mu.Unlock()
		return false, core.NewNotFoundError("orchestrator.CancelTask", "task", id)
	}
	switch {
	case rec.status == core.TaskStatusCancelled:
		o.mu.Unlock()
		return true, nil
	case rec.status == core.TaskStatusPending && !rec.admitted:
		rec.cancelRequested = true
		o.mu.Unlock()
		o.logger.Debug("orchestrator.cancel.deferred", "task_id", id)
		return true, nil
	case rec.status != core.TaskStatusPending:
		status := rec.status
		o.mu.Unlock()
		o.logger.Warn("orchestrator.cancel.refused", "task_id", id, "status", string(status))
		return false, nil
	}

	cancelled := []cancellation{o.cancelLocked(id, "cancelled by request")}
	cancelled = append(cancelled, o.cascadeLocked()...)
	o.mu.Unlock()

	o.announce(cancelled)
	return true, nil
}

// Subscribe registers l for the events of one task. The returned function
// unsubscribes; per-task listeners are dropped after the terminal event.
func (o *Orchestrator) Subscribe(taskID string, l Listener) func() {
	return o.bus.subscribe(taskID, l)
}

// SubscribeAll registers l for every task's events.
func (o *Orchestrator) SubscribeAll(l Listener) func() {
	return o.bus.subscribe("", l)
}

// Watch returns a channel of one task's events, closed after the terminal
// event or when stop is called. Events that do not fit the buffer are dropped.
func (o *Orchestrator) Watch(taskID string) (<-chan core.Event, func()) {
	ch := make(chan core.Event, o.opts.EventBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	closeCh := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
	unsub := o.Subscribe(taskID, ListenerFunc(func(e core.Event) {
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		select {
		case ch <- e:
		default:
			o.logger.Warn("orchestrator.watch.dropped", "task_id", e.TaskID, "event", e.Type.String())
		}
		mu.Unlock()
		if e.Type.Terminal() {
			closeCh()
		}
	}))
	if t, err := o.tasks.Get(taskID); err == nil && t.Status.Terminal() {
		closeCh()
	}
	return ch, func() {
		unsub()
		closeCh()
	}
}

// Wait blocks until the task reaches a terminal status or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, taskID string) (*core.Task, error) {
	done := make(chan struct{})
	var once sync.Once
	unsub := o.Subscribe(taskID, ListenerFunc(func(e core.Event) {
		if e.Type.Terminal() {
			once.Do(func() { close(done) })
		}
	}))
	defer unsub()

	t, err := o.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return t, nil
	}
	select {
	case <-done:
		return o.GetTask(taskID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats counts tasks by status.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Stats{Total: len(o.index)}
	for _, r := range o.index {
		switch r.status {
		case core.TaskStatusPending:
			s.Pending++
		case core.TaskStatusInProgress:
			s.Running++
		case core.TaskStatusCompleted:
			s.Completed++
		case core.TaskStatusFailed:
			s.Failed++
		case core.TaskStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Shutdown refuses further submissions, cancels pending tasks, waits for
// running tasks and shuts every bound agent down. When ctx ends first,
// retry delays are aborted and ctx's error is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.logger.Info("orchestrator.shutdown")
	o.schedule()

	waited := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		o.cancel()
		return ctx.Err()
	}
	o.cancel()

	var errs []error
	for _, a := range o.Agents() {
		if err := a.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shut down agent %s: %w", a.ID(), err))
		}
	}
	return errors.Join(errs...)
}
