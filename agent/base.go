package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
)

// Hooks are the strategy-specific parts of an agent.
type Hooks interface {
	// Setup prepares the agent; it runs once from Initialize.
	Setup(ctx context.Context) error
	// Run performs one task and returns its payload.
	Run(ctx context.Context, x *Execution) (core.Payload, error)
	// Teardown releases resources; it runs once from Shutdown.
	Teardown(ctx context.Context) error
}

type state uint8

const (
	stateUninitialized state = iota
	stateInitialized
	stateShutDown
)

func (s state) String() string {
	switch s {
	case stateInitialized:
		return "initialized"
	case stateShutDown:
		return "shut_down"
	default:
		return "uninitialized"
	}
}

// BaseAgent implements core.Agent around a set of Hooks. It is safe for
// concurrent use; several tasks may execute at once.
type BaseAgent struct {
	cfg    core.AgentConfig
	deps   Deps
	hooks  Hooks
	logger logging.Logger

	mu       sync.Mutex
	state    state
	inflight sync.WaitGroup
}

var _ core.Agent = (*BaseAgent)(nil)

// NewBaseAgent wraps hooks with the shared lifecycle.
func NewBaseAgent(cfg core.AgentConfig, deps Deps, hooks Hooks) *BaseAgent {
	deps = deps.withDefaults()
	logger := deps.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("agent").WithAgent(cfg.ID)
	}
	return &BaseAgent{cfg: cfg, deps: deps, hooks: hooks, logger: logger}
}

// ID returns the configured identity.
func (b *BaseAgent) ID() string { return b.cfg.ID }

// Kind returns the agent kind.
func (b *BaseAgent) Kind() core.AgentKind { return b.cfg.Kind }

// Config returns the registration config.
func (b *BaseAgent) Config() core.AgentConfig { return b.cfg }

// Hooks exposes the wrapped strategy.
func (b *BaseAgent) Hooks() Hooks { return b.hooks }

// Initialize runs Setup once. Initializing twice is a no-op; initializing
// after Shutdown fails.
func (b *BaseAgent) Initialize(ctx context.Context) error {
	const op = "agent.Initialize"
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateInitialized:
		return nil
	case stateShutDown:
		return &core.Error{Kind: core.KindAgentShutDown, Op: op, Message: fmt.Sprintf("agent %s is shut down", b.cfg.ID)}
	}
	if err := b.hooks.Setup(ctx); err != nil {
		return fmt.Errorf("agent %s setup: %w", b.cfg.ID, err)
	}
	b.state = stateInitialized
	b.logger.Debug("agent.initialized", "agent_id", b.cfg.ID, "kind", b.cfg.Kind.String())
	return nil
}

// begin checks the lifecycle and registers an in-flight execution.
func (b *BaseAgent) begin() error {
	const op = "agent.Execute"
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateUninitialized:
		return &core.Error{Kind: core.KindAgentNotInitialized, Op: op, Message: fmt.Sprintf("agent %s is not initialized", b.cfg.ID)}
	case stateShutDown:
		return &core.Error{Kind: core.KindAgentShutDown, Op: op, Message: fmt.Sprintf("agent %s is shut down", b.cfg.ID)}
	}
	b.inflight.Add(1)
	return nil
}

// Execute runs the task through the hooks. The returned result is never nil
// once the lifecycle check passes; on failure it carries the error text and
// the error is also returned.
func (b *BaseAgent) Execute(ctx context.Context, task *core.Task) (*core.TaskResult, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	defer b.inflight.Done()

	if task == nil {
		return nil, core.NewValidationError("agent.Execute", "task is required")
	}

	x := newExecution(b, task)
	start := time.Now()
	b.logger.Debug("agent.execute.start", "agent_id", b.cfg.ID, "task_id", task.ID)

	payload, err := b.run(ctx, x)

	res := x.result
	res.Metrics.Duration = time.Since(start)
	res.Output = payload
	res.Success = err == nil
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		b.logger.Warn("agent.execute.failed", "agent_id", b.cfg.ID, "task_id", task.ID, "error", err)
		return res, err
	}
	b.logger.Debug("agent.execute.done",
		"agent_id", b.cfg.ID,
		"task_id", task.ID,
		"model_calls", res.Metrics.ModelCalls,
		"tool_calls", res.Metrics.ToolCalls,
		"duration", res.Metrics.Duration,
	)
	return res, nil
}

func (b *BaseAgent) run(ctx context.Context, x *Execution) (p core.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("agent.execute.panic", "agent_id", b.cfg.ID, "panic", r, "stack", string(debug.Stack()))
			err = core.NewExecutionError("agent.Execute", fmt.Errorf("panic: %v", r))
		}
	}()
	return b.hooks.Run(ctx, x)
}

// Shutdown waits for in-flight executions and runs Teardown. Further calls
// are no-ops.
func (b *BaseAgent) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.state == stateShutDown {
		b.mu.Unlock()
		return nil
	}
	wasInitialized := b.state == stateInitialized
	b.state = stateShutDown
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !wasInitialized {
		return nil
	}
	if err := b.hooks.Teardown(ctx); err != nil {
		return fmt.Errorf("agent %s teardown: %w", b.cfg.ID, err)
	}
	b.logger.Debug("agent.shut_down", "agent_id", b.cfg.ID)
	return nil
}

// noopHooks provides empty Setup and Teardown for strategies that need none.
type noopHooks struct{}

func (noopHooks) Setup(context.Context) error    { return nil }
func (noopHooks) Teardown(context.Context) error { return nil }
