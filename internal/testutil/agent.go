package testutil

import (
	"context"
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
)

// Note is a trivial payload for stubbed results.
type Note string

// PayloadKind implements core.Payload.
func (Note) PayloadKind() string { return "note" }

// StubFunc handles one Execute call. attempt counts calls for the task,
// starting at 1.
type StubFunc func(ctx context.Context, task *core.Task, attempt int) (*core.TaskResult, error)

// Succeed returns a handler that completes every task with a Note payload.
func Succeed(note string) StubFunc {
	return func(context.Context, *core.Task, int) (*core.TaskResult, error) {
		return Done(note), nil
	}
}

// FailFirst returns a handler that fails the first n attempts of each task
// with err and then succeeds.
func FailFirst(n int, err error) StubFunc {
	return func(_ context.Context, _ *core.Task, attempt int) (*core.TaskResult, error) {
		if attempt <= n {
			return nil, err
		}
		return Done("ok"), nil
	}
}

// Block returns a handler that waits for release or ctx before succeeding.
func Block(release <-chan struct{}) StubFunc {
	return func(ctx context.Context, _ *core.Task, _ int) (*core.TaskResult, error) {
		select {
		case <-release:
			return Done("released"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Done builds a successful result carrying note.
func Done(note string) *core.TaskResult {
	res := core.NewTaskResult()
	res.Success = true
	res.Output = Note(note)
	return res
}

// StubAgent is a core.Agent driven by a StubFunc. It records calls and the
// peak number of concurrent executions.
type StubAgent struct {
	cfg core.AgentConfig
	fn  StubFunc

	mu          sync.Mutex
	initialized bool
	shutDown    bool
	calls       map[string]int
	order       []string
	active      int
	peak        int
}

// NewStubAgent returns an agent of the given kind; a nil fn succeeds.
func NewStubAgent(kind core.AgentKind, fn StubFunc) *StubAgent {
	if fn == nil {
		fn = Succeed("ok")
	}
	return &StubAgent{
		cfg:   core.AgentConfig{ID: "stub-" + kind.String(), Kind: kind, Model: "stub"},
		fn:    fn,
		calls: make(map[string]int),
	}
}

func (s *StubAgent) ID() string               { return s.cfg.ID }
func (s *StubAgent) Kind() core.AgentKind     { return s.cfg.Kind }
func (s *StubAgent) Config() core.AgentConfig { return s.cfg }

// Initialize marks the agent ready.
func (s *StubAgent) Initialize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutDown {
		return core.ErrAgentShutDown
	}
	s.initialized = true
	return nil
}

// Execute runs the handler.
func (s *StubAgent) Execute(ctx context.Context, task *core.Task) (*core.TaskResult, error) {
	s.mu.Lock()
	switch {
	case s.shutDown:
		s.mu.Unlock()
		return nil, core.ErrAgentShutDown
	case !s.initialized:
		s.mu.Unlock()
		return nil, core.ErrAgentNotInitialized
	}
	s.calls[task.ID]++
	attempt := s.calls[task.ID]
	s.order = append(s.order, task.ID)
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()
	return s.fn(ctx, task, attempt)
}

// Shutdown marks the agent closed.
func (s *StubAgent) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutDown = true
	return nil
}

// Calls returns how many times taskID was executed.
func (s *StubAgent) Calls(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[taskID]
}

// Order returns task ids in the order Execute was entered.
func (s *StubAgent) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Peak returns the highest number of concurrent executions observed.
func (s *StubAgent) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// IsShutDown reports whether Shutdown was called.
func (s *StubAgent) IsShutDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutDown
}
