package orchestrator

import (
	"runtime/debug"
	"sync"

	"github.com/achintir-projects/elite-ai-agent/core"
	"github.com/achintir-projects/elite-ai-agent/logging"
)

// Listener receives task lifecycle events.
type Listener interface {
	OnEvent(e core.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e core.Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(e core.Event) { f(e) }

type subscription struct {
	id       uint64
	listener Listener
}

// bus fans events out to global and per-task listeners. Delivery happens on
// the emitting goroutine; a panicking listener is logged and skipped.
type bus struct {
	logger logging.Logger

	mu     sync.RWMutex
	nextID uint64
	global []subscription
	byTask map[string][]subscription
}

func newBus(logger logging.Logger) *bus {
	return &bus{logger: logger, byTask: make(map[string][]subscription)}
}

func (b *bus) subscribe(taskID string, l Listener) func() {
	b.mu.Lock()
	b.nextID++
	sub := subscription{id: b.nextID, listener: l}
	if taskID == "" {
		b.global = append(b.global, sub)
	} else {
		b.byTask[taskID] = append(b.byTask[taskID], sub)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(taskID, sub.id) })
	}
}

func (b *bus) unsubscribe(taskID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if taskID == "" {
		b.global = without(b.global, id)
		return
	}
	subs := without(b.byTask[taskID], id)
	if len(subs) == 0 {
		delete(b.byTask, taskID)
		return
	}
	b.byTask[taskID] = subs
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *bus) emit(e core.Event) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.global)+len(b.byTask[e.TaskID]))
	targets = append(targets, b.byTask[e.TaskID]...)
	targets = append(targets, b.global...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s.listener, e)
	}
	if e.Type.Terminal() {
		b.mu.Lock()
		delete(b.byTask, e.TaskID)
		b.mu.Unlock()
	}
}

func (b *bus) deliver(l Listener, e core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("orchestrator.listener.panic", "task_id", e.TaskID, "event", e.Type.String(),
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	l.OnEvent(e)
}
