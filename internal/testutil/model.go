package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/achintir-projects/elite-ai-agent/model"
)

// Reply is one scripted model outcome.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// ScriptedModel is a model.Model that replays replies in order, repeating the
// last one once the script is exhausted. Handler, when set, takes precedence.
type ScriptedModel struct {
	Handler   func(req model.Request) (string, error)
	Streaming bool

	mu       sync.Mutex
	replies  []Reply
	requests []model.Request
}

// NewScriptedModel returns a streaming-capable scripted model.
func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies, Streaming: true}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is shorthand for a failing reply.
func Fail(err error) Reply { return Reply{Err: err} }

// Calls returns the number of Generate calls.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

func (m *ScriptedModel) next(req model.Request) Reply {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	handler := m.Handler
	var r Reply
	switch {
	case len(m.replies) == 0:
		r = Reply{Text: "ok"}
	case n < len(m.replies):
		r = m.replies[n]
	default:
		r = m.replies[len(m.replies)-1]
	}
	m.mu.Unlock()

	if handler != nil {
		text, err := handler(req)
		return Reply{Text: text, Err: err}
	}
	return r
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 16)
	errCh := make(chan error, 1)
	reply := m.next(req)

	go func() {
		defer close(out)
		defer close(errCh)

		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if reply.Err != nil {
			errCh <- reply.Err
			return
		}
		if req.Stream {
			for _, w := range strings.SplitAfter(reply.Text, " ") {
				if w == "" {
					continue
				}
				select {
				case out <- model.Response{Partial: true, Text: w}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		out <- model.Response{Model: req.Model, Text: reply.Text, FinishReason: "stop"}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsStreaming: m.Streaming}
}
