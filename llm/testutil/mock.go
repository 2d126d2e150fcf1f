// Package testutil provides a scripted gateway for tests of the stages that
// sit on top of the llm package.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
)

// ErrScripted is returned for calls the mock was told to fail.
var ErrScripted = errors.New("scripted failure")

// Reply is one scripted answer. An empty Content with Fail set produces a
// failed Result carrying the failure sentinel.
type Reply struct {
	Content string
	Fail    bool
}

// MockInvoker is a thread-safe llm.Invoker returning scripted replies.
//
// Replies are looked up by pinned model first, then by role. Each key holds a
// queue; the last reply in a queue repeats once the queue is drained.
//
//	mock := testutil.NewMockInvoker()
//	mock.OnRole(model.RoleDirector, testutil.Reply{Content: `{"search": false}`})
//	mock.OnModel("google/gemini-2.0-flash-001", testutil.Reply{Fail: true})
type MockInvoker struct {
	mu      sync.Mutex
	byRole  map[model.Role][]Reply
	byModel map[string][]Reply
	// Handler, when set, answers every call not matched by a script.
	Handler func(call llm.Call) Reply
	calls   []llm.Call
}

// NewMockInvoker creates an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		byRole:  make(map[model.Role][]Reply),
		byModel: make(map[string][]Reply),
	}
}

// OnRole queues replies for calls made with the role and no pinned model.
func (m *MockInvoker) OnRole(role model.Role, replies ...Reply) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byRole[role] = append(m.byRole[role], replies...)
	return m
}

// OnModel queues replies for calls pinned to the model.
func (m *MockInvoker) OnModel(name string, replies ...Reply) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byModel[name] = append(m.byModel[name], replies...)
	return m
}

// Invoke implements llm.Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, call llm.Call) llm.Result {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	reply, ok := m.next(call)
	handler := m.Handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.Result{Role: call.Role, Model: call.Model, Err: err}
	}
	if !ok {
		if handler == nil {
			return llm.Result{Role: call.Role, Model: call.Model, Attempts: 1, Err: ErrScripted}
		}
		reply = handler(call)
	}

	label := call.Model
	if label == "" {
		label = "mock/" + string(call.Role)
	}
	if reply.Fail {
		return llm.Result{Role: call.Role, Model: label, Attempts: 1, Err: ErrScripted}
	}
	return llm.Result{Content: reply.Content, Role: call.Role, Model: label, Attempts: 1}
}

func (m *MockInvoker) next(call llm.Call) (Reply, bool) {
	if call.Model != "" {
		if r, ok := pop(m.byModel, call.Model); ok {
			return r, true
		}
	}
	return pop(m.byRole, call.Role)
}

func pop[K comparable](queues map[K][]Reply, key K) (Reply, bool) {
	q := queues[key]
	if len(q) == 0 {
		return Reply{}, false
	}
	if len(q) > 1 {
		queues[key] = q[1:]
	}
	return q[0], true
}

// Calls returns a copy of every call received, in arrival order.
func (m *MockInvoker) Calls() []llm.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the calls made with the given role.
func (m *MockInvoker) CallsFor(role model.Role) []llm.Call {
	var out []llm.Call
	for _, c := range m.Calls() {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

// CountContaining counts calls whose user prompt contains substr.
func (m *MockInvoker) CountContaining(substr string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(c.User, substr) {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and scripts.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.byRole = make(map[model.Role][]Reply)
	m.byModel = make(map[string][]Reply)
}
