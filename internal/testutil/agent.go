package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/kaizen/agent"
	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

// Invocation is one call seen by a RecordingAgent.
type Invocation struct {
	Capability string
	Params     core.Payload
}

// RecordingAgent is a configurable fake handler. By default every
// capability succeeds with {"capability": name} and sets state key
// "<agent id>.<capability>" to the invocation count.
type RecordingAgent struct {
	info core.AgentInfo

	mu    sync.Mutex
	calls []Invocation

	// Fail makes the named capabilities return an agent_invocation_failed
	// result.
	Fail map[string]bool

	// Panic makes the named capabilities panic.
	Panic map[string]bool

	// Err makes the named capabilities return a non-nil error.
	Err map[string]error
}

var _ agent.Agent = (*RecordingAgent)(nil)

// NewRecordingAgent creates a recording agent with the given capabilities.
func NewRecordingAgent(id string, capabilities ...string) *RecordingAgent {
	return &RecordingAgent{
		info: core.AgentInfo{
			ID:           id,
			Name:         id,
			Version:      "0.0.1",
			Capabilities: capabilities,
		},
		Fail:  map[string]bool{},
		Panic: map[string]bool{},
		Err:   map[string]error{},
	}
}

// Info implements agent.Agent.
func (a *RecordingAgent) Info() core.AgentInfo { return a.info }

// Invoke implements agent.Agent.
func (a *RecordingAgent) Invoke(_ context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Invocation{Capability: capability, Params: params})
	n := a.count(capability)
	a.mu.Unlock()

	switch {
	case a.Panic[capability]:
		panic("recording agent: " + capability)
	case a.Err[capability] != nil:
		return core.InvokeResult{}, a.Err[capability]
	case a.Fail[capability]:
		return core.Fail(a.info.ID, capability, core.CodeAgentInvocationFailed, capability+" failed", nil), nil
	}

	if _, err := sess.State().Set(a.info.ID+"."+capability, n); err != nil {
		return core.InvokeResult{}, err
	}
	return core.OK(a.info.ID, capability, map[string]any{"capability": capability}), nil
}

// Calls returns the invocations seen so far.
func (a *RecordingAgent) Calls() []Invocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Invocation(nil), a.calls...)
}

// Count returns how often capability was invoked.
func (a *RecordingAgent) Count(capability string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count(capability)
}

func (a *RecordingAgent) count(capability string) int {
	n := 0
	for _, c := range a.calls {
		if c.Capability == capability {
			n++
		}
	}
	return n
}
