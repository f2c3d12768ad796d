package agent

import (
	"context"
	"sort"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

// HandlerFunc implements a single capability.
type HandlerFunc func(ctx context.Context, sess *session.Session, params core.Payload) (any, error)

// FuncAgent adapts plain functions into an Agent. A handler error becomes
// an agent_invocation_failed result; the returned value becomes the
// success value.
type FuncAgent struct {
	BaseAgent
	handlers map[string]HandlerFunc
}

// NewFuncAgent builds an agent whose capabilities are the keys of handlers.
func NewFuncAgent(id, name string, handlers map[string]HandlerFunc, optFns ...func(o *FuncAgentOptions)) *FuncAgent {
	opts := FuncAgentOptions{Version: "1.0.0"}
	for _, fn := range optFns {
		fn(&opts)
	}
	caps := make([]string, 0, len(handlers))
	for c := range handlers {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	info := core.AgentInfo{ID: id, Name: name, Version: opts.Version, Capabilities: caps, Description: opts.Description}
	return &FuncAgent{BaseAgent: NewBaseAgent(info, opts.Params), handlers: handlers}
}

// FuncAgentOptions configures a FuncAgent.
type FuncAgentOptions struct {
	Version     string
	Description string
	Params      map[string]ParamSchema
}

// Invoke dispatches to the handler registered for capability.
func (a *FuncAgent) Invoke(ctx context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error) {
	h, ok := a.handlers[capability]
	if !ok {
		return a.UnknownCapability(capability), nil
	}
	if res, ok := a.CheckParams(capability, params); !ok {
		return res, nil
	}
	v, err := h(ctx, sess, params)
	if err != nil {
		return a.InvocationFailed(capability, err), nil
	}
	return a.OK(capability, v), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
