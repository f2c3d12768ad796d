package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

var keyParam = ParamSchema{
	"key": {Type: "string", Required: true, Description: "state key holding the text; the result is written back to it"},
}

// textAgent rewrites a string held in session state.
type textAgent struct {
	BaseAgent
	capability string
	resultKey  string
	transform  func(string) string
}

// ReverseAgent reverses the string stored at params["key"].
type ReverseAgent struct{ textAgent }

// NewReverseAgent returns the "reverse" handler.
func NewReverseAgent() *ReverseAgent {
	return &ReverseAgent{textAgent{
		BaseAgent: NewBaseAgent(core.AgentInfo{
			ID:           "reverse_agent_v1",
			Name:         "Reverse Agent",
			Version:      "1.0.0",
			Capabilities: []string{"reverse"},
			Description:  "Reverses text stored in session state",
		}, map[string]ParamSchema{"reverse": keyParam}),
		capability: "reverse",
		resultKey:  "reversed",
		transform:  reverseRunes,
	}}
}

// UppercaseAgent upper-cases the string stored at params["key"].
type UppercaseAgent struct{ textAgent }

// NewUppercaseAgent returns the "uppercase" handler.
func NewUppercaseAgent() *UppercaseAgent {
	return &UppercaseAgent{textAgent{
		BaseAgent: NewBaseAgent(core.AgentInfo{
			ID:           "uppercase_agent_v1",
			Name:         "Uppercase Agent",
			Version:      "1.0.0",
			Capabilities: []string{"uppercase"},
			Description:  "Converts text stored in session state to uppercase",
		}, map[string]ParamSchema{"uppercase": keyParam}),
		capability: "uppercase",
		resultKey:  "uppercased",
		transform:  strings.ToUpper,
	}}
}

// Invoke validates the key, records agent_invoked, rewrites the state value
// and records agent_completed.
func (a *textAgent) Invoke(_ context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error) {
	if capability != a.capability {
		return a.UnknownCapability(capability), nil
	}
	if res, ok := a.CheckParams(capability, params); !ok {
		return res, nil
	}
	key := params["key"].(string)

	value, ok := sess.State().Lookup(key)
	if !ok || value == nil {
		return a.InvalidParams(capability, fmt.Sprintf("No value found at key '%s'", key),
			map[string]any{"key": key}), nil
	}
	original, ok := value.(string)
	if !ok {
		return a.InvalidParams(capability, fmt.Sprintf("Value at '%s' must be a string, got %T", key, value),
			map[string]any{"key": key}), nil
	}
	out := a.transform(original)

	if err := a.Record(sess, core.KindAgentInvoked, core.Payload{
		"capability":  capability,
		"params":      params,
		"input_value": original,
	}); err != nil {
		return core.InvokeResult{}, err
	}
	if _, err := sess.State().Set(key, out); err != nil {
		return core.InvokeResult{}, err
	}
	if err := a.Record(sess, core.KindAgentCompleted, core.Payload{
		"capability": capability,
		"original":   original,
		a.resultKey:  out,
	}); err != nil {
		return core.InvokeResult{}, err
	}
	return a.OK(capability, map[string]any{"original": original, a.resultKey: out}), nil
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
