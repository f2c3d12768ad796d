package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/internal/util"
	"github.com/hupe1980/kaizen/session"
)

// Agent is a handler of one or more capabilities.
//
// Invoke must report expected failures (bad params, missing state, provider
// errors) through a failed InvokeResult. A non-nil error is treated as an
// unexpected fault; the dispatcher converts it, like a panic, into an
// agent_invocation_failed result. Agents should keep no mutable state
// outside the session if runs are to be reproducible.
type Agent interface {
	Info() core.AgentInfo
	Invoke(ctx context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error)
}

// ParamSchema describes the parameters of a capability.
type ParamSchema = util.ParamSchema

// ParamSpec describes a single capability parameter.
type ParamSpec = util.ParamSpec

// ParamDescriber is implemented by agents that publish parameter schemas.
// The planner uses it to tell the model what each capability accepts.
type ParamDescriber interface {
	Params(capability string) ParamSchema
}

// BaseAgent carries an agent's identity and parameter schemas together with
// helpers for building results. Embed it in concrete agents.
type BaseAgent struct {
	info   core.AgentInfo
	params map[string]ParamSchema
}

// NewBaseAgent constructs a BaseAgent. Schemas are optional and keyed by
// capability name.
func NewBaseAgent(info core.AgentInfo, params map[string]ParamSchema) BaseAgent {
	return BaseAgent{info: info, params: params}
}

// Info returns a copy of the agent description.
func (b *BaseAgent) Info() core.AgentInfo {
	info := b.info
	info.Capabilities = append([]string(nil), b.info.Capabilities...)
	return info
}

// ID returns the agent id.
func (b *BaseAgent) ID() string { return b.info.ID }

// Params returns the schema published for capability, or nil.
func (b *BaseAgent) Params(capability string) ParamSchema {
	return b.params[capability]
}

// OK builds a success result attributed to this agent.
func (b *BaseAgent) OK(capability string, value any) core.InvokeResult {
	return core.OK(b.info.ID, capability, value)
}

// Fail builds a failure result attributed to this agent.
func (b *BaseAgent) Fail(capability string, code core.ErrorCode, message string, details map[string]any) core.InvokeResult {
	return core.Fail(b.info.ID, capability, code, message, details)
}

// UnknownCapability reports a capability this agent does not handle.
func (b *BaseAgent) UnknownCapability(capability string) core.InvokeResult {
	return b.Fail(capability, core.CodeAgentCapabilityNotFound,
		fmt.Sprintf("Unknown capability '%s'. Available: %v", capability, b.info.Capabilities),
		map[string]any{"available_capabilities": b.info.Capabilities})
}

// InvalidParams reports bad or missing parameters.
func (b *BaseAgent) InvalidParams(capability, message string, details map[string]any) core.InvokeResult {
	return b.Fail(capability, core.CodeAgentInvalidParams, message, details)
}

// InvocationFailed reports an error raised while performing the capability.
func (b *BaseAgent) InvocationFailed(capability string, err error) core.InvokeResult {
	details := map[string]any{"exception_type": fmt.Sprintf("%T", err), "exception_message": err.Error()}
	var ce *core.Error
	if errors.As(err, &ce) {
		details["error_code"] = string(ce.Code)
	}
	return b.Fail(capability, core.CodeAgentInvocationFailed, err.Error(), details)
}

// FromError reports err as a failure, keeping the code of a *core.Error
// (for example artifact_too_large) and falling back to
// agent_invocation_failed for anything else.
func (b *BaseAgent) FromError(capability string, err error) core.InvokeResult {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Code.Valid() {
		return b.Fail(capability, ce.Code, ce.Message, ce.Details)
	}
	return b.InvocationFailed(capability, err)
}

// CheckParams validates params against the capability's schema. It returns
// a failure result and false when validation fails.
func (b *BaseAgent) CheckParams(capability string, params core.Payload) (core.InvokeResult, bool) {
	schema := b.params[capability]
	if schema == nil {
		return core.InvokeResult{}, true
	}
	if err := util.ValidateParameters(params, schema); err != nil {
		var ve *util.ValidationError
		if errors.As(err, &ve) {
			details := ve.Details()
			details["received"] = paramNames(params)
			return b.InvalidParams(capability, ve.Error(), details), false
		}
		return b.InvalidParams(capability, err.Error(), nil), false
	}
	return core.InvokeResult{}, true
}

// Record appends a trajectory entry attributed to this agent.
func (b *BaseAgent) Record(sess *session.Session, kind core.EntryKind, payload core.Payload) error {
	_, err := sess.Append(b.info.ID, kind, payload)
	return err
}

func paramNames(params core.Payload) []any {
	names := make([]any, 0, len(params))
	for _, n := range sortedKeys(params) {
		names = append(names, n)
	}
	return names
}
