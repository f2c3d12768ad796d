package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/internal/util"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/model"
	"github.com/hupe1980/kaizen/session"
)

// CapComplete is the capability served by ModelAgent.
const CapComplete = "complete"

// DefaultOutputKey is the state key a completion is written to when the
// call does not name one.
const DefaultOutputKey = "completion"

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	ID        string
	System    string
	OutputKey string
	Options   model.Options
	Logger    logging.Logger
}

// ModelAgent answers "complete" by sending a prompt to a model.Provider and
// storing the completion text in session state.
//
// The prompt comes from params["prompt"] or from the state value named by
// params["prompt_key"]. It is rendered as a text/template against the
// current state, so "Summarize {{.notes}}" reads the "notes" key.
type ModelAgent struct {
	BaseAgent
	llm    model.Provider
	opts   ModelAgentOptions
	logger logging.Logger
}

var _ Agent = (*ModelAgent)(nil)

// NewModelAgent wraps llm as a capability handler.
func NewModelAgent(llm model.Provider, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		ID:        "model_agent_v1",
		OutputKey: DefaultOutputKey,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	info := core.AgentInfo{
		ID:           opts.ID,
		Name:         "Model Agent",
		Version:      "1.0.0",
		Capabilities: []string{CapComplete},
		Description:  fmt.Sprintf("Completes prompts with %s (%s)", llm.Info().Name, llm.Info().Provider),
	}
	schema := ParamSchema{
		"prompt":      {Type: "string", Description: "prompt template; {{.key}} reads session state"},
		"prompt_key":  {Type: "string", Description: "state key holding the prompt template"},
		"output_key":  {Type: "string", Description: "state key for the completion (default " + opts.OutputKey + ")"},
		"system":      {Type: "string", Description: "system message"},
		"max_tokens":  {Type: "integer"},
		"temperature": {Type: "number"},
	}

	return &ModelAgent{
		BaseAgent: NewBaseAgent(info, map[string]ParamSchema{CapComplete: schema}),
		llm:       llm,
		opts:      opts,
		logger:    logging.WithComponent(opts.Logger, "model_agent"),
	}
}

// Invoke performs one completion.
func (a *ModelAgent) Invoke(ctx context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error) {
	if capability != CapComplete {
		return a.UnknownCapability(capability), nil
	}
	if res, ok := a.CheckParams(capability, params); !ok {
		return res, nil
	}

	tmpl, res, ok := a.promptTemplate(capability, sess, params)
	if !ok {
		return res, nil
	}
	prompt, err := util.RenderTemplate(tmpl, sess.State().All())
	if err != nil {
		return a.InvalidParams(capability, err.Error(), map[string]any{"field": "prompt"}), nil
	}

	outputKey := a.opts.OutputKey
	if k, ok := params["output_key"].(string); ok && k != "" {
		outputKey = k
	}
	req := a.buildRequest(prompt, params)

	if err := a.Record(sess, core.KindAgentInvoked, core.Payload{
		"capability": capability,
		"params":     params,
		"prompt":     prompt,
	}); err != nil {
		return core.InvokeResult{}, err
	}

	start := time.Now()
	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		logging.LogCompletion(a.logger, a.llm.Info().Name, 0, time.Since(start), false, err)
		details := map[string]any{"provider": a.llm.Info().Provider, "error": err.Error()}
		var pe *model.ProviderError
		if errors.As(err, &pe) {
			for k, v := range pe.Details {
				details[k] = v
			}
		}
		if recErr := a.Record(sess, core.KindAgentFailed, core.Payload{
			"capability": capability,
			"error":      err.Error(),
		}); recErr != nil {
			return core.InvokeResult{}, recErr
		}
		return a.Fail(capability, core.CodeAgentInvocationFailed, "completion failed: "+err.Error(), details), nil
	}

	var tokens int64
	var usage any
	if resp.Usage != nil {
		tokens = resp.Usage.Total()
		usage = map[string]any{"input_tokens": resp.Usage.InputTokens, "output_tokens": resp.Usage.OutputTokens}
	}
	logging.LogCompletion(a.logger, resp.Model, tokens, time.Since(start), true, nil)

	if _, err := sess.State().Set(outputKey, resp.Text); err != nil {
		return core.InvokeResult{}, err
	}
	if err := a.Record(sess, core.KindAgentCompleted, core.Payload{
		"capability": capability,
		"output_key": outputKey,
		"model":      resp.Model,
		"usage":      usage,
	}); err != nil {
		return core.InvokeResult{}, err
	}
	return a.OK(capability, map[string]any{
		"output_key": outputKey,
		"text":       resp.Text,
		"model":      resp.Model,
		"usage":      usage,
	}), nil
}

func (a *ModelAgent) promptTemplate(capability string, sess *session.Session, params core.Payload) (string, core.InvokeResult, bool) {
	if p, ok := params["prompt"].(string); ok && p != "" {
		return p, core.InvokeResult{}, true
	}
	key, ok := params["prompt_key"].(string)
	if !ok || key == "" {
		return "", a.InvalidParams(capability, "one of 'prompt' or 'prompt_key' is required",
			map[string]any{"received": paramNames(params)}), false
	}
	v, ok := sess.State().Lookup(key)
	s, isString := v.(string)
	if !ok || !isString {
		return "", a.InvalidParams(capability, fmt.Sprintf("No prompt string found at key '%s'", key),
			map[string]any{"key": key}), false
	}
	return s, core.InvokeResult{}, true
}

func (a *ModelAgent) buildRequest(prompt string, params core.Payload) model.Request {
	req := model.Request{Prompt: prompt, System: a.opts.System, Options: a.opts.Options}
	if s, ok := params["system"].(string); ok && s != "" {
		req.System = s
	}
	if n, ok := params["max_tokens"].(int64); ok {
		req.Options.MaxTokens = model.Int(n)
	}
	switch t := params["temperature"].(type) {
	case float64:
		req.Options.Temperature = model.Float(t)
	case int64:
		req.Options.Temperature = model.Float(float64(t))
	}
	return req
}
