package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/kaizen/agent"
	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/dispatch"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/model"
	"github.com/hupe1980/kaizen/session"
)

// OriginID is the trajectory origin of plan_created entries.
const OriginID = "planner"

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// Capability is what the planner tells the model about one capability.
type Capability struct {
	Name        string
	Description string
	Params      agent.ParamSchema
}

// Options configures a Planner.
type Options struct {
	Logger logging.Logger

	// Temperature for planning requests. Zero keeps plans reproducible for
	// providers that honour it.
	Temperature float64

	// Seed is sent with every planning request when set.
	Seed *int64
}

// Plan is a validated call list produced from a natural-language request.
type Plan struct {
	Calls []core.CapabilityCall
	Model string
	Raw   string
}

// Planner turns natural-language requests into capability calls using a
// model.Provider. It never executes the calls.
type Planner struct {
	llm    model.Provider
	caps   []Capability
	opts   Options
	logger logging.Logger
}

// New creates a planner with no capabilities.
func New(llm model.Provider, optFns ...func(o *Options)) *Planner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Planner{
		llm:    llm,
		opts:   opts,
		logger: logging.WithComponent(opts.Logger, "planner"),
	}
}

// FromDispatcher describes every capability registered with d. Parameter
// schemas are included for agents that publish them.
func FromDispatcher(d *dispatch.Dispatcher) []Capability {
	var out []Capability
	for _, name := range d.Capabilities() {
		a, ok := d.AgentFor(name)
		if !ok {
			continue
		}
		c := Capability{Name: name, Description: a.Info().Description}
		if pd, ok := a.(agent.ParamDescriber); ok {
			c.Params = pd.Params(name)
		}
		out = append(out, c)
	}
	return out
}

// SetCapabilities replaces the capabilities offered to the model.
func (p *Planner) SetCapabilities(caps ...Capability) {
	p.caps = append([]Capability(nil), caps...)
}

// AddCapability offers one more capability. Known names are ignored.
func (p *Planner) AddCapability(c Capability) {
	if !p.known(c.Name) {
		p.caps = append(p.caps, c)
	}
}

// Capabilities returns the capability names in offer order.
func (p *Planner) Capabilities() []string {
	out := make([]string, len(p.caps))
	for i, c := range p.caps {
		out[i] = c.Name
	}
	return out
}

// Plan asks the model for a call list. When sess is not nil a successful
// plan is recorded as a plan_created entry. Failures are *core.Error values
// with a plan_* code.
func (p *Planner) Plan(ctx context.Context, userInput string, sess *session.Session) (*Plan, error) {
	if len(p.caps) == 0 {
		return nil, core.NewError(core.CodePlanGenerationFailed,
			"No capabilities available. Register agents with the dispatcher first.")
	}

	req := model.Request{
		Prompt:  userInput,
		System:  p.SystemPrompt(),
		Options: model.Options{Temperature: model.Float(p.opts.Temperature), Seed: p.opts.Seed},
	}
	start := time.Now()
	resp, err := p.llm.Complete(ctx, req)
	if err != nil {
		logging.LogCompletion(p.logger, p.llm.Info().Name, 0, time.Since(start), false, err)
		e := core.WrapError(core.CodePlanLLMError, err, "LLM error: %s", providerMessage(err))
		var pe *model.ProviderError
		if errors.As(err, &pe) && len(pe.Details) > 0 {
			e = e.WithDetails(pe.Details)
		}
		return nil, e
	}
	var tokens int64
	if resp.Usage != nil {
		tokens = resp.Usage.Total()
	}
	logging.LogCompletion(p.logger, resp.Model, tokens, time.Since(start), true, nil)

	raw := strings.TrimSpace(resp.Text)
	calls, err := parseCalls(raw)
	if err != nil {
		return nil, core.WrapError(core.CodePlanInvalidFormat, err, "Failed to parse LLM response: %v", err).
			WithDetails(map[string]any{"raw_response": raw})
	}
	if err := p.validate(calls); err != nil {
		return nil, err
	}

	plan := &Plan{Calls: calls, Model: resp.Model, Raw: raw}
	if sess != nil {
		if _, err := sess.Append(OriginID, core.KindPlanCreated, core.Payload{
			"user_input": userInput,
			"calls":      callRecords(calls),
			"model":      resp.Model,
		}); err != nil {
			return nil, err
		}
	}
	p.logger.Info("plan created", "steps", len(calls), "model", resp.Model)
	return plan, nil
}

// SystemPrompt renders the instructions sent with every planning request.
func (p *Planner) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a planning assistant that converts user requests into a sequence of capability calls.\n\n")
	sb.WriteString("Available capabilities:\n")
	for _, c := range p.caps {
		sb.WriteString("- " + c.Name)
		if c.Description != "" {
			sb.WriteString(": " + c.Description)
		}
		sb.WriteString("\n")
		if c.Params != nil {
			sb.WriteString("  params: " + c.Params.Describe() + "\n")
		}
	}
	sb.WriteString(`
Your task:
1. Understand what the user wants to do
2. Break it down into a sequence of capability calls
3. Return ONLY a JSON array of capability calls

Each capability call must have this format:
{"capability": "capability_name", "params": {"key": "text"}}

The "key" parameter specifies which state key to operate on. Use "text" as the default key.

Rules:
- Return ONLY valid JSON, no other text
- The JSON must be an array of capability call objects
- List the calls in the order they should be performed
- If the request doesn't match any capabilities, return an empty array []

Example user input: "reverse the text and make it uppercase"
Example output: [{"capability": "reverse", "params": {"key": "text"}}, {"capability": "uppercase", "params": {"key": "text"}}]

Remember: Return ONLY the JSON array, nothing else.`)
	return sb.String()
}

func (p *Planner) known(name string) bool {
	for _, c := range p.caps {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (p *Planner) validate(calls []core.CapabilityCall) error {
	for _, c := range calls {
		if !p.known(c.Capability) {
			return core.NewError(core.CodePlanInvalidFormat, "Unknown capability '%s'. Available: %v",
				c.Capability, p.Capabilities()).
				WithDetails(map[string]any{"calls": callRecords(calls)})
		}
	}
	return nil
}

// parseCalls extracts the outermost JSON array from text. Models often wrap
// the array in prose or code fences. A reply without an array that reads
// like "nothing to do" is an empty plan.
func parseCalls(text string) ([]core.CapabilityCall, error) {
	match := jsonArray.FindString(text)
	if match == "" {
		lower := strings.ToLower(text)
		for _, w := range []string{"empty", "none", "no ", "[]"} {
			if strings.Contains(lower, w) {
				return []core.CapabilityCall{}, nil
			}
		}
		return nil, fmt.Errorf("no JSON array found in response: %s", core.Truncate(text, 200))
	}

	decoded, err := core.DecodeValue([]byte(match))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	items, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON array, got %T", decoded)
	}

	calls := make([]core.CapabilityCall, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object: %v", i, item)
		}
		capability, ok := obj["capability"].(string)
		if !ok || capability == "" {
			return nil, fmt.Errorf("item %d missing 'capability' field", i)
		}
		var params core.Payload
		switch v := obj["params"].(type) {
		case nil:
			params = core.Payload{}
		case map[string]any:
			params = v
		default:
			return nil, fmt.Errorf("item %d: 'params' must be an object", i)
		}
		call, err := core.NewCall(capability, params)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func callRecords(calls []core.CapabilityCall) []any {
	out := make([]any, len(calls))
	for i, c := range calls {
		out[i] = map[string]any{"capability": c.Capability, "params": core.ClonePayload(c.Params)}
	}
	return out
}

func providerMessage(err error) string {
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
