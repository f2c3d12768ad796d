package dispatch

import (
	"context"
	"fmt"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

// CallbackType names the point in a dispatch at which a callback runs.
type CallbackType string

const (
	// CallbackBeforeStep runs after plan_step_started is recorded and
	// before the handler is looked up.
	CallbackBeforeStep CallbackType = "before_step"

	// CallbackAfterStep runs after plan_step_completed is recorded.
	CallbackAfterStep CallbackType = "after_step"

	// CallbackOnFailure runs after the step that stops a dispatch.
	CallbackOnFailure CallbackType = "on_failure"

	// CallbackOnResume runs for each step that Resume skips.
	CallbackOnResume CallbackType = "on_resume"
)

// StepContext describes the step a callback observes.
type StepContext struct {
	Type    CallbackType
	Session *session.Session
	Index   int
	Call    core.CapabilityCall

	// Result is nil for before_step callbacks.
	Result *core.InvokeResult
}

// Callback observes dispatch steps. Callbacks cannot alter the outcome of a
// step; a returned error is logged and otherwise ignored.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, step *StepContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, step *StepContext) error
}

// NewFunctionCallback wraps fn as a callback of the given type.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, step *StepContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, step *StepContext) error {
	return c.fn(ctx, step)
}

// ProgressCallback prints one line per step, e.g. for CLI progress output.
type ProgressCallback struct {
	callbackType CallbackType
	print        func(line string)
}

// NewProgressCallback reports steps of callbackType through print.
func NewProgressCallback(callbackType CallbackType, print func(line string)) *ProgressCallback {
	return &ProgressCallback{callbackType: callbackType, print: print}
}

// Type implements Callback.
func (c *ProgressCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *ProgressCallback) Execute(_ context.Context, step *StepContext) error {
	if c.print == nil {
		return nil
	}
	switch {
	case step.Result == nil:
		c.print(fmt.Sprintf("[%d] %s ...", step.Index, step.Call.Capability))
	case IsResumed(*step.Result):
		c.print(fmt.Sprintf("[%d] %s resumed", step.Index, step.Call.Capability))
	case step.Result.Succeeded():
		c.print(fmt.Sprintf("[%d] %s ok", step.Index, step.Call.Capability))
	default:
		f := step.Result.Failure()
		c.print(fmt.Sprintf("[%d] %s failed: %s: %s", step.Index, step.Call.Capability, f.Code, f.Message))
	}
	return nil
}

type callbacks map[CallbackType][]Callback

func (cm callbacks) register(cb Callback) {
	cm[cb.Type()] = append(cm[cb.Type()], cb)
}
