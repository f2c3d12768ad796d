package core

import (
	"fmt"
	"unicode/utf8"
)

// Outcome is either Success or Failure. The interface is sealed so the
// "exactly one of value or error" rule is carried by the type itself.
type Outcome interface {
	outcome()
}

// Success carries the JSON-compatible result of a capability invocation.
type Success struct {
	Value any `json:"value"`
}

func (Success) outcome() {}

// Failure describes why a capability invocation did not succeed.
type Failure struct {
	Code    ErrorCode      `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (*Failure) outcome() {}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Is lets a Failure match the typed error sentinels by code.
func (f *Failure) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return t.Code == f.Code
	case *Failure:
		return t.Code == f.Code
	}
	return false
}

// InvokeResult is what a handler returns for one capability call.
type InvokeResult struct {
	AgentID    string
	Capability string
	Outcome    Outcome
}

// OK builds a successful result. Non JSON-compatible values are replaced by
// their string form so that the result can always be recorded.
func OK(agentID, capability string, value any) InvokeResult {
	v, err := Canonicalize(value)
	if err != nil {
		v = fmt.Sprint(value)
	}
	return InvokeResult{AgentID: agentID, Capability: capability, Outcome: Success{Value: v}}
}

// Fail builds a failed result.
func Fail(agentID, capability string, code ErrorCode, message string, details map[string]any) InvokeResult {
	d, err := CanonicalizePayload(details)
	if err != nil || len(d) == 0 {
		d = nil
	}
	return InvokeResult{
		AgentID:    agentID,
		Capability: capability,
		Outcome:    &Failure{Code: code, Message: message, Details: d},
	}
}

// Normalize returns r with a *Success outcome dereferenced and a nil
// *Success or *Failure outcome cleared, so that Outcome is either a
// Success value, a non-nil *Failure, or nil.
func (r InvokeResult) Normalize() InvokeResult {
	switch o := r.Outcome.(type) {
	case *Success:
		if o == nil {
			r.Outcome = nil
		} else {
			r.Outcome = *o
		}
	case *Failure:
		if o == nil {
			r.Outcome = nil
		}
	}
	return r
}

func (r InvokeResult) success() (Success, bool) {
	switch o := r.Outcome.(type) {
	case Success:
		return o, true
	case *Success:
		if o != nil {
			return *o, true
		}
	}
	return Success{}, false
}

// Succeeded reports whether the outcome is a Success.
func (r InvokeResult) Succeeded() bool {
	_, ok := r.success()
	return ok
}

// Value returns a copy of the success value, or nil for failures.
func (r InvokeResult) Value() any {
	if s, ok := r.success(); ok {
		return Clone(s.Value)
	}
	return nil
}

// Failure returns the failure, or nil for successes. It never returns nil
// when Succeeded is false: a result without a usable outcome is reported
// as an invocation failure.
func (r InvokeResult) Failure() *Failure {
	if _, ok := r.success(); ok {
		return nil
	}
	if f, ok := r.Outcome.(*Failure); ok && f != nil {
		return f
	}
	return &Failure{Code: CodeAgentInvocationFailed, Message: "handler returned an empty result"}
}

// Record renders the result as a plain JSON-compatible map.
func (r InvokeResult) Record() Payload {
	out := Payload{
		"agent_id":   r.AgentID,
		"capability": r.Capability,
		"success":    r.Succeeded(),
	}
	if f := r.Failure(); f != nil {
		errMap := Payload{"error_code": string(f.Code), "message": f.Message}
		if len(f.Details) > 0 {
			errMap["details"] = ClonePayload(f.Details)
		}
		out["error"] = errMap
	} else {
		out["result"] = r.Value()
	}
	return out
}

// Summary renders the value or failure as JSON text truncated to limit runes.
func (r InvokeResult) Summary(limit int) string {
	var subject any
	if f := r.Failure(); f != nil {
		subject = Payload{"error_code": string(f.Code), "message": f.Message}
	} else {
		subject = r.Value()
	}
	data, err := EncodeValue(subject)
	if err != nil {
		return Truncate(fmt.Sprint(subject), limit)
	}
	return Truncate(string(data), limit)
}

// Truncate shortens s to at most n runes. A non-positive n leaves s as is.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
