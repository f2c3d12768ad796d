package dispatch

import (
	"fmt"

	"github.com/hupe1980/kaizen/core"
)

// Result aggregates the outcomes of one dispatch. Results holds one entry
// per executed (or resumed) call, in call order; a failure is always last.
type Result struct {
	Results []core.InvokeResult
}

// Succeeded reports whether every executed call succeeded.
func (r *Result) Succeeded() bool {
	_, failed := r.FailedAt()
	return !failed
}

// FailedAt returns the index of the first failed call.
func (r *Result) FailedAt() (int, bool) {
	for i, res := range r.Results {
		if !res.Succeeded() {
			return i, true
		}
	}
	return -1, false
}

// Err returns the failure of the first failed call, or nil.
func (r *Result) Err() *core.Failure {
	i, failed := r.FailedAt()
	if !failed {
		return nil
	}
	return r.Results[i].Failure()
}

// Executed returns the number of calls that produced a result.
func (r *Result) Executed() int { return len(r.Results) }

// CompletedIndices returns the indices of successful calls.
func (r *Result) CompletedIndices() []int {
	out := []int{}
	for i, res := range r.Results {
		if res.Succeeded() {
			out = append(out, i)
		}
	}
	return out
}

// ResumedIndices returns the indices that Resume skipped because the
// trajectory already recorded them as successful.
func (r *Result) ResumedIndices() []int {
	out := []int{}
	for i, res := range r.Results {
		if IsResumed(res) {
			out = append(out, i)
		}
	}
	return out
}

func (r *Result) String() string {
	if i, failed := r.FailedAt(); failed {
		return fmt.Sprintf("dispatch failed at %d: %s", i, r.Err().Error())
	}
	return fmt.Sprintf("dispatch succeeded: %d executed", r.Executed())
}

// IsResumed reports whether res is the synthetic success Resume produces
// for an already completed step.
func IsResumed(res core.InvokeResult) bool {
	if res.AgentID != OriginID {
		return false
	}
	m, ok := res.Value().(map[string]any)
	if !ok {
		return false
	}
	resumed, _ := m["resumed"].(bool)
	return resumed
}
