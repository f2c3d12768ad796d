// Package dispatch routes capability calls to registered agents.
//
// A Dispatcher runs an ordered list of core.CapabilityCall values against
// one session. Every call is bracketed by plan_step_started and
// plan_step_completed trajectory entries, and the first failed call stops
// the run. Handler errors and panics never escape: they become
// agent_invocation_failed results.
//
// Resume re-runs a list after an interruption, skipping every call whose
// (step index, capability) pair the trajectory already records as
// successful.
package dispatch
