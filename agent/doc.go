// Package agent defines the capability handler boundary and the built-in
// handlers.
//
// An Agent declares its capabilities through Info and performs them in
// Invoke against a *session.Session. Expected failures are returned as
// failed core.InvokeResult values; BaseAgent provides the helpers that
// build them with the right error codes.
//
// Built-in handlers:
//   - ReverseAgent and UppercaseAgent rewrite a string held in state
//   - StateAgent exposes state, artifact and note operations
//   - ModelAgent sends a prompt to a model.Provider
//   - FuncAgent adapts plain functions
package agent
