// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers helpers that tag records with a component
// or session and domain specific helpers for dispatch steps, model
// completions and session persistence.
//
// Logging is operator telemetry only; the session trajectory remains the
// audit record of what happened.
package logging
