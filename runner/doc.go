// Package runner drives whole runs over a session file: load or create the
// session, optionally plan a natural-language request, dispatch or resume
// the calls, and save the result back to the same file.
package runner
