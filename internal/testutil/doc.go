// Package testutil contains builders and fakes shared by tests: a fluent
// session builder, a deterministic clock, temp session paths and an agent
// that records its invocations. Not for production use.
package testutil
