// Package model defines the provider-agnostic text completion boundary used
// by the planner and by completion-backed agents.
//
// A Provider answers a single Request (prompt, optional system message and
// per-call Options) with a Response (text, model id, optional TokenUsage).
// Failures are *ProviderError values carrying structured details.
//
// Providers (OpenAI-compatible endpoints, Anthropic) live in sub-packages so
// callers depend on vendor SDKs only when they wire one in. MockProvider
// gives tests deterministic completions.
package model
