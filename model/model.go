package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Options are per-call overrides. Nil fields fall back to provider defaults.
type Options struct {
	MaxTokens        *int64   `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
}

// Request is a single text completion request.
type Request struct {
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Options Options `json:"options,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 { return u.InputTokens + u.OutputTokens }

// Response is the result of a completion.
type Response struct {
	Text  string      `json:"text"`
	Model string      `json:"model"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Provider is a text completion backend. Complete blocks until the backend
// answers or ctx is done. Failures are reported as *ProviderError.
// Providers do not retry; retry policy belongs to callers.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// ProviderError reports a failed completion: connection failure, timeout
// or a non-2xx HTTP status.
type ProviderError struct {
	Provider string         `json:"provider"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Err      error          `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status recorded in Details, or 0.
func (e *ProviderError) StatusCode() int {
	switch v := e.Details["status"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Float returns a pointer to v, for Options fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for Options fields.
func Int(v int64) *int64 { return &v }

// MockProvider is a deterministic in-memory Provider for tests and examples.
// Responses are matched by exact prompt, then by the longest registered
// substring; unmatched prompts echo back.
type MockProvider struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	contains  map[string]string
	err       error
	calls     []Request
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
		contains:  make(map[string]string),
	}
}

// AddResponse registers a canned completion for an exact prompt.
func (m *MockProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddContainsResponse registers a canned completion for any prompt that
// contains fragment.
func (m *MockProvider) AddContainsResponse(fragment, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contains[fragment] = response
}

// FailWith makes every subsequent call return err (nil clears it).
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the requests received so far.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: m.info.Provider, Message: "request cancelled", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}

	text, ok := m.responses[req.Prompt]
	if !ok {
		best := ""
		for frag, resp := range m.contains {
			if !strings.Contains(req.Prompt, frag) {
				continue
			}
			if !ok || len(frag) > len(best) || (len(frag) == len(best) && frag < best) {
				best, text, ok = frag, resp, true
			}
		}
	}
	if !ok {
		text = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}
	return &Response{
		Text:  text,
		Model: m.info.Name,
		Usage: &TokenUsage{InputTokens: int64(len(strings.Fields(req.System + " " + req.Prompt))), OutputTokens: int64(len(strings.Fields(text)))},
	}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
