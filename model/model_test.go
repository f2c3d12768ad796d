package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Provider = (*MockProvider)(nil)

func TestMockProvider_Matching(t *testing.T) {
	m := NewMockProvider("mock-1")
	m.AddResponse("exact prompt", "exact answer")
	m.AddContainsResponse("reverse", "short")
	m.AddContainsResponse("reverse the", "long")

	ctx := context.Background()

	resp, err := m.Complete(ctx, Request{Prompt: "exact prompt"})
	require.NoError(t, err)
	assert.Equal(t, "exact answer", resp.Text)
	assert.Equal(t, "mock-1", resp.Model)

	resp, err = m.Complete(ctx, Request{Prompt: "please reverse the text"})
	require.NoError(t, err)
	assert.Equal(t, "long", resp.Text)

	resp, err = m.Complete(ctx, Request{Prompt: "something else"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: something else", resp.Text)

	assert.Len(t, m.Calls(), 3)
}

func TestMockProvider_Usage(t *testing.T) {
	m := NewMockProvider("mock")
	m.AddResponse("a b c", "d e")

	resp, err := m.Complete(context.Background(), Request{Prompt: "a b c", System: "s"})
	require.NoError(t, err)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(4), resp.Usage.InputTokens)
	assert.Equal(t, int64(2), resp.Usage.OutputTokens)
	assert.Equal(t, int64(6), resp.Usage.Total())
}

func TestMockProvider_FailWith(t *testing.T) {
	m := NewMockProvider("mock")
	boom := &ProviderError{Provider: "mock", Message: "HTTP 500", Details: map[string]any{"status": 500}}
	m.FailWith(boom)

	_, err := m.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 500, pe.StatusCode())
	assert.Equal(t, "mock: HTTP 500", pe.Error())

	m.FailWith(nil)
	_, err = m.Complete(context.Background(), Request{Prompt: "x"})
	assert.NoError(t, err)
}

func TestMockProvider_Cancelled(t *testing.T) {
	m := NewMockProvider("mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Complete(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Calls())
}

func TestProviderError_StatusCode(t *testing.T) {
	assert.Equal(t, 404, (&ProviderError{Details: map[string]any{"status": int64(404)}}).StatusCode())
	assert.Zero(t, (&ProviderError{}).StatusCode())
}
