package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/model"
)

var _ ParamDescriber = (*ModelAgent)(nil)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*model.Response)
	return resp, args.Error(1)
}

func (m *mockProvider) Info() model.Info {
	return m.Called().Get(0).(model.Info)
}

func TestModelAgent_RequestOverrides(t *testing.T) {
	llm := &mockProvider{}
	llm.On("Info").Return(model.Info{Name: "gpt-test", Provider: "openai"})
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Prompt == "hi" && req.System == "override" &&
			req.Options.MaxTokens != nil && *req.Options.MaxTokens == 7 &&
			req.Options.Temperature != nil && *req.Options.Temperature == 0.25
	})).Return(&model.Response{Text: "hello", Model: "gpt-test"}, nil).Once()

	a := NewModelAgent(llm, func(o *ModelAgentOptions) { o.System = "default" })
	assert.Equal(t, "Completes prompts with gpt-test (openai)", a.Info().Description)

	sess := newSession(t, nil)
	res, err := a.Invoke(context.Background(), CapComplete, sess, core.Payload{
		"prompt":      "hi",
		"system":      "override",
		"max_tokens":  int64(7),
		"temperature": 0.25,
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, map[string]any{"output_key": DefaultOutputKey, "text": "hello", "model": "gpt-test", "usage": nil}, res.Value())
	llm.AssertExpectations(t)
}

func TestModelAgent_Complete(t *testing.T) {
	llm := model.NewMockProvider("mock-llm")
	llm.AddResponse("Summarize: alpha beta", "short summary")

	a := NewModelAgent(llm, func(o *ModelAgentOptions) { o.System = "be terse" })
	sess := newSession(t, map[string]any{"notes": "alpha beta"})

	res, err := a.Invoke(context.Background(), CapComplete, sess, core.Payload{
		"prompt":      "Summarize: {{.notes}}",
		"output_key":  "summary",
		"temperature": int64(0),
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, "short summary", sess.State().Get("summary", nil))

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "be terse", calls[0].System)
	require.NotNil(t, calls[0].Options.Temperature)
	assert.Equal(t, 0.0, *calls[0].Options.Temperature)

	entries := sess.Trajectory().Recent(3)
	require.Len(t, entries, 3)
	assert.Equal(t, core.KindAgentInvoked, entries[0].Kind())
	prompt, _ := entries[0].Field("prompt")
	assert.Equal(t, "Summarize: alpha beta", prompt)
	assert.Equal(t, core.KindStateSet, entries[1].Kind())
	assert.Equal(t, core.KindAgentCompleted, entries[2].Kind())
	usage, _ := entries[2].Field("usage")
	assert.Equal(t, map[string]any{"input_tokens": int64(5), "output_tokens": int64(2)}, usage)
}

func TestModelAgent_PromptKey(t *testing.T) {
	llm := model.NewMockProvider("mock-llm")
	a := NewModelAgent(llm)
	sess := newSession(t, map[string]any{"question": "why?"})

	res, err := a.Invoke(context.Background(), CapComplete, sess, core.Payload{"prompt_key": "question"})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, "Mock response to: why?", sess.State().Get(DefaultOutputKey, nil))
}

func TestModelAgent_MissingPrompt(t *testing.T) {
	a := NewModelAgent(model.NewMockProvider("m"))
	sess := newSession(t, nil)
	before := sess.Trajectory().Len()

	res, err := a.Invoke(context.Background(), CapComplete, sess, core.Payload{"prompt_key": "absent"})
	require.NoError(t, err)
	assert.Equal(t, core.CodeAgentInvalidParams, res.Failure().Code)

	res, err = a.Invoke(context.Background(), CapComplete, sess, core.Payload{})
	require.NoError(t, err)
	assert.Equal(t, core.CodeAgentInvalidParams, res.Failure().Code)
	assert.Equal(t, before, sess.Trajectory().Len())
}

func TestModelAgent_ProviderError(t *testing.T) {
	llm := model.NewMockProvider("m")
	llm.FailWith(&model.ProviderError{Provider: "mock", Message: "HTTP 503", Details: map[string]any{"status": 503}})
	a := NewModelAgent(llm)
	sess := newSession(t, nil)

	res, err := a.Invoke(context.Background(), CapComplete, sess, core.Payload{"prompt": "hi"})
	require.NoError(t, err)
	f := res.Failure()
	require.NotNil(t, f)
	assert.Equal(t, core.CodeAgentInvocationFailed, f.Code)
	assert.Equal(t, int64(503), f.Details["status"])
	assert.False(t, sess.State().Has(DefaultOutputKey))

	last, _ := sess.Trajectory().Last()
	assert.Equal(t, core.KindAgentFailed, last.Kind())
}
