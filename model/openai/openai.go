// Package openai implements model.Provider on top of the OpenAI Chat
// Completions API. Any OpenAI-compatible endpoint (vLLM, Ollama's /v1,
// LM Studio) works by pointing BaseURL at it.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/kaizen/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai"

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// Options configure the OpenAI provider.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int64
	Temperature float64

	// HTTPClient overrides the SDK's transport. Tests point it at httptest.
	HTTPClient *http.Client
}

// Provider completes prompts against a Chat Completions endpoint.
type Provider struct {
	client *openai.Client
	opts   Options
}

var _ model.Provider = (*Provider)(nil)

func defaultOptions() Options {
	return Options{
		Model:       openai.ChatModelGPT4oMini,
		Timeout:     DefaultTimeout,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// New creates a provider with its own client. SDK retries are disabled.
func New(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider around an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: providerName}
}

// Complete implements model.Provider.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &model.ProviderError{
			Provider: providerName,
			Message:  "response contained no choices",
			Details:  map[string]any{"base_url": p.opts.BaseURL},
		}
	}

	out := &model.Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
	}
	if out.Model == "" {
		out.Model = p.opts.Model
	}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}

func (p *Provider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	o := req.Options
	params := openai.ChatCompletionNewParams{
		Model:       p.opts.Model,
		Messages:    messages,
		Temperature: openai.Float(p.opts.Temperature),
	}
	if p.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(p.opts.MaxTokens)
	}
	if o.MaxTokens != nil {
		params.MaxTokens = openai.Int(*o.MaxTokens)
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}
	if o.TopP != nil {
		params.TopP = openai.Float(*o.TopP)
	}
	if o.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*o.FrequencyPenalty)
	}
	if o.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*o.PresencePenalty)
	}
	if o.Seed != nil {
		params.Seed = openai.Int(*o.Seed)
	}
	if len(o.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: o.Stop}
	}
	return params
}

func (p *Provider) wrapError(err error) *model.ProviderError {
	details := map[string]any{
		"base_url": p.opts.BaseURL,
		"error":    err.Error(),
	}

	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		details["status"] = apiErr.StatusCode
		msg := "HTTP " + http.StatusText(apiErr.StatusCode)
		if m := strings.TrimSpace(apiErr.Message); m != "" {
			msg += ": " + m
		}
		return &model.ProviderError{Provider: providerName, Message: msg, Details: details, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		details["timeout"] = p.opts.Timeout.Seconds()
		return &model.ProviderError{Provider: providerName, Message: "request timed out", Details: details, Err: err}
	case errors.Is(err, context.Canceled):
		return &model.ProviderError{Provider: providerName, Message: "request cancelled", Details: details, Err: err}
	default:
		return &model.ProviderError{Provider: providerName, Message: "connection failed", Details: details, Err: err}
	}
}
