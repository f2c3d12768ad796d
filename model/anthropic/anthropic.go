// Package anthropic implements model.Provider on top of the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/kaizen/model"
)

const providerName = "anthropic"

// DefaultModel is used when Options.Model is empty.
const DefaultModel = anthropic.Model("claude-sonnet-4-20250514")

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// Options configure the Anthropic provider.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       anthropic.Model
	Timeout     time.Duration
	MaxTokens   int64
	Temperature float64

	HTTPClient *http.Client
}

// Provider completes prompts with the Messages API.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Provider = (*Provider)(nil)

func defaultOptions() Options {
	return Options{
		Model:       DefaultModel,
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

	client := anthropic.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider around an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Info implements model.Provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: string(p.opts.Model), Provider: providerName}
}

// Complete implements model.Provider. Text blocks of the reply are
// concatenated; other block types are ignored.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, p.wrapError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	out := &model.Response{
		Text:  sb.String(),
		Model: string(resp.Model),
	}
	if out.Model == "" {
		out.Model = string(p.opts.Model)
	}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}
	return out, nil
}

func (p *Provider) buildParams(req model.Request) anthropic.MessageNewParams {
	o := req.Options
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if o.MaxTokens != nil {
		params.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(*o.Temperature)
	}
	if o.TopP != nil {
		params.TopP = anthropic.Float(*o.TopP)
	}
	if len(o.Stop) > 0 {
		params.StopSequences = o.Stop
	}
	return params
}

func (p *Provider) wrapError(err error) *model.ProviderError {
	details := map[string]any{
		"base_url": p.opts.BaseURL,
		"error":    err.Error(),
	}

	var apiErr *anthropic.Error
	switch {
	case errors.As(err, &apiErr):
		details["status"] = apiErr.StatusCode
		return &model.ProviderError{
			Provider: providerName,
			Message:  "HTTP " + http.StatusText(apiErr.StatusCode),
			Details:  details,
			Err:      err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		details["timeout"] = p.opts.Timeout.Seconds()
		return &model.ProviderError{Provider: providerName, Message: "request timed out", Details: details, Err: err}
	case errors.Is(err, context.Canceled):
		return &model.ProviderError{Provider: providerName, Message: "request cancelled", Details: details, Err: err}
	default:
		return &model.ProviderError{Provider: providerName, Message: "connection failed", Details: details, Err: err}
	}
}
