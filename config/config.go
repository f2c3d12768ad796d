package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/logging"
	"github.com/hupe1980/kaizen/model"
	"github.com/hupe1980/kaizen/model/anthropic"
	"github.com/hupe1980/kaizen/model/openai"
	"github.com/hupe1980/kaizen/session"
)

// Provider kinds.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds every tunable of a kaizen process. Each section maps to the
// options of one package.
type Config struct {
	Session     SessionConfig     `yaml:"session"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Logging     LoggingConfig     `yaml:"logging"`
	Provider    ProviderConfig    `yaml:"provider"`
}

// SessionConfig bounds in-memory session content.
type SessionConfig struct {
	MaxArtifactSize int64 `yaml:"max_artifact_size,omitempty"`
}

// PersistenceConfig controls the session file.
type PersistenceConfig struct {
	Compression string `yaml:"compression,omitempty"` // none or zstd
	// VerifyDigests is a pointer so an explicit false survives Merge.
	VerifyDigests *bool `yaml:"verify_digests,omitempty"`
}

// LoggingConfig controls operator logs. They go to stderr.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text or json
}

// ProviderConfig selects the completion backend for the planner and the
// model agent.
type ProviderConfig struct {
	Kind      string `yaml:"kind,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	// Timeout is a time.ParseDuration string such as "30s".
	Timeout     string  `yaml:"timeout,omitempty"`
	MaxTokens   int64   `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// Default returns a Config with the library defaults.
func Default() Config {
	verify := true
	return Config{
		Session: SessionConfig{MaxArtifactSize: session.DefaultMaxArtifactSize},
		Persistence: PersistenceConfig{
			Compression:   string(session.CompressionNone),
			VerifyDigests: &verify,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Provider: ProviderConfig{
			Kind:    ProviderMock,
			Timeout: "60s",
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.Session.MaxArtifactSize > 0 {
		c.Session.MaxArtifactSize = source.Session.MaxArtifactSize
	}

	if source.Persistence.Compression != "" {
		c.Persistence.Compression = source.Persistence.Compression
	}
	if source.Persistence.VerifyDigests != nil {
		v := *source.Persistence.VerifyDigests
		c.Persistence.VerifyDigests = &v
	}

	if source.Logging.Level != "" {
		c.Logging.Level = source.Logging.Level
	}
	if source.Logging.Format != "" {
		c.Logging.Format = source.Logging.Format
	}

	p := source.Provider
	if p.Kind != "" {
		c.Provider.Kind = p.Kind
	}
	if p.BaseURL != "" {
		c.Provider.BaseURL = p.BaseURL
	}
	if p.Model != "" {
		c.Provider.Model = p.Model
	}
	if p.APIKeyEnv != "" {
		c.Provider.APIKeyEnv = p.APIKeyEnv
	}
	if p.Timeout != "" {
		c.Provider.Timeout = p.Timeout
	}
	if p.MaxTokens > 0 {
		c.Provider.MaxTokens = p.MaxTokens
	}
	if p.Temperature != 0 {
		c.Provider.Temperature = p.Temperature
	}
}

// Load reads a YAML file and merges it over Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses YAML from r and merges it over Default. Unknown keys are
// rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	var loaded Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&loaded); err != nil && err != io.EOF {
		return nil, core.WrapError(core.CodeValidation, err, "failed to parse config file")
	}

	cfg.Merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Session.MaxArtifactSize <= 0 {
		problems = append(problems, "session.max_artifact_size must be positive")
	}
	switch session.Compression(c.Persistence.Compression) {
	case session.CompressionNone, session.CompressionZstd:
	default:
		problems = append(problems, fmt.Sprintf("persistence.compression %q is not one of none, zstd", c.Persistence.Compression))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	switch c.Provider.Kind {
	case ProviderMock, ProviderOpenAI, ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("provider.kind %q is not one of mock, openai, anthropic", c.Provider.Kind))
	}
	if _, err := c.Provider.timeout(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Provider.MaxTokens < 0 {
		problems = append(problems, "provider.max_tokens must not be negative")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		problems = append(problems, "provider.temperature must be within [0, 2]")
	}

	if len(problems) > 0 {
		return core.NewError(core.CodeValidation, "invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (p ProviderConfig) timeout() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("provider.timeout %q: %w", p.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("provider.timeout %q must not be negative", p.Timeout)
	}
	return d, nil
}

// SessionOptions translates the session and persistence sections into
// session options.
func (c *Config) SessionOptions() []func(o *session.Options) {
	opts := []func(o *session.Options){
		session.WithMaxArtifactSize(c.Session.MaxArtifactSize),
		session.WithCompression(session.Compression(c.Persistence.Compression)),
	}
	if c.Persistence.VerifyDigests != nil {
		opts = append(opts, session.WithVerifyDigests(*c.Persistence.VerifyDigests))
	}
	return opts
}

// Logger builds the operator logger described by the logging section,
// writing to out (stderr when nil).
func (c *Config) Logger(out io.Writer) logging.Logger {
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Format = strings.ToLower(c.Logging.Format)
	if out != nil {
		cfg.Output = out
	}
	return logging.NewLogger(cfg)
}

// NewProvider builds the completion backend described by the provider
// section. The API key is read from the environment variable named by
// api_key_env; the SDK's own environment lookup applies when it is empty.
func (c *Config) NewProvider() (model.Provider, error) {
	p := c.Provider
	timeout, err := p.timeout()
	if err != nil {
		return nil, core.WrapError(core.CodeValidation, err, "invalid provider timeout")
	}
	apiKey := ""
	if p.APIKeyEnv != "" {
		apiKey = os.Getenv(p.APIKeyEnv)
		if apiKey == "" {
			return nil, core.NewError(core.CodeValidation, "environment variable %s is not set", p.APIKeyEnv).
				WithDetails(map[string]any{"api_key_env": p.APIKeyEnv})
		}
	}

	switch p.Kind {
	case ProviderMock, "":
		name := p.Model
		if name == "" {
			name = "mock"
		}
		return model.NewMockProvider(name), nil
	case ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.BaseURL = p.BaseURL
			o.APIKey = apiKey
			if p.Model != "" {
				o.Model = p.Model
			}
			if timeout > 0 {
				o.Timeout = timeout
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
			if p.Temperature != 0 {
				o.Temperature = p.Temperature
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.BaseURL = p.BaseURL
			o.APIKey = apiKey
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			if timeout > 0 {
				o.Timeout = timeout
			}
			if p.MaxTokens > 0 {
				o.MaxTokens = p.MaxTokens
			}
			if p.Temperature != 0 {
				o.Temperature = p.Temperature
			}
		}), nil
	default:
		return nil, core.NewError(core.CodeValidation, "unknown provider kind %q", p.Kind)
	}
}
