// Package llm adapts langchaingo models to librarian.GenerationClient.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smhanov/librarian"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderGoogle    = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

const (
	DefaultProvider = ProviderGoogle
	DefaultModel    = "gemini-2.5-flash"
	DefaultTimeout  = 2 * time.Minute
)

var errEmptyCompletion = errors.New("model returned no content")

// Config selects and tunes a model.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	// Timeout bounds a single Generate call. Zero disables the limit.
	Timeout time.Duration
}

// Client implements librarian.GenerationClient over a langchaingo model.
// Every failure is returned as *librarian.UpstreamError.
type Client struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

// New creates a Client for the configured provider.
func New(ctx context.Context, cfg Config) (*Client, error) {
	model, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFromModel(model, cfg.Temperature, cfg.Timeout), nil
}

// NewFromModel wraps an already constructed langchaingo model.
func NewFromModel(model llms.Model, temperature float64, timeout time.Duration) *Client {
	return &Client{model: model, temperature: temperature, timeout: timeout}
}

// Generate sends prompt as a single user message and returns the text of
// the first choice with <think> blocks removed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", &librarian.UpstreamError{Err: err}
	}
	out = librarian.StripThinkBlocks(out)
	if out == "" {
		return "", &librarian.UpstreamError{Err: errEmptyCompletion}
	}
	return out, nil
}

func newModel(ctx context.Context, cfg Config) (llms.Model, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGoogle, "":
		opts := []googleai.Option{googleai.WithDefaultModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			return nil, fmt.Errorf("googleai does not support a custom base URL")
		}
		return googleai.New(ctx, opts...)
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
