// Package llm provides the backends used by llm_self_check criteria.
//
// Each backend (OpenAI-compatible chat completions, Anthropic messages,
// Gemini generateContent) is a CoreLLM strategy registered by name. The
// self-check call site only ever sees ports.LLMClient; cross-cutting
// behavior (timeouts, rate limiting, retries, tracing, metrics) is added
// by wrapping the strategy in Middleware.
//
// Basic usage:
//
//	client, err := llm.NewClientForIntegration(domain.LLMIntegrationConfig{
//	    Enabled:   true,
//	    Model:     "gpt-4o-mini",
//	    MaxTokens: 512,
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	}, llm.IntegrationOptions{})
//	verdict, err := client.Complete(ctx, prompt, nil)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// CoreLLM is the minimal interface a backend strategy implements.
// Middleware wraps CoreLLM values to add behavior without touching the
// strategy itself.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the response text together with
	// input and output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds the settings needed to construct a backend strategy.
type ClientConfig struct {
	// APIKey authenticates requests to the backend.
	APIKey string

	// Model is the model used when a request does not name one.
	Model string

	// BaseURL overrides the backend's default API root.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero leaves it unbounded;
	// per-request bounds come from TimeoutMiddleware.
	Timeout time.Duration

	// Middleware is applied in order, the first entry being outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	core    CoreLLM
	counter *TokenCounter
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a client for the named backend strategy.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core, counter: NewTokenCounter()}, nil
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and also returns token usage.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.counter.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying strategy.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a backend strategy from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is populated by the init functions of each provider file.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a backend strategy under a name.
// Registering an existing name replaces it, which tests use to install fakes.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// GetProviderFactory returns the factory registered under name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	factory, ok := providerFactories[name]
	return factory, ok
}
