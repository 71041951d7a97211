package ports

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	// The implementation should handle rate limiting and timeouts.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline propagation
	//   - prompt: The input prompt for the LLM
	//   - options: Provider-specific options (temperature, max tokens, etc.)
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-2.0)
	//   - "max_tokens": int
	//   - "system_prompt": string
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	// This is useful for cost estimation and staying within model limits.
	// The estimation method may vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	// This is useful for logging and debugging purposes.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// The validator and the LLM middleware report through it; the Prometheus
// implementation lives in infrastructure/observability.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// Used for validation outcomes and self-check request counts.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// Used for the number of gates currently loaded.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// Used for self-check scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ConfigLoader defines the interface for loading configuration.
// Implementations could read from files, environment variables,
// remote configuration services, or a combination of sources.
type ConfigLoader interface {
	// Load reads configuration from the underlying source.
	// It should populate the provided configuration struct.
	// The config parameter should be a pointer to a struct.
	//
	// Example:
	//
	//	var cfg application.ServiceConfig
	//	err := loader.Load(ctx, &cfg)
	Load(ctx context.Context, config any) error

	// Watch monitors configuration changes and calls the callback when
	// changes occur.
	// This enables hot-reloading of configuration without service restart.
	// The callback receives the updated configuration.
	// Returns a function to stop watching when called.
	//
	// Example:
	//
	//	stop, err := loader.Watch(ctx, &cfg, func(updated any) {
	//	    svc.UpdateConfig(...)
	//	})
	//	defer stop()
	Watch(ctx context.Context, config any, callback func(any)) (stop func(), err error)
}
