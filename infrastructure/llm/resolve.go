package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// ResolveProvider picks the backend strategy for a self-check configuration.
// An explicit Provider wins; otherwise the endpoint host decides, and
// anything unrecognized is treated as OpenAI-compatible.
func ResolveProvider(cfg domain.LLMIntegrationConfig) string {
	if cfg.Provider != "" && cfg.Provider != domain.ProviderAuto {
		return cfg.Provider
	}

	u, err := url.Parse(cfg.ResolvedEndpoint())
	if err != nil {
		return domain.ProviderOpenAI
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "anthropic"):
		return domain.ProviderAnthropic
	case strings.HasSuffix(host, "googleapis.com"):
		return domain.ProviderGoogle
	default:
		return domain.ProviderOpenAI
	}
}

// BaseURLFor converts a full chat endpoint into the API root each SDK
// expects. The endpoint must already be a valid URL.
func BaseURLFor(provider, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""

	path := strings.TrimRight(u.Path, "/")
	switch provider {
	case domain.ProviderOpenAI:
		path = strings.TrimSuffix(path, "/chat/completions")
	case domain.ProviderAnthropic:
		path = strings.TrimSuffix(path, "/v1/messages")
	case domain.ProviderGoogle:
		// genai appends the API version and model path itself.
		path = ""
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	u.Path = path

	return u.String(), nil
}

// IntegrationOptions carries the observability hooks attached to clients
// built from an LLMIntegrationConfig.
type IntegrationOptions struct {
	Tracer  trace.Tracer
	Metrics ports.MetricsCollector
}

// NewClientForIntegration builds a fully wrapped client for cfg. The
// middleware order, outermost first, is tracing, metrics, rate limit,
// retry, timeout, so each retry gets its own deadline and every
// attempt waits for the limiter.
func NewClientForIntegration(cfg domain.LLMIntegrationConfig, opts IntegrationOptions) (*Client, error) {
	provider := ResolveProvider(cfg)
	if _, ok := GetProviderFactory(provider); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	baseURL, err := BaseURLFor(provider, cfg.ResolvedEndpoint())
	if err != nil {
		return nil, err
	}

	var middleware []Middleware
	if opts.Tracer != nil {
		middleware = append(middleware, TracingMiddleware(opts.Tracer, provider))
	}
	if opts.Metrics != nil {
		middleware = append(middleware, MetricsMiddleware(opts.Metrics, provider))
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		middleware = append(middleware, RateLimitMiddleware(rate.Limit(cfg.RequestsPerSecond), burst))
	}
	if cfg.MaxRetries > 0 {
		middleware = append(middleware, RetryMiddleware(cfg.MaxRetries, DefaultRetryBaseDelay, DefaultRetryMaxDelay))
	}
	middleware = append(middleware, TimeoutMiddleware(ValidateTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second)))

	return NewClient(provider, ClientConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    baseURL,
		Middleware: middleware,
	})
}
