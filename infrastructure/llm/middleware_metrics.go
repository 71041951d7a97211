package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// Metric names recorded by MetricsMiddleware.
const (
	MetricLLMLatency  = "llm_latency_seconds"
	MetricLLMRequests = "llm_requests_total"
	MetricLLMTokens   = "llm_tokens_total"
)

// metricsLLM records latency, request outcomes and token usage.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware creates middleware that reports to collector.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector, provider: provider}
	}
}

// DoRequest executes the request while collecting metrics.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram(MetricLLMLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricLLMRequests, 1, labels)

	if err == nil {
		m.collector.RecordCounter(MetricLLMTokens, float64(tokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter(MetricLLMTokens, float64(tokensOut), withLabel(labels, "token_type", "output"))
	}

	return response, tokensIn, tokensOut, err
}

func requestStatus(ctx context.Context, err error) string {
	if err == nil {
		return "success"
	}
	var provErr *ProviderError
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &provErr) && provErr.Type == ErrorTypeTimeout) {
		return "timeout"
	}
	return "error"
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for key, val := range labels {
		out[key] = val
	}
	out[k] = v
	return out
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
