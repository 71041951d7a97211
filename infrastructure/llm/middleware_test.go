package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-gatekeeper/internal/ports"
)

func TestTimeoutMiddleware(t *testing.T) {
	t.Run("succeeds within timeout", func(t *testing.T) {
		core := newStubCore()
		core.delay = 5 * time.Millisecond
		wrapped := TimeoutMiddleware(time.Second)(core)

		resp, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
		assert.Equal(t, `{"passed": true}`, resp)
	})

	t.Run("fails when exceeding timeout", func(t *testing.T) {
		core := newStubCore()
		core.delay = time.Second
		wrapped := TimeoutMiddleware(20 * time.Millisecond)(core)

		start := time.Now()
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	core := newStubCore()
	wrapped := RateLimitMiddleware(rate.Limit(1), 1)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	// The bucket is empty now; a short deadline cannot wait a full second.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, core.callCount())
}

func TestRetryMiddleware(t *testing.T) {
	serverErr := NewProviderError("openai", ErrorTypeServerError, 503, "unavailable", nil)
	authErr := NewProviderError("openai", ErrorTypeAuthentication, 401, "bad key", nil)

	tests := []struct {
		name      string
		errs      []error
		wantErr   error
		wantCalls int
	}{
		{name: "succeeds first try", wantCalls: 1},
		{name: "recovers after server errors", errs: []error{serverErr, serverErr}, wantCalls: 3},
		{name: "gives up after max retries", errs: []error{serverErr, serverErr, serverErr, serverErr}, wantErr: serverErr, wantCalls: 3},
		{name: "does not retry auth errors", errs: []error{authErr}, wantErr: authErr, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newStubCore()
			core.errs = tt.errs
			wrapped := RetryMiddleware(2, time.Millisecond, 5*time.Millisecond)(core)

			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, core.callCount())
		})
	}
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("test")

	core := newStubCore()
	wrapped := TracingMiddleware(tracer, "openai")(core)
	_, _, _, err := wrapped.DoRequest(context.Background(), "hello", nil)
	require.NoError(t, err)

	core.errs = []error{errors.New("boom")}
	_, _, _, err = wrapped.DoRequest(context.Background(), "hello", nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.request", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("llm.provider", "openai"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("llm.tokens.output", 20))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()
	core := newStubCore()
	wrapped := MetricsMiddleware(collector, "anthropic")(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	core.errs = []error{context.DeadlineExceeded}
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	assert.Equal(t, 2.0, collector.counters[MetricLLMRequests])
	assert.Equal(t, 30.0, collector.counters[MetricLLMTokens])
	assert.Len(t, collector.histograms[MetricLLMLatency], 2)

	last := collector.labels[len(collector.labels)-1]
	assert.Equal(t, "timeout", last["status"])
	assert.Equal(t, "anthropic", last["provider"])
}

func TestErrorClassifier(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}

	tests := []struct {
		name      string
		err       *ProviderError
		wantType  ErrorType
		retryable bool
	}{
		{name: "401", err: ec.ClassifyHTTPError(401, "", nil), wantType: ErrorTypeAuthentication},
		{name: "429", err: ec.ClassifyHTTPError(429, "", nil), wantType: ErrorTypeRateLimit, retryable: true},
		{name: "503", err: ec.ClassifyHTTPError(503, "down", nil), wantType: ErrorTypeServerError, retryable: true},
		{name: "418", err: ec.ClassifyHTTPError(418, "teapot", nil), wantType: ErrorTypeBadRequest},
		{name: "deadline", err: ec.ClassifyTransportError(context.DeadlineExceeded), wantType: ErrorTypeTimeout, retryable: true},
		{name: "canceled", err: ec.ClassifyTransportError(context.Canceled), wantType: ErrorTypeNetwork, retryable: true},
		{name: "other", err: ec.ClassifyTransportError(errors.New("x")), wantType: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
		})
	}
}

func TestProviderError_MatchesPortSentinels(t *testing.T) {
	ec := &ErrorClassifier{Provider: "anthropic"}

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{name: "rate limit", err: ec.ClassifyHTTPError(429, "", nil), target: ports.ErrRateLimited, want: true},
		{name: "server error", err: ec.ClassifyHTTPError(502, "", nil), target: ports.ErrServiceUnavailable, want: true},
		{name: "auth", err: ec.ClassifyHTTPError(403, "", nil), target: ports.ErrAuthenticationFailed, want: true},
		{name: "timeout", err: ec.ClassifyTransportError(context.DeadlineExceeded), target: ports.ErrTimeout, want: true},
		{name: "bad request is not unavailable", err: ec.ClassifyHTTPError(400, "", nil), target: ports.ErrServiceUnavailable},
		{name: "empty response", err: ErrEmptyResponse, target: ports.ErrInvalidResponse, want: true},
		{name: "no choices", err: ErrNoResponseChoice, target: ports.ErrInvalidResponse, want: true},
		{name: "wrapped in LLMError", err: ports.NewLLMError("anthropic", "m", ec.ClassifyHTTPError(429, "", nil)), target: ports.ErrRateLimited, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}

	assert.True(t, ports.NewLLMError("anthropic", "m", ec.ClassifyHTTPError(503, "", nil)).IsRetryable())
	assert.False(t, ports.NewLLMError("anthropic", "m", ec.ClassifyHTTPError(401, "", nil)).IsRetryable())
}
