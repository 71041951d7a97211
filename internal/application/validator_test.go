package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
	"github.com/ahrav/go-gatekeeper/internal/testutils"
)

func TestValidateGate_GuidanceGatesAlwaysPass(t *testing.T) {
	v := NewGateValidator(newStore())

	for _, content := range []string{"", "x", strings.Repeat("long ", 1000)} {
		result, err := v.ValidateGate(context.Background(), "style", domain.ValidationContext{Content: content})
		require.NoError(t, err)
		assert.True(t, result.Valid())
		assert.Empty(t, result.Checks)
		assert.Empty(t, result.RetryHints)
		assert.Equal(t, 0, result.Metadata.ChecksPerformed)
	}
}

func TestValidateGate_SEOGateTooShort(t *testing.T) {
	v := NewGateValidator(newStore())

	result, err := v.ValidateGate(context.Background(), "seo-gate", domain.ValidationContext{Content: strings.Repeat("a", 30)})
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, "Content too short: 30 < 50 characters", result.Checks[0].Message)
	assert.Equal(t, domain.CheckStatusFailed, result.Checks[0].Status)
	require.NotEmpty(t, result.RetryHints)
	assert.Contains(t, result.RetryHints[0], testutils.SEOGate().Guidance)
	assert.Contains(t, strings.Join(result.RetryHints, "\n"), "Content too short")
	assert.Equal(t, 1, result.Metadata.ChecksPerformed)
	assert.False(t, result.Metadata.LLMValidationUsed)
}

func TestValidateGate_Passing(t *testing.T) {
	v := NewGateValidator(newStore())

	result, err := v.ValidateGate(context.Background(), "seo-gate", domain.ValidationContext{Content: strings.Repeat("a", 50)})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.RetryHints)
}

func TestValidateGate_NotFound(t *testing.T) {
	logger, logs := observedLogger(zapcore.DebugLevel)
	v := NewGateValidator(newStore(), WithLogger(logger))

	result, err := v.ValidateGate(context.Background(), "seo-gat", domain.ValidationContext{})
	assert.Nil(t, result)
	require.ErrorIs(t, err, domain.ErrGateNotFound)

	entries := logs.FilterMessage("gate not found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "seo-gate", entries[0].ContextMap()["did_you_mean"])

	_, err = v.ValidateGate(context.Background(), "completely-unrelated-id", domain.ValidationContext{})
	require.ErrorIs(t, err, domain.ErrGateNotFound)
	last := logs.FilterMessage("gate not found").All()[1]
	assert.NotContains(t, last.ContextMap(), "did_you_mean")

	stats := v.Statistics()
	assert.Zero(t, stats.SuccessfulValidations+stats.FailedValidations, "unknown gates are not counted")
}

func TestValidateGate_SystemErrors(t *testing.T) {
	tests := []struct {
		name        string
		provider    ports.GateDefinitionProvider
		wantMessage string
	}{
		{
			name:        "provider failure",
			provider:    erroringProvider{err: errStoreOffline},
			wantMessage: "gate store offline",
		},
		{
			name: "invalid regex",
			provider: newStore(&domain.GateDefinition{
				ID: "g", Type: domain.GateTypeValidation,
				PassCriteria: []domain.PassCriterion{domain.ContentCheck{RequiredPatterns: []string{"("}}},
			}),
			wantMessage: "invalid pattern",
		},
		{
			name: "nil criterion",
			provider: newStore(&domain.GateDefinition{
				ID: "g", Type: domain.GateTypeValidation,
				PassCriteria: []domain.PassCriterion{nil},
			}),
			wantMessage: "unsupported criterion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewGateValidator(tt.provider)

			result, err := v.ValidateGate(context.Background(), "g", domain.ValidationContext{Content: "x"})
			require.NoError(t, err)
			assert.False(t, result.Passed)
			require.Len(t, result.Checks, 1)
			assert.Equal(t, domain.CheckSystemError, result.Checks[0].Type)
			assert.Equal(t, domain.CheckStatusError, result.Checks[0].Status)
			assert.Contains(t, result.Checks[0].Message, tt.wantMessage)
			assert.Equal(t, []string{SystemErrorRetryHint}, result.RetryHints)
			assert.Equal(t, int64(1), v.Statistics().FailedValidations)
		})
	}
}

type panickingClient struct{ testutils.MockLLMClient }

func (*panickingClient) Complete(context.Context, string, map[string]any) (string, error) {
	panic("backend exploded")
}

func TestValidateGate_PanicBecomesSystemError(t *testing.T) {
	logger, logs := observedLogger(zapcore.ErrorLevel)
	v := NewGateValidator(newStore(),
		WithLogger(logger),
		WithLLMIntegration(testutils.EnabledLLMIntegration()),
		WithSelfChecker(selfCheckerWith(&panickingClient{})))

	result, err := v.ValidateGate(context.Background(), "accuracy", domain.ValidationContext{Content: "x"})
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, domain.CheckSystemError, result.Checks[0].Type)
	assert.Contains(t, result.Checks[0].Message, "backend exploded")
	assert.Equal(t, 1, logs.FilterMessage("panic during gate validation").Len())
}

func TestValidateGates_ProviderPanicIsContained(t *testing.T) {
	v := NewGateValidator(panickingProvider{inner: newStore(), id: "style"})

	results, err := v.ValidateGates(context.Background(), []string{"seo-gate", "style"},
		domain.ValidationContext{Content: strings.Repeat("Long enough content. ", 5)})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "seo-gate", results[0].GateID)
	assert.True(t, results[0].Passed, "the healthy gate is unaffected")

	assert.Equal(t, "style", results[1].GateID)
	assert.False(t, results[1].Passed)
	require.Len(t, results[1].Checks, 1)
	assert.Equal(t, domain.CheckSystemError, results[1].Checks[0].Type)
	assert.Contains(t, results[1].Checks[0].Message, "provider blew up")
	assert.Equal(t, []string{SystemErrorRetryHint}, results[1].RetryHints)
}

func TestValidateGate_SelfCheck(t *testing.T) {
	tests := []struct {
		name         string
		llm          domain.LLMIntegrationConfig
		response     string
		wantPassed   bool
		wantStatus   domain.CheckStatus
		wantLLMUsed  bool
		wantCalls    int
		wantHintPart string
	}{
		{
			name:        "disabled integration skips",
			llm:         domain.LLMIntegrationConfig{},
			wantPassed:  true,
			wantStatus:  domain.CheckStatusSkipped,
			wantLLMUsed: false,
		},
		{
			name:        "passing verdict",
			llm:         testutils.EnabledLLMIntegration(),
			response:    testutils.PassingVerdict,
			wantPassed:  true,
			wantStatus:  domain.CheckStatusPassed,
			wantLLMUsed: true,
			wantCalls:   1,
		},
		{
			name:         "failing verdict carries feedback into hints",
			llm:          testutils.EnabledLLMIntegration(),
			response:     testutils.FailingVerdict,
			wantStatus:   domain.CheckStatusFailed,
			wantLLMUsed:  true,
			wantCalls:    1,
			wantHintPart: "Address the reviewer feedback: Claims are unsupported",
		},
		{
			name: "empty api key fails without a call",
			llm: func() domain.LLMIntegrationConfig {
				cfg := testutils.EnabledLLMIntegration()
				cfg.APIKey = ""
				return cfg
			}(),
			wantStatus:   domain.CheckStatusError,
			wantLLMUsed:  true,
			wantHintPart: "api_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewMockLLMClient("mock")
			client.SetDefaultResponse(tt.response)
			v := NewGateValidator(newStore(),
				WithLLMIntegration(tt.llm),
				WithSelfChecker(selfCheckerWith(client)))

			result, err := v.ValidateGate(context.Background(), "accuracy", domain.ValidationContext{Content: "Water boils at 100C."})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, result.Passed)
			require.Len(t, result.Checks, 1)
			assert.Equal(t, tt.wantStatus, result.Checks[0].Status)
			assert.Equal(t, tt.wantLLMUsed, result.Metadata.LLMValidationUsed)
			assert.Equal(t, tt.wantCalls, client.Calls())
			if tt.wantHintPart != "" {
				assert.Contains(t, strings.Join(result.RetryHints, "\n"), tt.wantHintPart)
			}
		})
	}
}

func TestRetryHints(t *testing.T) {
	failedContent := domain.ValidationCheck{Type: domain.CheckContentCheck, Message: "Missing required pattern: ^#"}
	failedPattern := domain.ValidationCheck{Type: domain.CheckPatternCheck, Message: "Pattern not found: seo"}
	passed := domain.ValidationCheck{Type: domain.CheckContentCheck, Passed: true, Message: "Content check passed"}

	tests := []struct {
		name   string
		def    *domain.GateDefinition
		checks []domain.ValidationCheck
		want   []string
	}{
		{
			name:   "guidance then failed checks",
			def:    &domain.GateDefinition{ID: "g", Name: "Headings", Guidance: "  Start with a heading. "},
			checks: []domain.ValidationCheck{passed, failedContent, failedPattern},
			want: []string{
				"Remember the Headings guidelines: Start with a heading.",
				"Fix the content requirements: Missing required pattern: ^#",
				"Include the required patterns and keywords: Pattern not found: seo",
			},
		},
		{
			name:   "no guidance falls back to id and adds improvement hints",
			def:    &domain.GateDefinition{ID: "g", RetryConfig: &domain.RetryConfig{ImprovementHints: true, PreserveContext: true}},
			checks: []domain.ValidationCheck{failedContent, failedContent},
			want: append(append([]string{"Fix the content requirements: Missing required pattern: ^#"},
				improvementHints...), preserveContextHint),
		},
		{
			name:   "unknown check types use their message",
			def:    &domain.GateDefinition{ID: "g"},
			checks: []domain.ValidationCheck{{Type: "custom", Message: "custom failure"}},
			want:   []string{"custom failure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, retryHints(tt.def, tt.checks)); diff != "" {
				t.Errorf("retryHints() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateGates(t *testing.T) {
	metrics := newRecordingCollector()
	v := NewGateValidator(newStore(), WithMetrics(metrics))

	results, err := v.ValidateGates(context.Background(),
		[]string{"seo-gate", "missing", "style", "accuracy", "bad id"},
		domain.ValidationContext{Content: "short"})
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.GateID)
	}
	assert.Equal(t, []string{"seo-gate", "style", "accuracy"}, ids, "request order kept, unknown gates omitted")
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.True(t, results[2].Passed, "self-check skipped while disabled")

	stats := v.Statistics()
	assert.Equal(t, int64(1), stats.TotalValidations, "one batch counts once")
	assert.Equal(t, int64(2), stats.SuccessfulValidations)
	assert.Equal(t, int64(1), stats.FailedValidations)

	assert.Equal(t, 2.0, metrics.counter(MetricGateValidations+"/passed"))
	assert.Equal(t, 1.0, metrics.counter(MetricGateValidations+"/failed"))
	assert.Equal(t, 3, metrics.histogram(MetricGateValidationDuration))
	assert.Equal(t, 1, metrics.histogram(MetricGateBatchDuration))

	_, err = v.ValidateGates(context.Background(), nil, domain.ValidationContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Statistics().TotalValidations)

	v.ResetStatistics()
	assert.Equal(t, domain.ValidationStatistics{}, v.Statistics())
}

func TestValidateGates_BoundedConcurrency(t *testing.T) {
	provider := &slowProvider{inner: newStore(), delay: 20 * time.Millisecond}
	v := NewGateValidator(provider, WithMaxConcurrency(2))

	ids := []string{"style", "style", "style", "style", "style", "style"}
	results, err := v.ValidateGates(context.Background(), ids, domain.ValidationContext{})
	require.NoError(t, err)
	assert.Len(t, results, len(ids))
	assert.LessOrEqual(t, provider.peak(), 2)
	assert.Positive(t, v.Statistics().AverageValidationTime)
}

func TestValidateGates_ContextDone(t *testing.T) {
	v := NewGateValidator(newStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := v.ValidateGates(ctx, []string{"style"}, domain.ValidationContext{})
	assert.Nil(t, results)
	require.ErrorIs(t, err, context.Canceled)

	provider := &slowProvider{inner: newStore(), delay: time.Second}
	v = NewGateValidator(provider)
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = v.ValidateGates(ctx, []string{"style", "seo-gate"}, domain.ValidationContext{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShouldRetry(t *testing.T) {
	pass := domain.ValidationResult{GateID: "a", Passed: true}
	fail := domain.ValidationResult{GateID: "b", Passed: false}

	tests := []struct {
		name        string
		results     []domain.ValidationResult
		current     int
		max         int
		want        bool
		wantRetries int64
	}{
		{name: "failure with attempts left", results: []domain.ValidationResult{pass, fail}, current: 1, max: 3, want: true, wantRetries: 1},
		{name: "all passed", results: []domain.ValidationResult{pass}, current: 1, max: 3},
		{name: "no results", current: 0, max: 3},
		{name: "attempts exhausted", results: []domain.ValidationResult{fail}, current: 3, max: 3},
		{name: "attempts beyond max", results: []domain.ValidationResult{fail}, current: 5, max: 3},
		{name: "zero max", results: []domain.ValidationResult{fail}, current: 0, max: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingCollector()
			v := NewGateValidator(newStore(), WithMetrics(metrics))

			assert.Equal(t, tt.want, v.ShouldRetry(tt.results, tt.current, tt.max))
			assert.Equal(t, tt.wantRetries, v.Statistics().RetryRequests)
			assert.Equal(t, float64(tt.wantRetries), metrics.counter(MetricRetryRequests))
		})
	}
}

func TestUpdateLLMIntegration(t *testing.T) {
	client := testutils.NewMockLLMClient("mock")
	v := NewGateValidator(newStore(), WithSelfChecker(selfCheckerWith(client)))
	assert.False(t, v.LLMIntegration().Enabled)

	vctx := domain.ValidationContext{Content: "x"}
	_, err := v.ValidateGate(context.Background(), "accuracy", vctx)
	require.NoError(t, err)
	assert.Zero(t, client.Calls())

	v.UpdateLLMIntegration(testutils.EnabledLLMIntegration())
	assert.Equal(t, testutils.EnabledLLMIntegration(), v.LLMIntegration())

	result, err := v.ValidateGate(context.Background(), "accuracy", vctx)
	require.NoError(t, err)
	assert.True(t, result.Metadata.LLMValidationUsed)
	assert.Equal(t, 1, client.Calls())
}

func TestStatisticsWindow(t *testing.T) {
	s := newStatistics()
	for i := 1; i <= 150; i++ {
		s.recordBatch(time.Duration(i) * time.Millisecond)
	}

	snap := s.snapshot()
	assert.Equal(t, int64(150), snap.TotalValidations)
	assert.Equal(t, 100500*time.Microsecond, snap.AverageValidationTime, "mean of the last 100 samples")

	s.reset()
	assert.Equal(t, domain.ValidationStatistics{}, s.snapshot())
}
