// Package application provides the gate validator and the prompt
// enhancement services built on it.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gatekeeper/infrastructure/checks"
	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

const (
	// DefaultMaxConcurrency bounds parallel gate evaluation in ValidateGates.
	DefaultMaxConcurrency = 4

	// SystemErrorRetryHint is the only hint attached to a result whose
	// evaluation failed.
	SystemErrorRetryHint = "Validation system error occurred. Please try again."

	// maxSuggestionDistance is the largest edit distance at which an
	// unknown gate id gets a "did you mean" suggestion.
	maxSuggestionDistance = 3
)

// Metric names reported by GateValidator.
const (
	MetricGateValidationDuration = "gate_validation_duration_seconds"
	MetricGateValidations        = "gate_validations_total"
	MetricGateBatchDuration      = "gate_batch_duration_seconds"
	MetricRetryRequests          = "gate_retry_requests_total"
	MetricSelfCheckScore         = "gate_self_check_score"
)

var (
	_ ports.GateValidator   = (*GateValidator)(nil)
	_ ports.LLMConfigurable = (*GateValidator)(nil)
)

// GateValidator evaluates gate pass criteria against content. It owns
// criterion dispatch, retry hint synthesis and rolling statistics, and is
// safe for concurrent use.
type GateValidator struct {
	provider       ports.GateDefinitionProvider
	selfChecker    *checks.SelfChecker
	logger         *zap.Logger
	metrics        ports.MetricsCollector
	tracer         trace.Tracer
	maxConcurrency int

	cfgMu sync.RWMutex
	llm   domain.LLMIntegrationConfig

	stats *statistics
}

// ValidatorOption configures a GateValidator.
type ValidatorOption func(*GateValidator)

// WithLLMIntegration sets the initial self-check backend configuration.
func WithLLMIntegration(cfg domain.LLMIntegrationConfig) ValidatorOption {
	return func(v *GateValidator) { v.llm = cfg }
}

// WithSelfChecker replaces the default self-checker.
func WithSelfChecker(sc *checks.SelfChecker) ValidatorOption {
	return func(v *GateValidator) { v.selfChecker = sc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ValidatorOption {
	return func(v *GateValidator) { v.logger = l }
}

// WithMetrics reports validation metrics to mc.
func WithMetrics(mc ports.MetricsCollector) ValidatorOption {
	return func(v *GateValidator) { v.metrics = mc }
}

// WithMaxConcurrency bounds parallel gate evaluation. Values below 1 are ignored.
func WithMaxConcurrency(n int) ValidatorOption {
	return func(v *GateValidator) {
		if n > 0 {
			v.maxConcurrency = n
		}
	}
}

// WithTracer sets the tracer used for validation spans.
func WithTracer(t trace.Tracer) ValidatorOption {
	return func(v *GateValidator) { v.tracer = t }
}

// NewGateValidator creates a validator reading gates from provider. Without
// options, LLM self-checks are disabled and pass as skipped.
func NewGateValidator(provider ports.GateDefinitionProvider, opts ...ValidatorOption) *GateValidator {
	v := &GateValidator{
		provider:       provider,
		logger:         zap.NewNop(),
		tracer:         otel.Tracer("gate-validator"),
		maxConcurrency: DefaultMaxConcurrency,
		stats:          newStatistics(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.selfChecker == nil {
		v.selfChecker = checks.NewSelfChecker(checks.WithSelfCheckLogger(v.logger))
	}
	return v
}

// ValidateGate evaluates one gate. It returns domain.ErrGateNotFound when
// the provider has no such gate; every other failure, including panics
// in criterion evaluation, is reported as a failing result with a single
// system_error check.
func (v *GateValidator) ValidateGate(ctx context.Context, gateID string, vctx domain.ValidationContext) (*domain.ValidationResult, error) {
	ctx, span := v.tracer.Start(ctx, "GateValidator.ValidateGate",
		trace.WithAttributes(attribute.String("gate.id", gateID)))
	defer span.End()

	start := time.Now()

	def, err := v.lookup(ctx, gateID)
	if err == nil && def == nil {
		err = domain.ErrGateNotFound
	}
	if errors.Is(err, domain.ErrGateNotFound) {
		v.logNotFound(ctx, gateID)
		span.SetAttributes(attribute.Bool("gate.found", false))
		return nil, fmt.Errorf("%w: %s", domain.ErrGateNotFound, gateID)
	}

	var result *domain.ValidationResult
	if err != nil {
		result = systemErrorResult(gateID, fmt.Errorf("load gate: %w", err))
	} else {
		result = v.evaluate(ctx, def, vctx)
	}
	result.Metadata.ValidationTime = time.Since(start)

	v.record(result)
	span.SetAttributes(
		attribute.Bool("gate.found", true),
		attribute.Bool("gate.passed", result.Passed),
		attribute.Int("gate.checks", len(result.Checks)),
	)
	if isSystemError(result) {
		span.SetStatus(codes.Error, result.Checks[0].Message)
	}
	return result, nil
}

// ValidateGates evaluates gateIDs concurrently against the same context.
// Results keep request order and omit unknown gates. The error is non-nil
// only when ctx is done, either before or during the batch.
func (v *GateValidator) ValidateGates(ctx context.Context, gateIDs []string, vctx domain.ValidationContext) ([]domain.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validate gates: %w", err)
	}

	batchID := uuid.NewString()
	ctx, span := v.tracer.Start(ctx, "GateValidator.ValidateGates",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(gateIDs)),
		))
	defer span.End()

	start := time.Now()
	slots := make([]*domain.ValidationResult, len(gateIDs))

	var g errgroup.Group
	g.SetLimit(v.maxConcurrency)
	for i, id := range gateIDs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					v.logger.Error("panic during gate validation", zap.String("gate_id", id), zap.Any("panic", r))
					slots[i] = systemErrorResult(id, fmt.Errorf("panic: %v", r))
				}
			}()
			res, err := v.ValidateGate(ctx, id, vctx)
			if err == nil {
				slots[i] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	v.stats.recordBatch(elapsed)
	v.recordHistogram(MetricGateBatchDuration, elapsed.Seconds(), nil)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("validate gates: %w", err)
	}

	results := make([]domain.ValidationResult, 0, len(gateIDs))
	failed := 0
	for _, res := range slots {
		if res == nil {
			continue
		}
		if !res.Passed {
			failed++
		}
		results = append(results, *res)
	}

	span.SetAttributes(attribute.Int("batch.found", len(results)), attribute.Int("batch.failed", failed))
	v.logger.Debug("gate batch validated",
		zap.String("batch_id", batchID),
		zap.Int("requested", len(gateIDs)),
		zap.Int("found", len(results)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed))
	return results, nil
}

// ShouldRetry reports whether another generation attempt is warranted:
// attempts remain and at least one result failed. A true answer is
// counted as a retry request.
func (v *GateValidator) ShouldRetry(results []domain.ValidationResult, currentAttempt, maxAttempts int) bool {
	if currentAttempt >= maxAttempts {
		return false
	}
	for i := range results {
		if !results[i].Valid() {
			v.stats.recordRetry()
			v.recordCounter(MetricRetryRequests, nil)
			return true
		}
	}
	return false
}

// Statistics returns a snapshot of the validator counters.
func (v *GateValidator) Statistics() domain.ValidationStatistics {
	return v.stats.snapshot()
}

// ResetStatistics zeroes every counter and the timing window.
func (v *GateValidator) ResetStatistics() {
	v.stats.reset()
}

// UpdateLLMIntegration replaces the self-check backend configuration.
// In-flight checks finish with the configuration they started with.
func (v *GateValidator) UpdateLLMIntegration(cfg domain.LLMIntegrationConfig) {
	v.cfgMu.Lock()
	defer v.cfgMu.Unlock()
	v.llm = cfg
}

// LLMIntegration returns the current self-check backend configuration.
func (v *GateValidator) LLMIntegration() domain.LLMIntegrationConfig {
	v.cfgMu.RLock()
	defer v.cfgMu.RUnlock()
	return v.llm
}

// lookup fetches a gate definition. A panicking provider is reported as
// an error.
func (v *GateValidator) lookup(ctx context.Context, gateID string) (def *domain.GateDefinition, err error) {
	defer func() {
		if r := recover(); r != nil {
			def, err = nil, fmt.Errorf("gate provider panic: %v", r)
		}
	}()
	return v.provider.GetGate(ctx, gateID)
}

func (v *GateValidator) evaluate(ctx context.Context, def *domain.GateDefinition, vctx domain.ValidationContext) (result *domain.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("panic during gate validation",
				zap.String("gate_id", def.ID),
				zap.Any("panic", r))
			result = systemErrorResult(def.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	if def.IsGuidanceOnly() {
		return domain.NewValidationResult(def.ID, nil)
	}

	cfg := v.LLMIntegration()
	llmUsed := false
	results := make([]domain.ValidationCheck, 0, len(def.PassCriteria))
	for i, criterion := range def.PassCriteria {
		check, err := v.dispatch(ctx, criterion, cfg, vctx)
		if err != nil {
			v.logger.Warn("criterion evaluation failed",
				zap.String("gate_id", def.ID),
				zap.Int("criterion", i),
				zap.Error(err))
			return systemErrorResult(def.ID, fmt.Errorf("criterion %d: %w", i, err))
		}
		if _, ok := criterion.(domain.LLMSelfCheck); ok && cfg.Enabled {
			llmUsed = true
		}
		results = append(results, check)
	}

	result = domain.NewValidationResult(def.ID, results)
	result.Metadata.LLMValidationUsed = llmUsed
	if !result.Passed {
		result.RetryHints = retryHints(def, results)
	}
	return result
}

func (v *GateValidator) dispatch(
	ctx context.Context,
	criterion domain.PassCriterion,
	cfg domain.LLMIntegrationConfig,
	vctx domain.ValidationContext,
) (domain.ValidationCheck, error) {
	switch c := criterion.(type) {
	case domain.ContentCheck:
		return checks.EvaluateContentCheck(c, vctx.Content)
	case domain.PatternCheck:
		return checks.EvaluatePatternCheck(c, vctx.Content)
	case domain.LLMSelfCheck:
		check := v.selfChecker.Check(ctx, c, cfg, vctx)
		if check.Score != nil && check.Status != domain.CheckStatusSkipped {
			v.recordHistogram(MetricSelfCheckScore, *check.Score, nil)
		}
		return check, nil
	case domain.MethodologyCompliance:
		return checks.EvaluateMethodologyCompliance(c), nil
	case domain.UnknownCriterion:
		return checks.EvaluateUnknown(c), nil
	default:
		return domain.ValidationCheck{}, fmt.Errorf("unsupported criterion %T", criterion)
	}
}

func (v *GateValidator) record(result *domain.ValidationResult) {
	v.stats.recordGate(result.Passed)

	outcome := "passed"
	switch {
	case isSystemError(result):
		outcome = "error"
	case !result.Passed:
		outcome = "failed"
	}
	labels := map[string]string{"gate_id": result.GateID, "outcome": outcome}
	v.recordCounter(MetricGateValidations, labels)
	v.recordHistogram(MetricGateValidationDuration, result.Metadata.ValidationTime.Seconds(), labels)
}

func (v *GateValidator) recordCounter(metric string, labels map[string]string) {
	if v.metrics != nil {
		v.metrics.RecordCounter(metric, 1, labels)
	}
}

func (v *GateValidator) recordHistogram(metric string, value float64, labels map[string]string) {
	if v.metrics != nil {
		v.metrics.RecordHistogram(metric, value, labels)
	}
}

func (v *GateValidator) logNotFound(ctx context.Context, gateID string) {
	fields := []zap.Field{zap.String("gate_id", gateID)}
	if s := v.suggest(ctx, gateID); s != "" {
		fields = append(fields, zap.String("did_you_mean", s))
	}
	v.logger.Debug("gate not found", fields...)
}

// suggest returns the closest known gate id, if the provider can list them.
func (v *GateValidator) suggest(ctx context.Context, gateID string) string {
	lister, ok := v.provider.(ports.GateLister)
	if !ok {
		return ""
	}
	ids, err := lister.ListGateIDs(ctx)
	if err != nil {
		return ""
	}

	best, bestDist := "", maxSuggestionDistance+1
	for _, id := range ids {
		if d := levenshtein.ComputeDistance(gateID, id); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

func systemErrorResult(gateID string, err error) *domain.ValidationResult {
	result := domain.NewValidationResult(gateID, []domain.ValidationCheck{{
		Type:    domain.CheckSystemError,
		Passed:  false,
		Score:   domain.Float64Ptr(0),
		Message: "Validation system error: " + err.Error(),
		Status:  domain.CheckStatusError,
		Details: map[string]any{"error": err.Error()},
	}})
	result.RetryHints = []string{SystemErrorRetryHint}
	return result
}

func isSystemError(r *domain.ValidationResult) bool {
	return len(r.Checks) == 1 && r.Checks[0].Type == domain.CheckSystemError
}

// Generic suggestions added when a gate enables improvement hints.
var improvementHints = []string{
	"Review the output against every requirement before finalizing it.",
	"Fix each listed issue explicitly instead of rewriting unrelated parts.",
}

const preserveContextHint = "Build on the previous attempt and keep the parts that already met the requirements."

// retryHints derives hints from a failing gate: its guidance first, then
// one hint per failed check, then the optional generic suggestions.
func retryHints(def *domain.GateDefinition, results []domain.ValidationCheck) []string {
	hints := make([]string, 0, len(results)+3)
	seen := make(map[string]struct{})
	add := func(h string) {
		if _, dup := seen[h]; dup || h == "" {
			return
		}
		seen[h] = struct{}{}
		hints = append(hints, h)
	}

	if guidance := strings.TrimSpace(def.Guidance); guidance != "" {
		add(fmt.Sprintf("Remember the %s guidelines: %s", def.DisplayName(), guidance))
	}

	for _, c := range results {
		if c.Passed {
			continue
		}
		switch c.Type {
		case domain.CheckContentCheck:
			add("Fix the content requirements: " + c.Message)
		case domain.CheckPatternCheck:
			add("Include the required patterns and keywords: " + c.Message)
		case domain.CheckLLMSelfCheck:
			if c.Status == domain.CheckStatusError {
				add("The LLM self-check could not run: " + c.Message)
			} else {
				add("Address the reviewer feedback: " + c.Message)
			}
		default:
			add(c.Message)
		}
	}

	if rc := def.RetryConfig; rc != nil {
		if rc.ImprovementHints {
			for _, h := range improvementHints {
				add(h)
			}
		}
		if rc.PreserveContext {
			add(preserveContextHint)
		}
	}
	return hints
}
