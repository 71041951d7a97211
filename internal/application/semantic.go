package application

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

var _ ports.EnhancementService = (*SemanticService)(nil)

// gateIDPattern is the only id shape forwarded to rendering or validation.
var gateIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SemanticService wraps a CompositionalService and adds a validation
// phase. Guidance is always injected first; validation runs only while
// both the service and its LLM integration are enabled.
type SemanticService struct {
	inner     *CompositionalService
	validator ports.GateValidator
	logger    *zap.Logger

	mu     sync.RWMutex
	config SemanticConfig
}

// NewSemanticService creates the service. The LLM integration section of
// cfg is pushed to validator when it accepts runtime updates.
func NewSemanticService(
	renderer ports.GuidanceRenderer,
	validator ports.GateValidator,
	cfg SemanticConfig,
	opts ...ServiceOption,
) *SemanticService {
	o := applyServiceOptions(opts)
	s := &SemanticService{
		inner:     NewCompositionalService(renderer, cfg.Composition, opts...),
		validator: validator,
		logger:    o.logger,
		config:    cfg,
	}
	s.pushLLMIntegration(cfg.LLMIntegration)
	return s
}

// Enhance injects guidance and, when enabled, validates content against
// the requested gates. Gate ids outside [A-Za-z0-9_-] are dropped first.
// When ectx.Validation is nil or has no content, the enhanced user
// template is validated.
func (s *SemanticService) Enhance(
	ctx context.Context,
	prompt domain.Prompt,
	gateIDs []string,
	ectx domain.EnhancementContext,
) domain.GateEnhancementResult {
	cfg := s.Config()

	gateIDs = s.sanitizeGateIDs(gateIDs)
	ectx.ExplicitGateIDs = s.sanitizeGateIDs(ectx.ExplicitGateIDs)

	result := s.inner.Enhance(ctx, prompt, gateIDs, ectx)
	if !isValidationEnabled(cfg) {
		return result
	}

	targets := gateIDs
	if len(ectx.ExplicitGateIDs) > 0 {
		targets = ectx.ExplicitGateIDs
	}
	if len(targets) == 0 {
		return result
	}

	results, err := s.validate(ctx, targets, validationContext(ectx, result.EnhancedPrompt))
	if err == nil {
		err = transportError(results)
	}
	if err != nil {
		return s.handleValidationError(cfg.FailurePolicy(), result, targets, err)
	}
	if results == nil {
		results = []domain.ValidationResult{}
	}
	result.ValidationResults = results
	return result
}

// transportError reports a self-check that failed on its backend call.
// Such a result says nothing about the content, so it is handled by the
// failure policy instead of being returned as a verdict.
func transportError(results []domain.ValidationResult) error {
	for i := range results {
		if check, ok := results[i].TransportFailure(); ok {
			return fmt.Errorf("%w: gate %s: %s", domain.ErrSelfCheckUnavailable, results[i].GateID, check.Message)
		}
	}
	return nil
}

// validate runs the validator, converting a panic into an error.
func (s *SemanticService) validate(ctx context.Context, gateIDs []string, vctx domain.ValidationContext) (results []domain.ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return s.validator.ValidateGates(ctx, gateIDs, vctx)
}

// handleValidationError is the single place where the failure policy is
// applied to a validation-phase error.
func (s *SemanticService) handleValidationError(
	policy domain.FailurePolicy,
	result domain.GateEnhancementResult,
	gateIDs []string,
	err error,
) domain.GateEnhancementResult {
	switch policy {
	case domain.FailOpen:
		s.logger.Error("semantic validation failed, continuing with guidance only",
			zap.Stringer("policy", policy),
			zap.Strings("gate_ids", gateIDs),
			zap.Error(err))
		result.ValidationResults = nil
	default:
		s.logger.Error("semantic validation failed, failing closed",
			zap.Stringer("policy", policy),
			zap.Strings("gate_ids", gateIDs),
			zap.Error(err))
		result.ValidationResults = failClosedResults(gateIDs, err)
	}
	return result
}

func failClosedResults(gateIDs []string, err error) []domain.ValidationResult {
	feedback := "Semantic validation failed: " + err.Error()
	results := make([]domain.ValidationResult, 0, len(gateIDs))
	for _, id := range gateIDs {
		r := domain.NewValidationResult(id, []domain.ValidationCheck{{
			Type:    domain.CheckSystemError,
			Passed:  false,
			Score:   domain.Float64Ptr(0),
			Message: feedback,
			Status:  domain.CheckStatusError,
			Details: map[string]any{"error": err.Error()},
		}})
		r.Score = domain.Float64Ptr(0)
		r.Feedback = feedback
		r.RetryHints = []string{SystemErrorRetryHint}
		results = append(results, *r)
	}
	return results
}

func validationContext(ectx domain.EnhancementContext, enhanced domain.Prompt) domain.ValidationContext {
	var vctx domain.ValidationContext
	if ectx.Validation != nil {
		vctx = *ectx.Validation
	}
	if vctx.Content == "" {
		vctx.Content = enhanced.UserMessageTemplate
	}
	return vctx
}

// sanitizeGateIDs drops ids that could smuggle markup or control
// characters into templates, logs and payloads.
func (s *SemanticService) sanitizeGateIDs(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}

	valid := make([]string, 0, len(ids))
	var rejected []string
	for _, id := range ids {
		if gateIDPattern.MatchString(id) {
			valid = append(valid, id)
		} else {
			rejected = append(rejected, strconv.Quote(id))
		}
	}
	if len(rejected) > 0 {
		s.logger.Warn("rejected invalid gate ids",
			zap.Int("count", len(rejected)),
			zap.Strings("gate_ids", rejected))
	}
	return valid
}

// SupportsValidation is always true for this service type.
func (s *SemanticService) SupportsValidation() bool { return true }

// IsValidationEnabled reports whether Enhance currently validates.
func (s *SemanticService) IsValidationEnabled() bool {
	return isValidationEnabled(s.Config())
}

func isValidationEnabled(cfg SemanticConfig) bool {
	return cfg.Enabled && cfg.LLMIntegration.Enabled
}

// Config returns a copy of the current configuration.
func (s *SemanticService) Config() SemanticConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig merges patch into the configuration and propagates the
// composition section to the wrapped service and the LLM section to the
// validator. An invalid patch changes nothing.
func (s *SemanticService) UpdateConfig(patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := MergeConfig(s.config, patch)
	if err != nil {
		return err
	}
	if err := ValidateConfig(next); err != nil {
		return err
	}

	s.config = next
	s.inner.setConfig(next.Composition)
	s.pushLLMIntegration(next.LLMIntegration)
	s.logger.Info("semantic config updated",
		zap.Bool("enabled", next.Enabled),
		zap.Bool("llm_integration_enabled", next.LLMIntegration.Enabled),
		zap.Stringer("policy", next.FailurePolicy()))
	return nil
}

func (s *SemanticService) pushLLMIntegration(cfg domain.LLMIntegrationConfig) {
	if lc, ok := s.validator.(ports.LLMConfigurable); ok {
		lc.UpdateLLMIntegration(cfg)
	}
}
