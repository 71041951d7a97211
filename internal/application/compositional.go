package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

var _ ports.EnhancementService = (*CompositionalService)(nil)

// CompositionalService injects rendered gate guidance into prompts. It
// never validates and never fails: any problem leaves the prompt as it was.
type CompositionalService struct {
	renderer ports.GuidanceRenderer
	logger   *zap.Logger

	mu     sync.RWMutex
	config CompositionalConfig
}

// ServiceOption configures the enhancement services.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger *zap.Logger
}

// WithServiceLogger sets the logger used by an enhancement service.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

func applyServiceOptions(opts []ServiceOption) serviceOptions {
	o := serviceOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCompositionalService creates a service that renders guidance with renderer.
func NewCompositionalService(renderer ports.GuidanceRenderer, cfg CompositionalConfig, opts ...ServiceOption) *CompositionalService {
	o := applyServiceOptions(opts)
	return &CompositionalService{
		renderer: renderer,
		logger:   o.logger,
		config:   cfg,
	}
}

// Enhance appends guidance for gateIDs to the prompt's user template. The
// input prompt is never modified; the enhanced copy is returned.
func (s *CompositionalService) Enhance(
	ctx context.Context,
	prompt domain.Prompt,
	gateIDs []string,
	ectx domain.EnhancementContext,
) domain.GateEnhancementResult {
	unchanged := domain.GateEnhancementResult{EnhancedPrompt: prompt}

	cfg := s.Config()
	if !cfg.Enabled || len(gateIDs) == 0 {
		return unchanged
	}

	rctx := domain.RenderContext{
		Category:        firstNonEmpty(ectx.Category, prompt.Category),
		PromptID:        prompt.ID,
		Framework:       firstNonEmpty(ectx.Framework, cfg.Framework),
		ExplicitGateIDs: ectx.ExplicitGateIDs,
	}

	guidance, err := s.render(ctx, gateIDs, rctx)
	if err != nil {
		s.logger.Warn("guidance rendering failed, prompt left unchanged",
			zap.String("prompt_id", prompt.ID),
			zap.Strings("gate_ids", gateIDs),
			zap.Error(err))
		return unchanged
	}
	if strings.TrimSpace(guidance) == "" {
		return unchanged
	}

	enhanced := prompt
	if prompt.UserMessageTemplate != "" {
		enhanced.UserMessageTemplate = prompt.UserMessageTemplate + "\n\n" + guidance
	} else {
		enhanced.UserMessageTemplate = guidance
	}

	length := utf8.RuneCountInString(guidance)
	s.logger.Debug("gate guidance injected",
		zap.String("prompt_id", prompt.ID),
		zap.Strings("gate_ids", gateIDs),
		zap.Int("instruction_length", length))

	return domain.GateEnhancementResult{
		EnhancedPrompt:           enhanced,
		GateInstructionsInjected: true,
		InjectedGateIDs:          append([]string(nil), gateIDs...),
		InstructionLength:        &length,
	}
}

// render calls the renderer, converting a panic into an error.
func (s *CompositionalService) render(ctx context.Context, gateIDs []string, rctx domain.RenderContext) (guidance string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return s.renderer.RenderGuidance(ctx, gateIDs, rctx)
}

// SupportsValidation is always false.
func (s *CompositionalService) SupportsValidation() bool { return false }

// IsValidationEnabled is always false.
func (s *CompositionalService) IsValidationEnabled() bool { return false }

// Config returns a copy of the current configuration.
func (s *CompositionalService) Config() CompositionalConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig merges patch into the configuration. See MergeConfig for
// the merge rules. An invalid patch leaves the configuration unchanged.
func (s *CompositionalService) UpdateConfig(patch map[string]any) error {
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
	return nil
}

// setConfig replaces the configuration wholesale.
func (s *CompositionalService) setConfig(cfg CompositionalConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
