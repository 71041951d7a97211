package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// SEOGate fails content shorter than 50 characters.
func SEOGate() *domain.GateDefinition {
	return &domain.GateDefinition{
		ID:       "seo-gate",
		Name:     "SEO Gate",
		Type:     domain.GateTypeValidation,
		Guidance: "Use descriptive headings and at least one keyword-rich paragraph.",
		PassCriteria: []domain.PassCriterion{
			domain.ContentCheck{MinLength: IntPtr(50)},
		},
	}
}

// StyleGate is guidance only.
func StyleGate() *domain.GateDefinition {
	return &domain.GateDefinition{
		ID:       "style",
		Name:     "Style",
		Type:     domain.GateTypeGuidance,
		Guidance: "Be concise",
	}
}

// SelfCheckGate judges content with the LLM self-check.
func SelfCheckGate() *domain.GateDefinition {
	return &domain.GateDefinition{
		ID:       "accuracy",
		Name:     "Accuracy",
		Type:     domain.GateTypeValidation,
		Guidance: "Support every claim with a source.",
		PassCriteria: []domain.PassCriterion{
			domain.LLMSelfCheck{},
		},
		RetryConfig: &domain.RetryConfig{MaxAttempts: 2, ImprovementHints: true},
	}
}

// EnabledLLMIntegration returns a structurally valid, enabled config.
func EnabledLLMIntegration() domain.LLMIntegrationConfig {
	return domain.LLMIntegrationConfig{
		Enabled:     true,
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.1,
		APIKey:      "sk-test",
	}
}

// StubRenderer is a ports.GuidanceRenderer returning fixed output and
// recording what it was asked to render.
type StubRenderer struct {
	Guidance string
	Err      error
	Panic    any

	mu    sync.Mutex
	calls []RenderCall
}

// RenderCall records one RenderGuidance invocation.
type RenderCall struct {
	GateIDs []string
	Context domain.RenderContext
}

// RenderGuidance implements ports.GuidanceRenderer.
func (r *StubRenderer) RenderGuidance(_ context.Context, gateIDs []string, rctx domain.RenderContext) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, RenderCall{GateIDs: append([]string(nil), gateIDs...), Context: rctx})
	r.mu.Unlock()

	if r.Panic != nil {
		panic(r.Panic)
	}
	return r.Guidance, r.Err
}

// Calls returns the recorded invocations.
func (r *StubRenderer) Calls() []RenderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RenderCall(nil), r.calls...)
}

// StubValidator is a ports.GateValidator and ports.LLMConfigurable with
// scripted output.
type StubValidator struct {
	Results []domain.ValidationResult
	Err     error
	Panic   any

	mu      sync.Mutex
	calls   [][]string
	lastCtx domain.ValidationContext
	llm     domain.LLMIntegrationConfig
}

// ValidateGates implements ports.GateValidator.
func (v *StubValidator) ValidateGates(_ context.Context, gateIDs []string, vctx domain.ValidationContext) ([]domain.ValidationResult, error) {
	v.mu.Lock()
	v.calls = append(v.calls, append([]string(nil), gateIDs...))
	v.lastCtx = vctx
	v.mu.Unlock()

	if v.Panic != nil {
		panic(v.Panic)
	}
	return v.Results, v.Err
}

// UpdateLLMIntegration implements ports.LLMConfigurable.
func (v *StubValidator) UpdateLLMIntegration(cfg domain.LLMIntegrationConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.llm = cfg
}

// LLMIntegration returns the last pushed config.
func (v *StubValidator) LLMIntegration() domain.LLMIntegrationConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.llm
}

// Calls returns the gate ids of every ValidateGates call.
func (v *StubValidator) Calls() [][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]string(nil), v.calls...)
}

// LastContext returns the validation context of the latest call.
func (v *StubValidator) LastContext() domain.ValidationContext {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastCtx
}

var (
	_ ports.GuidanceRenderer = (*StubRenderer)(nil)
	_ ports.GateValidator    = (*StubValidator)(nil)
	_ ports.LLMConfigurable  = (*StubValidator)(nil)
)
