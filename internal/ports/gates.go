package ports

import (
	"context"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// GateDefinitionProvider supplies gate definitions by id.
// Implementations must return domain.ErrGateNotFound (possibly wrapped)
// when no gate exists for the id. Definitions are fetched fresh on every
// validation so providers may hot-reload without coordination.
type GateDefinitionProvider interface {
	GetGate(ctx context.Context, id string) (*domain.GateDefinition, error)
}

// GateLister is optionally implemented by providers that can enumerate
// their gate ids. The validator uses it to suggest near matches for
// unknown ids.
type GateLister interface {
	ListGateIDs(ctx context.Context) ([]string, error)
}

// GuidanceRenderer composes human-readable guidance for a set of gates.
// An empty string means there is nothing to inject.
type GuidanceRenderer interface {
	RenderGuidance(ctx context.Context, gateIDs []string, rctx domain.RenderContext) (string, error)
}

// GateValidator validates content against a batch of gates.
// Not-found gates are omitted from the returned slice; the error return is
// reserved for failures of the batch as a whole.
type GateValidator interface {
	ValidateGates(ctx context.Context, gateIDs []string, vctx domain.ValidationContext) ([]domain.ValidationResult, error)
}

// LLMConfigurable is implemented by components whose self-check backend
// configuration can be replaced at runtime.
type LLMConfigurable interface {
	UpdateLLMIntegration(cfg domain.LLMIntegrationConfig)
}

// EnhancementService injects gate guidance into prompts and, depending on
// the implementation, validates content.
type EnhancementService interface {
	// Enhance never fails; degraded outcomes are expressed in the result.
	Enhance(ctx context.Context, prompt domain.Prompt, gateIDs []string, ectx domain.EnhancementContext) domain.GateEnhancementResult

	// SupportsValidation reports whether this service type can ever validate.
	SupportsValidation() bool

	// IsValidationEnabled reports whether validation is active right now.
	IsValidationEnabled() bool
}
