// Package domain contains pure, dependency-free domain models and types
// for the gate validation engine.
package domain

// GateType distinguishes gates that only steer generation from gates that
// also judge the generated content.
type GateType string

const (
	// GateTypeGuidance gates inject guidance text and never block.
	GateTypeGuidance GateType = "guidance"

	// GateTypeValidation gates run their pass criteria against content.
	GateTypeValidation GateType = "validation"
)

// GateDefinition is a named, independently addressable bundle of quality
// rules. Definitions are owned by a GateDefinitionProvider and are treated
// as read-only by the engine.
type GateDefinition struct {
	// ID uniquely identifies the gate. It is immutable once published.
	ID string `json:"id"`

	// Name is the human-readable gate name used in guidance and hints.
	Name string `json:"name"`

	// Type decides whether pass criteria are evaluated at all.
	Type GateType `json:"type"`

	// Description is optional free text describing the gate's intent.
	Description string `json:"description,omitempty"`

	// Guidance is the instruction text injected into prompts and reused as
	// the primary retry hint when the gate fails.
	Guidance string `json:"guidance,omitempty"`

	// PassCriteria are evaluated in declared order. An empty list means the
	// gate always passes.
	PassCriteria []PassCriterion `json:"-"`

	// RetryConfig optionally tunes retry hint generation.
	RetryConfig *RetryConfig `json:"retry_config,omitempty"`
}

// IsGuidanceOnly reports whether the gate never blocks generation.
func (g *GateDefinition) IsGuidanceOnly() bool { return g.Type == GateTypeGuidance }

// DisplayName returns the gate name, falling back to its id.
func (g *GateDefinition) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// RetryConfig controls how much retry guidance a failing gate produces.
type RetryConfig struct {
	// MaxAttempts is the gate's preferred attempt budget. Zero defers to the caller.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" validate:"min=0,max=10"`

	// ImprovementHints adds generic improvement suggestions to retry hints.
	ImprovementHints bool `yaml:"improvement_hints" json:"improvement_hints"`

	// PreserveContext signals that the caller should keep prior attempt context.
	PreserveContext bool `yaml:"preserve_context" json:"preserve_context"`
}
