package domain

// Prompt is the templated prompt an enhancement operates on. Only
// UserMessageTemplate is ever changed by enhancement, and only by appending.
type Prompt struct {
	ID                  string
	Name                string
	Category            string
	SystemMessage       string
	UserMessageTemplate string
	Arguments           []string
	GateIDs             []string
}

// RenderContext is the narrowed context handed to a guidance renderer.
type RenderContext struct {
	Category        string
	PromptID        string
	Framework       string
	ExplicitGateIDs []string
}

// EnhancementContext is supplied by the caller of an enhancement.
type EnhancementContext struct {
	Category        string
	Framework       string
	ExplicitGateIDs []string

	// Validation is the content to validate. When nil, or when its content
	// is empty, the enhanced user template is validated instead.
	Validation *ValidationContext
}

// GateEnhancementResult is returned by every enhancement service.
type GateEnhancementResult struct {
	EnhancedPrompt           Prompt
	GateInstructionsInjected bool
	InjectedGateIDs          []string
	InstructionLength        *int

	// ValidationResults is nil when no validation phase produced results.
	ValidationResults []ValidationResult
}

// HasValidation reports whether the result carries validation results.
func (r *GateEnhancementResult) HasValidation() bool { return r.ValidationResults != nil }
