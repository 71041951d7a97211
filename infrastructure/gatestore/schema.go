package gatestore

import (
	"fmt"
	"regexp"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// gateIDPattern is the id alphabet accepted everywhere gate ids are
// interpolated or forwarded.
var gateIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// GateFile is the YAML form of a gate definition.
type GateFile struct {
	ID           string                 `yaml:"id" validate:"required,gateid"`
	Name         string                 `yaml:"name"`
	Type         domain.GateType        `yaml:"type" validate:"required,oneof=guidance validation"`
	Description  string                 `yaml:"description,omitempty"`
	Guidance     string                 `yaml:"guidance,omitempty"`
	PassCriteria []domain.CriterionSpec `yaml:"pass_criteria,omitempty" validate:"dive"`
	RetryConfig  *domain.RetryConfig    `yaml:"retry_config,omitempty"`
}

// Definition converts the file form into a domain definition.
func (f GateFile) Definition() *domain.GateDefinition {
	def := &domain.GateDefinition{
		ID:          f.ID,
		Name:        f.Name,
		Type:        f.Type,
		Description: f.Description,
		Guidance:    f.Guidance,
		RetryConfig: f.RetryConfig,
	}
	if len(f.PassCriteria) > 0 {
		def.PassCriteria = make([]domain.PassCriterion, 0, len(f.PassCriteria))
		for _, spec := range f.PassCriteria {
			def.PassCriteria = append(def.PassCriteria, spec.Criterion())
		}
	}
	return def
}

// validateSemantics checks rules struct tags cannot express: regexes must
// compile and length bounds must be ordered.
func (f GateFile) validateSemantics() error {
	for i, c := range f.PassCriteria {
		if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
			return fmt.Errorf("pass_criteria[%d]: min_length %d exceeds max_length %d", i, *c.MinLength, *c.MaxLength)
		}
		patterns := make([]string, 0, len(c.RequiredPatterns)+len(c.ForbiddenPatterns)+len(c.RegexPatterns))
		patterns = append(patterns, c.RequiredPatterns...)
		patterns = append(patterns, c.ForbiddenPatterns...)
		patterns = append(patterns, c.RegexPatterns...)
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("pass_criteria[%d]: invalid pattern %q: %w", i, p, err)
			}
		}
	}
	return nil
}

// IsValidGateID reports whether id uses only letters, digits, '-' and '_'.
func IsValidGateID(id string) bool {
	return gateIDPattern.MatchString(id)
}
