package domain

// CriterionType is the tag carried by every pass criterion.
type CriterionType string

// Supported criterion tags.
const (
	CriterionContentCheck          CriterionType = "content_check"
	CriterionPatternCheck          CriterionType = "pattern_check"
	CriterionLLMSelfCheck          CriterionType = "llm_self_check"
	CriterionMethodologyCompliance CriterionType = "methodology_compliance"
)

// DefaultPassThreshold is the self-check score needed to pass when neither
// the model nor the criterion decides otherwise.
const DefaultPassThreshold = 0.7

// PassCriterion is a closed sum type over the supported check kinds.
// The unexported marker keeps the set of variants inside this package so
// dispatchers can switch over it exhaustively.
type PassCriterion interface {
	// Type returns the criterion tag.
	Type() CriterionType
	isPassCriterion()
}

// ContentCheck bounds content length and requires or forbids regex patterns.
type ContentCheck struct {
	MinLength         *int
	MaxLength         *int
	RequiredPatterns  []string
	ForbiddenPatterns []string
}

// PatternCheck requires regex matches and minimum keyword occurrences.
type PatternCheck struct {
	RegexPatterns []string
	// KeywordCount maps a keyword to the minimum number of
	// case-insensitive occurrences.
	KeywordCount map[string]int
}

// LLMSelfCheck asks an LLM backend to judge the content.
type LLMSelfCheck struct {
	// PromptTemplate overrides the built-in judging prompt when non-empty.
	PromptTemplate string
	// PassThreshold overrides DefaultPassThreshold when set.
	PassThreshold *float64
}

// Threshold returns the effective pass threshold.
func (c LLMSelfCheck) Threshold() float64 {
	if c.PassThreshold != nil {
		return *c.PassThreshold
	}
	return DefaultPassThreshold
}

// MethodologyCompliance is a hook for framework-level compliance checks
// that are evaluated outside this engine.
type MethodologyCompliance struct {
	Framework string
}

// UnknownCriterion keeps criteria with unrecognized tags so they can be
// skipped instead of rejected.
type UnknownCriterion struct {
	Tag string
}

func (ContentCheck) Type() CriterionType          { return CriterionContentCheck }
func (PatternCheck) Type() CriterionType          { return CriterionPatternCheck }
func (LLMSelfCheck) Type() CriterionType          { return CriterionLLMSelfCheck }
func (MethodologyCompliance) Type() CriterionType { return CriterionMethodologyCompliance }
func (u UnknownCriterion) Type() CriterionType    { return CriterionType(u.Tag) }

func (ContentCheck) isPassCriterion()          {}
func (PatternCheck) isPassCriterion()          {}
func (LLMSelfCheck) isPassCriterion()          {}
func (MethodologyCompliance) isPassCriterion() {}
func (UnknownCriterion) isPassCriterion()      {}

// CriterionSpec is the flat wire form of a pass criterion as it appears in
// gate definition files. Only the fields relevant to Type are read.
type CriterionSpec struct {
	Type string `yaml:"type" json:"type" validate:"required"`

	MinLength         *int     `yaml:"min_length,omitempty" json:"min_length,omitempty" validate:"omitempty,min=0"`
	MaxLength         *int     `yaml:"max_length,omitempty" json:"max_length,omitempty" validate:"omitempty,min=0"`
	RequiredPatterns  []string `yaml:"required_patterns,omitempty" json:"required_patterns,omitempty"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns,omitempty" json:"forbidden_patterns,omitempty"`

	RegexPatterns []string       `yaml:"regex_patterns,omitempty" json:"regex_patterns,omitempty"`
	KeywordCount  map[string]int `yaml:"keyword_count,omitempty" json:"keyword_count,omitempty" validate:"omitempty,dive,min=0"`

	PromptTemplate string   `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
	PassThreshold  *float64 `yaml:"pass_threshold,omitempty" json:"pass_threshold,omitempty" validate:"omitempty,min=0,max=1"`

	Framework string `yaml:"framework,omitempty" json:"framework,omitempty"`
}

// Criterion converts the wire form into its typed variant. Unrecognized
// tags become UnknownCriterion.
func (s CriterionSpec) Criterion() PassCriterion {
	switch CriterionType(s.Type) {
	case CriterionContentCheck:
		return ContentCheck{
			MinLength:         s.MinLength,
			MaxLength:         s.MaxLength,
			RequiredPatterns:  s.RequiredPatterns,
			ForbiddenPatterns: s.ForbiddenPatterns,
		}
	case CriterionPatternCheck:
		return PatternCheck{
			RegexPatterns: s.RegexPatterns,
			KeywordCount:  s.KeywordCount,
		}
	case CriterionLLMSelfCheck:
		return LLMSelfCheck{
			PromptTemplate: s.PromptTemplate,
			PassThreshold:  s.PassThreshold,
		}
	case CriterionMethodologyCompliance:
		return MethodologyCompliance{Framework: s.Framework}
	default:
		return UnknownCriterion{Tag: s.Type}
	}
}
