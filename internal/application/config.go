package application

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/logging"
)

// ServiceConfig is the complete engine configuration as it appears in the
// service YAML file.
type ServiceConfig struct {
	// Logging configures the zap logger built at startup.
	Logging logging.Config `yaml:"logging"`
	// Gates locates the gate definition files served to the validator.
	Gates GatesConfig `yaml:"gates"`
	// Enhancement configures guidance injection for callers that only
	// want the compositional service.
	Enhancement CompositionalConfig `yaml:"enhancement"`
	// Semantic configures the validating enhancement service.
	Semantic SemanticConfig `yaml:"semantic"`
}

// GatesConfig points at a directory of gate YAML files.
type GatesConfig struct {
	// Directory holds *.yaml gate files. Empty disables file-backed gates.
	Directory string `yaml:"directory,omitempty"`
	// Watch enables hot reload of the directory.
	Watch bool `yaml:"watch"`
}

// CompositionalConfig controls guidance injection.
type CompositionalConfig struct {
	// Enabled turns guidance injection on. When false, Enhance returns the
	// prompt untouched.
	Enabled bool `yaml:"enabled"`
	// Framework is the methodology hint used when the caller supplies none.
	Framework string `yaml:"framework,omitempty" validate:"max=100"`
}

// SemanticConfig controls the validation phase layered over guidance
// injection.
type SemanticConfig struct {
	// Enabled is the service-level switch. Validation runs only when both
	// this and LLMIntegration.Enabled are true.
	Enabled bool `yaml:"enabled"`
	// FailClosedOnSemanticError turns validation-phase errors into failing
	// results instead of silently dropping validation.
	FailClosedOnSemanticError bool `yaml:"fail_closed_on_semantic_error"`
	// Composition configures the wrapped compositional service.
	Composition CompositionalConfig `yaml:"composition"`
	// LLMIntegration configures self-check backends. It is checked
	// structurally by each self-check rather than here, so an incomplete
	// integration degrades to failing checks instead of rejected config.
	LLMIntegration domain.LLMIntegrationConfig `yaml:"llm_integration" validate:"-"`
	// MaxConcurrency bounds parallel gate evaluation. Zero uses the default.
	MaxConcurrency int `yaml:"max_concurrency,omitempty" validate:"min=0,max=64"`
}

// FailurePolicy returns the policy selected by FailClosedOnSemanticError.
func (c SemanticConfig) FailurePolicy() domain.FailurePolicy {
	return domain.PolicyFor(c.FailClosedOnSemanticError)
}

// DefaultLLMIntegration is disabled, with sensible values ready for when
// an operator enables it and supplies a key.
func DefaultLLMIntegration() domain.LLMIntegrationConfig {
	return domain.LLMIntegrationConfig{
		Enabled:     false,
		Provider:    domain.ProviderAuto,
		Model:       "gpt-4o-mini",
		MaxTokens:   1000,
		Temperature: 0.1,
	}
}

// DefaultCompositionalConfig enables guidance injection.
func DefaultCompositionalConfig() CompositionalConfig {
	return CompositionalConfig{Enabled: true}
}

// DefaultSemanticConfig is fail-open with validation off.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		Enabled:        false,
		Composition:    DefaultCompositionalConfig(),
		LLMIntegration: DefaultLLMIntegration(),
	}
}

// DefaultServiceConfig returns the configuration used when no file is given.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Logging:     logging.DefaultConfig(),
		Enhancement: DefaultCompositionalConfig(),
		Semantic:    DefaultSemanticConfig(),
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateConfig checks any of the config structs in this package.
func ValidateConfig(cfg any) error {
	if err := configValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		verr := domain.NewValidationError(reflect.Indirect(reflect.ValueOf(cfg)).Type().Name())
		for _, fe := range fieldErrs {
			verr.AddError(fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
		return verr
	}
	return nil
}

// MergeConfig applies patch to current and returns the merged value.
//
// The merge runs over the YAML form of T: nested mappings merge
// recursively, scalars and sequences are replaced, absent keys leave the
// current value alone and an explicit nil resets the field to its zero
// value. Unknown keys are rejected. current is never modified.
func MergeConfig[T any](current T, patch map[string]any) (T, error) {
	var zero T

	raw, err := yaml.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("encode current config: %w", err)
	}
	base := map[string]any{}
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return zero, fmt.Errorf("decode current config: %w", err)
	}

	merged, err := yaml.Marshal(deepMerge(base, patch))
	if err != nil {
		return zero, fmt.Errorf("encode merged config: %w", err)
	}

	var next T
	decoder := yaml.NewDecoder(bytes.NewReader(merged))
	decoder.KnownFields(true)
	if err := decoder.Decode(&next); err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	return next, nil
}

func deepMerge(base, patch map[string]any) map[string]any {
	for key, value := range patch {
		if value == nil {
			delete(base, key)
			continue
		}
		patchMap, patchIsMap := asMap(value)
		baseMap, baseIsMap := asMap(base[key])
		if patchIsMap && baseIsMap {
			base[key] = deepMerge(baseMap, patchMap)
			continue
		}
		base[key] = value
	}
	return base
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
