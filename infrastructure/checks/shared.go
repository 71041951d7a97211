// Package checks evaluates individual gate pass criteria against content.
//
// Deterministic criteria (content_check, pattern_check) are plain
// functions. The llm_self_check criterion is handled by SelfChecker, which
// owns backend clients and their configuration validation.
package checks

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// ErrInvalidPattern is returned when a criterion carries a regex that does
// not compile. The validator turns it into a system_error check.
var ErrInvalidPattern = errors.New("invalid pattern")

// validate reports field errors under their yaml names so messages match
// the configuration keys operators actually write.
var validate = newValidator()

func newValidator() *validator.Validate {
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

func score(passed bool) *float64 {
	if passed {
		return domain.Float64Ptr(1.0)
	}
	return domain.Float64Ptr(0.0)
}

// EvaluateMethodologyCompliance records that compliance is judged by an
// external framework. It never blocks.
func EvaluateMethodologyCompliance(c domain.MethodologyCompliance) domain.ValidationCheck {
	details := map[string]any{}
	if c.Framework != "" {
		details["framework"] = c.Framework
	}
	return domain.ValidationCheck{
		Type:    domain.CheckMethodologyCompliance,
		Passed:  true,
		Score:   domain.Float64Ptr(1.0),
		Message: "Methodology compliance is deferred to the external framework",
		Status:  domain.CheckStatusDeferred,
		Details: details,
	}
}

// EvaluateUnknown skips a criterion whose type is not recognized.
func EvaluateUnknown(c domain.UnknownCriterion) domain.ValidationCheck {
	return domain.ValidationCheck{
		Type:    domain.CheckType(c.Tag),
		Passed:  true,
		Message: "Unknown check type '" + c.Tag + "' skipped",
		Status:  domain.CheckStatusSkipped,
	}
}
