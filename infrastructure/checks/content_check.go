package checks

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// EvaluateContentCheck applies length bounds and required/forbidden
// patterns. Every violation is reported, joined with "; ". Length is
// measured in Unicode code points.
func EvaluateContentCheck(c domain.ContentCheck, content string) (domain.ValidationCheck, error) {
	var violations []string
	length := utf8.RuneCountInString(content)

	if c.MinLength != nil && length < *c.MinLength {
		violations = append(violations, fmt.Sprintf("Content too short: %d < %d characters", length, *c.MinLength))
	}
	if c.MaxLength != nil && length > *c.MaxLength {
		violations = append(violations, fmt.Sprintf("Content too long: %d > %d characters", length, *c.MaxLength))
	}

	for _, p := range c.RequiredPatterns {
		re, err := compile(p)
		if err != nil {
			return domain.ValidationCheck{}, err
		}
		if !re.MatchString(content) {
			violations = append(violations, "Missing required pattern: "+p)
		}
	}

	for _, p := range c.ForbiddenPatterns {
		re, err := compile(p)
		if err != nil {
			return domain.ValidationCheck{}, err
		}
		if re.MatchString(content) {
			violations = append(violations, "Contains forbidden pattern: "+p)
		}
	}

	return buildCheck(domain.CheckContentCheck, violations, "Content check passed", map[string]any{
		"length": length,
	}), nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

func buildCheck(t domain.CheckType, violations []string, okMessage string, details map[string]any) domain.ValidationCheck {
	passed := len(violations) == 0
	message := okMessage
	if !passed {
		message = strings.Join(violations, "; ")
		details["violations"] = violations
	}
	return domain.ValidationCheck{
		Type:    t,
		Passed:  passed,
		Score:   score(passed),
		Message: message,
		Status:  domain.StatusFor(passed),
		Details: details,
	}
}
