package domain

import "time"

// ValidationContext carries the content being judged along with opaque
// mappings that are passed through to self-check prompts.
type ValidationContext struct {
	// Content is the generated text under validation.
	Content string `json:"content"`

	// Metadata is serialized into self-check prompts as JSON.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ExecutionContext holds chain-level context, also serialized as JSON.
	ExecutionContext map[string]any `json:"execution_context,omitempty"`
}

// CheckType identifies which evaluation produced a ValidationCheck.
// Besides the criterion tags it includes CheckSystemError for failures of
// the validation machinery itself.
type CheckType string

const (
	CheckContentCheck          CheckType = CheckType(CriterionContentCheck)
	CheckPatternCheck          CheckType = CheckType(CriterionPatternCheck)
	CheckLLMSelfCheck          CheckType = CheckType(CriterionLLMSelfCheck)
	CheckMethodologyCompliance CheckType = CheckType(CriterionMethodologyCompliance)
	CheckSystemError           CheckType = "system_error"
)

// CheckStatus is the canonical status vocabulary for checks.
type CheckStatus string

const (
	// CheckStatusPassed means the check ran and the content satisfied it.
	CheckStatusPassed CheckStatus = "passed"
	// CheckStatusFailed means the check ran and the content violated it.
	CheckStatusFailed CheckStatus = "failed"
	// CheckStatusSkipped means the check was not evaluated and does not block.
	CheckStatusSkipped CheckStatus = "skipped"
	// CheckStatusDeferred means evaluation belongs to an external framework.
	CheckStatusDeferred CheckStatus = "deferred"
	// CheckStatusError means the check could not be evaluated.
	CheckStatusError CheckStatus = "error"
)

// StatusFor maps a pass/fail outcome to its status.
func StatusFor(passed bool) CheckStatus {
	if passed {
		return CheckStatusPassed
	}
	return CheckStatusFailed
}

// ValidationCheck is the immutable outcome of evaluating one criterion.
type ValidationCheck struct {
	Type    CheckType      `json:"type"`
	Passed  bool           `json:"passed"`
	Score   *float64       `json:"score,omitempty"`
	Message string         `json:"message"`
	Status  CheckStatus    `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// DetailTransportFailure is set to true in a check's Details when the
// self-check backend could not be reached or answered with an error status.
const DetailTransportFailure = "transport_failure"

// TransportFailure reports whether the check failed because its backend
// call failed, as opposed to the content being judged.
func (c ValidationCheck) TransportFailure() bool {
	failed, _ := c.Details[DetailTransportFailure].(bool)
	return failed
}

// ResultMetadata describes how a ValidationResult was produced.
type ResultMetadata struct {
	ValidationTime    time.Duration `json:"validation_time"`
	ChecksPerformed   int           `json:"checks_performed"`
	LLMValidationUsed bool          `json:"llm_validation_used"`
}

// ValidationResult is the verdict for one gate against one context.
type ValidationResult struct {
	GateID     string            `json:"gate_id"`
	Passed     bool              `json:"passed"`
	Checks     []ValidationCheck `json:"checks"`
	RetryHints []string          `json:"retry_hints"`

	// Score and Feedback are only populated on synthesized results, such as
	// the failures produced by a fail-closed enhancement.
	Score    *float64 `json:"score,omitempty"`
	Feedback string   `json:"feedback,omitempty"`

	Metadata ResultMetadata `json:"metadata"`
}

// Valid reports whether the gate passed. It mirrors Passed.
func (r *ValidationResult) Valid() bool { return r.Passed }

// TransportFailure returns the first check that failed on a backend
// call, if any.
func (r *ValidationResult) TransportFailure() (ValidationCheck, bool) {
	for _, c := range r.Checks {
		if c.TransportFailure() {
			return c, true
		}
	}
	return ValidationCheck{}, false
}

// NewValidationResult builds a result whose Passed flag is the AND of all
// checks. An empty check list passes.
func NewValidationResult(gateID string, checks []ValidationCheck) *ValidationResult {
	if checks == nil {
		checks = []ValidationCheck{}
	}
	return &ValidationResult{
		GateID:     gateID,
		Passed:     AllPassed(checks),
		Checks:     checks,
		RetryHints: []string{},
		Metadata:   ResultMetadata{ChecksPerformed: len(checks)},
	}
}

// AllPassed reports whether every check passed.
func AllPassed(checks []ValidationCheck) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
