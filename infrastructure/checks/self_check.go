package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/infrastructure/llm"
	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// DefaultSelfCheckPrompt is used when a criterion has no prompt_template.
const DefaultSelfCheckPrompt = `Evaluate the following content for quality, accuracy and completeness.

Content:
{{content}}

Metadata:
{{metadata}}

Execution context:
{{executionContext}}

Respond with strict JSON only, with no surrounding text, in exactly this shape:
{"passed": boolean, "score": number between 0 and 1, "feedback": string}`

const selfCheckSystemPrompt = "You are a strict content quality reviewer. You always answer with a single JSON object."

// ClientFactory builds a backend client for an integration config.
type ClientFactory func(cfg domain.LLMIntegrationConfig) (ports.LLMClient, error)

// SelfChecker evaluates llm_self_check criteria. It validates the
// integration config locally, then asks the configured backend for a JSON
// verdict. The client for the most recent config is kept so its rate
// limiter and connection pool survive across checks; a config change
// replaces it.
type SelfChecker struct {
	factory ClientFactory
	logger  *zap.Logger

	mu        sync.Mutex
	clientCfg domain.LLMIntegrationConfig
	current   ports.LLMClient
}

// SelfCheckerOption configures a SelfChecker.
type SelfCheckerOption func(*SelfChecker)

// WithClientFactory replaces the default backend client factory.
func WithClientFactory(f ClientFactory) SelfCheckerOption {
	return func(s *SelfChecker) { s.factory = f }
}

// WithIntegrationOptions attaches tracing and metrics to clients built by
// the default factory.
func WithIntegrationOptions(opts llm.IntegrationOptions) SelfCheckerOption {
	return func(s *SelfChecker) {
		s.factory = func(cfg domain.LLMIntegrationConfig) (ports.LLMClient, error) {
			return llm.NewClientForIntegration(cfg, opts)
		}
	}
}

// WithSelfCheckLogger sets the logger.
func WithSelfCheckLogger(l *zap.Logger) SelfCheckerOption {
	return func(s *SelfChecker) { s.logger = l }
}

// NewSelfChecker creates a SelfChecker backed by the llm package.
func NewSelfChecker(opts ...SelfCheckerOption) *SelfChecker {
	s := &SelfChecker{
		factory: func(cfg domain.LLMIntegrationConfig) (ports.LLMClient, error) {
			return llm.NewClientForIntegration(cfg, llm.IntegrationOptions{})
		},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// selfCheckVerdict mirrors the JSON the model is asked to return. Pointer
// fields distinguish "absent" from zero values.
type selfCheckVerdict struct {
	Passed   *bool    `json:"passed"`
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

// Check evaluates one llm_self_check criterion. It never returns an error:
// disabled integration passes, bad configuration and transport failures
// fail, and unparsable replies resolve through the threshold.
func (s *SelfChecker) Check(
	ctx context.Context,
	c domain.LLMSelfCheck,
	cfg domain.LLMIntegrationConfig,
	vctx domain.ValidationContext,
) domain.ValidationCheck {
	if !cfg.Enabled {
		return domain.ValidationCheck{
			Type:    domain.CheckLLMSelfCheck,
			Passed:  true,
			Score:   domain.Float64Ptr(1.0),
			Message: "LLM self-check skipped: LLM integration is disabled (set semantic.llm_integration.enabled to true to enable it)",
			Status:  domain.CheckStatusSkipped,
			Details: map[string]any{"reason": "llm_integration_disabled"},
		}
	}

	if err := ValidateIntegrationConfig(cfg); err != nil {
		return errorCheck("LLM self-check configuration invalid: "+err.Error(), map[string]any{"error": err.Error()})
	}

	prompt, err := RenderSelfCheckPrompt(c.PromptTemplate, vctx)
	if err != nil {
		return errorCheck("LLM self-check prompt template invalid: "+err.Error(), map[string]any{"error": err.Error()})
	}

	client, err := s.client(cfg)
	if err != nil {
		return errorCheck("LLM self-check backend unavailable: "+err.Error(), map[string]any{"error": err.Error()})
	}

	provider := llm.ResolveProvider(cfg)
	raw, err := client.Complete(ctx, prompt, map[string]any{
		"max_tokens":  cfg.MaxTokens,
		"temperature": cfg.Temperature,
		"system":      selfCheckSystemPrompt,
	})
	if err != nil {
		llmErr := ports.NewLLMError(provider, client.GetModel(), err)
		s.logger.Warn("self-check request failed",
			zap.String("provider", provider),
			zap.Error(llmErr))
		return errorCheck("LLM self-check request failed: "+err.Error(), map[string]any{
			"error":                      err.Error(),
			"provider":                   provider,
			"retryable":                  llmErr.IsRetryable(),
			domain.DetailTransportFailure: true,
		})
	}
	if strings.TrimSpace(raw) == "" {
		return errorCheck("LLM self-check returned an empty response", map[string]any{"provider": provider})
	}

	return resolveVerdict(raw, c.Threshold(), map[string]any{
		"provider": provider,
		"model":    client.GetModel(),
	})
}

func (s *SelfChecker) client(cfg domain.LLMIntegrationConfig) (ports.LLMClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.clientCfg == cfg {
		return s.current, nil
	}
	c, err := s.factory(cfg)
	if err != nil {
		return nil, err
	}
	s.clientCfg, s.current = cfg, c
	return c, nil
}

// resolveVerdict parses a model reply. A missing score counts as 0; a
// missing passed flag is derived from the score and threshold.
func resolveVerdict(raw string, threshold float64, details map[string]any) domain.ValidationCheck {
	var v selfCheckVerdict
	parsed := false
	if candidate := extractJSON(raw); candidate != "" {
		parsed = json.Unmarshal([]byte(candidate), &v) == nil
	}
	if !parsed {
		v = selfCheckVerdict{}
		details["raw_response"] = raw
	}

	scoreVal := 0.0
	if v.Score != nil {
		scoreVal = llm.ClampFloat64(*v.Score, 0, 1)
	}

	passed := scoreVal >= threshold
	if v.Passed != nil {
		passed = *v.Passed
	}

	details["threshold"] = threshold
	details["parsed"] = parsed

	message := fmt.Sprintf("LLM self-check score %.2f (threshold %.2f)", scoreVal, threshold)
	if v.Feedback != nil && *v.Feedback != "" {
		details["feedback"] = *v.Feedback
		message = *v.Feedback
	} else if !parsed {
		message = "LLM self-check response could not be parsed; " + message
	}

	return domain.ValidationCheck{
		Type:    domain.CheckLLMSelfCheck,
		Passed:  passed,
		Score:   domain.Float64Ptr(scoreVal),
		Message: message,
		Status:  domain.StatusFor(passed),
		Details: details,
	}
}

func errorCheck(message string, details map[string]any) domain.ValidationCheck {
	return domain.ValidationCheck{
		Type:    domain.CheckLLMSelfCheck,
		Passed:  false,
		Score:   domain.Float64Ptr(0),
		Message: message,
		Status:  domain.CheckStatusError,
		Details: details,
	}
}

// ValidateIntegrationConfig checks an enabled integration config without
// touching the network. All violations are reported together.
func ValidateIntegrationConfig(cfg domain.LLMIntegrationConfig) error {
	verr := domain.NewValidationError("llm_integration")
	endpointFlagged := false

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			if fe.Field() == "endpoint" {
				endpointFlagged = true
			}
			verr.AddError(describeFieldError(fe))
		}
	}

	if !endpointFlagged && cfg.Endpoint != "" {
		if _, err := llm.ValidateBaseURL(cfg.Endpoint); err != nil {
			verr.AddError("endpoint " + err.Error())
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required":
		return fe.Field() + " is required"
	case fe.Field() == "max_tokens":
		return fmt.Sprintf("max_tokens must be between %d and %d", llm.MinMaxTokens, llm.MaxMaxTokens)
	case fe.Field() == "temperature":
		return fmt.Sprintf("temperature must be between %g and %g", llm.MinTemperature, llm.MaxTemperature)
	case fe.Tag() == "url":
		return fe.Field() + " must be a valid URL"
	case fe.Tag() == "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case fe.Tag() == "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case fe.Tag() == "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// RenderSelfCheckPrompt fills a self-check template. Templates can use
// either the fields {{.Content}}, {{.Metadata}}, {{.ExecutionContext}} or
// the bare placeholders {{content}}, {{metadata}}, {{executionContext}}.
// Metadata and execution context are JSON-serialized.
func RenderSelfCheckPrompt(tmpl string, vctx domain.ValidationContext) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultSelfCheckPrompt
	}

	data := struct {
		Content          string
		Metadata         string
		ExecutionContext string
	}{
		Content:          vctx.Content,
		Metadata:         toJSON(vctx.Metadata),
		ExecutionContext: toJSON(vctx.ExecutionContext),
	}

	t, err := template.New("self_check").
		Funcs(GetTemplateFuncMap()).
		Funcs(template.FuncMap{
			"content":          func() string { return data.Content },
			"metadata":         func() string { return data.Metadata },
			"executionContext": func() string { return data.ExecutionContext },
		}).
		Option("missingkey=zero").
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return buf.String(), nil
}
