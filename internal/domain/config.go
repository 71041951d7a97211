package domain

// Provider names accepted by LLMIntegrationConfig.Provider.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// DefaultSelfCheckEndpoint is used when no endpoint is configured.
const DefaultSelfCheckEndpoint = "https://api.openai.com/v1/chat/completions"

// LLMIntegrationConfig configures the backend used by llm_self_check
// criteria. The struct is comparable so it can key client caches.
type LLMIntegrationConfig struct {
	// Enabled turns self-checks on. A zero config leaves them disabled.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Provider forces a backend. Empty or "auto" selects by endpoint host.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" validate:"omitempty,oneof=auto openai anthropic google"`

	Model       string  `yaml:"model" json:"model" validate:"required"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" validate:"min=1,max=1000000"`
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`

	// Endpoint is the full chat endpoint URL. Empty means DefaultSelfCheckEndpoint.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`

	APIKey string `yaml:"api_key" json:"-" validate:"required"`

	// TimeoutSeconds bounds each self-check call. Zero uses the default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" validate:"min=0,max=600"`

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty" validate:"min=0"`

	// MaxRetries is the number of extra attempts made on retryable
	// transport errors (rate limits, 5xx, network). Zero disables retries.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" validate:"min=0,max=5"`
}

// ResolvedEndpoint returns the configured endpoint or the default one.
func (c LLMIntegrationConfig) ResolvedEndpoint() string {
	if c.Endpoint == "" {
		return DefaultSelfCheckEndpoint
	}
	return c.Endpoint
}

// FailurePolicy decides how a validation-phase error affects an enhancement.
type FailurePolicy int

const (
	// FailOpen drops validation results and lets the pipeline continue.
	FailOpen FailurePolicy = iota
	// FailClosed turns the error into failing results for every gate.
	FailClosed
)

// String returns the policy name.
func (p FailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	case FailClosed:
		return "fail_closed"
	default:
		return "unknown"
	}
}

// PolicyFor maps the fail_closed_on_semantic_error flag to a policy.
func PolicyFor(failClosed bool) FailurePolicy {
	if failClosed {
		return FailClosed
	}
	return FailOpen
}
