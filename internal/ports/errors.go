package ports

import (
	"errors"
	"fmt"
)

// Backend and configuration failures shared across adapters. Provider
// errors match these through errors.Is so callers need not know which SDK
// produced them.
var (
	ErrRateLimited          = errors.New("rate limited")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrTimeout              = errors.New("operation timed out")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidResponse means the backend answered but the reply had no
	// usable content.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrConfigNotFound means a configuration source does not exist.
	ErrConfigNotFound = errors.New("configuration not found")
)

// LLMError is a failed self-check backend call, tagged with the provider
// strategy and model that served it.
type LLMError struct {
	Provider string
	Model    string
	Err      error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("self-check call to %s (%s) failed: %v", e.Provider, e.Model, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// IsRetryable reports whether the same request could succeed later.
// Authentication and malformed replies are not retryable.
func (e *LLMError) IsRetryable() bool {
	for _, target := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
		if errors.Is(e.Err, target) {
			return true
		}
	}
	return false
}

// NewLLMError wraps err from a call to model through provider.
func NewLLMError(provider, model string, err error) *LLMError {
	return &LLMError{Provider: provider, Model: model, Err: err}
}

// ConfigError is a configuration failure. Key is the config path or
// dotted key involved.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err for key.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{Key: key, Err: err}
}
