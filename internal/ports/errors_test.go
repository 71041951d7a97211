package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "rate limited", err: ErrRateLimited, retryable: true},
		{name: "unavailable", err: ErrServiceUnavailable, retryable: true},
		{name: "wrapped timeout", err: fmt.Errorf("after 45s: %w", ErrTimeout), retryable: true},
		{name: "auth", err: ErrAuthenticationFailed},
		{name: "empty reply", err: ErrInvalidResponse},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLLMError("anthropic", "claude-3-5-haiku", tt.err)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.ErrorIs(t, err, tt.err)
		})
	}

	err := NewLLMError("openai", "gpt-4o-mini", ErrInvalidResponse)
	assert.Equal(t, "self-check call to openai (gpt-4o-mini) failed: invalid response", err.Error())
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		err     error
		wantMsg string
	}{
		{
			name:    "missing file",
			key:     "gatekeeper.yaml",
			err:     ErrConfigNotFound,
			wantMsg: "config gatekeeper.yaml: configuration not found",
		},
		{
			name:    "bad value",
			key:     "semantic.llm_integration.max_tokens",
			err:     errors.New("must be at least 1"),
			wantMsg: "config semantic.llm_integration.max_tokens: must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.key, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
