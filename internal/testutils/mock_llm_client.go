// Package testutils provides fakes and fixtures shared by package tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// Canned self-check verdicts.
const (
	PassingVerdict = `{"passed": true, "score": 0.92, "feedback": "Meets the stated criteria."}`
	FailingVerdict = `{"passed": false, "score": 0.31, "feedback": "Claims are unsupported and the conclusion is missing."}`
)

// MockLLMClient implements ports.LLMClient with scripted self-check
// verdicts. Responses are chosen by case-insensitive substring match on
// the prompt, in the order they were added; the default response is used
// when nothing matches.
type MockLLMClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	fallback  string
	err       error
	prompts   []string
	options   []map[string]any
}

// MockResponse maps a prompt substring to a reply.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt.
	Pattern string
	// Response is returned for matching prompts.
	Response string
}

// NewMockLLMClient creates a client whose default reply is PassingVerdict.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model, fallback: PassingVerdict}
}

// AddResponse registers a reply for prompts containing pattern.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

// SetDefaultResponse replaces the reply used when no pattern matches.
func (m *MockLLMClient) SetDefaultResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// SetError makes every subsequent call fail with err. Nil clears it.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, options)
	if m.err != nil {
		return "", m.err
	}

	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern != "" && strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return m.fallback, nil
}

// EstimateTokens implements ports.LLMClient at roughly four characters
// per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string { return m.model }

// Calls returns the number of Complete calls so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call, or nil.
func (m *MockLLMClient) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

// Reset clears recorded calls, scripted responses and errors.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.fallback = PassingVerdict
	m.err = nil
	m.prompts = nil
	m.options = nil
}

var _ ports.LLMClient = (*MockLLMClient)(nil)
