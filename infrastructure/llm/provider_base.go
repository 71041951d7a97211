package llm

import "sync"

// BaseProvider holds the model name shared by every backend strategy.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model. It is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model. It is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// TokenCounter estimates token counts when a backend does not report usage.
type TokenCounter struct {
	// CharactersPerToken is the average number of characters per token.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter using four characters per token.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens estimates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/tc.CharactersPerToken) + 1
}

// GetTokenCount prefers the reported count and falls back to estimation.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
