package chunker

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with tiktoken, falling back to the chars/4
// heuristic when the BPE cache is unavailable (offline environments).
type TokenCounter struct {
	mu       sync.Mutex
	encoder  *tiktoken.Tiktoken
	fallback bool
}

// NewTokenCounter creates a counter for the given encoding.
func NewTokenCounter(encoding string) *TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &TokenCounter{fallback: true}
	}
	return &TokenCounter{encoder: enc}
}

// Count returns the token count for text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		n := len(text) / 4
		if n == 0 {
			n = 1
		}
		return n
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// Precise reports whether tiktoken is in use rather than the heuristic.
func (t *TokenCounter) Precise() bool {
	return !t.fallback
}
