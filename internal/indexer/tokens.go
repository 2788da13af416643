package indexer

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE vocabulary used to count fragment tokens
const DefaultEncoding = "cl100k_base"

// TokenCounter counts tokens with a tiktoken encoding. The encoding is loaded
// on first use; when it is unavailable (no network to fetch the vocabulary)
// counts fall back to a characters/4 estimate.
type TokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for DefaultEncoding
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encoding: DefaultEncoding}
}

// Count returns the number of tokens in text
func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			slog.Debug("tiktoken unavailable, estimating token counts", "encoding", c.encoding, "error", err)
			return
		}
		c.enc = enc
	})

	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateTokens approximates a token count as one token per four characters
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
