// Package chunk splits document text into token-bounded, sentence-aligned chunks.
package chunk

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports the token count of a text under a fixed sub-word
// tokenization scheme.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named BPE encoding (e.g. "cl100k_base").
// The rank file is fetched on first use, so this can fail offline; callers
// should fall back to HeuristicCounter when it does.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates token counts as one token per four runes,
// rounded up (for testing or fallback).
type HeuristicCounter struct{}

// Count returns the approximate token count of text.
func (HeuristicCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
