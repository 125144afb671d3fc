package chunk

import "strings"

// Chunker splits text into sentence-aligned chunks bounded by a token budget.
type Chunker struct {
	maxTokens int
	counter   TokenCounter
}

// NewChunker creates a chunker with the given per-chunk token budget.
func NewChunker(maxTokens int, counter TokenCounter) *Chunker {
	return &Chunker{maxTokens: maxTokens, counter: counter}
}

// Split divides text into chunks whose token counts stay within the budget.
//
// Sentences are delimited by the literal ". " sequence; this is a crude
// heuristic that mis-splits abbreviations and decimal numbers, a known
// imprecision rather than something to correct here. Sentences accumulate
// greedily into the current chunk until adding the next one would exceed the
// budget, at which point the chunk closes and the sentence starts the next
// one. A single sentence over budget still becomes its own chunk; content is
// never dropped. Empty or whitespace-only input yields a single "." chunk.
//
// Split is stateless; each call recomputes the sequence from scratch.
func (c *Chunker) Split(text string) []string {
	sentences := strings.Split(text, ". ")

	var (
		chunks  []string
		current []string
		tokens  int
	)
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		n := c.counter.Count(sentence)
		if tokens+n > c.maxTokens && len(current) > 0 {
			chunks = append(chunks, joinSentences(current))
			current = current[:0]
			tokens = 0
		}
		current = append(current, sentence)
		tokens += n
	}
	if len(current) > 0 {
		chunks = append(chunks, joinSentences(current))
	}
	if len(chunks) == 0 {
		chunks = []string{"."}
	}
	return chunks
}

func joinSentences(sentences []string) string {
	return strings.Join(sentences, ". ") + "."
}
