package chunk

import (
	"strings"
	"testing"
)

// wordCounter counts whitespace-separated words, for predictable budgets.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestChunker_Split_singleChunk(t *testing.T) {
	c := NewChunker(100, wordCounter{})
	chunks := c.Split("first sentence here. second one. third")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "first sentence here. second one. third." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestChunker_Split_budgetBoundary(t *testing.T) {
	// Sentences of 3, 2, and 4 words with a 5-word budget: the first two fill
	// a chunk exactly, the third must start a new one.
	c := NewChunker(5, wordCounter{})
	chunks := c.Split("a b c. d e. f g h i")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "a b c. d e." {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
	if chunks[1] != "f g h i." {
		t.Errorf("chunk 1 = %q", chunks[1])
	}
}

func TestChunker_Split_sentenceCoverage(t *testing.T) {
	// With a budget of 1 every multi-word sentence is oversized, so each
	// becomes its own chunk; every sentence must appear exactly once, in order.
	sentences := []string{"alpha beta", "gamma delta", "epsilon zeta", "eta theta"}
	c := NewChunker(1, wordCounter{})
	chunks := c.Split(strings.Join(sentences, ". "))
	if len(chunks) != len(sentences) {
		t.Fatalf("expected %d chunks, got %d: %v", len(sentences), len(chunks), chunks)
	}
	for i, s := range sentences {
		if chunks[i] != s+"." {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], s+".")
		}
	}
}

func TestChunker_Split_oversizedSentence(t *testing.T) {
	// A single sentence far over budget is emitted whole, never truncated.
	long := strings.TrimSpace(strings.Repeat("word ", 2000))
	c := NewChunker(120, wordCounter{})
	chunks := c.Split(long)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != long+"." {
		t.Errorf("oversized sentence was altered: len=%d want len=%d", len(chunks[0]), len(long)+1)
	}
}

func TestChunker_Split_emptyInput(t *testing.T) {
	c := NewChunker(10, wordCounter{})
	for _, input := range []string{"", "   \n\t  ", ". . . "} {
		chunks := c.Split(input)
		if len(chunks) != 1 || chunks[0] != "." {
			t.Errorf("Split(%q) = %v, want [.]", input, chunks)
		}
	}
}

func TestChunker_Split_stateless(t *testing.T) {
	c := NewChunker(3, wordCounter{})
	text := "a b. c d. e f"
	first := c.Split(text)
	second := c.Split(text)
	if len(first) != len(second) {
		t.Fatalf("repeated calls disagree: %d vs %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between calls: %q vs %q", i, first[i], second[i])
		}
	}
}
