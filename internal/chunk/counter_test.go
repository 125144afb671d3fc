package chunk

import "testing"

func TestHeuristicCounter_Count(t *testing.T) {
	c := HeuristicCounter{}
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
		{"日本語", 1},
	}
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNewTiktokenCounter_unknownEncoding(t *testing.T) {
	if _, err := NewTiktokenCounter("no-such-encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
