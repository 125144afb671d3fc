package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON reports that no JSON object could be recovered from a completion.
var ErrNoJSON = errors.New("no json object in completion")

// ParseJSON recovers a JSON object from a model completion and unmarshals it
// into v. Models wrap JSON in markdown fences or surrounding prose often
// enough that strict parsing is useless here. Recovery rules, in order:
//
//  1. trim surrounding whitespace
//  2. strip one leading and one trailing ``` fence (with optional language tag)
//  3. unmarshal; on failure, extract the first balanced {...} object from the
//     text and unmarshal that
//
// Anything beyond these rules is a parse failure, returned as an error.
func ParseJSON(completion string, v any) error {
	s := stripCodeFences(completion)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	obj, ok := extractObject(s)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse extracted object: %w", err)
	}
	return nil
}

// stripCodeFences removes one leading fence line and one trailing fence
// marker when the text starts with ```.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if j := strings.LastIndex(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced JSON object in s. Braces inside
// string literals do not count toward the balance.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
