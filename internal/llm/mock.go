package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// mockMaterials are the material names the mock recognizes in a prompt, in
// priority order.
var mockMaterials = []string{"perovskite", "zeolite", "graphene", "oxide"}

// MockClient is a deterministic in-process client for tests and dry runs.
// The same prompt always yields the same completion: JSON requests are
// answered by scanning the prompt for synthesis language and known material
// names, plain requests by a canned recipe, so fixture corpora produce
// stable verdicts with no network.
type MockClient struct {
	mu    sync.Mutex
	calls int
}

// NewMockClient returns a mock client with a zeroed call counter.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate returns a deterministic completion derived from the prompt.
func (m *MockClient) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	var text string
	if opts.JSON {
		text = m.answerJSON(prompt)
	} else {
		text = mockRecipe
	}
	return Result{
		Text: text,
		Usage: Usage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(text) / 4,
		},
	}, nil
}

func (m *MockClient) answerJSON(prompt string) string {
	lower := strings.ToLower(prompt)
	contains := strings.Contains(lower, "synthesiz") || strings.Contains(lower, "synthesis of")
	material := "N/A"
	if contains {
		for _, name := range mockMaterials {
			if strings.Contains(lower, name) {
				material = name
				break
			}
		}
	}
	data, _ := json.Marshal(map[string]any{
		"contains_recipe": contains,
		"material_type":   material,
	})
	return string(data)
}

// Calls returns how many completions have been requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Provider returns "mock".
func (m *MockClient) Provider() string { return "mock" }

// Model returns "mock".
func (m *MockClient) Model() string { return "mock" }

const mockRecipe = `## Target Material:
    Chemical Formula: $\text{MockO}_2$
    Form: Powder

## Reagents:
    1. Mock precursor
       - Purity: >99%

## Environment Parameters:
    Temperature Range: $25\,^\circ\text{C}$

## Equipment:
    1. Vessels:
       - Type: Glass vial

## Procedure:
    1. Combine the precursors and stir.

## Notes:
    - Deterministic output for tests.
`
