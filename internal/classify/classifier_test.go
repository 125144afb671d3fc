package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/models"
)

// scriptedClient returns a fixed completion and records what it was asked.
type scriptedClient struct {
	text  string
	err   error
	calls int

	lastPrompt string
	lastOpts   llm.Options
}

func (s *scriptedClient) Generate(_ context.Context, prompt string, opts llm.Options) (llm.Result, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastOpts = opts
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.text, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func (s *scriptedClient) Provider() string { return "scripted" }
func (s *scriptedClient) Model() string    { return "scripted-model" }

func TestClassifier_AnalyzeChunk(t *testing.T) {
	t.Run("plain_json_completion", func(t *testing.T) {
		client := &scriptedClient{text: `{"contains_recipe": true, "material_type": "perovskite"}`}
		c := NewClassifier(client, 256)

		verdict, usage, err := c.AnalyzeChunk(context.Background(), "We synthesized CsPbBr3 at 160 C.")
		if err != nil {
			t.Fatalf("AnalyzeChunk failed: %v", err)
		}
		if !verdict.ContainsRecipe || verdict.MaterialType != "perovskite" {
			t.Errorf("unexpected verdict: %+v", verdict)
		}
		if verdict.ParseError {
			t.Error("well-formed completion should not be marked as parse failure")
		}
		if usage.PromptTokens != 10 || usage.CompletionTokens != 5 {
			t.Errorf("unexpected usage: %+v", usage)
		}
	})

	t.Run("fenced_completion", func(t *testing.T) {
		client := &scriptedClient{text: "```json\n{\"contains_recipe\": true, \"material_type\": \"zeolite\"}\n```"}
		c := NewClassifier(client, 0)

		verdict, _, err := c.AnalyzeChunk(context.Background(), "chunk")
		if err != nil {
			t.Fatalf("AnalyzeChunk failed: %v", err)
		}
		if !verdict.ContainsRecipe || verdict.MaterialType != "zeolite" {
			t.Errorf("unexpected verdict: %+v", verdict)
		}
	})

	t.Run("malformed_completion_is_neutral", func(t *testing.T) {
		client := &scriptedClient{text: "I could not find a recipe in this text."}
		c := NewClassifier(client, 0)

		verdict, _, err := c.AnalyzeChunk(context.Background(), "chunk")
		if err != nil {
			t.Fatalf("parse failures must not surface as errors, got: %v", err)
		}
		if verdict.ContainsRecipe {
			t.Error("malformed completion must never count as a positive")
		}
		if !verdict.ParseError {
			t.Error("malformed completion should carry the parse-failure marker")
		}
		if verdict.MaterialType != models.NoMaterial {
			t.Errorf("material = %q, want %q", verdict.MaterialType, models.NoMaterial)
		}
	})

	t.Run("transport_error_is_returned", func(t *testing.T) {
		wantErr := errors.New("connection refused")
		client := &scriptedClient{err: wantErr}
		c := NewClassifier(client, 0)

		_, _, err := c.AnalyzeChunk(context.Background(), "chunk")
		if err == nil {
			t.Fatal("expected a transport error")
		}
		if !errors.Is(err, wantErr) {
			t.Errorf("error %v should wrap %v", err, wantErr)
		}
	})

	t.Run("empty_material_normalized", func(t *testing.T) {
		client := &scriptedClient{text: `{"contains_recipe": false, "material_type": ""}`}
		c := NewClassifier(client, 0)

		verdict, _, err := c.AnalyzeChunk(context.Background(), "chunk")
		if err != nil {
			t.Fatalf("AnalyzeChunk failed: %v", err)
		}
		if verdict.MaterialType != models.NoMaterial {
			t.Errorf("material = %q, want %q", verdict.MaterialType, models.NoMaterial)
		}
	})

	t.Run("prompt_embeds_chunk_and_requests_json", func(t *testing.T) {
		client := &scriptedClient{text: `{"contains_recipe": false, "material_type": "N/A"}`}
		c := NewClassifier(client, 512)

		chunk := "The precursor was annealed at 900 C for two hours."
		if _, _, err := c.AnalyzeChunk(context.Background(), chunk); err != nil {
			t.Fatalf("AnalyzeChunk failed: %v", err)
		}

		if !strings.Contains(client.lastPrompt, chunk) {
			t.Error("prompt should embed the chunk text")
		}
		if !strings.Contains(client.lastPrompt, "Does it contain a material synthesis recipe?") {
			t.Error("prompt should ask the presence question")
		}
		if !strings.Contains(client.lastPrompt, `"contains_recipe": true/false`) {
			t.Error("prompt should spell out the answer structure")
		}
		if !client.lastOpts.JSON {
			t.Error("chunk analysis should request JSON output")
		}
		if client.lastOpts.MaxTokens != 512 {
			t.Errorf("MaxTokens = %d, want 512", client.lastOpts.MaxTokens)
		}
	})
}
