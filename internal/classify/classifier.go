// Package classify runs document chunks through the recipe-screening prompt
// and merges chunk verdicts into document verdicts.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/models"
	"github.com/hyperjump/furui/pkg/utils"
	"go.uber.org/zap"
)

// promptTemplate is the fixed two-question screening prompt; the %s verb
// receives the chunk text.
const promptTemplate = `Analyze the following text and answer the questions in JSON format:


%s

Questions:
1. Does it contain a material synthesis recipe? (Answer with true or false)
2. If yes, what is the material type? (Answer with the specific material type or "N/A" if no recipe)

Format your response as a JSON object with the following structure:
{
    "contains_recipe": true/false,
    "material_type": "material type or N/A"
}
`

// Classifier wraps one request/response round trip to the model per chunk.
type Classifier struct {
	client    llm.Client
	maxTokens int
	logger    *zap.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithLogger sets the logger used for decode warnings.
func WithLogger(logger *zap.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier creates a classifier backed by client. maxTokens caps each
// completion; 0 uses the client's default.
func NewClassifier(client llm.Client, maxTokens int, opts ...ClassifierOption) *Classifier {
	c := &Classifier{client: client, maxTokens: maxTokens, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chunkAnswer is the JSON shape the prompt asks for. Booleans only; string
// encodings of truth are treated as malformed.
type chunkAnswer struct {
	ContainsRecipe bool   `json:"contains_recipe"`
	MaterialType   string `json:"material_type"`
}

// AnalyzeChunk asks the screening questions about one chunk.
//
// A completion that cannot be interpreted as the expected JSON yields the
// neutral parse-failure verdict and a nil error; malformed output must never
// count as a positive and never aborts the batch. Transport failures are
// returned as errors so the caller can retry before degrading. No retries
// happen here.
func (c *Classifier) AnalyzeChunk(ctx context.Context, chunkText string) (models.Verdict, llm.Usage, error) {
	prompt := fmt.Sprintf(promptTemplate, chunkText)
	res, err := c.client.Generate(ctx, prompt, llm.Options{JSON: true, MaxTokens: c.maxTokens})
	if err != nil {
		return models.Verdict{}, llm.Usage{}, fmt.Errorf("chunk analysis call failed: %w", err)
	}

	var answer chunkAnswer
	if err := llm.ParseJSON(res.Text, &answer); err != nil {
		c.logger.Warn("failed to decode chunk verdict",
			zap.Error(err),
			zap.String("completion", utils.Truncate(res.Text, 200)),
		)
		return models.NeutralVerdict(), res.Usage, nil
	}

	verdict := models.Verdict{
		ContainsRecipe: answer.ContainsRecipe,
		MaterialType:   strings.TrimSpace(answer.MaterialType),
	}
	if verdict.MaterialType == "" {
		verdict.MaterialType = models.NoMaterial
	}
	return verdict, res.Usage, nil
}
