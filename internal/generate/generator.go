// Package generate runs the second LLM stage: turning screened-positive
// papers into step-by-step synthesis recipes.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/events"
	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder persists run history. *ledger.Ledger satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	RecordItem(ctx context.Context, res *models.ItemResult) error
	RecordUsage(ctx context.Context, rec *models.UsageRecord) error
}

// Generator writes recipe artifacts for items whose screening verdict is
// positive.
type Generator struct {
	corpus *corpus.Corpus
	client llm.Client

	logger    *zap.Logger
	emitter   events.Emitter
	rec       Recorder
	workers   int
	maxTokens int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

// WithEmitter sets the progress emitter.
func WithEmitter(e events.Emitter) GeneratorOption {
	return func(g *Generator) { g.emitter = e }
}

// WithRecorder enables run-history recording. Pass only a non-nil recorder.
func WithRecorder(r Recorder) GeneratorOption {
	return func(g *Generator) { g.rec = r }
}

// WithWorkers sets the number of concurrent item workers.
func WithWorkers(n int) GeneratorOption {
	return func(g *Generator) {
		if n < 1 {
			n = 1
		}
		g.workers = n
	}
}

// WithMaxTokens caps each recipe completion; 0 uses the client default.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// NewGenerator creates a recipe generator over c backed by client.
func NewGenerator(c *corpus.Corpus, client llm.Client, opts ...GeneratorOption) *Generator {
	g := &Generator{
		corpus:  c,
		client:  client,
		logger:  zap.NewNop(),
		emitter: events.NopEmitter{},
		workers: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run generates recipes for every eligible item under the corpus root.
//
// An item is eligible when its screening verdict exists, is well-formed, and
// is positive. Missing or malformed verdicts mean "not yet screened" and are
// skipped with a warning, never treated as negatives. Items that already
// have a recipe artifact are skipped, so interrupted runs resume cheaply.
func (g *Generator) Run(ctx context.Context) (models.RunStats, error) {
	items, err := g.corpus.Items()
	if err != nil {
		return models.RunStats{}, fmt.Errorf("list corpus items: %w", err)
	}

	runID := uuid.New().String()
	run := &models.Run{ID: runID, Command: "generate", CorpusRoot: g.corpus.Root(), StartedAt: time.Now()}
	g.recordStart(run)

	stats := models.RunStats{Total: len(items)}
	g.emitter.Emit(events.Event{
		Type: events.TypeRunStarted, Time: time.Now(), RunID: runID, ItemsTotal: len(items),
	})

	var (
		mu   sync.Mutex
		done int
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, it := range items {
		if gctx.Err() != nil {
			break
		}
		it := it
		eg.Go(func() error {
			res := g.processItem(gctx, runID, it)

			mu.Lock()
			done++
			itemsDone := done
			switch res.Outcome {
			case models.OutcomeDone:
				stats.Processed++
			case models.OutcomeSkipped:
				stats.Skipped++
			case models.OutcomeFailed:
				stats.Failed++
			}
			mu.Unlock()

			ev := events.Event{
				Time: time.Now(), RunID: runID, Item: res.Item, Outcome: res.Outcome,
				ItemsDone: itemsDone, ItemsTotal: len(items), Err: res.Err,
			}
			switch res.Outcome {
			case models.OutcomeDone:
				ev.Type = events.TypeItemDone
			case models.OutcomeSkipped:
				ev.Type = events.TypeItemSkipped
			case models.OutcomeFailed:
				ev.Type = events.TypeItemFailed
			}
			g.emitter.Emit(ev)
			g.recordItem(&res)
			return nil
		})
	}
	_ = eg.Wait()

	run.Stats = stats
	g.recordFinish(run)
	g.emitter.Emit(events.Event{
		Type: events.TypeRunFinished, Time: time.Now(), RunID: runID,
		ItemsDone: done, ItemsTotal: len(items), Stats: &stats,
	})

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (g *Generator) processItem(ctx context.Context, runID string, it corpus.Item) models.ItemResult {
	start := time.Now()
	res := models.ItemResult{RunID: runID, Item: it.Name}

	if err := ctx.Err(); err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		return res
	}

	verdict, err := g.corpus.ReadVerdict(it)
	if err != nil {
		g.logger.Warn("item not screened yet, skipping", zap.String("item", it.Name), zap.Error(err))
		res.Outcome = models.OutcomeSkipped
		res.Err = "no well-formed screening verdict"
		return res
	}
	if !verdict.ContainsRecipe {
		g.logger.Debug("verdict negative, skipping item", zap.String("item", it.Name))
		res.Outcome = models.OutcomeSkipped
		return res
	}
	if g.corpus.HasRecipe(it) {
		g.logger.Debug("recipe artifact present, skipping item", zap.String("item", it.Name))
		res.Outcome = models.OutcomeSkipped
		return res
	}

	text, err := g.corpus.ReadText(it)
	if errors.Is(err, os.ErrNotExist) {
		g.logger.Warn("text artifact missing, skipping item", zap.String("item", it.Name))
		res.Outcome = models.OutcomeSkipped
		res.Err = "text artifact missing"
		return res
	}
	if err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		return res
	}

	g.emitter.Emit(events.Event{
		Type: events.TypeItemStarted, Time: time.Now(), RunID: runID, Item: it.Name,
	})

	out, err := g.client.Generate(ctx, buildPrompt(text), llm.Options{MaxTokens: g.maxTokens})
	if err != nil {
		g.logger.Warn("recipe generation failed", zap.String("item", it.Name), zap.Error(err))
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		res.DurationMS = time.Since(start).Milliseconds()
		return res
	}
	g.recordUsage(runID, out.Usage)

	if strings.TrimSpace(out.Text) == "" {
		g.logger.Warn("empty recipe completion", zap.String("item", it.Name))
		res.Outcome = models.OutcomeFailed
		res.Err = "empty completion"
		res.DurationMS = time.Since(start).Milliseconds()
		return res
	}

	if err := g.corpus.WriteRecipe(it, out.Text); err != nil {
		g.logger.Error("failed to persist recipe", zap.String("item", it.Name), zap.Error(err))
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		res.DurationMS = time.Since(start).Milliseconds()
		return res
	}

	res.Outcome = models.OutcomeDone
	res.DurationMS = time.Since(start).Milliseconds()
	g.logger.Info("recipe generated",
		zap.String("item", it.Name),
		zap.String("material_type", verdict.MaterialType),
	)
	return res
}

// Ledger writes use a background context so run history survives
// cancellation of the run itself.

func (g *Generator) recordStart(run *models.Run) {
	if g.rec == nil {
		return
	}
	if err := g.rec.StartRun(context.Background(), run); err != nil {
		g.logger.Warn("failed to record run start", zap.Error(err))
	}
}

func (g *Generator) recordFinish(run *models.Run) {
	if g.rec == nil {
		return
	}
	if err := g.rec.FinishRun(context.Background(), run); err != nil {
		g.logger.Warn("failed to record run finish", zap.Error(err))
	}
}

func (g *Generator) recordItem(res *models.ItemResult) {
	if g.rec == nil {
		return
	}
	if err := g.rec.RecordItem(context.Background(), res); err != nil {
		g.logger.Warn("failed to record item result", zap.Error(err))
	}
}

func (g *Generator) recordUsage(runID string, usage llm.Usage) {
	if g.rec == nil || (usage.PromptTokens == 0 && usage.CompletionTokens == 0) {
		return
	}
	rec := &models.UsageRecord{
		RunID:            runID,
		Provider:         g.client.Provider(),
		Model:            g.client.Model(),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if err := g.rec.RecordUsage(context.Background(), rec); err != nil {
		g.logger.Warn("failed to record usage", zap.Error(err))
	}
}
