// Package pipeline drives the screening stage across a corpus: gate, chunk,
// analyze, reduce, persist, with per-item failure isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/furui/internal/chunk"
	"github.com/hyperjump/furui/internal/classify"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/events"
	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Analyzer produces one verdict per chunk. classify.Classifier is the
// production implementation.
type Analyzer interface {
	AnalyzeChunk(ctx context.Context, text string) (models.Verdict, llm.Usage, error)
}

// Recorder persists run history. Implementations must be safe for
// concurrent use by workers. *ledger.Ledger satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	RecordItem(ctx context.Context, res *models.ItemResult) error
	RecordUsage(ctx context.Context, rec *models.UsageRecord) error
}

// Driver runs the screening stage over corpus items.
type Driver struct {
	corpus   *corpus.Corpus
	chunker  *chunk.Chunker
	analyzer Analyzer

	logger   *zap.Logger
	emitter  events.Emitter
	rec      Recorder
	workers  int
	retries  int
	provider string
	model    string
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) DriverOption {
	return func(d *Driver) { d.logger = logger }
}

// WithEmitter sets the progress emitter.
func WithEmitter(e events.Emitter) DriverOption {
	return func(d *Driver) { d.emitter = e }
}

// WithRecorder enables run-history recording. Pass only a non-nil recorder.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) { d.rec = r }
}

// WithWorkers sets the number of concurrent item workers. Values below 1
// mean sequential processing.
func WithWorkers(n int) DriverOption {
	return func(d *Driver) {
		if n < 1 {
			n = 1
		}
		d.workers = n
	}
}

// WithChunkRetries sets how many times a transport-failed chunk call is
// retried before the chunk degrades to the neutral verdict.
func WithChunkRetries(n int) DriverOption {
	return func(d *Driver) {
		if n < 0 {
			n = 0
		}
		d.retries = n
	}
}

// WithUsageLabels sets the provider and model names stamped on usage
// records.
func WithUsageLabels(provider, model string) DriverOption {
	return func(d *Driver) {
		d.provider = provider
		d.model = model
	}
}

// NewDriver creates a screening driver over c.
func NewDriver(c *corpus.Corpus, chunker *chunk.Chunker, analyzer Analyzer, opts ...DriverOption) *Driver {
	d := &Driver{
		corpus:   c,
		chunker:  chunker,
		analyzer: analyzer,
		logger:   zap.NewNop(),
		emitter:  events.NopEmitter{},
		workers:  1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run screens every item under the corpus root. See RunItems.
func (d *Driver) Run(ctx context.Context) (models.RunStats, error) {
	return d.RunAs(ctx, uuid.New().String())
}

// RunAs screens every item under the corpus root with a caller-chosen run
// id. The id appears in events and the ledger, so callers that launch a run
// in the background can hand it out before the run finishes.
func (d *Driver) RunAs(ctx context.Context, runID string) (models.RunStats, error) {
	items, err := d.corpus.Items()
	if err != nil {
		return models.RunStats{}, fmt.Errorf("list corpus items: %w", err)
	}
	return d.runItems(ctx, runID, items)
}

// RunItems screens the given items. Items whose verdict artifact already
// exists and is well-formed are skipped, so an interrupted run can be
// re-invoked and only the remainder is paid for. Per-item failures are
// recorded and never abort the batch; the returned error is non-nil only
// when listing fails or ctx is cancelled. Stats reflect whatever completed.
func (d *Driver) RunItems(ctx context.Context, items []corpus.Item) (models.RunStats, error) {
	return d.runItems(ctx, uuid.New().String(), items)
}

func (d *Driver) runItems(ctx context.Context, runID string, items []corpus.Item) (models.RunStats, error) {
	run := &models.Run{ID: runID, Command: "filter", CorpusRoot: d.corpus.Root(), StartedAt: time.Now()}
	d.recordStart(run)

	stats := models.RunStats{Total: len(items)}
	d.emitter.Emit(events.Event{
		Type: events.TypeRunStarted, Time: time.Now(), RunID: runID, ItemsTotal: len(items),
	})

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, it := range items {
		if gctx.Err() != nil {
			break
		}
		it := it
		g.Go(func() error {
			res, verdict := d.processItem(gctx, runID, it)

			mu.Lock()
			done++
			itemsDone := done
			switch res.Outcome {
			case models.OutcomeDone:
				stats.Processed++
				if verdict != nil && verdict.ContainsRecipe {
					stats.Positives++
				}
			case models.OutcomeSkipped:
				stats.Skipped++
			case models.OutcomeFailed:
				stats.Failed++
			}
			mu.Unlock()

			d.emitItemEvent(runID, res, verdict, itemsDone, len(items))
			d.recordItem(&res)
			return nil
		})
	}
	_ = g.Wait()

	run.Stats = stats
	d.recordFinish(run)
	d.emitter.Emit(events.Event{
		Type: events.TypeRunFinished, Time: time.Now(), RunID: runID,
		ItemsDone: done, ItemsTotal: len(items), Stats: &stats,
	})

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// processItem takes one item through gate, chunking, analysis, reduction,
// and persistence. The verdict return is non-nil only on OutcomeDone.
func (d *Driver) processItem(ctx context.Context, runID string, it corpus.Item) (models.ItemResult, *models.Verdict) {
	start := time.Now()
	res := models.ItemResult{RunID: runID, Item: it.Name}

	if err := ctx.Err(); err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		return res, nil
	}

	if !d.corpus.NeedsFilter(it) {
		d.logger.Debug("verdict artifact present, skipping item", zap.String("item", it.Name))
		res.Outcome = models.OutcomeSkipped
		return res, nil
	}

	text, err := d.corpus.ReadText(it)
	if errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("text artifact missing, skipping item", zap.String("item", it.Name))
		res.Outcome = models.OutcomeSkipped
		res.Err = "text artifact missing"
		return res, nil
	}
	if err != nil {
		d.logger.Error("failed to read text artifact", zap.String("item", it.Name), zap.Error(err))
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		return res, nil
	}

	d.emitter.Emit(events.Event{
		Type: events.TypeItemStarted, Time: time.Now(), RunID: runID, Item: it.Name,
	})

	chunks := d.chunker.Split(text)
	res.Chunks = len(chunks)
	d.logger.Debug("item chunked", zap.String("item", it.Name), zap.Int("chunks", len(chunks)))

	verdicts := make([]models.Verdict, 0, len(chunks))
	for i, chunkText := range chunks {
		verdict, err := d.analyzeWithRetry(ctx, runID, it.Name, chunkText)
		if err != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = err.Error()
			res.DurationMS = time.Since(start).Milliseconds()
			return res, nil
		}
		verdicts = append(verdicts, verdict)
		d.emitter.Emit(events.Event{
			Type: events.TypeChunkDone, Time: time.Now(), RunID: runID, Item: it.Name,
			Chunk: i + 1, ChunksTotal: len(chunks),
		})
	}

	final := classify.Reduce(verdicts)
	if err := d.corpus.WriteVerdict(it, final); err != nil {
		d.logger.Error("failed to persist verdict", zap.String("item", it.Name), zap.Error(err))
		res.Outcome = models.OutcomeFailed
		res.Err = err.Error()
		res.DurationMS = time.Since(start).Milliseconds()
		return res, nil
	}

	res.Outcome = models.OutcomeDone
	res.DurationMS = time.Since(start).Milliseconds()
	d.logger.Info("item screened",
		zap.String("item", it.Name),
		zap.Int("chunks", len(chunks)),
		zap.Bool("contains_recipe", final.ContainsRecipe),
		zap.String("material_type", final.MaterialType),
	)
	return res, &final
}

// analyzeWithRetry calls the analyzer, retrying transport failures with
// exponential backoff up to the configured count, then degrades to the
// neutral verdict. The returned error is non-nil only for cancellation.
func (d *Driver) analyzeWithRetry(ctx context.Context, runID, item, chunkText string) (models.Verdict, error) {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return models.Verdict{}, ctx.Err()
			}
		}

		verdict, usage, err := d.analyzer.AnalyzeChunk(ctx, chunkText)
		if err == nil {
			d.recordUsage(runID, usage)
			return verdict, nil
		}
		if ctx.Err() != nil {
			return models.Verdict{}, ctx.Err()
		}
		lastErr = err
		d.logger.Warn("chunk analysis failed",
			zap.String("item", item),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	d.logger.Warn("chunk analysis exhausted retries, degrading to neutral verdict",
		zap.String("item", item), zap.Error(lastErr))
	return models.NeutralVerdict(), nil
}

func (d *Driver) emitItemEvent(runID string, res models.ItemResult, verdict *models.Verdict, itemsDone, itemsTotal int) {
	ev := events.Event{
		Time: time.Now(), RunID: runID, Item: res.Item, Outcome: res.Outcome,
		ItemsDone: itemsDone, ItemsTotal: itemsTotal,
	}
	switch res.Outcome {
	case models.OutcomeDone:
		ev.Type = events.TypeItemDone
		ev.Verdict = verdict
	case models.OutcomeSkipped:
		ev.Type = events.TypeItemSkipped
		ev.Err = res.Err
	case models.OutcomeFailed:
		ev.Type = events.TypeItemFailed
		ev.Err = res.Err
	}
	d.emitter.Emit(ev)
}

// Ledger writes use a background context so run history survives
// cancellation of the run itself.

func (d *Driver) recordStart(run *models.Run) {
	if d.rec == nil {
		return
	}
	if err := d.rec.StartRun(context.Background(), run); err != nil {
		d.logger.Warn("failed to record run start", zap.Error(err))
	}
}

func (d *Driver) recordFinish(run *models.Run) {
	if d.rec == nil {
		return
	}
	if err := d.rec.FinishRun(context.Background(), run); err != nil {
		d.logger.Warn("failed to record run finish", zap.Error(err))
	}
}

func (d *Driver) recordItem(res *models.ItemResult) {
	if d.rec == nil {
		return
	}
	if err := d.rec.RecordItem(context.Background(), res); err != nil {
		d.logger.Warn("failed to record item result", zap.Error(err))
	}
}

func (d *Driver) recordUsage(runID string, usage llm.Usage) {
	if d.rec == nil || (usage.PromptTokens == 0 && usage.CompletionTokens == 0) {
		return
	}
	rec := &models.UsageRecord{
		RunID:            runID,
		Provider:         d.provider,
		Model:            d.model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if err := d.rec.RecordUsage(context.Background(), rec); err != nil {
		d.logger.Warn("failed to record usage", zap.Error(err))
	}
}
