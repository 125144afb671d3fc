package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
)

// Stage runs text extraction over every item in a corpus. Items without a
// source PDF are skipped, as are items that already have a text artifact
// unless force is set. A failed extraction marks the item failed and the
// stage moves on.
type Stage struct {
	corpus    *corpus.Corpus
	extractor TextExtractor
	logger    *zap.Logger
	force     bool
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithExtractor sets the text extractor used by the stage.
func WithExtractor(e TextExtractor) StageOption {
	return func(s *Stage) {
		s.extractor = e
	}
}

// WithForce re-extracts items that already have a text artifact.
func WithForce(force bool) StageOption {
	return func(s *Stage) {
		s.force = force
	}
}

// WithLogger sets the logger for the stage.
func WithLogger(logger *zap.Logger) StageOption {
	return func(s *Stage) {
		s.logger = logger
	}
}

// NewStage creates an extraction stage over the given corpus.
func NewStage(c *corpus.Corpus, opts ...StageOption) *Stage {
	s := &Stage{
		corpus:    c,
		extractor: NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run extracts text for every eligible item and reports per-item counters.
// It stops early only when ctx is cancelled.
func (s *Stage) Run(ctx context.Context) (models.RunStats, error) {
	items, err := s.corpus.Items()
	if err != nil {
		return models.RunStats{}, fmt.Errorf("list corpus items: %w", err)
	}

	stats := models.RunStats{Total: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !s.corpus.HasPDF(item) {
			s.logger.Debug("no source PDF, skipping", zap.String("item", item.Name))
			stats.Skipped++
			continue
		}
		if s.corpus.HasText(item) && !s.force {
			s.logger.Debug("text already extracted, skipping", zap.String("item", item.Name))
			stats.Skipped++
			continue
		}

		text, err := s.extractor.Extract(s.corpus.PDFPath(item))
		if err != nil {
			s.logger.Warn("text extraction failed",
				zap.String("item", item.Name),
				zap.Error(err))
			stats.Failed++
			continue
		}
		if err := s.corpus.WriteText(item, text); err != nil {
			s.logger.Warn("failed to write text artifact",
				zap.String("item", item.Name),
				zap.Error(err))
			stats.Failed++
			continue
		}

		stats.Processed++
		s.logger.Info("text extracted",
			zap.String("item", item.Name),
			zap.Int("chars", len(text)))
	}
	return stats, nil
}
