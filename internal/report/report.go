// Package report summarizes screening results and exports positive items.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/corpus"
)

// Report summarizes screening progress over a corpus. Screened counts items
// with a well-formed verdict; missing or malformed result files are "not yet
// screened", never negatives. Materials is a histogram of material types over
// positive verdicts.
type Report struct {
	Items       int            `json:"items"`
	Screened    int            `json:"screened"`
	Positives   int            `json:"positives"`
	ParseErrors int            `json:"parse_errors"`
	Recipes     int            `json:"recipes"`
	Materials   map[string]int `json:"materials"`
}

// Reporter computes corpus summaries and copies positive items out.
type Reporter struct {
	corpus *corpus.Corpus
	logger *zap.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger for the reporter.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter creates a Reporter over the given corpus.
func NewReporter(c *corpus.Corpus, opts ...Option) *Reporter {
	r := &Reporter{
		corpus: c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Count walks the corpus and tallies screening results.
func (r *Reporter) Count(ctx context.Context) (Report, error) {
	items, err := r.corpus.Items()
	if err != nil {
		return Report{}, fmt.Errorf("list corpus items: %w", err)
	}

	rep := Report{
		Items:     len(items),
		Materials: make(map[string]int),
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if r.corpus.HasRecipe(item) {
			rep.Recipes++
		}
		verdict, err := r.corpus.ReadVerdict(item)
		if err != nil {
			r.logger.Debug("no well-formed verdict", zap.String("item", item.Name), zap.Error(err))
			continue
		}
		rep.Screened++
		if verdict.ParseError {
			rep.ParseErrors++
		}
		if verdict.ContainsRecipe {
			rep.Positives++
			rep.Materials[verdict.MaterialType]++
		}
	}
	return rep, nil
}

// Copy copies every positive item directory into dest, creating it when
// needed. Existing files in dest are overwritten. Items without a well-formed
// positive verdict are skipped. Returns the number of items copied.
func (r *Reporter) Copy(ctx context.Context, dest string) (int, error) {
	items, err := r.corpus.Items()
	if err != nil {
		return 0, fmt.Errorf("list corpus items: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	copied := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		verdict, err := r.corpus.ReadVerdict(item)
		if err != nil {
			r.logger.Debug("no well-formed verdict, skipping", zap.String("item", item.Name))
			continue
		}
		if !verdict.ContainsRecipe {
			continue
		}
		if err := copyTree(item.Path, filepath.Join(dest, item.Name)); err != nil {
			return copied, fmt.Errorf("copy %s: %w", item.Name, err)
		}
		copied++
		r.logger.Info("item copied",
			zap.String("item", item.Name),
			zap.String("material_type", verdict.MaterialType))
	}
	r.logger.Info("copy finished", zap.Int("copied", copied), zap.String("dest", dest))
	return copied, nil
}

// copyTree recursively copies the directory at src to dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
