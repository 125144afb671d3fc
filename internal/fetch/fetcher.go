// Package fetch acquires papers from the arXiv API into the corpus.
package fetch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
)

// Stats holds per-run counters for one fetch invocation.
type Stats struct {
	Found      int `json:"found"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Fetcher queries the arXiv Atom API and downloads each result into its own
// corpus item directory (source PDF plus metadata). Items that already have
// both artifacts are skipped, so interrupted fetches resume where they
// stopped.
type Fetcher struct {
	corpus *corpus.Corpus
	cfg    *config.FetchConfig
	client *http.Client
	logger *zap.Logger
	delay  time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for API and PDF requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the logger for the fetcher.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher over the given corpus.
func NewFetcher(c *corpus.Corpus, cfg *config.FetchConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		corpus: c,
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
		logger: zap.NewNop(),
		delay:  cfg.Delay(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run pages through the search results and downloads each paper, newest
// submissions first. API errors (bad status, unparsable feed) abort the run;
// a failure on a single paper removes its partial directory and the run
// continues.
func (f *Fetcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	query := f.cfg.Query
	if f.cfg.Year != 0 {
		query = fmt.Sprintf("%s AND submittedDate:[%d0101 TO %d1231]", query, f.cfg.Year, f.cfg.Year)
	}
	f.logger.Info("starting arXiv fetch",
		zap.String("query", query),
		zap.Int("max_results", f.cfg.MaxResults))

	start := 0
	for start < f.cfg.MaxResults {
		pageSize := f.cfg.PageSize
		if rest := f.cfg.MaxResults - start; rest < pageSize {
			pageSize = rest
		}
		page, err := f.fetchPage(ctx, query, start, pageSize)
		if err != nil {
			return stats, err
		}
		if len(page.Entries) == 0 {
			break
		}

		for _, e := range page.Entries {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Found++

			id := itemID(e.ID)
			if id == "" {
				f.logger.Warn("entry without usable id", zap.String("entry_id", e.ID))
				stats.Failed++
				continue
			}
			item := f.corpus.Item(id)
			if f.corpus.HasPDF(item) && f.corpus.HasMetadata(item) {
				f.logger.Debug("already fetched, skipping", zap.String("item", id))
				stats.Skipped++
				continue
			}

			if err := f.download(ctx, id, e); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				f.logger.Warn("paper download failed",
					zap.String("item", id),
					zap.Error(err))
				stats.Failed++
				continue
			}
			stats.Downloaded++
			f.logger.Info("paper downloaded", zap.String("item", id))
			if err := f.pause(ctx); err != nil {
				return stats, err
			}
		}

		start += len(page.Entries)
		if start >= page.TotalResults {
			break
		}
		if err := f.pause(ctx); err != nil {
			return stats, err
		}
	}

	f.logger.Info("fetch finished",
		zap.Int("found", stats.Found),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// fetchPage queries one page of search results.
func (f *Fetcher) fetchPage(ctx context.Context, query string, start, count int) (*feed, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(count))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query arxiv api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv api returned status %d", resp.StatusCode)
	}
	var fd feed
	if err := xml.NewDecoder(resp.Body).Decode(&fd); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}
	return &fd, nil
}

// download writes the PDF and metadata artifacts for one entry. Any failure
// removes the partial item directory.
func (f *Fetcher) download(ctx context.Context, id string, e entry) error {
	item, err := f.corpus.EnsureItem(id)
	if err != nil {
		return fmt.Errorf("create item directory: %w", err)
	}

	pdfURL := e.pdfURL()
	if pdfURL == "" {
		f.removePartial(item)
		return errors.New("entry has no PDF link")
	}
	data, err := f.getBytes(ctx, pdfURL)
	if err != nil {
		f.removePartial(item)
		return fmt.Errorf("download PDF: %w", err)
	}
	if err := f.corpus.WritePDF(item, data); err != nil {
		f.removePartial(item)
		return fmt.Errorf("write PDF: %w", err)
	}
	if err := f.corpus.WriteMetadata(item, metadataFor(id, e)); err != nil {
		f.removePartial(item)
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (f *Fetcher) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) removePartial(item corpus.Item) {
	if err := f.corpus.RemoveItem(item); err != nil {
		f.logger.Warn("failed to remove partial item",
			zap.String("item", item.Name),
			zap.Error(err))
	}
}

// pause waits the configured politeness delay, or returns early when ctx is
// cancelled.
func (f *Fetcher) pause(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
