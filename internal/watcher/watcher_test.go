package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) RunItems(ctx context.Context, items []corpus.Item) (models.RunStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	f.calls = append(f.calls, names)
	return models.RunStats{Total: len(items), Processed: len(items)}, nil
}

func (f *fakeRunner) snapshot() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	return corpus.New(&config.CorpusConfig{
		Root:         t.TempDir(),
		TextFile:     "text.txt",
		ResultFile:   "filter.json",
		RecipeFile:   "recipe.txt",
		PDFFile:      "article.pdf",
		MetadataFile: "metadata.json",
	})
}

func TestWatcher_textArtifactTriggersFilter(t *testing.T) {
	c := newTestCorpus(t)
	item, err := c.EnsureItem("2401.00001")
	if err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	w := NewWatcher(c, runner, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := c.WriteText(item, "a synthesis paper"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)

	calls := runner.snapshot()
	if len(calls) != 1 {
		t.Fatalf("filter runs = %d, want 1: %v", len(calls), calls)
	}
	if len(calls[0]) != 1 || calls[0][0] != "2401.00001" {
		t.Errorf("filtered items = %v, want [2401.00001]", calls[0])
	}
}

func TestWatcher_newItemDirectory(t *testing.T) {
	c := newTestCorpus(t)

	runner := &fakeRunner{}
	w := NewWatcher(c, runner, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Simulate an item arriving after startup.
	item, err := c.EnsureItem("2401.00002")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := c.WriteText(item, "fresh paper"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)

	calls := runner.snapshot()
	if len(calls) < 1 {
		t.Fatalf("filter runs = %d, want at least 1", len(calls))
	}
	if calls[0][0] != "2401.00002" {
		t.Errorf("filtered items = %v, want [2401.00002]", calls[0])
	}
}

func TestWatcher_alreadyFilteredItemIgnored(t *testing.T) {
	c := newTestCorpus(t)
	item, err := c.EnsureItem("2401.00003")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteVerdict(item, models.Verdict{ContainsRecipe: true, MaterialType: "zeolite"}); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	w := NewWatcher(c, runner, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := c.WriteText(item, "updated text"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)

	if calls := runner.snapshot(); len(calls) != 0 {
		t.Errorf("filter runs = %v, want none for an already-filtered item", calls)
	}
}

func TestWatcher_ignoresUnrelatedFiles(t *testing.T) {
	c := newTestCorpus(t)
	item, err := c.EnsureItem("2401.00004")
	if err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	w := NewWatcher(c, runner, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := c.WriteMetadata(item, map[string]string{"arxiv_id": "2401.00004"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.Root(), "notes.txt"), []byte("stray"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(700 * time.Millisecond)

	if calls := runner.snapshot(); len(calls) != 0 {
		t.Errorf("filter runs = %v, want none for unrelated files", calls)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	c := newTestCorpus(t)
	for _, name := range []string{"2401.00001", "2401.00002"} {
		item, err := c.EnsureItem(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := c.WriteText(item, "paper"); err != nil {
			t.Fatal(err)
		}
	}

	runner := &fakeRunner{}
	w := NewWatcher(c, runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.SyncExisting(ctx); err != nil {
		t.Fatalf("SyncExisting: %v", err)
	}
	calls := runner.snapshot()
	if len(calls) != 1 {
		t.Fatalf("filter runs = %d, want 1", len(calls))
	}
	if len(calls[0]) != 2 {
		t.Errorf("synced items = %v, want both items in one run", calls[0])
	}
}

func TestWatcher_SyncExisting_emptyCorpus(t *testing.T) {
	c := newTestCorpus(t)
	runner := &fakeRunner{}
	w := NewWatcher(c, runner)

	if err := w.SyncExisting(context.Background()); err != nil {
		t.Fatalf("SyncExisting: %v", err)
	}
	if calls := runner.snapshot(); len(calls) != 0 {
		t.Errorf("filter runs = %v, want none for an empty corpus", calls)
	}
}

func TestWatcher_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "corpus", "papers")
	c := corpus.New(&config.CorpusConfig{
		Root:         root,
		TextFile:     "text.txt",
		ResultFile:   "filter.json",
		RecipeFile:   "recipe.txt",
		PDFFile:      "article.pdf",
		MetadataFile: "metadata.json",
	})

	w := NewWatcher(c, &fakeRunner{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestWatcher_Close(t *testing.T) {
	c := newTestCorpus(t)
	w := NewWatcher(c, &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
