// Package integration provides tests over fully wired component stacks
// (real filesystem watcher, real run ledger).
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/furui/internal/chunk"
	"github.com/hyperjump/furui/internal/classify"
	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/ledger"
	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/pipeline"
	"github.com/hyperjump/furui/internal/watcher"
)

func TestIntegration_Watch(t *testing.T) {
	dir := t.TempDir()
	c := corpus.New(&config.CorpusConfig{
		Root:         filepath.Join(dir, "corpus"),
		TextFile:     "text.txt",
		ResultFile:   "filter.json",
		RecipeFile:   "recipe.txt",
		PDFFile:      "article.pdf",
		MetadataFile: "metadata.json",
	})

	led, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer led.Close()

	client := llm.NewMockClient()
	driver := pipeline.NewDriver(c,
		chunk.NewChunker(600, chunk.HeuristicCounter{}),
		classify.NewClassifier(client, 0),
		pipeline.WithRecorder(led),
		pipeline.WithUsageLabels(client.Provider(), client.Model()),
	)

	// One item exists before the watcher starts.
	seeded, err := c.EnsureItem("2401.00101")
	if err != nil {
		t.Fatal(err)
	}
	err = c.WriteText(seeded, "Thin films of the halide perovskite were synthesized by spin coating and annealed at 100 C.")
	if err != nil {
		t.Fatal(err)
	}

	w := watcher.NewWatcher(c, driver, watcher.WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.SyncExisting(ctx); err != nil {
		t.Fatalf("SyncExisting: %v", err)
	}
	v, err := c.ReadVerdict(seeded)
	if err != nil {
		t.Fatalf("verdict after sync: %v", err)
	}
	if !v.ContainsRecipe || v.MaterialType != "perovskite" {
		t.Errorf("seeded verdict = %+v, want positive perovskite", v)
	}

	// Items arriving while the watcher runs are picked up from fs events.
	arrived, err := c.EnsureItem("2401.00201")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := c.WriteText(arrived, "The zeolite catalyst was synthesized hydrothermally at 170 C for 48 hours."); err != nil {
		t.Fatal(err)
	}

	negative, err := c.EnsureItem("2401.00501")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := c.WriteText(negative, "We measure the thermal Hall conductivity of the undoped crystal below 2 K."); err != nil {
		t.Fatal(err)
	}

	time.Sleep(700 * time.Millisecond)

	v, err = c.ReadVerdict(arrived)
	if err != nil {
		t.Fatalf("verdict for watched item: %v", err)
	}
	if !v.ContainsRecipe || v.MaterialType != "zeolite" {
		t.Errorf("watched verdict = %+v, want positive zeolite", v)
	}
	v, err = c.ReadVerdict(negative)
	if err != nil {
		t.Fatalf("verdict for negative item: %v", err)
	}
	if v.ContainsRecipe || v.MaterialType != "N/A" {
		t.Errorf("negative verdict = %+v, want negative N/A", v)
	}

	// Touching an already screened item must not trigger another model call.
	calls := client.Calls()
	if err := c.WriteText(seeded, "revised manuscript text"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := client.Calls(); got != calls {
		t.Errorf("model calls after touching screened item = %d, want %d", got, calls)
	}

	// Every pass went through the ledger: one sync run plus one per watched item.
	runs, err := led.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("ledger holds %d runs, want 3", len(runs))
	}
	for _, run := range runs {
		if run.Command != "filter" {
			t.Errorf("run %s command = %q, want filter", run.ID, run.Command)
		}
		if run.FinishedAt == nil {
			t.Errorf("run %s has no finish time", run.ID)
		}
	}
	totals, err := led.UsageTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Calls != int64(client.Calls()) {
		t.Errorf("usage records %d calls, want %d", totals.Calls, client.Calls())
	}
}
