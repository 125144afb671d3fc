package report

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
)

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

func addVerdict(t *testing.T, c *corpus.Corpus, name string, v models.Verdict) corpus.Item {
	t.Helper()
	item, err := c.EnsureItem(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteText(item, "paper text for "+name); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteVerdict(item, v); err != nil {
		t.Fatal(err)
	}
	return item
}

func buildFixture(t *testing.T, c *corpus.Corpus) {
	t.Helper()
	withRecipe := addVerdict(t, c, "2401.00001", models.Verdict{ContainsRecipe: true, MaterialType: "perovskite"})
	if err := c.WriteRecipe(withRecipe, "## Target Material: perovskite"); err != nil {
		t.Fatal(err)
	}
	addVerdict(t, c, "2401.00002", models.Verdict{ContainsRecipe: true, MaterialType: "zeolite"})
	addVerdict(t, c, "2401.00003", models.Verdict{ContainsRecipe: true, MaterialType: "perovskite"})
	addVerdict(t, c, "2401.00004", models.Verdict{ContainsRecipe: false, MaterialType: models.NoMaterial})
	addVerdict(t, c, "2401.00005", models.NeutralVerdict())

	// malformed result file
	malformed, err := c.EnsureItem("2401.00006")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.ResultPath(malformed), []byte(`{"contains_recipe": "Yes"`), 0o644); err != nil {
		t.Fatal(err)
	}
	// not yet screened
	if _, err := c.EnsureItem("2401.00007"); err != nil {
		t.Fatal(err)
	}
}

func TestReporter_Count(t *testing.T) {
	c := newTestCorpus(t)
	buildFixture(t, c)

	rep, err := NewReporter(c).Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := Report{
		Items:       7,
		Screened:    5,
		Positives:   3,
		ParseErrors: 1,
		Recipes:     1,
		Materials:   map[string]int{"perovskite": 2, "zeolite": 1},
	}
	if !reflect.DeepEqual(rep, want) {
		t.Errorf("report = %+v, want %+v", rep, want)
	}
}

func TestReporter_Count_emptyCorpus(t *testing.T) {
	c := newTestCorpus(t)

	rep, err := NewReporter(c).Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if rep.Items != 0 || rep.Screened != 0 || len(rep.Materials) != 0 {
		t.Errorf("report = %+v, want all zero", rep)
	}
}

func TestReporter_Copy(t *testing.T) {
	c := newTestCorpus(t)
	buildFixture(t, c)
	dest := filepath.Join(t.TempDir(), "positives")

	n, err := NewReporter(c).Copy(context.Background(), dest)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if n != 3 {
		t.Errorf("copied = %d, want 3", n)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	wantNames := []string{"2401.00001", "2401.00002", "2401.00003"}
	if !reflect.DeepEqual(names, wantNames) {
		t.Errorf("copied items = %v, want %v", names, wantNames)
	}

	text, err := os.ReadFile(filepath.Join(dest, "2401.00002", "text.txt"))
	if err != nil {
		t.Fatalf("read copied text: %v", err)
	}
	if string(text) != "paper text for 2401.00002" {
		t.Errorf("copied text = %q", text)
	}
	if _, err := os.Stat(filepath.Join(dest, "2401.00001", "recipe.txt")); err != nil {
		t.Errorf("recipe artifact not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "2401.00004")); !os.IsNotExist(err) {
		t.Errorf("negative item copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "2401.00006")); !os.IsNotExist(err) {
		t.Errorf("malformed item copied: %v", err)
	}
}

func TestReporter_Copy_rerunOverwrites(t *testing.T) {
	c := newTestCorpus(t)
	addVerdict(t, c, "2401.00001", models.Verdict{ContainsRecipe: true, MaterialType: "aerogel"})
	dest := filepath.Join(t.TempDir(), "positives")

	r := NewReporter(c)
	if _, err := r.Copy(context.Background(), dest); err != nil {
		t.Fatalf("first Copy: %v", err)
	}
	n, err := r.Copy(context.Background(), dest)
	if err != nil {
		t.Fatalf("second Copy: %v", err)
	}
	if n != 1 {
		t.Errorf("copied = %d, want 1", n)
	}
}

func TestReporter_Copy_cancelled(t *testing.T) {
	c := newTestCorpus(t)
	addVerdict(t, c, "2401.00001", models.Verdict{ContainsRecipe: true, MaterialType: "aerogel"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewReporter(c).Copy(ctx, filepath.Join(t.TempDir(), "out")); err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
}
