package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	content := []byte("Hello world\nLine 2")
	got, err := e.ExtractBytes(content, ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainUTF8(t *testing.T) {
	e := NewExtractor()
	content := []byte("caf\xc3\xa9") // valid UTF-8
	got, err := e.ExtractBytes(content, ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "café" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	content := []byte("hello\x80world") // invalid UTF-8
	got, err := e.ExtractBytes(content, ".rst")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unknownExtension(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("arbitrary content"), ".xyz")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "arbitrary content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pdfGarbage(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a pdf at all"), ".pdf"); err == nil {
		t.Fatal("expected PDF parse error, got nil")
	}
}

func TestExtract_plainFile(t *testing.T) {
	e := NewExtractor()
	path := filepath.Join(t.TempDir(), "paper.txt")
	if err := os.WriteFile(path, []byte("file content"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "file content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected read error, got nil")
	}
}

// fakeExtractor maps item directory names to canned text. Unknown items fail
// extraction, standing in for a corrupt PDF.
type fakeExtractor struct {
	texts map[string]string
	calls []string
}

func (f *fakeExtractor) Extract(path string) (string, error) {
	f.calls = append(f.calls, path)
	item := filepath.Base(filepath.Dir(path))
	text, ok := f.texts[item]
	if !ok {
		return "", errors.New("scrambled xref table")
	}
	return text, nil
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

func addItem(t *testing.T, c *corpus.Corpus, name string, pdf, text bool) corpus.Item {
	t.Helper()
	item, err := c.EnsureItem(name)
	if err != nil {
		t.Fatal(err)
	}
	if pdf {
		if err := c.WritePDF(item, []byte("%PDF-1.4 placeholder")); err != nil {
			t.Fatal(err)
		}
	}
	if text {
		if err := c.WriteText(item, "already extracted"); err != nil {
			t.Fatal(err)
		}
	}
	return item
}

func TestStage_Run(t *testing.T) {
	c := newTestCorpus(t)
	fresh := addItem(t, c, "2401.00001", true, false)
	addItem(t, c, "2401.00002", true, true)   // text artifact present
	addItem(t, c, "2401.00003", false, false) // no source PDF
	addItem(t, c, "2401.00004", true, false)  // extraction fails

	fake := &fakeExtractor{texts: map[string]string{
		"2401.00001": "extracted paper text",
	}}
	stage := NewStage(c, WithExtractor(fake))

	stats, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := models.RunStats{Total: 4, Processed: 1, Skipped: 2, Failed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	got, err := c.ReadText(fresh)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "extracted paper text" {
		t.Errorf("got %q", got)
	}
	if len(fake.calls) != 2 {
		t.Errorf("extractor calls = %d, want 2", len(fake.calls))
	}
}

func TestStage_Run_resume(t *testing.T) {
	c := newTestCorpus(t)
	addItem(t, c, "2401.00001", true, false)

	fake := &fakeExtractor{texts: map[string]string{"2401.00001": "text"}}
	stage := NewStage(c, WithExtractor(fake))

	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	stats, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Errorf("stats = %+v, want one skip and no processing", stats)
	}
	if len(fake.calls) != 1 {
		t.Errorf("extractor calls = %d, want 1", len(fake.calls))
	}
}

func TestStage_Run_force(t *testing.T) {
	c := newTestCorpus(t)
	item := addItem(t, c, "2401.00001", true, true)

	fake := &fakeExtractor{texts: map[string]string{"2401.00001": "re-extracted"}}
	stage := NewStage(c, WithExtractor(fake), WithForce(true))

	stats, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 {
		t.Errorf("stats = %+v, want one processed item", stats)
	}
	got, err := c.ReadText(item)
	if err != nil {
		t.Fatal(err)
	}
	if got != "re-extracted" {
		t.Errorf("got %q, want overwritten artifact", got)
	}
}

func TestStage_Run_defaultExtractor(t *testing.T) {
	c := newTestCorpus(t)
	addItem(t, c, "2401.00001", true, false) // placeholder bytes are not a real PDF

	stage := NewStage(c)

	stats, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want the garbage PDF to fail extraction", stats)
	}
}

func TestStage_Run_cancelled(t *testing.T) {
	c := newTestCorpus(t)
	addItem(t, c, "2401.00001", true, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeExtractor{}
	if _, err := NewStage(c, WithExtractor(fake)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: error = %v, want context.Canceled", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("extractor calls = %d, want none after cancellation", len(fake.calls))
	}
}
