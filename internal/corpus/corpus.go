// Package corpus models the on-disk paper corpus: one subdirectory per item
// with fixed artifact file names inside it.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/models"
)

// Item is one paper directory inside the corpus. Name is the directory name
// and doubles as the item identifier in logs, events, and the run ledger.
type Item struct {
	Name string
	Path string
}

// Corpus reads and writes the fixed artifact files of a paper corpus.
// Artifact names are configurable but identical across items.
type Corpus struct {
	root     string
	text     string
	result   string
	recipe   string
	pdf      string
	metadata string
}

// New creates a corpus over cfg.Root with the artifact names from cfg.
func New(cfg *config.CorpusConfig) *Corpus {
	return &Corpus{
		root:     cfg.Root,
		text:     cfg.TextFile,
		result:   cfg.ResultFile,
		recipe:   cfg.RecipeFile,
		pdf:      cfg.PDFFile,
		metadata: cfg.MetadataFile,
	}
}

// Root returns the corpus root directory.
func (c *Corpus) Root() string { return c.root }

// Items lists the immediate subdirectories of the corpus root in name order.
// Regular files at the top level are ignored. A missing root is an error; an
// existing but empty root is an empty corpus.
func (c *Corpus) Items() ([]Item, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read corpus root: %w", err)
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		items = append(items, Item{Name: e.Name(), Path: filepath.Join(c.root, e.Name())})
	}
	return items, nil
}

// Item returns the item named name under the corpus root. It does not check
// that the directory exists.
func (c *Corpus) Item(name string) Item {
	return Item{Name: name, Path: filepath.Join(c.root, name)}
}

// ItemAt treats an arbitrary directory path as a corpus item. Used for
// single-item runs pointed at a directory outside the configured root.
func ItemAt(path string) Item {
	return Item{Name: filepath.Base(path), Path: path}
}

// EnsureItem creates the directory for name if needed and returns the item.
func (c *Corpus) EnsureItem(name string) (Item, error) {
	it := c.Item(name)
	if err := os.MkdirAll(it.Path, 0o755); err != nil {
		return Item{}, fmt.Errorf("create item directory: %w", err)
	}
	return it, nil
}

// RemoveItem deletes an item directory and everything in it. Used to drop
// partially fetched papers so a later run starts them from scratch.
func (c *Corpus) RemoveItem(it Item) error {
	return os.RemoveAll(it.Path)
}

// TextPath returns the extracted-text artifact path of it.
func (c *Corpus) TextPath(it Item) string { return filepath.Join(it.Path, c.text) }

// ResultPath returns the verdict artifact path of it.
func (c *Corpus) ResultPath(it Item) string { return filepath.Join(it.Path, c.result) }

// RecipePath returns the generated-recipe artifact path of it.
func (c *Corpus) RecipePath(it Item) string { return filepath.Join(it.Path, c.recipe) }

// PDFPath returns the source PDF artifact path of it.
func (c *Corpus) PDFPath(it Item) string { return filepath.Join(it.Path, c.pdf) }

// MetadataPath returns the paper metadata artifact path of it.
func (c *Corpus) MetadataPath(it Item) string { return filepath.Join(it.Path, c.metadata) }

// ReadText returns the extracted text of an item. The error is returned
// unwrapped so callers can distinguish a missing artifact with
// errors.Is(err, os.ErrNotExist).
func (c *Corpus) ReadText(it Item) (string, error) {
	data, err := os.ReadFile(c.TextPath(it))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasText reports whether the extracted-text artifact exists.
func (c *Corpus) HasText(it Item) bool { return fileExists(c.TextPath(it)) }

// HasPDF reports whether the source PDF artifact exists.
func (c *Corpus) HasPDF(it Item) bool { return fileExists(c.PDFPath(it)) }

// HasRecipe reports whether a generated recipe already exists.
func (c *Corpus) HasRecipe(it Item) bool { return fileExists(c.RecipePath(it)) }

// HasMetadata reports whether the acquisition metadata artifact exists.
func (c *Corpus) HasMetadata(it Item) bool { return fileExists(c.MetadataPath(it)) }

// WriteText persists extracted text for an item.
func (c *Corpus) WriteText(it Item, text string) error {
	return writeFileAtomic(c.TextPath(it), []byte(text), 0o644)
}

// WritePDF persists the downloaded source PDF for an item.
func (c *Corpus) WritePDF(it Item, data []byte) error {
	return writeFileAtomic(c.PDFPath(it), data, 0o644)
}

// WriteMetadata persists v as indented JSON in the item's metadata artifact.
func (c *Corpus) WriteMetadata(it Item, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return writeFileAtomic(c.MetadataPath(it), append(data, '\n'), 0o644)
}

// ReadRecipe returns the generated recipe text of an item.
func (c *Corpus) ReadRecipe(it Item) (string, error) {
	data, err := os.ReadFile(c.RecipePath(it))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteRecipe persists generated recipe text for an item.
func (c *Corpus) WriteRecipe(it Item, text string) error {
	return writeFileAtomic(c.RecipePath(it), []byte(text), 0o644)
}

// ReadVerdict loads the persisted verdict of an item and enforces the
// artifact shape. A missing artifact returns the bare os error; a present
// but malformed artifact returns a decode error, and the resume gate treats
// both cases as "not done yet".
func (c *Corpus) ReadVerdict(it Item) (models.Verdict, error) {
	data, err := os.ReadFile(c.ResultPath(it))
	if err != nil {
		return models.Verdict{}, err
	}
	v, err := decodeVerdict(data)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("decode %s: %w", c.ResultPath(it), err)
	}
	return v, nil
}

// WriteVerdict persists the document verdict for an item. The write is
// atomic so an interrupted run never leaves a truncated artifact for the
// resume gate to trust.
func (c *Corpus) WriteVerdict(it Item, v models.Verdict) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	return writeFileAtomic(c.ResultPath(it), append(data, '\n'), 0o644)
}

// NeedsFilter reports whether an item still needs a screening run. An item
// counts as done only when its verdict artifact exists and is well-formed;
// a corrupt or truncated artifact schedules the item again.
func (c *Corpus) NeedsFilter(it Item) bool {
	_, err := c.ReadVerdict(it)
	return err != nil
}

// decodeVerdict enforces the verdict artifact shape: both required keys
// present, presence as a JSON boolean, material as a JSON string. Anything
// else, including string-encoded booleans, is malformed.
func decodeVerdict(data []byte) (models.Verdict, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Verdict{}, err
	}
	var v models.Verdict
	cr, ok := raw["contains_recipe"]
	if !ok {
		return models.Verdict{}, fmt.Errorf("missing key %q", "contains_recipe")
	}
	if err := json.Unmarshal(cr, &v.ContainsRecipe); err != nil {
		return models.Verdict{}, fmt.Errorf("contains_recipe: %w", err)
	}
	mt, ok := raw["material_type"]
	if !ok {
		return models.Verdict{}, fmt.Errorf("missing key %q", "material_type")
	}
	if err := json.Unmarshal(mt, &v.MaterialType); err != nil {
		return models.Verdict{}, fmt.Errorf("material_type: %w", err)
	}
	if pe, ok := raw["parse_error"]; ok {
		if err := json.Unmarshal(pe, &v.ParseError); err != nil {
			return models.Verdict{}, fmt.Errorf("parse_error: %w", err)
		}
	}
	return v, nil
}

// ItemStatus summarizes the artifacts of one item.
type ItemStatus struct {
	Name       string          `json:"name"`
	HasPDF     bool            `json:"has_pdf"`
	HasText    bool            `json:"has_text"`
	HasVerdict bool            `json:"has_verdict"`
	HasRecipe  bool            `json:"has_recipe"`
	Verdict    *models.Verdict `json:"verdict,omitempty"`
}

// Status walks the corpus and reports per-item artifact presence. Corrupt
// verdict artifacts count as absent, matching the resume gate.
func (c *Corpus) Status() ([]ItemStatus, error) {
	items, err := c.Items()
	if err != nil {
		return nil, err
	}
	statuses := make([]ItemStatus, 0, len(items))
	for _, it := range items {
		st := ItemStatus{
			Name:      it.Name,
			HasPDF:    c.HasPDF(it),
			HasText:   c.HasText(it),
			HasRecipe: c.HasRecipe(it),
		}
		if v, err := c.ReadVerdict(it); err == nil {
			st.HasVerdict = true
			verdict := v
			st.Verdict = &verdict
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
