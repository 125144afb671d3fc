// Package watcher filters corpus items as their text artifacts appear.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// FilterRunner runs the screening pipeline over a set of corpus items.
type FilterRunner interface {
	RunItems(ctx context.Context, items []corpus.Item) (models.RunStats, error)
}

// Watcher watches the corpus root and its item directories. When an item's
// text artifact is created or changed, the item is debounced and, if its
// result artifact is missing or malformed, run through the filter pipeline
// on its own.
type Watcher struct {
	corpus   *corpus.Corpus
	runner   FilterRunner
	logger   *zap.Logger
	debounce time.Duration
	root     string

	ctx         context.Context
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the quiet window applied before a changed item is filtered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the corpus that hands changed items to
// runner.
func NewWatcher(c *corpus.Corpus, runner FilterRunner, opts ...Option) *Watcher {
	w := &Watcher{
		corpus:      c,
		runner:      runner,
		logger:      zap.NewNop(),
		debounce:    defaultDebounce,
		root:        filepath.Clean(c.Root()),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the corpus root and every existing item directory,
// creating the root when it does not exist yet. It runs until ctx is
// cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if _, err := os.Stat(w.root); os.IsNotExist(err) {
		if err := os.MkdirAll(w.root, 0o755); err != nil {
			_ = fw.Close()
			w.mu.Unlock()
			return err
		}
	}
	if err := fw.Add(w.root); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	items, err := w.corpus.Items()
	if err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	for _, it := range items {
		if err := fw.Add(it.Path); err != nil {
			w.logger.Warn("failed to watch item directory",
				zap.String("item", it.Name),
				zap.Error(err))
		}
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching corpus", zap.String("root", w.root), zap.Int("items", len(items)))
	go w.run(ctx, fw)
	return nil
}

// SyncExisting runs one filter pass over every item already in the corpus.
// Call it after Start so changes made during the pass are still picked up.
func (w *Watcher) SyncExisting(ctx context.Context) error {
	items, err := w.corpus.Items()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	w.logger.Info("syncing existing items", zap.Int("items", len(items)))
	_, err = w.runner.RunItems(ctx, items)
	return err
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	w.logger.Debug("fs event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewItemDir(path)
			return
		}
		if it, ok := w.itemForTextArtifact(path); ok {
			w.enqueue(it)
		}
	case fsnotify.Remove:
		if it, ok := w.itemForTextArtifact(path); ok {
			w.cancelDebounce(it.Name)
		}
	}
}

// handleNewItemDir watches an item directory created after startup and picks
// up any text artifact that arrived with it.
func (w *Watcher) handleNewItemDir(dir string) {
	if filepath.Dir(dir) != w.root {
		return
	}
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("failed to watch new item directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("watching new item directory", zap.String("path", dir))

	it := w.corpus.Item(filepath.Base(dir))
	if w.corpus.HasText(it) {
		w.enqueue(it)
	}
}

// itemForTextArtifact maps an event path to its corpus item. Only the text
// artifact of a directory directly under the root qualifies.
func (w *Watcher) itemForTextArtifact(path string) (corpus.Item, bool) {
	dir := filepath.Dir(path)
	if filepath.Dir(dir) != w.root {
		return corpus.Item{}, false
	}
	it := w.corpus.Item(filepath.Base(dir))
	return it, filepath.Clean(w.corpus.TextPath(it)) == path
}

func (w *Watcher) enqueue(it corpus.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[it.Name]; ok {
		t.Stop()
	}
	w.debounceMap[it.Name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, it.Name)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		w.filterItem(ctx, it)
	})
}

func (w *Watcher) filterItem(ctx context.Context, it corpus.Item) {
	if !w.corpus.NeedsFilter(it) {
		w.logger.Debug("item already filtered", zap.String("item", it.Name))
		return
	}
	w.logger.Info("filtering changed item", zap.String("item", it.Name))
	if _, err := w.runner.RunItems(ctx, []corpus.Item{it}); err != nil {
		w.logger.Warn("filter run failed", zap.String("item", it.Name), zap.Error(err))
	}
}

func (w *Watcher) cancelDebounce(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[name]; ok {
		t.Stop()
		delete(w.debounceMap, name)
	}
}

// Close stops watching and releases resources. In-flight filter runs are
// stopped through their context, not waited for.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return nil
	}
	for name, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, name)
	}
	err := w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	return err
}
