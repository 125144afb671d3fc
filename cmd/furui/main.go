// Package main is the furui CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/chunk"
	"github.com/hyperjump/furui/internal/classify"
	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/events"
	"github.com/hyperjump/furui/internal/extract"
	"github.com/hyperjump/furui/internal/fetch"
	"github.com/hyperjump/furui/internal/generate"
	"github.com/hyperjump/furui/internal/ledger"
	"github.com/hyperjump/furui/internal/llm"
	"github.com/hyperjump/furui/internal/models"
	"github.com/hyperjump/furui/internal/pipeline"
	"github.com/hyperjump/furui/internal/report"
	"github.com/hyperjump/furui/internal/server"
	"github.com/hyperjump/furui/internal/watcher"
	"github.com/hyperjump/furui/pkg/utils"
)

var version = "dev"

// loadConfig resolves configuration. An explicit path must load; with no
// explicit path, config.yaml in the working directory is used when present
// (so running from the project dir picks up the project's config), else
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			return config.Load(fallback)
		}
	}
	return config.Default(), nil
}

func main() {
	// Provider credentials (OPENAI_API_KEY etc.) may live in a .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "fetch":
		runFetch()
	case "extract":
		runExtract()
	case "filter":
		runFilter()
	case "generate":
		runGenerate()
	case "watch":
		runWatch()
	case "count":
		runCount()
	case "copy":
		runCopy()
	case "status":
		runStatus()
	case "server":
		runServer()
	case "version", "--version", "-v":
		fmt.Printf("furui version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every subcommand.
// Failures here happen before any corpus work: print and exit.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so batch runs
// stop between items instead of dying mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	query := fs.String("query", "", "arXiv search query (overrides config)")
	year := fs.Int("year", 0, "restrict to papers submitted in this year")
	max := fs.Int("max", 0, "maximum number of papers to fetch (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}
	if *query != "" {
		cfg.Fetch.Query = *query
	}
	if *year != 0 {
		cfg.Fetch.Year = *year
	}
	if *max > 0 {
		cfg.Fetch.MaxResults = *max
	}

	c := corpus.New(&cfg.Corpus)
	fetcher := fetch.NewFetcher(c, &cfg.Fetch, fetch.WithLogger(logger))

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := fetcher.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d paper(s): %d downloaded, %d skipped, %d failed\n",
		stats.Found, stats.Downloaded, stats.Skipped, stats.Failed)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	force := fs.Bool("force", false, "re-extract items that already have text")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}

	stage := extract.NewStage(corpus.New(&cfg.Corpus),
		extract.WithLogger(logger), extract.WithForce(*force))

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := stage.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extract failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Extracted %d item(s): %d skipped, %d failed\n",
		stats.Processed, stats.Skipped, stats.Failed)
}

func runFilter() {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	item := fs.String("item", "", "screen a single item: a name under the corpus root, or a path to an item directory")
	workers := fs.Int("workers", 0, "concurrent item workers (overrides config)")
	progress := fs.String("progress", "", "progress output: cli, json, or none (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *progress != "" {
		cfg.Pipeline.Progress = *progress
	}

	comps, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	client, err := llm.New(&cfg.LLM, &http.Client{Timeout: cfg.LLM.Timeout()}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	emitter, err := events.New(cfg.Pipeline.Progress, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to create progress emitter", zap.Error(err))
	}
	defer emitter.Close()

	driver := newDriver(cfg, comps, client, emitter, logger)

	ctx, cancel := signalContext()
	defer cancel()
	var stats models.RunStats
	if *item != "" {
		target := comps.Corpus.Item(*item)
		if strings.ContainsRune(*item, os.PathSeparator) {
			target = corpus.ItemAt(*item)
		}
		stats, err = driver.RunItems(ctx, []corpus.Item{target})
	} else {
		stats, err = driver.Run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Filter failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Screened %d item(s): %d positive, %d skipped, %d failed\n",
		stats.Processed, stats.Positives, stats.Skipped, stats.Failed)
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	workers := fs.Int("workers", 0, "concurrent item workers (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	comps, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	client, err := llm.New(&cfg.LLM, &http.Client{Timeout: cfg.LLM.Timeout()}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	emitter, err := events.New(cfg.Pipeline.Progress, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to create progress emitter", zap.Error(err))
	}
	defer emitter.Close()

	opts := []generate.GeneratorOption{
		generate.WithLogger(logger),
		generate.WithEmitter(emitter),
		generate.WithWorkers(cfg.Pipeline.Workers),
		generate.WithMaxTokens(cfg.Generate.MaxCompletionTokens),
	}
	if comps.Ledger != nil {
		opts = append(opts, generate.WithRecorder(comps.Ledger))
	}
	gen := generate.NewGenerator(comps.Corpus, client, opts...)

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := gen.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generate failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d recipe(s): %d skipped, %d failed\n",
		stats.Processed, stats.Skipped, stats.Failed)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}

	comps, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	client, err := llm.New(&cfg.LLM, &http.Client{Timeout: cfg.LLM.Timeout()}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	// Progress bars make no sense for single-item reactive runs; the watcher
	// and driver log their own per-item lines.
	driver := newDriver(cfg, comps, client, events.NopEmitter{}, logger)

	w := watcher.NewWatcher(comps.Corpus, driver, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := w.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if err := w.SyncExisting(watchCtx); err != nil {
		logger.Warn("initial filter pass failed", zap.Error(err))
	}
	logger.Info("watching corpus", zap.String("root", comps.Corpus.Root()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	_ = w.Close()
}

func runCount() {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}

	reporter := report.NewReporter(corpus.New(&cfg.Corpus), report.WithLogger(logger))
	ctx, cancel := signalContext()
	defer cancel()
	summary, err := reporter.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
		os.Exit(1)
	}

	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("items:         %d   # corpus item directories\n", summary.Items)
		fmt.Printf("screened:      %d   # items with a well-formed verdict\n", summary.Screened)
		fmt.Printf("positives:     %d   # verdicts with contains_recipe true\n", summary.Positives)
		fmt.Printf("parse_errors:  %d   # neutral verdicts from malformed model output\n", summary.ParseErrors)
		fmt.Printf("recipes:       %d   # items with a generated recipe\n", summary.Recipes)
		if len(summary.Materials) > 0 {
			fmt.Println()
			fmt.Println("# material types among positives")
			for _, name := range materialOrder(summary.Materials) {
				fmt.Printf("%-24s %d\n", name, summary.Materials[name])
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *output)
		os.Exit(1)
	}
}

// materialOrder returns material names sorted by descending count, ties
// alphabetically, for stable histogram output.
func materialOrder(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if m[names[i]] != m[names[j]] {
			return m[names[i]] > m[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func runCopy() {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	dest := fs.String("dest", "", "destination directory for positive items")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if *dest == "" {
		fmt.Println("Usage: furui copy [flags] --dest <dir>")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}

	reporter := report.NewReporter(corpus.New(&cfg.Corpus), report.WithLogger(logger))
	ctx, cancel := signalContext()
	defer cancel()
	n, err := reporter.Copy(ctx, *dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Copy failed after %d item(s): %v\n", n, err)
		os.Exit(1)
	}
	fmt.Printf("Copied %d positive item(s) to %s\n", n, *dest)
}

// statusSummary is the shape printed by the status subcommand.
type statusSummary struct {
	Root      string              `json:"root"`
	Items     int                 `json:"items"`
	Fetched   int                 `json:"fetched"`
	Extracted int                 `json:"extracted"`
	Filtered  int                 `json:"filtered"`
	Positives int                 `json:"positives"`
	Recipes   int                 `json:"recipes"`
	LLMUsage  *models.UsageTotals `json:"llm_usage,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	root := fs.String("root", "", "corpus root (overrides config)")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *root != "" {
		cfg.Corpus.Root = *root
	}
	c := corpus.New(&cfg.Corpus)

	summary := statusSummary{Root: c.Root()}
	statuses, err := c.Status()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	for _, st := range statuses {
		summary.Items++
		if st.HasPDF {
			summary.Fetched++
		}
		if st.HasText {
			summary.Extracted++
		}
		if st.HasVerdict {
			summary.Filtered++
		}
		if st.Verdict != nil && st.Verdict.ContainsRecipe {
			summary.Positives++
		}
		if st.HasRecipe {
			summary.Recipes++
		}
	}
	if cfg.Ledger.EnabledOrDefault() {
		if l, lerr := ledger.Open(cfg.Ledger.Path); lerr == nil {
			if tot, terr := l.UsageTotals(context.Background()); terr == nil {
				summary.LLMUsage = tot
			}
			_ = l.Close()
		}
	}

	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("root:       %s\n", summary.Root)
		fmt.Printf("items:      %d\n", summary.Items)
		fmt.Printf("fetched:    %d   # items with a PDF artifact\n", summary.Fetched)
		fmt.Printf("extracted:  %d   # items with extracted text\n", summary.Extracted)
		fmt.Printf("filtered:   %d   # items with a well-formed verdict\n", summary.Filtered)
		fmt.Printf("positives:  %d\n", summary.Positives)
		fmt.Printf("recipes:    %d\n", summary.Recipes)
		if summary.LLMUsage != nil {
			fmt.Println()
			fmt.Println("# llm usage across all recorded runs")
			fmt.Printf("calls:              %d\n", summary.LLMUsage.Calls)
			fmt.Printf("prompt_tokens:      %d\n", summary.LLMUsage.PromptTokens)
			fmt.Printf("completion_tokens:  %d\n", summary.LLMUsage.CompletionTokens)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *output)
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	host := fs.String("host", "", "listen host (overrides config)")
	port := fs.Int("port", 0, "listen port (overrides config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	comps, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	client, err := llm.New(&cfg.LLM, &http.Client{Timeout: cfg.LLM.Timeout()}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	driver := newDriver(cfg, comps, client, events.NopEmitter{}, logger)

	var store server.RunStore
	if comps.Ledger != nil {
		store = comps.Ledger
	}
	reporter := report.NewReporter(comps.Corpus, report.WithLogger(logger))
	srv := server.NewServer(comps.Corpus, reporter, driver, store, &cfg.Server, logger, version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("server started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// Components holds services shared by the subcommands.
type Components struct {
	Corpus *corpus.Corpus
	Ledger *ledger.Ledger // nil when disabled in config
}

func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
}

func initializeComponents(cfg *config.Config) (*Components, error) {
	comps := &Components{Corpus: corpus.New(&cfg.Corpus)}
	if cfg.Ledger.EnabledOrDefault() {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		comps.Ledger = l
	}
	return comps, nil
}

// newChunker builds the token-budget chunker. When the tiktoken encoding
// cannot be loaded (first use downloads it), counting falls back to the
// byte heuristic so offline runs still work.
func newChunker(cfg *config.Config, logger *zap.Logger) *chunk.Chunker {
	counter, err := chunk.NewTiktokenCounter(cfg.Chunking.Encoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using heuristic token counts",
			zap.String("encoding", cfg.Chunking.Encoding), zap.Error(err))
		return chunk.NewChunker(cfg.Chunking.MaxTokens, chunk.HeuristicCounter{})
	}
	return chunk.NewChunker(cfg.Chunking.MaxTokens, counter)
}

func newDriver(cfg *config.Config, comps *Components, client llm.Client, emitter events.Emitter, logger *zap.Logger) *pipeline.Driver {
	analyzer := classify.NewClassifier(client, cfg.LLM.MaxCompletionTokens, classify.WithLogger(logger))
	opts := []pipeline.DriverOption{
		pipeline.WithLogger(logger),
		pipeline.WithEmitter(emitter),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithChunkRetries(cfg.Pipeline.ChunkRetries),
		pipeline.WithUsageLabels(client.Provider(), client.Model()),
	}
	if comps.Ledger != nil {
		opts = append(opts, pipeline.WithRecorder(comps.Ledger))
	}
	return pipeline.NewDriver(comps.Corpus, newChunker(cfg, logger), analyzer, opts...)
}

func printUsage() {
	fmt.Println(`furui - LLM screening of material-synthesis papers

Usage:
  furui fetch [flags]       Download papers from arXiv into the corpus
  furui extract [flags]     Extract text from fetched PDFs
  furui filter [flags]      Screen extracted papers for synthesis recipes
  furui generate [flags]    Write synthesis recipes for positive papers
  furui watch [flags]       Screen new text artifacts as they appear
  furui count [flags]       Summarize screening results
  furui copy [flags]        Copy positive items to another directory
  furui status [flags]      Show per-stage corpus progress
  furui server [flags]      Start the HTTP API server
  furui version             Show version
  furui help                Show this help

Common Flags:
  --config string    Config file path (default: config.yaml in the working directory, else built-in defaults)
  --root string      Corpus root directory (overrides config)
  --debug            Enable debug logging

Fetch Flags:
  --query string     arXiv search query (default from config: cat:cond-mat*)
  --year int         Restrict to papers submitted in this year
  --max int          Maximum number of papers to fetch

Extract Flags:
  --force            Re-extract items that already have text

Filter Flags:
  --item string      Screen a single item (name under the root, or path to an item directory)
  --workers int      Concurrent item workers
  --progress string  Progress output: cli, json, or none

Generate Flags:
  --workers int      Concurrent item workers

Count/Status Flags:
  --output string    Output format: text or json (default: text)

Copy Flags:
  --dest string      Destination directory for positive items (required)

Server Flags:
  --host string      Listen host (overrides config)
  --port int         Listen port (overrides config)

Examples:
  furui fetch --query "cat:cond-mat.mtrl-sci" --year 2024 --max 50
  furui extract
  furui filter --workers 4
  furui filter --item 2401.00001
  furui generate
  furui count --output json
  furui copy --dest ./positives
  furui watch
  furui server`)
}
