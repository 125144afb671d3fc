// Package ledger provides SQLite-backed run history: which batch runs
// happened, what each item's outcome was, and how many tokens were spent.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/furui/internal/models"
)

// Ledger records batch runs in a SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		corpus_root TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		items_total INTEGER NOT NULL DEFAULT 0,
		items_processed INTEGER NOT NULL DEFAULT 0,
		items_skipped INTEGER NOT NULL DEFAULT 0,
		items_failed INTEGER NOT NULL DEFAULT 0,
		positives INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS item_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		item TEXT NOT NULL,
		outcome TEXT NOT NULL,
		chunks INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_item_results_run_id ON item_results(run_id);

	CREATE TABLE IF NOT EXISTS llm_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_llm_usage_run_id ON llm_usage(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun inserts a new run row. run.StartedAt is set to now when zero.
func (l *Ledger) StartRun(ctx context.Context, run *models.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, corpus_root, started_at)
		 VALUES (?, ?, ?, ?)`,
		run.ID, run.Command, run.CorpusRoot, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun stamps a run finished and stores its final counters.
func (l *Ledger) FinishRun(ctx context.Context, run *models.Run) error {
	now := time.Now()
	run.FinishedAt = &now
	result, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, items_total = ?, items_processed = ?,
		        items_skipped = ?, items_failed = ?, positives = ?
		 WHERE id = ?`,
		run.FinishedAt, run.Stats.Total, run.Stats.Processed,
		run.Stats.Skipped, run.Stats.Failed, run.Stats.Positives, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// RecordItem appends one item outcome to a run.
func (l *Ledger) RecordItem(ctx context.Context, res *models.ItemResult) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO item_results (run_id, item, outcome, chunks, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Item, res.Outcome, res.Chunks, res.DurationMS, res.Err, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record item result: %w", err)
	}
	return nil
}

// RecordUsage appends one LLM call's token usage to a run.
func (l *Ledger) RecordUsage(ctx context.Context, rec *models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO llm_usage (run_id, provider, model, prompt_tokens, completion_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// GetRun returns a run by ID.
func (l *Ledger) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, command, corpus_root, started_at, finished_at,
		        items_total, items_processed, items_skipped, items_failed, positives
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs, most recently started first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, command, corpus_root, started_at, finished_at,
		        items_total, items_processed, items_skipped, items_failed, positives
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems returns the item outcomes of a run in insertion order.
func (l *Ledger) RunItems(ctx context.Context, runID string) ([]*models.ItemResult, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, item, outcome, chunks, duration_ms, error, created_at
		 FROM item_results WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.ItemResult
	for rows.Next() {
		var res models.ItemResult
		var errText sql.NullString
		if err := rows.Scan(&res.RunID, &res.Item, &res.Outcome, &res.Chunks, &res.DurationMS, &errText, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.Err = errText.String
		results = append(results, &res)
	}
	return results, rows.Err()
}

// UsageTotals sums token usage across every recorded LLM call.
func (l *Ledger) UsageTotals(ctx context.Context) (*models.UsageTotals, error) {
	var t models.UsageTotals
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		 FROM llm_usage`,
	).Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var run models.Run
	var finished sql.NullTime
	err := s.Scan(&run.ID, &run.Command, &run.CorpusRoot, &run.StartedAt, &finished,
		&run.Stats.Total, &run.Stats.Processed, &run.Stats.Skipped, &run.Stats.Failed, &run.Stats.Positives)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
