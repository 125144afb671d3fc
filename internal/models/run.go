package models

import "time"

// Item outcome values recorded by batch stages.
const (
	OutcomeDone    = "done"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Run records one batch invocation (filter or generate) over a corpus.
type Run struct {
	ID         string     `json:"id" db:"id"`
	Command    string     `json:"command" db:"command"`
	CorpusRoot string     `json:"corpus_root" db:"corpus_root"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Stats      RunStats   `json:"stats"`
}

// RunStats holds per-run counters. Processed counts items that completed the
// full analyze-and-persist path; Skipped counts items the resumability gate
// passed over; Positives counts processed items whose verdict was positive.
type RunStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Positives int `json:"positives"`
}

// ItemResult records the outcome of one item within a run.
type ItemResult struct {
	RunID      string    `json:"run_id" db:"run_id"`
	Item       string    `json:"item" db:"item"`
	Outcome    string    `json:"outcome" db:"outcome"`
	Chunks     int       `json:"chunks" db:"chunks"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	Err        string    `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// UsageRecord records token usage reported by the provider for one LLM call.
type UsageRecord struct {
	RunID            string    `json:"run_id" db:"run_id"`
	Provider         string    `json:"provider" db:"provider"`
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// UsageTotals aggregates token usage across all recorded LLM calls.
type UsageTotals struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}
