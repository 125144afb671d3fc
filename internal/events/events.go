// Package events delivers batch-stage progress to humans and machines.
// Stages emit structured events; emitters decide how to render them, so
// library callers can observe progress without any terminal coupling.
package events

import (
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/furui/internal/models"
)

// Event types emitted by batch stages.
const (
	TypeRunStarted  = "run_started"
	TypeItemStarted = "item_started"
	TypeItemSkipped = "item_skipped"
	TypeItemDone    = "item_done"
	TypeItemFailed  = "item_failed"
	TypeChunkDone   = "chunk_done"
	TypeRunFinished = "run_finished"
)

// Event is one progress notification from a batch stage. Fields are
// populated per type; unused fields stay zero and are omitted from JSON.
// Verdict rides on item_done, Stats on run_finished.
type Event struct {
	Type        string           `json:"type"`
	Time        time.Time        `json:"time"`
	RunID       string           `json:"run_id,omitempty"`
	Item        string           `json:"item,omitempty"`
	Chunk       int              `json:"chunk,omitempty"`
	ChunksTotal int              `json:"chunks_total,omitempty"`
	ItemsDone   int              `json:"items_done,omitempty"`
	ItemsTotal  int              `json:"items_total,omitempty"`
	Outcome     string           `json:"outcome,omitempty"`
	Err         string           `json:"error,omitempty"`
	Verdict     *models.Verdict  `json:"verdict,omitempty"`
	Stats       *models.RunStats `json:"stats,omitempty"`
}

// Emitter consumes progress events. Implementations must be safe for
// concurrent use; batch workers emit from multiple goroutines.
type Emitter interface {
	Emit(Event)
	Close() error
}

// New returns the emitter named by kind: "cli" (default), "json", or
// "none". JSON events go to out, one object per line.
func New(kind string, out io.Writer) (Emitter, error) {
	switch kind {
	case "cli", "":
		return NewCLIEmitter(), nil
	case "json":
		return NewJSONEmitter(out), nil
	case "none":
		return NopEmitter{}, nil
	default:
		return nil, fmt.Errorf("unknown progress emitter %q (supported: cli, json, none)", kind)
	}
}

// NopEmitter discards all events. Used by library callers and tests.
type NopEmitter struct{}

func (NopEmitter) Emit(Event)   {}
func (NopEmitter) Close() error { return nil }
