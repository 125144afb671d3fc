package events

import (
	"sync"

	"github.com/pterm/pterm"
)

// CLIEmitter renders events for interactive terminal use: a progress bar
// across items plus per-item lines for failures and positives. pterm
// degrades gracefully when stdout is not a terminal.
type CLIEmitter struct {
	mu  sync.Mutex
	bar *pterm.ProgressbarPrinter
}

// NewCLIEmitter creates a terminal progress emitter.
func NewCLIEmitter() *CLIEmitter {
	return &CLIEmitter{}
}

// Emit renders one event. Safe for concurrent use.
func (e *CLIEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case TypeRunStarted:
		if ev.ItemsTotal > 0 {
			bar, err := pterm.DefaultProgressbar.WithTotal(ev.ItemsTotal).WithTitle("processing corpus").Start()
			if err == nil {
				e.bar = bar
			}
		}

	case TypeItemSkipped:
		e.advance()

	case TypeItemDone:
		if ev.Verdict != nil && ev.Verdict.ContainsRecipe {
			pterm.Success.Printfln("%s: %s", ev.Item, ev.Verdict.MaterialType)
		}
		e.advance()

	case TypeItemFailed:
		pterm.Warning.Printfln("%s: %s", ev.Item, ev.Err)
		e.advance()

	case TypeRunFinished:
		e.stopBar()
		if ev.Stats != nil {
			s := ev.Stats
			pterm.Info.Printfln("done: %d items, %d processed, %d skipped, %d failed, %d positives",
				s.Total, s.Processed, s.Skipped, s.Failed, s.Positives)
		}
	}
}

// Close stops the progress bar if a run was interrupted before its
// run_finished event.
func (e *CLIEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopBar()
	return nil
}

func (e *CLIEmitter) advance() {
	if e.bar != nil {
		e.bar.Increment()
	}
}

func (e *CLIEmitter) stopBar() {
	if e.bar != nil {
		_, _ = e.bar.Stop()
		e.bar = nil
	}
}
