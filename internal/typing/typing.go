// Package typing implements the paced keystroke-simulation engine: cursor
// pre-positioning, selection replacement, append repositioning, and either
// atomic or per-character timed insertion with jitter.
package typing

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/keycastsh/keycast/internal/editor"
	"github.com/keycastsh/keycast/internal/protocol"
)

// Mode selects how a job positions itself before inserting.
type Mode string

const (
	ModeInsert  Mode = "insert"  // insert at the cursor
	ModeReplace Mode = "replace" // delete a non-empty selection first
	ModeAppend  Mode = "append"  // jump to the end of the document
)

// ParseMode maps a wire mode string to a Mode. Unknown or empty values fall
// back to insert.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeReplace:
		return ModeReplace
	case ModeAppend:
		return ModeAppend
	default:
		return ModeInsert
	}
}

// Defaults supply pacing values for requests that omit them.
type Defaults struct {
	Speed     time.Duration // delay per character
	Variation float64       // jitter fraction, 0..1
}

// Job is one typing request against the foregrounded document. Pointer
// fields distinguish absent parameters from explicit zeros.
type Job struct {
	ID        string
	Text      string
	Mode      Mode
	Speed     *time.Duration
	Variation *float64
	Duration  *time.Duration // total-duration override
	Quick     bool
	Position  *protocol.Position
	Selection *protocol.Range
	After     *protocol.Position
}

// Engine executes typing jobs. It holds only configuration; all document
// state lives behind the editor.Document it is handed per job.
type Engine struct {
	defaults Defaults
	logger   *slog.Logger
}

// NewEngine returns an engine with the given pacing defaults.
func NewEngine(defaults Defaults, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{defaults: defaults, logger: logger}
}

// Run executes one job against doc and returns the number of characters
// committed. On failure the count reflects what was inserted before the
// abort; nothing is rolled back.
func (e *Engine) Run(ctx context.Context, doc editor.Document, job Job) (int, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	runes := []rune(job.Text)
	e.logger.Debug("typing: job started",
		"job", job.ID, "chars", len(runes), "mode", string(job.Mode), "quick", job.Quick)

	if err := e.prePosition(doc, job); err != nil {
		return 0, err
	}
	if err := e.preClear(ctx, doc, job); err != nil {
		return 0, err
	}

	delay, variation := e.pacing(job, len(runes))

	var inserted int
	if job.Quick {
		if err := doc.Insert(ctx, job.Text); err != nil {
			return 0, err
		}
		inserted = len(runes)
	} else {
		for _, r := range runes {
			if !doc.Valid() {
				return inserted, fmt.Errorf("typing aborted: %w", editor.ErrClosed)
			}
			if err := pause(ctx, jitterDelay(delay, variation)); err != nil {
				return inserted, err
			}
			if err := doc.Insert(ctx, string(r)); err != nil {
				return inserted, err
			}
			inserted++
		}
	}

	if job.After != nil {
		p := editor.ClampPosition(doc, *job.After)
		if err := doc.SetSelection(protocol.Range{Start: p, End: p}); err != nil {
			return inserted, err
		}
	}

	e.logger.Debug("typing: job finished", "job", job.ID, "inserted", inserted)
	return inserted, nil
}

// prePosition applies steps 1 and 3: position, then selection (selection
// wins), then the append-mode jump to the end of the document.
func (e *Engine) prePosition(doc editor.Document, job Job) error {
	if job.Position != nil {
		p := editor.ClampPosition(doc, *job.Position)
		if err := doc.SetSelection(protocol.Range{Start: p, End: p}); err != nil {
			return err
		}
	}
	if job.Selection != nil {
		if err := doc.SetSelection(editor.ClampRange(doc, *job.Selection)); err != nil {
			return err
		}
	}
	if job.Mode == ModeAppend {
		end := editor.EndOfDocument(doc)
		if err := doc.SetSelection(protocol.Range{Start: end, End: end}); err != nil {
			return err
		}
	}
	return nil
}

// preClear deletes a non-empty selection in replace mode.
func (e *Engine) preClear(ctx context.Context, doc editor.Document, job Job) error {
	if job.Mode != ModeReplace {
		return nil
	}
	sel := doc.Selection()
	if sel.Empty() {
		return nil
	}
	return doc.Delete(ctx, sel)
}

// pacing resolves the effective per-character delay and jitter fraction.
// A duration override wins over any speed; variation is clamped to [0, 1].
func (e *Engine) pacing(job Job, chars int) (time.Duration, float64) {
	delay := e.defaults.Speed
	if job.Speed != nil {
		delay = *job.Speed
	}
	if job.Duration != nil {
		if chars < 1 {
			chars = 1
		}
		delay = *job.Duration / time.Duration(chars)
	}
	if delay < 0 {
		delay = 0
	}

	variation := e.defaults.Variation
	if job.Variation != nil {
		variation = *job.Variation
	}
	if variation < 0 {
		variation = 0
	}
	if variation > 1 {
		variation = 1
	}
	return delay, variation
}

// jitterDelay scales delay by 1 + variation*u where u is uniform in [-1, 1].
func jitterDelay(delay time.Duration, variation float64) time.Duration {
	if delay <= 0 || variation == 0 {
		return delay
	}
	factor := 1 + variation*(2*rand.Float64()-1)
	scaled := time.Duration(float64(delay) * factor)
	if scaled < 0 {
		return 0
	}
	return scaled
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
