// Package editor defines the document surface the protocol core drives, and
// ships an in-memory workspace implementation of it. A host embedding the
// server substitutes its own surface; the core only ever sees the interfaces.
package editor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/keycastsh/keycast/internal/protocol"
)

// Sentinel errors the surface reports. Handlers translate these to the wire
// error taxonomy with errors.Is.
var (
	ErrNotFound         = errors.New("file not found")
	ErrAlreadyExists    = errors.New("file already exists")
	ErrNoActiveDocument = errors.New("no active document")
	ErrNotOpen          = errors.New("file not open")
	ErrWriteFailed      = errors.New("write failed")
	ErrClosed           = errors.New("document closed")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Document is one open, foregroundable view of a file. Line and character
// offsets are zero-based and measured in runes. Implementations clamp
// out-of-range positions silently rather than rejecting them.
type Document interface {
	Path() string
	LineCount() int
	LineLength(line int) int
	Selection() protocol.Range
	SetSelection(sel protocol.Range) error
	Insert(ctx context.Context, text string) error
	Delete(ctx context.Context, r protocol.Range) error
	Valid() bool
}

// Surface is the live editing environment the command handlers call into.
// Open, Create and Close all move the foreground; Active reports the
// foregrounded document or nil.
type Surface interface {
	Open(ctx context.Context, path string) (Document, error)
	Create(ctx context.Context, path, content string) (Document, error)
	SaveActive(ctx context.Context) (string, error)
	Close(ctx context.Context, path string) (string, error)
	Read(ctx context.Context, path string) (resolved string, content string, err error)
	Active() Document
	OpenPaths() []string
	Execute(ctx context.Context, name string, args []json.RawMessage) (json.RawMessage, error)
}

// ClampPosition pins p inside d: the line to [0, lineCount-1], the character
// to [0, length of that line].
func ClampPosition(d Document, p protocol.Position) protocol.Position {
	line := p.Line
	if line < 0 {
		line = 0
	}
	if max := d.LineCount() - 1; line > max {
		line = max
	}
	ch := p.Character
	if ch < 0 {
		ch = 0
	}
	if max := d.LineLength(line); ch > max {
		ch = max
	}
	return protocol.Position{Line: line, Character: ch}
}

// ClampRange clamps both endpoints of r independently.
func ClampRange(d Document, r protocol.Range) protocol.Range {
	return protocol.Range{
		Start: ClampPosition(d, r.Start),
		End:   ClampPosition(d, r.End),
	}
}

// EndOfDocument is the position one past the last character of the last line.
func EndOfDocument(d Document) protocol.Position {
	line := d.LineCount() - 1
	if line < 0 {
		line = 0
	}
	return protocol.Position{Line: line, Character: d.LineLength(line)}
}
