package editor

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/keycastsh/keycast/internal/protocol"
)

// Buffer is the in-memory Document: a slice of lines plus a selection whose
// End is the caret. All offsets are rune offsets.
type Buffer struct {
	mu     sync.Mutex
	path   string
	lines  []string
	sel    protocol.Range
	closed bool
}

func newBuffer(path, content string) *Buffer {
	return &Buffer{
		path:  path,
		lines: strings.Split(content, "\n"),
	}
}

func (b *Buffer) Path() string { return b.path }

func (b *Buffer) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *Buffer) invalidate() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// LineLength returns the rune length of the given line, 0 when the line is
// out of range.
func (b *Buffer) LineLength(line int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line < 0 || line >= len(b.lines) {
		return 0
	}
	return utf8.RuneCountInString(b.lines[line])
}

// Text joins the buffer back into one string.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

func (b *Buffer) Selection() protocol.Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel
}

// SetSelection sets the selection, clamping both endpoints. The caret lands
// on sel.End.
func (b *Buffer) SetSelection(sel protocol.Range) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.sel = protocol.Range{
		Start: b.clampLocked(sel.Start),
		End:   b.clampLocked(sel.End),
	}
	return nil
}

// Insert splices text in at the caret, advances the caret past it, and
// collapses the selection. Newlines in text split lines.
func (b *Buffer) Insert(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	at := b.clampLocked(b.sel.End)
	line := []rune(b.lines[at.Line])
	head, tail := string(line[:at.Character]), string(line[at.Character:])

	parts := strings.Split(text, "\n")
	if len(parts) == 1 {
		b.lines[at.Line] = head + text + tail
		at.Character += utf8.RuneCountInString(text)
	} else {
		spliced := make([]string, 0, len(b.lines)+len(parts)-1)
		spliced = append(spliced, b.lines[:at.Line]...)
		spliced = append(spliced, head+parts[0])
		spliced = append(spliced, parts[1:len(parts)-1]...)
		last := parts[len(parts)-1]
		spliced = append(spliced, last+tail)
		spliced = append(spliced, b.lines[at.Line+1:]...)
		b.lines = spliced
		at = protocol.Position{
			Line:      at.Line + len(parts) - 1,
			Character: utf8.RuneCountInString(last),
		}
	}
	b.sel = protocol.Range{Start: at, End: at}
	return nil
}

// Delete removes the spanned text, normalizing a backwards range, and leaves
// the caret at the span's start.
func (b *Buffer) Delete(ctx context.Context, r protocol.Range) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := b.clampLocked(r.Start)
	end := b.clampLocked(r.End)
	if end.Line < start.Line || (end.Line == start.Line && end.Character < start.Character) {
		start, end = end, start
	}

	startLine := []rune(b.lines[start.Line])
	endLine := []rune(b.lines[end.Line])
	merged := string(startLine[:start.Character]) + string(endLine[end.Character:])

	spliced := make([]string, 0, len(b.lines)-(end.Line-start.Line))
	spliced = append(spliced, b.lines[:start.Line]...)
	spliced = append(spliced, merged)
	spliced = append(spliced, b.lines[end.Line+1:]...)
	b.lines = spliced

	b.sel = protocol.Range{Start: start, End: start}
	return nil
}

func (b *Buffer) clampLocked(p protocol.Position) protocol.Position {
	line := p.Line
	if line < 0 {
		line = 0
	}
	if max := len(b.lines) - 1; line > max {
		line = max
	}
	ch := p.Character
	if ch < 0 {
		ch = 0
	}
	if max := utf8.RuneCountInString(b.lines[line]); ch > max {
		ch = max
	}
	return protocol.Position{Line: line, Character: ch}
}
