package typing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keycastsh/keycast/internal/editor"
	"github.com/keycastsh/keycast/internal/protocol"
)

var testDefaults = Defaults{Speed: 50 * time.Millisecond, Variation: 0.2}

func newDoc(t *testing.T, content string) (*editor.Workspace, editor.Document) {
	t.Helper()
	w := editor.NewWorkspace()
	doc, err := w.Create(context.Background(), "/tmp/doc.txt", content)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w, doc
}

func docText(t *testing.T, w *editor.Workspace) string {
	t.Helper()
	_, content, err := w.Read(context.Background(), "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return content
}

func durPtr(d time.Duration) *time.Duration { return &d }
func f64Ptr(v float64) *float64             { return &v }

// ---------------------------------------------------------------------------
// Quick mode
// ---------------------------------------------------------------------------

func TestQuickInsert(t *testing.T) {
	w, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	inserted, err := e.Run(context.Background(), doc, Job{Text: "hello world", Quick: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 11 {
		t.Errorf("inserted = %d, want 11", inserted)
	}
	if got := docText(t, w); got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
}

func TestQuickReplaceSelection(t *testing.T) {
	// First line "xy", replace the selection (0,0)-(0,2) with "ab".
	w, doc := newDoc(t, "xy")
	e := NewEngine(testDefaults, nil)

	sel := protocol.Range{End: protocol.Position{Line: 0, Character: 2}}
	inserted, err := e.Run(context.Background(), doc, Job{
		Text:      "ab",
		Mode:      ModeReplace,
		Selection: &sel,
		Quick:     true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if got := docText(t, w); got != "ab" {
		t.Errorf("content = %q, want %q", got, "ab")
	}
}

func TestQuickSkipsPacing(t *testing.T) {
	// 400 characters at the default 50 ms each would animate for 20 s; quick
	// mode must finish in a small constant bound instead.
	text := strings.Repeat("x", 400)
	w, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	start := time.Now()
	inserted, err := e.Run(context.Background(), doc, Job{Text: text, Quick: true})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 400 {
		t.Errorf("inserted = %d, want 400", inserted)
	}
	if elapsed > time.Second {
		t.Errorf("quick insert took %v, want well under a second", elapsed)
	}
	if got := docText(t, w); got != text {
		t.Errorf("content length = %d, want 400", len(got))
	}
}

// ---------------------------------------------------------------------------
// Animated pacing
// ---------------------------------------------------------------------------

func TestAnimatedTimingLowerBound(t *testing.T) {
	w, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	start := time.Now()
	inserted, err := e.Run(context.Background(), doc, Job{
		Text:      "abcd",
		Speed:     durPtr(50 * time.Millisecond),
		Variation: f64Ptr(0),
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 4 {
		t.Errorf("inserted = %d, want 4", inserted)
	}
	if min := 150 * time.Millisecond; elapsed < min {
		t.Errorf("elapsed = %v, want >= %v (50ms per character)", elapsed, min)
	}
	if got := docText(t, w); got != "abcd" {
		t.Errorf("content = %q, want in-order insertion with no gaps", got)
	}
}

func TestDurationOverride(t *testing.T) {
	w, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	// 100 ms spread over 4 characters: 25 ms each, regardless of speed.
	start := time.Now()
	inserted, err := e.Run(context.Background(), doc, Job{
		Text:      "abcd",
		Speed:     durPtr(time.Hour),
		Variation: f64Ptr(0),
		Duration:  durPtr(100 * time.Millisecond),
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 4 {
		t.Errorf("inserted = %d, want 4", inserted)
	}
	if min := 75 * time.Millisecond; elapsed < min {
		t.Errorf("elapsed = %v, want >= %v", elapsed, min)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed = %v, duration override did not replace the speed", elapsed)
	}
	if got := docText(t, w); got != "abcd" {
		t.Errorf("content = %q, want %q", got, "abcd")
	}
}

func TestEmptyTextInsertsNothing(t *testing.T) {
	w, doc := newDoc(t, "keep")
	e := NewEngine(testDefaults, nil)

	inserted, err := e.Run(context.Background(), doc, Job{Text: ""})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
	if got := docText(t, w); got != "keep" {
		t.Errorf("content = %q, want unchanged", got)
	}
}

// ---------------------------------------------------------------------------
// Positioning
// ---------------------------------------------------------------------------

func TestPositionClamped(t *testing.T) {
	w, doc := newDoc(t, "short")
	e := NewEngine(testDefaults, nil)

	// Line 99 / character 99 clamps to the end of the only line.
	p := protocol.Position{Line: 99, Character: 99}
	if _, err := e.Run(context.Background(), doc, Job{Text: "!", Quick: true, Position: &p}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := docText(t, w); got != "short!" {
		t.Errorf("content = %q, want %q", got, "short!")
	}
}

func TestSelectionWinsOverPosition(t *testing.T) {
	w, doc := newDoc(t, "abcdef")
	e := NewEngine(testDefaults, nil)

	p := protocol.Position{Line: 0, Character: 0}
	sel := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 3},
		End:   protocol.Position{Line: 0, Character: 3},
	}
	if _, err := e.Run(context.Background(), doc, Job{Text: "X", Quick: true, Position: &p, Selection: &sel}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := docText(t, w); got != "abcXdef" {
		t.Errorf("content = %q, want %q (selection positioning wins)", got, "abcXdef")
	}
}

func TestAppendModeIgnoresPositioning(t *testing.T) {
	w, doc := newDoc(t, "one\ntwo")
	e := NewEngine(testDefaults, nil)

	p := protocol.Position{Line: 0, Character: 0}
	if _, err := e.Run(context.Background(), doc, Job{Text: "!", Mode: ModeAppend, Quick: true, Position: &p}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := docText(t, w); got != "one\ntwo!" {
		t.Errorf("content = %q, want %q", got, "one\ntwo!")
	}
}

func TestReplaceWithEmptySelectionInserts(t *testing.T) {
	w, doc := newDoc(t, "ab")
	e := NewEngine(testDefaults, nil)

	p := protocol.Position{Line: 0, Character: 1}
	if _, err := e.Run(context.Background(), doc, Job{Text: "X", Mode: ModeReplace, Quick: true, Position: &p}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := docText(t, w); got != "aXb" {
		t.Errorf("content = %q, want %q (no pre-clear for an empty selection)", got, "aXb")
	}
}

func TestAfterCursorApplied(t *testing.T) {
	_, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	after := protocol.Position{Line: 0, Character: 1}
	if _, err := e.Run(context.Background(), doc, Job{Text: "hello", Quick: true, After: &after}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 1},
		End:   protocol.Position{Line: 0, Character: 1},
	}
	if got := doc.Selection(); got != want {
		t.Errorf("Selection = %+v, want %+v", got, want)
	}
}

func TestAfterCursorClamped(t *testing.T) {
	_, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	after := protocol.Position{Line: 50, Character: 50}
	if _, err := e.Run(context.Background(), doc, Job{Text: "ab", Quick: true, After: &after}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := protocol.Position{Line: 0, Character: 2}
	if got := doc.Selection().End; got != want {
		t.Errorf("caret = %+v, want clamped %+v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Interruption
// ---------------------------------------------------------------------------

func TestDocumentClosedMidJob(t *testing.T) {
	w, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	text := strings.Repeat("x", 100)

	// Close the document while the job is animating.
	go func() {
		time.Sleep(100 * time.Millisecond)
		w.Close(context.Background(), "/tmp/doc.txt")
	}()

	inserted, err := e.Run(context.Background(), doc, Job{
		Text:      text,
		Speed:     durPtr(10 * time.Millisecond),
		Variation: f64Ptr(0),
	})
	if err == nil {
		t.Fatal("Run: expected an error after the document closed mid-job")
	}
	if !errors.Is(err, editor.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if inserted <= 0 || inserted >= 100 {
		t.Errorf("inserted = %d, want a partial count in (0, 100)", inserted)
	}
}

func TestContextCanceledMidJob(t *testing.T) {
	_, doc := newDoc(t, "")
	e := NewEngine(testDefaults, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	text := strings.Repeat("x", 100)
	inserted, err := e.Run(ctx, doc, Job{
		Text:      text,
		Speed:     durPtr(10 * time.Millisecond),
		Variation: f64Ptr(0),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inserted <= 0 || inserted >= 100 {
		t.Errorf("inserted = %d, want a partial count in (0, 100)", inserted)
	}
}

// ---------------------------------------------------------------------------
// Pacing resolution and jitter
// ---------------------------------------------------------------------------

func TestPacingResolution(t *testing.T) {
	e := NewEngine(Defaults{Speed: 50 * time.Millisecond, Variation: 0.2}, nil)

	tests := []struct {
		name      string
		job       Job
		chars     int
		wantDelay time.Duration
		wantVar   float64
	}{
		{"defaults", Job{}, 10, 50 * time.Millisecond, 0.2},
		{"explicit speed", Job{Speed: durPtr(10 * time.Millisecond)}, 10, 10 * time.Millisecond, 0.2},
		{"zero speed", Job{Speed: durPtr(0)}, 10, 0, 0.2},
		{"duration override", Job{Speed: durPtr(time.Hour), Duration: durPtr(100 * time.Millisecond)}, 4, 25 * time.Millisecond, 0.2},
		{"duration with empty text", Job{Duration: durPtr(80 * time.Millisecond)}, 0, 80 * time.Millisecond, 0.2},
		{"variation clamped high", Job{Variation: f64Ptr(3)}, 1, 50 * time.Millisecond, 1},
		{"variation clamped low", Job{Variation: f64Ptr(-1)}, 1, 50 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		delay, variation := e.pacing(tt.job, tt.chars)
		if delay != tt.wantDelay {
			t.Errorf("%s: delay = %v, want %v", tt.name, delay, tt.wantDelay)
		}
		if variation != tt.wantVar {
			t.Errorf("%s: variation = %v, want %v", tt.name, variation, tt.wantVar)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 1000; i++ {
		d := jitterDelay(base, 1.0)
		if d < 0 || d > 2*base {
			t.Fatalf("jitterDelay = %v, want within [0, %v]", d, 2*base)
		}
	}
}

func TestJitterZeroVariation(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		if d := jitterDelay(base, 0); d != base {
			t.Fatalf("jitterDelay = %v, want exactly %v with no variation", d, base)
		}
	}
}

// ---------------------------------------------------------------------------
// Mode parsing
// ---------------------------------------------------------------------------

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"insert", ModeInsert},
		{"replace", ModeReplace},
		{"append", ModeAppend},
		{"", ModeInsert},
		{"INSERT", ModeInsert},
		{"overwrite", ModeInsert},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
