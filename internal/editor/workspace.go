package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// CommandFunc is a named surface command invocable through runCommand.
// Its result is passed back to the caller verbatim; nil means a null result.
type CommandFunc func(ctx context.Context, ws *Workspace, args []json.RawMessage) (json.RawMessage, error)

// Workspace is the in-memory surface: a map of saved files, a set of open
// buffers, and a foreground pointer. It backs the shipped server binary and
// the test suite.
type Workspace struct {
	mu        sync.Mutex
	files     map[string]string  // saved bytes, keyed by path
	buffers   map[string]*Buffer // open views
	openOrder []string           // open order, for foreground fallback on close
	active    *Buffer
	commands  map[string]CommandFunc
}

// NewWorkspace returns an empty workspace with the built-in commands
// (save, selectAll, cursorEnd, deleteAll) registered.
func NewWorkspace() *Workspace {
	w := &Workspace{
		files:    make(map[string]string),
		buffers:  make(map[string]*Buffer),
		commands: make(map[string]CommandFunc),
	}
	registerBuiltins(w)
	return w
}

// RegisterCommand makes fn invocable through runCommand under name,
// replacing any previous registration.
func (w *Workspace) RegisterCommand(name string, fn CommandFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands[name] = fn
}

// Seed writes content to path without opening it, as if the file already
// existed on disk before the server started.
func (w *Workspace) Seed(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = content
}

// Open foregrounds path, loading it into a buffer if it is not already open.
func (w *Workspace) Open(ctx context.Context, path string) (Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if buf, ok := w.buffers[path]; ok {
		w.active = buf
		return buf, nil
	}
	content, ok := w.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return w.openLocked(path, content), nil
}

// Create writes a new file and opens it. Fails if the path already exists,
// saved or open.
func (w *Workspace) Create(ctx context.Context, path, content string) (Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	if _, ok := w.buffers[path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	w.files[path] = content
	return w.openLocked(path, content), nil
}

func (w *Workspace) openLocked(path, content string) *Buffer {
	buf := newBuffer(path, content)
	w.buffers[path] = buf
	w.openOrder = append(w.openOrder, path)
	w.active = buf
	return buf
}

// SaveActive writes the foregrounded buffer back to its file and returns
// the saved path.
func (w *Workspace) SaveActive(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == nil {
		return "", ErrNoActiveDocument
	}
	w.files[w.active.Path()] = w.active.Text()
	return w.active.Path(), nil
}

// Close closes path's view, or the foregrounded view when path is empty.
// The most recently opened remaining buffer becomes the foreground.
func (w *Workspace) Close(ctx context.Context, path string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if path == "" {
		if w.active == nil {
			return "", ErrNoActiveDocument
		}
		path = w.active.Path()
	} else if _, ok := w.buffers[path]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotOpen, path)
	}

	buf := w.buffers[path]
	buf.invalidate()
	delete(w.buffers, path)
	for i, p := range w.openOrder {
		if p == path {
			w.openOrder = append(w.openOrder[:i], w.openOrder[i+1:]...)
			break
		}
	}
	if w.active == buf {
		w.active = nil
		if n := len(w.openOrder); n > 0 {
			w.active = w.buffers[w.openOrder[n-1]]
		}
	}
	return path, nil
}

// Read returns path's text, preferring an open buffer (which may hold
// unsaved edits) over the saved bytes. An empty path reads the foregrounded
// document.
func (w *Workspace) Read(ctx context.Context, path string) (string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if path == "" {
		if w.active == nil {
			return "", "", ErrNoActiveDocument
		}
		return w.active.Path(), w.active.Text(), nil
	}
	if buf, ok := w.buffers[path]; ok {
		return path, buf.Text(), nil
	}
	if content, ok := w.files[path]; ok {
		return path, content, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Active returns the foregrounded document, or nil when none is open.
func (w *Workspace) Active() Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	return w.active
}

// OpenPaths lists the open buffers in open order.
func (w *Workspace) OpenPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, len(w.openOrder))
	copy(paths, w.openOrder)
	return paths
}

// Execute runs the named command. The function is invoked outside the
// workspace lock so commands can call back into the surface.
func (w *Workspace) Execute(ctx context.Context, name string, args []json.RawMessage) (json.RawMessage, error) {
	w.mu.Lock()
	fn, ok := w.commands[name]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	result, err := fn(ctx, w, args)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", name, err)
	}
	return result, nil
}
