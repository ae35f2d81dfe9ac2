package editor

import (
	"context"
	"encoding/json"

	"github.com/keycastsh/keycast/internal/protocol"
)

// Built-in commands available through runCommand on every workspace.
func registerBuiltins(w *Workspace) {
	w.commands["save"] = func(ctx context.Context, ws *Workspace, _ []json.RawMessage) (json.RawMessage, error) {
		_, err := ws.SaveActive(ctx)
		return nil, err
	}

	w.commands["selectAll"] = func(ctx context.Context, ws *Workspace, _ []json.RawMessage) (json.RawMessage, error) {
		doc := ws.Active()
		if doc == nil {
			return nil, ErrNoActiveDocument
		}
		return nil, doc.SetSelection(protocol.Range{End: EndOfDocument(doc)})
	}

	w.commands["cursorEnd"] = func(ctx context.Context, ws *Workspace, _ []json.RawMessage) (json.RawMessage, error) {
		doc := ws.Active()
		if doc == nil {
			return nil, ErrNoActiveDocument
		}
		end := EndOfDocument(doc)
		return nil, doc.SetSelection(protocol.Range{Start: end, End: end})
	}

	w.commands["deleteAll"] = func(ctx context.Context, ws *Workspace, _ []json.RawMessage) (json.RawMessage, error) {
		doc := ws.Active()
		if doc == nil {
			return nil, ErrNoActiveDocument
		}
		return nil, doc.Delete(ctx, protocol.Range{End: EndOfDocument(doc)})
	}
}
