package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/keycastsh/keycast/internal/connection"
	"github.com/keycastsh/keycast/internal/editor"
	"github.com/keycastsh/keycast/internal/protocol"
	"github.com/keycastsh/keycast/internal/session"
	"github.com/keycastsh/keycast/internal/typing"
)

type handlerFunc func(ctx context.Context, req *protocol.Request, client *session.Client) (any, error)

// route resolves an action name to its handler and scheduling class. Mutating
// commands go through the mutation queue; read-only ones run immediately.
func (s *Server) route(action string) (h handlerFunc, mutating bool, ok bool) {
	switch action {
	case protocol.ActionOpenFile:
		return s.handleOpenFile, true, true
	case protocol.ActionCreateFile:
		return s.handleCreateFile, true, true
	case protocol.ActionSaveFile:
		return s.handleSaveFile, true, true
	case protocol.ActionCloseFile:
		return s.handleCloseFile, true, true
	case protocol.ActionRunCommand:
		return s.handleRunCommand, true, true
	case protocol.ActionType:
		return s.handleType, true, true
	case protocol.ActionGetFileContent:
		return s.handleGetFileContent, false, true
	case protocol.ActionStatus:
		return s.handleStatus, false, true
	case protocol.ActionPing:
		return s.handlePing, false, true
	}
	return nil, false, false
}

// dispatch routes one inbound message. It returns once the command has been
// started (spawned or enqueued), never once it has finished: a long typing
// job must not stall the connection's read loop.
func (s *Server) dispatch(ctx context.Context, w connection.MessageWriter, client *session.Client, payload []byte) {
	var req protocol.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		// No id is recoverable from a message that does not parse, so this is
		// the one error that goes out as an un-correlated notification.
		s.logger.Warn("server: malformed message", "ordinal", client.Ordinal, "err", err)
		s.write(w, protocol.NewError(nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid message: %v", err)))
		return
	}
	if req.Action == "" {
		s.respond(w, &req, nil, protocol.Errorf(protocol.CodeMissingAction, "message has no action or method field"))
		return
	}

	handler, mutating, ok := s.route(req.Action)
	if !ok {
		s.respond(w, &req, nil, protocol.UnknownAction(req.Action))
		return
	}

	if !mutating {
		go func() {
			result, err := handler(ctx, &req, client)
			s.respond(w, &req, result, err)
		}()
		return
	}

	err := s.queue.Enqueue(req.Action, func(qctx context.Context) {
		result, err := handler(qctx, &req, client)
		s.respond(w, &req, result, err)
	})
	if err != nil {
		s.respond(w, &req, nil, protocol.Errorf(protocol.CodeExecutionFailed, "%v", err))
	}
}

// respond encodes the outcome as {id, result} or {id, error} and sends it.
// A request without an id is a fire-and-forget notification: nothing is sent
// at all, success or failure.
func (s *Server) respond(w connection.MessageWriter, req *protocol.Request, result any, err error) {
	if req.IsNotification() {
		if err != nil {
			s.logger.Debug("server: notification failed", "action", req.Action, "err", err)
		}
		return
	}

	var resp *protocol.Response
	if err != nil {
		resp = protocol.NewError(req.ID, err)
	} else {
		resp, err = protocol.NewResult(req.ID, result)
		if err != nil {
			s.logger.Warn("server: encoding result", "action", req.Action, "err", err)
			resp = protocol.NewError(req.ID, protocol.Errorf(protocol.CodeExecutionFailed, "encoding result: %v", err))
		}
	}
	s.write(w, resp)
}

// write sends a response, logging and swallowing transport failures: a send
// failure never tears down the connection.
func (s *Server) write(w connection.MessageWriter, resp *protocol.Response) {
	if err := w.SendResponse(resp); err != nil {
		s.logger.Warn("server: sending response", "err", err)
	}
}

// ---------------------------------------------------------------------------
// Document command handlers
// ---------------------------------------------------------------------------

func (s *Server) handleOpenFile(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	var p protocol.PathParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	if p.Path == "" {
		return nil, protocol.MissingParameter("path")
	}
	doc, err := s.surface.Open(ctx, p.Path)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("server: opened file", "path", doc.Path())
	return "Opened file: " + doc.Path(), nil
}

func (s *Server) handleCreateFile(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	var p protocol.CreateParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	if p.Path == "" {
		return nil, protocol.MissingParameter("path")
	}
	doc, err := s.surface.Create(ctx, p.Path, p.Content)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("server: created file", "path", doc.Path(), "bytes", len(p.Content))
	return "Created file: " + doc.Path(), nil
}

func (s *Server) handleSaveFile(ctx context.Context, _ *protocol.Request, _ *session.Client) (any, error) {
	path, err := s.surface.SaveActive(ctx)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("server: saved file", "path", path)
	return "Saved file: " + path, nil
}

func (s *Server) handleCloseFile(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	var p protocol.PathParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	closed, err := s.surface.Close(ctx, p.Path)
	if err != nil {
		return nil, translate(err)
	}
	s.logger.Info("server: closed file", "path", closed)
	if p.Path == "" {
		return "Closed active file: " + closed, nil
	}
	return "Closed file: " + closed, nil
}

func (s *Server) handleGetFileContent(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	var p protocol.PathParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	path, content, err := s.surface.Read(ctx, p.Path)
	if err != nil {
		return nil, translate(err)
	}
	return protocol.ContentResult{Path: path, Content: content}, nil
}

func (s *Server) handleRunCommand(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	var p protocol.CommandParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	if p.Command == "" {
		return nil, protocol.MissingParameter("command")
	}
	result, err := s.surface.Execute(ctx, p.Command, p.Args)
	if err != nil {
		return nil, protocol.Errorf(protocol.CodeExecutionFailed, "%v", err)
	}
	s.logger.Info("server: ran command", "command", p.Command)
	return result, nil
}

func (s *Server) handleType(ctx context.Context, req *protocol.Request, _ *session.Client) (any, error) {
	doc := s.surface.Active()
	if doc == nil {
		return nil, protocol.Errorf(protocol.CodeNoActiveDocument, "no active document to type into")
	}

	var p protocol.TypeParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, protocol.Errorf(protocol.CodeMalformedMessage, "invalid params: %v", err)
	}
	if p.Text == nil {
		return nil, protocol.MissingParameter("text")
	}

	job := typing.Job{
		Text:      *p.Text,
		Mode:      typing.ParseMode(p.Mode),
		Quick:     p.Quick,
		Position:  p.Position,
		Selection: p.Selection,
		After:     p.After,
	}
	if p.Speed != nil {
		d := millis(*p.Speed)
		job.Speed = &d
	}
	if p.Variation != nil {
		job.Variation = p.Variation
	}
	if p.Duration != nil {
		d := millis(*p.Duration)
		job.Duration = &d
	}

	inserted, err := s.engine.Run(ctx, doc, job)
	if err != nil {
		total := utf8.RuneCountInString(*p.Text)
		return nil, protocol.Errorf(protocol.CodeTypingFailed,
			"inserted %d of %d characters: %v", inserted, total, err)
	}
	return protocol.TypeResult{Inserted: inserted}, nil
}

func (s *Server) handleStatus(_ context.Context, _ *protocol.Request, client *session.Client) (any, error) {
	result := protocol.StatusResult{
		Connections:   s.registry.Count(),
		ClientOrdinal: client.Ordinal,
		OpenDocuments: s.surface.OpenPaths(),
		Version:       Version,
	}
	if doc := s.surface.Active(); doc != nil {
		result.ActiveDocument = doc.Path()
	}
	return result, nil
}

func (s *Server) handlePing(context.Context, *protocol.Request, *session.Client) (any, error) {
	return "pong", nil
}

// millis converts a wire milliseconds value to a duration.
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// translate maps the surface's sentinel errors onto the wire taxonomy.
// Unrecognized errors pass through untouched.
func translate(err error) error {
	switch {
	case errors.Is(err, editor.ErrNotFound):
		return protocol.Errorf(protocol.CodeNotFound, "%v", err)
	case errors.Is(err, editor.ErrAlreadyExists):
		return protocol.Errorf(protocol.CodeAlreadyExists, "%v", err)
	case errors.Is(err, editor.ErrNoActiveDocument):
		return protocol.Errorf(protocol.CodeNoActiveDocument, "%v", err)
	case errors.Is(err, editor.ErrNotOpen):
		return protocol.Errorf(protocol.CodeNotOpen, "%v", err)
	case errors.Is(err, editor.ErrWriteFailed):
		return protocol.Errorf(protocol.CodeWriteFailed, "%v", err)
	}
	return err
}
