// Package server is the protocol core: it accepts connections over
// WebSocket, Unix socket or stdio, routes decoded messages to the command
// handlers, and serializes every document-mutating command through a single
// FIFO queue.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"nhooyr.io/websocket"

	"github.com/keycastsh/keycast/internal/auth"
	"github.com/keycastsh/keycast/internal/connection"
	"github.com/keycastsh/keycast/internal/editor"
	"github.com/keycastsh/keycast/internal/protocol"
	"github.com/keycastsh/keycast/internal/session"
	"github.com/keycastsh/keycast/internal/typing"
)

// Version is reported by the status action.
const Version = "0.4.0"

// keepaliveInterval is how often idle WebSocket connections are pinged.
const keepaliveInterval = 30 * time.Second

// Options configures a Server. Gate and Surface are required; zero-valued
// typing defaults mean "no delay, no jitter".
type Options struct {
	Gate     *auth.Gate
	Surface  editor.Surface
	Defaults typing.Defaults
	Logger   *slog.Logger
}

// Server owns the listeners and the per-server mutation worker. One Server
// drives one document surface.
type Server struct {
	gate     *auth.Gate
	surface  editor.Surface
	registry *session.Registry
	engine   *typing.Engine
	queue    *mutationQueue
	logger   *slog.Logger
}

// New assembles a server from its parts. It does not start anything; call
// Run or RunStdio.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		gate:     opts.Gate,
		surface:  opts.Surface,
		registry: session.NewRegistry(),
		engine:   typing.NewEngine(opts.Defaults, logger),
		queue:    newMutationQueue(logger),
		logger:   logger,
	}
}

// Registry exposes the live connection set.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run starts the WebSocket listener on addr and, when socketPath is
// non-empty, a Unix socket listener beside it. It blocks until ctx is
// cancelled, then shuts the HTTP server down with a 5 s deadline and waits
// for the mutation worker to finish the commands it had already accepted.
func (s *Server) Run(ctx context.Context, addr, socketPath string) error {
	go s.queue.Run(ctx)
	go s.logEvents(ctx)

	if socketPath != "" {
		_ = os.Remove(socketPath)
		ln, err := net.Listen("unix", socketPath)
		if err != nil {
			return fmt.Errorf("listening on unix socket: %w", err)
		}
		defer os.Remove(socketPath)
		s.logger.Info("server: unix socket listening", "path", socketPath)

		go func() {
			<-ctx.Done()
			ln.Close()
		}()
		go s.acceptUnix(ctx, ln)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.upgradeHandler(ctx))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server: listening", "addr", addr, "auth", s.gate.Enabled())

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}

	<-s.queue.done
	return ctx.Err()
}

// RunStdio serves the protocol over a single stdin/stdout style stream using
// the length-prefixed frame codec. It returns when the stream reaches EOF or
// ctx is cancelled, after the mutation worker has drained.
func (s *Server) RunStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.queue.Run(ctx)
	go s.logEvents(ctx)

	s.serveConn(ctx, connection.NewStdioReader(in), connection.NewStdioWriter(out), "stdio", "stdio")

	cancel()
	<-s.queue.done
	return nil
}

// upgradeHandler admits, upgrades and serves one WebSocket connection. The
// connection context descends from the server run context so shutdown
// unblocks every in-flight read.
func (s *Server) upgradeHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d := s.gate.Admit(r); d != auth.Accepted {
			s.logger.Warn("server: connection rejected", "remote", r.RemoteAddr, "reason", d.Message())
			http.Error(w, d.Message(), d.Status())
			return
		}

		wsConn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Error("server: websocket accept", "err", err)
			return
		}
		wsConn.SetReadLimit(int64(protocol.MaxMessage))

		connCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.keepalive(connCtx, wsConn)

		reader := connection.NewWSReader(connCtx, wsConn)
		writer := connection.NewWSWriter(connCtx, wsConn)
		s.serveConn(connCtx, reader, writer, "websocket", r.RemoteAddr)
	}
}

// acceptUnix serves the local control socket. Unix connections are admitted
// without the auth gate: socket file permissions are the credential.
func (s *Server) acceptUnix(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.logger.Error("server: unix accept", "err", err)
			continue
		}
		go func() {
			defer conn.Close()
			reader := connection.NewUnixReader(conn)
			writer := connection.NewUnixWriter(conn)
			s.serveConn(ctx, reader, writer, "unix", conn.RemoteAddr().String())
		}()
	}
}

// serveConn is the per-connection read loop: register, read messages in
// arrival order, dispatch each, unregister on EOF or error.
func (s *Server) serveConn(ctx context.Context, r connection.MessageReader, w connection.MessageWriter, transport, remote string) {
	client := s.registry.Add(transport, remote)
	defer s.registry.Remove(client.ID)
	defer r.Close()

	for {
		payload, err := r.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("server: connection read", "ordinal", client.Ordinal, "err", err)
			}
			return
		}
		if payload == nil {
			return
		}
		s.dispatch(ctx, w, client, payload)
	}
}

// keepalive pings a WebSocket connection until its context ends. A failed
// ping ends the loop; the read side notices the dead connection on its own.
func (s *Server) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// logEvents mirrors connection lifecycle events into the log.
func (s *Server) logEvents(ctx context.Context) {
	id, ch := s.registry.Events().Subscribe(16)
	defer s.registry.Events().Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.logger.Info("server: "+string(ev.Type),
				"ordinal", ev.Client.Ordinal,
				"transport", ev.Client.Transport,
				"remote", ev.Client.Remote,
				"connections", ev.Connections)
		}
	}
}
