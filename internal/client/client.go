// Package client dials a keycast server and drives the protocol: requests
// are correlated by id, and every action gets one method. The kc CLI and the
// script runner are its consumers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"nhooyr.io/websocket"

	"github.com/keycastsh/keycast/internal/connection"
	"github.com/keycastsh/keycast/internal/protocol"
)

// Target describes where to connect: a Unix socket for a server on this
// machine, or a WebSocket URL for a remote one.
type Target struct {
	Socket string // unix socket path; wins over URL when set
	URL    string // ws:// or wss:// (http and https are rewritten)
	Token  string // credential for remote targets
}

// IsLocal reports whether the target is a Unix socket.
func (t Target) IsLocal() bool { return t.Socket != "" }

// Client is one open protocol connection. Request ids are assigned
// monotonically; calls are meant to be issued one at a time.
type Client struct {
	reader connection.MessageReader
	writer connection.MessageWriter
	nextID atomic.Int64
}

// Dial connects to the target. For WebSocket targets the token travels in an
// Authorization header rather than the URL, keeping it out of server access
// logs; ctx bounds the connection's lifetime, not just the handshake.
func Dial(ctx context.Context, target Target) (*Client, error) {
	if target.IsLocal() {
		conn, err := net.Dial("unix", target.Socket)
		if err != nil {
			return nil, fmt.Errorf("connecting to local socket: %w", err)
		}
		return &Client{
			reader: connection.NewUnixReader(conn),
			writer: connection.NewUnixWriter(conn),
		}, nil
	}

	wsURL := NormalizeURL(target.URL)
	opts := &websocket.DialOptions{}
	if target.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + target.Token}}
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, fmt.Errorf("server rejected the token (run 'kc pair' to store a valid one): %w", err)
			case http.StatusServiceUnavailable:
				return nil, fmt.Errorf("server authentication is misconfigured: %w", err)
			}
		}
		return nil, fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	conn.SetReadLimit(int64(protocol.MaxMessage))

	return &Client{
		reader: connection.NewWSReader(ctx, conn),
		writer: connection.NewWSWriter(ctx, conn),
	}, nil
}

// Close closes the connection. Reader and writer share the transport, so one
// close covers both.
func (c *Client) Close() error {
	return c.writer.Close()
}

// Call sends one request and blocks until its response arrives. Messages
// with a different id (un-correlated server notifications, stale replies)
// are skipped. A protocol error comes back as a plain error carrying the
// server's message, with a usage hint appended for the common cases.
func (c *Client) Call(action string, params any) (json.RawMessage, error) {
	id := json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
	req := &protocol.Request{ID: id, Action: action}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", action, err)
		}
		req.Params = raw
	}

	if err := c.writer.SendRequest(req); err != nil {
		return nil, fmt.Errorf("sending %s request: %w", action, err)
	}

	for {
		payload, err := c.reader.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("reading %s response: %w", action, err)
		}
		if payload == nil {
			return nil, errors.New("connection closed before response")
		}

		var resp protocol.Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		if string(resp.ID) != string(id) {
			continue
		}
		if resp.Error != "" {
			return nil, errors.New(formatError(resp.Error))
		}
		return resp.Result, nil
	}
}

// Notify sends a request without an id. The server treats it as
// fire-and-forget and never replies, success or failure.
func (c *Client) Notify(action string, params any) error {
	req := &protocol.Request{Action: action}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", action, err)
		}
		req.Params = raw
	}
	if err := c.writer.SendRequest(req); err != nil {
		return fmt.Errorf("sending %s notification: %w", action, err)
	}
	return nil
}

// NormalizeURL rewrites an address into a dialable WebSocket URL: http and
// https schemes become ws/wss, and a bare host:port gets ws:// prefixed.
func NormalizeURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "ws://"), strings.HasPrefix(raw, "wss://"):
		return raw
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	default:
		return "ws://" + raw
	}
}

// formatError appends usage hints to common protocol errors.
func formatError(message string) string {
	switch {
	case strings.HasPrefix(message, string(protocol.CodeNoActiveDocument)):
		return message + "\n\nOpen a file first with 'kc open <path>'"
	case strings.HasPrefix(message, string(protocol.CodeNotOpen)):
		return message + "\n\nUse 'kc status' to see the open documents"
	}
	return message
}
