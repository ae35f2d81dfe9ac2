package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nhooyr.io/websocket"

	"github.com/keycastsh/keycast/internal/protocol"
)

// WSReader reads protocol messages from a WebSocket connection. Every message
// is one JSON object carried in a single text frame.
type WSReader struct {
	conn *websocket.Conn
	ctx  context.Context
}

// NewWSReader creates a WSReader wrapping the given WebSocket connection.
func NewWSReader(ctx context.Context, conn *websocket.Conn) *WSReader {
	return &WSReader{conn: conn, ctx: ctx}
}

// ReadMessage reads a single text message. A normal close is treated as a
// clean EOF and returns (nil, nil).
func (r *WSReader) ReadMessage() ([]byte, error) {
	msgType, data, err := r.conn.Read(r.ctx)
	if err != nil {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, nil
		}
		return nil, err
	}
	if msgType != websocket.MessageText {
		return nil, fmt.Errorf("unexpected websocket message type: %d", msgType)
	}
	return data, nil
}

// Close sends a normal closure message and closes the WebSocket.
func (r *WSReader) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "")
}

// WSWriter writes protocol messages to a WebSocket connection.
// It is safe for concurrent use.
type WSWriter struct {
	conn *websocket.Conn
	ctx  context.Context
	mu   sync.Mutex
}

// NewWSWriter creates a WSWriter wrapping the given WebSocket connection.
func NewWSWriter(ctx context.Context, conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn, ctx: ctx}
}

// WriteMessage sends payload as a single text message.
func (w *WSWriter) WriteMessage(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(w.ctx, websocket.MessageText, payload)
}

// SendRequest marshals a Request and sends it as one message.
func (w *WSWriter) SendRequest(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.WriteMessage(data)
}

// SendResponse marshals a Response and sends it as one message.
func (w *WSWriter) SendResponse(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return w.WriteMessage(data)
}

// Close sends a normal closure message and closes the WebSocket.
func (w *WSWriter) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
