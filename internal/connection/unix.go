package connection

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/keycastsh/keycast/internal/protocol"
)

// UnixReader reads length-prefixed protocol messages from a Unix socket.
type UnixReader struct {
	conn net.Conn
}

// NewUnixReader creates a UnixReader wrapping the given connection.
func NewUnixReader(conn net.Conn) *UnixReader {
	return &UnixReader{conn: conn}
}

// ReadMessage reads a single framed message. Returns (nil, nil) on clean EOF.
func (r *UnixReader) ReadMessage() ([]byte, error) {
	return protocol.ReadMessage(r.conn)
}

// Close closes the underlying connection.
func (r *UnixReader) Close() error {
	return r.conn.Close()
}

// UnixWriter writes length-prefixed protocol messages to a Unix socket.
// It is safe for concurrent use.
type UnixWriter struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewUnixWriter creates a UnixWriter wrapping the given connection.
func NewUnixWriter(conn net.Conn) *UnixWriter {
	return &UnixWriter{conn: conn}
}

// WriteMessage writes payload as a single framed message.
func (w *UnixWriter) WriteMessage(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return protocol.WriteMessage(w.conn, payload)
}

// SendRequest marshals a Request and writes it as one frame.
func (w *UnixWriter) SendRequest(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.WriteMessage(data)
}

// SendResponse marshals a Response and writes it as one frame.
func (w *UnixWriter) SendResponse(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return w.WriteMessage(data)
}

// Close closes the underlying connection.
func (w *UnixWriter) Close() error {
	return w.conn.Close()
}
