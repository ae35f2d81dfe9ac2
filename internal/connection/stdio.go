package connection

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/keycastsh/keycast/internal/protocol"
)

// StdioReader reads length-prefixed protocol messages from a byte stream,
// typically the process's stdin when the server is embedded by a host.
type StdioReader struct {
	r io.Reader
}

// NewStdioReader creates a StdioReader over r.
func NewStdioReader(r io.Reader) *StdioReader {
	return &StdioReader{r: r}
}

// ReadMessage reads a single framed message. Returns (nil, nil) on clean EOF.
func (s *StdioReader) ReadMessage() ([]byte, error) {
	return protocol.ReadMessage(s.r)
}

// Close closes the underlying stream when it is closeable.
func (s *StdioReader) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StdioWriter writes length-prefixed protocol messages to a byte stream.
// It is safe for concurrent use.
type StdioWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewStdioWriter creates a StdioWriter over w.
func NewStdioWriter(w io.Writer) *StdioWriter {
	return &StdioWriter{w: w}
}

// WriteMessage writes payload as a single framed message.
func (s *StdioWriter) WriteMessage(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.WriteMessage(s.w, payload)
}

// SendRequest marshals a Request and writes it as one frame.
func (s *StdioWriter) SendRequest(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.WriteMessage(data)
}

// SendResponse marshals a Response and writes it as one frame.
func (s *StdioWriter) SendResponse(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.WriteMessage(data)
}

// Close closes the underlying stream when it is closeable.
func (s *StdioWriter) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
