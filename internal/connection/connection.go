// Package connection adapts transports to the message-oriented protocol:
// one JSON message per WebSocket text frame, or length-prefixed frames on
// byte-stream transports (unix socket, stdio).
package connection

import "github.com/keycastsh/keycast/internal/protocol"

// MessageReader reads whole protocol messages from a transport.
// ReadMessage returns (nil, nil) on clean end of stream.
type MessageReader interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// MessageWriter writes whole protocol messages to a transport.
// Implementations are safe for concurrent use.
type MessageWriter interface {
	WriteMessage(payload []byte) error
	SendRequest(req *protocol.Request) error
	SendResponse(resp *protocol.Response) error
	Close() error
}
