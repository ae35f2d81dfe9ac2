package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessage caps a single protocol message on stream transports.
const MaxMessage uint32 = 16 * 1024 * 1024 // 16 MB

// Stream transports (unix socket, stdio) carry one JSON message per frame.
// Wire format: [length:u32 BE][payload]

// ReadMessage reads a single length-prefixed message from the reader.
// Returns (nil, nil) on clean EOF during the header read.
func ReadMessage(r io.Reader) ([]byte, error) {
	var header [4]byte
	_, err := io.ReadFull(r, header[:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading message header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxMessage {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading message payload: %w", err)
		}
	}
	return payload, nil
}

// WriteMessage writes a single length-prefixed message to the writer.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > int(MaxMessage) {
		return fmt.Errorf("message too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing message header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing message payload: %w", err)
		}
	}
	return nil
}
