package client

import (
	"encoding/json"
	"fmt"

	"github.com/keycastsh/keycast/internal/protocol"
)

// callString runs an action whose result is a plain string.
func (c *Client) callString(action string, params any) (string, error) {
	raw, err := c.Call(action, params)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("unexpected %s result: %s", action, raw)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Document commands
// ---------------------------------------------------------------------------

// OpenFile opens path on the server and brings it to the foreground.
func (c *Client) OpenFile(path string) (string, error) {
	return c.callString(protocol.ActionOpenFile, protocol.PathParams{Path: path})
}

// CreateFile creates path with the given initial content and opens it.
func (c *Client) CreateFile(path, content string) (string, error) {
	return c.callString(protocol.ActionCreateFile, protocol.CreateParams{Path: path, Content: content})
}

// SaveFile saves the foregrounded document.
func (c *Client) SaveFile() (string, error) {
	return c.callString(protocol.ActionSaveFile, nil)
}

// CloseFile closes path, or the foregrounded document when path is empty.
func (c *Client) CloseFile(path string) (string, error) {
	var params any
	if path != "" {
		params = protocol.PathParams{Path: path}
	}
	return c.callString(protocol.ActionCloseFile, params)
}

// GetFileContent reads path's text, or the foregrounded document's when path
// is empty.
func (c *Client) GetFileContent(path string) (protocol.ContentResult, error) {
	var params any
	if path != "" {
		params = protocol.PathParams{Path: path}
	}
	var content protocol.ContentResult
	raw, err := c.Call(protocol.ActionGetFileContent, params)
	if err != nil {
		return content, err
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return content, fmt.Errorf("unexpected getFileContent result: %s", raw)
	}
	return content, nil
}

// RunCommand invokes a named surface command. The result passes through
// verbatim; JSON null when the command produced none.
func (c *Client) RunCommand(command string, args []json.RawMessage) (json.RawMessage, error) {
	return c.Call(protocol.ActionRunCommand, protocol.CommandParams{Command: command, Args: args})
}

// Type runs a typing job against the foregrounded document. params.Text must
// be set; everything else is optional.
func (c *Client) Type(params protocol.TypeParams) (protocol.TypeResult, error) {
	var result protocol.TypeResult
	raw, err := c.Call(protocol.ActionType, params)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unexpected type result: %s", raw)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// Status reports the server's connection count, documents and version.
func (c *Client) Status() (protocol.StatusResult, error) {
	var status protocol.StatusResult
	raw, err := c.Call(protocol.ActionStatus, nil)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return status, fmt.Errorf("unexpected status result: %s", raw)
	}
	return status, nil
}

// Ping checks liveness; a healthy server answers "pong".
func (c *Client) Ping() (string, error) {
	return c.callString(protocol.ActionPing, nil)
}
