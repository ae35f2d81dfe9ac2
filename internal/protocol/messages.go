package protocol

import "encoding/json"

// Action names accepted by the router.
const (
	ActionOpenFile       = "openFile"
	ActionCreateFile     = "createFile"
	ActionSaveFile       = "saveFile"
	ActionCloseFile      = "closeFile"
	ActionGetFileContent = "getFileContent"
	ActionRunCommand     = "runCommand"
	ActionType           = "type"
	ActionStatus         = "status"
	ActionPing           = "ping"
)

// Request is one decoded client-to-server message. The id is an opaque JSON
// scalar echoed back on the response; a request without one is a notification
// and never receives a reply. "method" is accepted as a synonym for "action".
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Action string          `json:"action,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// UnmarshalJSON normalizes the action/method synonym pair so dispatch only
// ever looks at Action.
func (r *Request) UnmarshalJSON(b []byte) error {
	type alias Request
	var aux alias
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Request(aux)
	if r.Action == "" {
		r.Action = r.Method
	}
	return nil
}

// IsNotification reports whether the request carried no usable id.
// A JSON null id counts as absent.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// DecodeParams unmarshals the params object into v. Absent params leave v
// at its zero value.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

// Response is one server-to-client message: exactly one of Result or Error,
// correlated by the originating request's id.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewResult builds a success response, marshalling v as the result payload.
// A nil v becomes an explicit JSON null result.
func NewResult(id json.RawMessage, v any) (*Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Result: raw}, nil
}

// NewError builds a failure response carrying err's message.
func NewError(id json.RawMessage, err error) *Response {
	return &Response{ID: id, Error: err.Error()}
}

// Position addresses a point in a document, zero-based. Values outside the
// document are clamped before use, never rejected.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a selection span between two positions. Start and End are clamped
// independently; Start==End is an empty selection (a bare cursor).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range spans no characters.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// PathParams is the parameter shape shared by openFile, closeFile and
// getFileContent (path required only for openFile).
type PathParams struct {
	Path string `json:"path"`
}

// CreateParams carries createFile's path and optional initial content.
type CreateParams struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// CommandParams carries runCommand's name and optional argument list.
// Arguments pass through to the surface command verbatim.
type CommandParams struct {
	Command string            `json:"command"`
	Args    []json.RawMessage `json:"args,omitempty"`
}

// TypeParams carries everything a typing job needs. Pointer fields
// distinguish "absent" from an explicit zero: speed 0 is a valid request
// for no delay, while an absent speed falls back to the configured default.
type TypeParams struct {
	Text      *string   `json:"text"`
	Mode      string    `json:"mode,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Variation *float64  `json:"variation,omitempty"`
	Duration  *float64  `json:"duration,omitempty"`
	Quick     bool      `json:"quick,omitempty"`
	Position  *Position `json:"position,omitempty"`
	Selection *Range    `json:"selection,omitempty"`
	After     *Position `json:"after,omitempty"`
}

// ContentResult is getFileContent's success payload.
type ContentResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TypeResult is type's success payload: the number of characters committed.
type TypeResult struct {
	Inserted int `json:"inserted"`
}

// StatusResult is status's success payload.
type StatusResult struct {
	Connections    int      `json:"connections"`
	ClientOrdinal  int64    `json:"clientOrdinal"`
	ActiveDocument string   `json:"activeDocument,omitempty"`
	OpenDocuments  []string `json:"openDocuments"`
	Version        string   `json:"version"`
}
