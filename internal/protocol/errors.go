package protocol

import "fmt"

// Code classifies a protocol-level failure. Wire error strings are
// "<Code>: <detail>" so callers can match on either half.
type Code string

const (
	CodeMalformedMessage Code = "MalformedMessage"
	CodeMissingAction    Code = "MissingAction"
	CodeUnknownAction    Code = "UnknownAction"
	CodeMissingParameter Code = "MissingParameter"
	CodeNotFound         Code = "NotFound"
	CodeAlreadyExists    Code = "AlreadyExists"
	CodeNoActiveDocument Code = "NoActiveDocument"
	CodeNotOpen          Code = "NotOpen"
	CodeWriteFailed      Code = "WriteFailed"
	CodeExecutionFailed  Code = "ExecutionFailed"
	CodeTypingFailed     Code = "TypingFailed"
	CodeAuthRejected     Code = "AuthRejected"
)

// Error is a classified protocol failure. It is what handlers hand back to
// the codec; the wire sees only the formatted string.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Detail
}

// Errorf builds a classified error with a formatted detail.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// MissingParameter reports a handler parameter that was required but absent.
func MissingParameter(name string) *Error {
	return Errorf(CodeMissingParameter, "missing required parameter: %s", name)
}

// UnknownAction reports an unrecognized action name.
func UnknownAction(name string) *Error {
	return Errorf(CodeUnknownAction, "unknown action: %s", name)
}
