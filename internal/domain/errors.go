package domain

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorKind is the relay's error taxonomy
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindToolNotFound        ErrorKind = "tool_not_found"
	KindExtractionFailed    ErrorKind = "extraction_failed"
	KindTranscodeFailed     ErrorKind = "transcode_failed"
	KindMetadataParseFailed ErrorKind = "metadata_parse_failed"
	KindInternal            ErrorKind = "internal_error"
)

// HTTPStatus maps a kind to the status code the API answers with
func (k ErrorKind) HTTPStatus() int {
	if k == KindInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Sentinels for errors.Is; they match any *Error of the same kind
var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrToolNotFound        = &Error{Kind: KindToolNotFound}
	ErrExtractionFailed    = &Error{Kind: KindExtractionFailed}
	ErrTranscodeFailed     = &Error{Kind: KindTranscodeFailed}
	ErrMetadataParseFailed = &Error{Kind: KindMetadataParseFailed}
	ErrInternal            = &Error{Kind: KindInternal}
)

// ErrStreamInterrupted is returned when a direct stream failed after headers were sent.
// Nothing can be written anymore; the connection has to be aborted.
var ErrStreamInterrupted = errors.New("stream interrupted after response started")

// Error is a classified relay failure with the diagnostics gathered so far
type Error struct {
	Kind    ErrorKind
	Message string // human-readable summary line
	Tool    string
	Stderr  string // accumulated child stderr
	Partial []byte // partial artifact content, only kept for undersized output
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError classifies err
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError extracts the classified error from err's chain. Unclassified errors become KindInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "Internal server error.", Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
