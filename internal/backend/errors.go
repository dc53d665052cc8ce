package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for backend operations.
var (
	ErrIndexNotFound    = errors.New("backend: index not found")
	ErrIndexExists      = errors.New("backend: index already exists")
	ErrDocumentNotFound = errors.New("backend: document not found")
	ErrBadRequest       = errors.New("backend: bad request")
)

// Op names used for error context and metrics labels.
const (
	OpPing        = "ping"
	OpCreateIndex = "create_index"
	OpIndexExists = "index_exists"
	OpPutMapping  = "put_mapping"
	OpGetMapping  = "get_mapping"
	OpBulk        = "bulk"
	OpGetDocument = "get_document"
	OpSearch      = "search"
)

// Error wraps an underlying error with the operation name and HTTP status for diagnostics.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s [%d]: %s", e.Op, e.Status, e.Err.Error())
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ResponseError is the error object returned in REST error bodies.
type ResponseError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e *ResponseError) Error() string {
	if e.Reason == "" {
		return e.Type
	}
	return e.Type + ": " + e.Reason
}

// FromResponse converts a REST error response into an *Error, mapping well-known
// exception types to sentinels. Shared by the Elasticsearch and OpenSearch drivers.
func FromResponse(op string, status int, body []byte) error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
		Found *bool           `json:"found"`
	}
	_ = json.Unmarshal(body, &envelope)

	re := &ResponseError{}
	if len(envelope.Error) > 0 {
		if err := json.Unmarshal(envelope.Error, re); err != nil {
			// Some endpoints return the error as a plain string.
			var s string
			_ = json.Unmarshal(envelope.Error, &s)
			re.Reason = s
		}
	}
	if re.Type == "" && re.Reason == "" {
		re.Reason = http.StatusText(status)
	}

	var sentinel error
	switch {
	case re.Type == "resource_already_exists_exception":
		sentinel = ErrIndexExists
	case re.Type == "index_not_found_exception":
		sentinel = ErrIndexNotFound
	case status == http.StatusNotFound && envelope.Found != nil && !*envelope.Found:
		sentinel = ErrDocumentNotFound
	case status == http.StatusBadRequest:
		sentinel = ErrBadRequest
	}

	if sentinel != nil {
		return &Error{Op: op, Status: status, Err: fmt.Errorf("%w: %w", sentinel, re)}
	}
	return &Error{Op: op, Status: status, Err: re}
}
