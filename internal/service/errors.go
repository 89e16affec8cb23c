package service

import (
	"errors"
	"fmt"

	"ai-sqlnotebook-be/internal/constant"
)

var (
	ErrNotebookNotFound   = &StatusError{Code: 404, Message: "notebook not found"}
	ErrSubmissionInFlight = &StatusError{Code: 409, Message: "a query is already running, wait for it to finish"}
	ErrEmptyTitle         = &StatusError{Code: 400, Message: "title must not be blank"}
)

// StatusError is a domain error that carries its HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string   { return e.Message }
func (e *StatusError) StatusCode() int { return e.Code }

type EntryErrorKind string

const (
	KindTransport   EntryErrorKind = "transport"
	KindPersistence EntryErrorKind = "persistence"
)

// EntryError reports a failed submission. RolledBack is true when the entry was
// removed because no segment had been applied yet.
type EntryError struct {
	Kind       EntryErrorKind
	Op         string
	RolledBack bool
	Err        error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s failure during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

func (e *EntryError) StatusCode() int {
	if e.Kind == KindTransport {
		return 502
	}
	return 500
}

// PublicMessage is what the HTTP client sees; Error() carries the cause and
// stays in the logs.
func (e *EntryError) PublicMessage() string {
	if e.Kind == KindTransport {
		return constant.ErrMessageQueryBackend
	}
	return constant.ErrMessageEntryStorage
}

func IsTransportError(err error) bool {
	var entryErr *EntryError
	return errors.As(err, &entryErr) && entryErr.Kind == KindTransport
}

func transportError(op string, err error) *EntryError {
	return &EntryError{Kind: KindTransport, Op: op, Err: err}
}

func persistenceError(op string, err error) *EntryError {
	return &EntryError{Kind: KindPersistence, Op: op, Err: err}
}
