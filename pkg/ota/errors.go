package ota

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates begin was called with a non-positive size.
	ErrInvalidSize = errors.New("invalid firmware size")
	// ErrInsufficientMemory indicates the heap preflight check failed.
	ErrInsufficientMemory = errors.New("insufficient memory")
	// ErrStorageOpenFailed indicates the update target rejected the declared size.
	ErrStorageOpenFailed = errors.New("storage open failed")
	// ErrStorageWriteFailed indicates a piece was not fully written to storage.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrTimeout indicates no chunk activity within the timeout threshold.
	ErrTimeout = errors.New("update timeout")
	// ErrNoSession indicates a chunk arrived while no session is active.
	ErrNoSession = errors.New("no update in progress")
	// ErrUpdateInProgress indicates begin was called during an active session.
	ErrUpdateInProgress = errors.New("update already in progress")
	// ErrSessionAborted indicates the session ended while a chunk was in flight.
	ErrSessionAborted = errors.New("update aborted")
	// ErrSizeExceeded indicates chunks exceed the size declared at begin.
	ErrSizeExceeded = errors.New("firmware size exceeded")
	// ErrIncomplete indicates completion was requested before all bytes were committed.
	ErrIncomplete = errors.New("firmware incomplete")
)

// ErrorKind classifies session errors for status reporting.
type ErrorKind string

// Error kinds.
const (
	KindInsufficientMemory ErrorKind = "insufficient-memory"
	KindStorageOpenFailed  ErrorKind = "storage-open-failed"
	KindStorageWriteFailed ErrorKind = "storage-write-failed"
	KindTimeout            ErrorKind = "timeout"
	KindProtocolMisuse     ErrorKind = "protocol-misuse"
	KindAborted            ErrorKind = "aborted"
	KindCommitFailed       ErrorKind = "commit-failed"
)

// SessionError attaches an ErrorKind to an error that terminated a session.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

// Error implements error.
func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error.
func KindOf(err error) ErrorKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrInsufficientMemory):
		return KindInsufficientMemory
	case errors.Is(err, ErrStorageOpenFailed):
		return KindStorageOpenFailed
	case errors.Is(err, ErrStorageWriteFailed):
		return KindStorageWriteFailed
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrSizeExceeded), errors.Is(err, ErrInvalidSize):
		return KindProtocolMisuse
	case errors.Is(err, ErrIncomplete):
		return KindCommitFailed
	}
	return KindAborted
}

func sessionError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return err
	}
	return &SessionError{Kind: kind, Err: err}
}
