package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures so the transport layer can map them to a status.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// InvalidInput marks user-correctable problems (empty document, no chunks).
	InvalidInput
	// NotFound marks a referenced resource that does not exist.
	NotFound
	// Provider marks a failed call to the embedding or chat provider.
	Provider
	// ShapeMismatch marks a provider response that violates the embedding
	// contract (wrong item count, missing embedding field).
	ShapeMismatch
)

// Error carries a code alongside the underlying cause.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("error code: %d", e.Code)
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error { return e.Err }

// Errorf builds a coded error from a format string.
func Errorf(code ErrorCode, format string, args ...any) error {
	return Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or Unknown if err carries none.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
