package proto

import (
	"errors"
)

// Error types for protocol operations. These help clients determine the
// appropriate error handling strategy, particularly regarding connection
// management (close vs. keep using).

// ParseError represents a client-side parsing failure. It indicates the
// client failed to parse the server response, which suggests either a
// protocol violation by the server or desynchronization from a prior
// error.
//
// Common causes:
//   - Malformed or over-long response line
//   - Non-numeric id or byte count where a number is expected
//   - Truncated or unterminated body
//
// Connection handling: CLOSE, the stream position can no longer be trusted.
type ParseError struct {
	Message string
	Err     error // underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors indicate corrupted state.
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// InvalidNameError is returned when a tube name fails validation before
// being written to the wire.
//
// Connection handling: connection is still valid, the command was rejected
// client-side and never sent.
type InvalidNameError struct {
	Message string
}

func (e *InvalidNameError) Error() string {
	return e.Message
}

// ShouldCloseConnection returns false - nothing was written to the wire.
func (e *InvalidNameError) ShouldCloseConnection() bool {
	return false
}

// ServerFailureError represents one of the failure statuses the server may
// emit in place of any reply: OUT_OF_MEMORY, INTERNAL_ERROR, BAD_FORMAT,
// UNKNOWN_COMMAND.
//
// OUT_OF_MEMORY leaves the protocol state intact; the command was simply
// refused and may be retried later by the caller. The other three indicate
// the server and client disagree about what was sent, so the stream can no
// longer be trusted.
type ServerFailureError struct {
	Status Status
}

func (e *ServerFailureError) Error() string {
	return "server failure: " + string(e.Status)
}

// ShouldCloseConnection reports whether the failure corrupts protocol state.
func (e *ServerFailureError) ShouldCloseConnection() bool {
	return e.Status != StatusOutOfMemory
}

// ErrorWithConnectionState is an interface for errors that indicate
// whether the connection should be closed.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection is a helper to determine if an error requires
// closing the connection.
//
// Usage:
//
//	resp, err := ReadResponse(r)
//	if err != nil {
//	    if ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close the connection.
	return true
}
