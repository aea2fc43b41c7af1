package beanstalk

import (
	"errors"
	"fmt"

	"github.com/koodaamo/beanstalk/proto"
)

var (
	// ErrConnectionClosed is returned by every operation after the
	// connection has been closed, whether by Close or by a fatal error.
	ErrConnectionClosed = errors.New("beanstalk: connection closed")

	// ErrNotConnected is returned by operations invoked before Connect.
	ErrNotConnected = errors.New("beanstalk: not connected")
)

// ConnError wraps a transport-level failure (refused, reset, timed out,
// closed prematurely). The connection is unusable afterwards and must be
// recreated; the client never reconnects on its own.
type ConnError struct {
	Op  string // protocol verb in flight when the failure occurred
	Err error  // underlying error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("beanstalk: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the transport is already broken.
func (e *ConnError) ShouldCloseConnection() bool {
	return true
}

// ProtocolError reports a response outside the expected set for the verb
// that was sent. It indicates desynchronization, a server bug, or a
// version mismatch; the byte stream position can no longer be trusted, so
// the connection is closed before this error is returned.
type ProtocolError struct {
	Op     string       // protocol verb that was sent
	Status proto.Status // unexpected status word received, if any
	Err    error        // underlying failure, e.g. an unparsable payload
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("beanstalk: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("beanstalk: %s: unexpected response %q", e.Op, string(e.Status))
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream is desynchronized.
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// domainError is an expected, typed outcome of a specific verb. The
// connection remains valid; the caller can recover without reconnecting.
type domainError struct {
	msg string
}

func (e *domainError) Error() string { return e.msg }

// ShouldCloseConnection returns false - domain errors do not affect
// connection validity.
func (e *domainError) ShouldCloseConnection() bool { return false }

// Domain errors. Compare with errors.Is.
var (
	// ErrNotFound: the job does not exist, or is not reserved by or
	// visible to this client in the way the command requires.
	ErrNotFound = &domainError{"beanstalk: job not found"}

	// ErrNotIgnored: the watch list cannot be left empty; ignore was
	// called on the last watched tube.
	ErrNotIgnored = &domainError{"beanstalk: cannot ignore the only watched tube"}

	// ErrTimedOut: reserve-with-timeout elapsed with no job to reserve.
	ErrTimedOut = &domainError{"beanstalk: reserve timed out"}

	// ErrDeadlineSoon: the TTR of a job reserved by this client is about
	// to expire; the server refuses to block on a new reservation until
	// the deadline is dealt with.
	ErrDeadlineSoon = &domainError{"beanstalk: reserved job deadline soon"}

	// ErrDraining: the server is in drain mode and no longer accepts new
	// jobs. The connection stays valid for consuming.
	ErrDraining = &domainError{"beanstalk: server is draining"}

	// ErrJobTooBig: the job body exceeds the server's max-job-size.
	ErrJobTooBig = &domainError{"beanstalk: job body too big"}

	// ErrOutOfMemory: the server refused the command because it is out
	// of memory. The caller may retry later.
	ErrOutOfMemory = &domainError{"beanstalk: server out of memory"}
)

// BuriedError is returned by Put when the server ran out of memory while
// growing a priority queue: the job was stored, but in the buried state
// rather than ready. It is also returned by Release when the job could
// not be released for the same reason.
type BuriedError struct {
	// ID is the id of the buried job. Zero for Release, which does not
	// echo the id back.
	ID uint64
}

func (e *BuriedError) Error() string {
	if e.ID == 0 {
		return "beanstalk: job buried"
	}
	return fmt.Sprintf("beanstalk: job %d buried", e.ID)
}

// ShouldCloseConnection returns false - the job is stored, just buried.
func (e *BuriedError) ShouldCloseConnection() bool { return false }

// ExpectedCRLFError is returned by Put when the server did not find the
// CRLF terminator after the job body. The client always sends the
// terminator, so this means the declared length and the bytes on the wire
// disagree; framing is lost and the connection is closed.
type ExpectedCRLFError struct{}

func (e *ExpectedCRLFError) Error() string {
	return "beanstalk: server did not see CRLF after job body"
}

// ShouldCloseConnection returns true - framing is lost.
func (e *ExpectedCRLFError) ShouldCloseConnection() bool { return true }
