package proto

import (
	"strconv"
	"time"
)

// Request represents a protocol command. This is a low-level container for
// request data without serialization logic. Fields map directly to
// protocol elements.
type Request struct {
	// Verb is the command name: put, reserve, delete, ...
	Verb Verb

	// Args is the serialized argument representation.
	//
	// It contains the exact bytes that appear after the verb on the wire,
	// including the leading spaces (e.g. " 1024 0 60").
	Args Args

	// Body is the job body (put only). A nil Body means the command
	// carries no body; the byte count argument and the trailing data
	// block are derived from it at write time, never stored separately.
	Body []byte
}

// NewRequest creates a new protocol request.
//
// Arguments are added with the Args builder after creation:
//
//	req := NewRequest(VerbRelease, nil)
//	req.Args.AddUint64(id)
//	req.Args.AddUint32(pri)
//	req.Args.AddDurationSeconds(delay)
func NewRequest(verb Verb, body []byte) *Request {
	return &Request{Verb: verb, Body: body}
}

// Args is a serialized representation of command arguments.
//
// The zero value is ready to use.
//
// It is optimized for building argument lists with minimal allocations
// (integers are appended directly) and for cheap encoding in WriteRequest
// (a single write).
type Args []byte

func (a Args) IsEmpty() bool {
	return len(a) == 0
}

func (a *Args) Reset() {
	*a = (*a)[:0]
}

func (a Args) Clone() Args {
	return append(Args(nil), a...)
}

func (a *Args) AddName(name string) {
	*a = append(*a, ' ')
	*a = append(*a, name...)
}

func (a *Args) AddInt(value int) {
	*a = append(*a, ' ')
	*a = strconv.AppendInt(*a, int64(value), 10)
}

func (a *Args) AddUint32(value uint32) {
	*a = append(*a, ' ')
	*a = strconv.AppendUint(*a, uint64(value), 10)
}

func (a *Args) AddUint64(value uint64) {
	*a = append(*a, ' ')
	*a = strconv.AppendUint(*a, value, 10)
}

// AddDurationSeconds appends a duration as whole non-negative seconds,
// which is the only time unit the protocol speaks.
func (a *Args) AddDurationSeconds(d time.Duration) {
	if d < 0 {
		d = 0
	}
	a.AddInt(int(d / time.Second))
}
