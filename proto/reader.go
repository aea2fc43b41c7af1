package proto

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// Pre-allocated byte slices for comparisons (avoid allocation in hot path).
var crlfBytes = []byte(CRLF)

// ReadResponse reads and parses a single response from r.
// Response format: <status>[ <fields>]\r\n[<body>\r\n]
//
// Whether a body follows is determined by the status word: RESERVED and
// FOUND carry "<id> <bytes>" and a body, OK carries "<bytes>" and a body.
// The declared byte count is authoritative; the body is read with
// io.ReadFull and must be followed by CRLF.
//
// Failure statuses (OUT_OF_MEMORY, INTERNAL_ERROR, BAD_FORMAT,
// UNKNOWN_COMMAND) are returned as Response.Error, not as a Go error. The
// caller should check Response.HasError() and use ShouldCloseConnection()
// to determine connection handling.
//
// Go errors returned indicate I/O or parsing failures:
//   - io.EOF: connection closed before a full line was read
//   - ParseError: malformed response, connection should be closed
//   - other I/O errors: connection issues, connection should be closed
func ReadResponse(r *bufio.Reader) (*Response, error) {
	// ReadSlice returns a view into the buffer (zero allocation). A line
	// that overflows the buffer is over the line-length cap: responses
	// are short, so an over-long line means a misbehaving peer, not a
	// reason to grow memory without bound.
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, &ParseError{Message: "response line too long"}
	}
	if err != nil {
		return nil, err
	}

	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, &ParseError{Message: "response line not CRLF-terminated"}
	}
	line = line[:len(line)-2]

	if len(line) == 0 {
		return nil, &ParseError{Message: "empty response line"}
	}

	status, rest := cutToken(line)

	resp := &Response{Status: Status(status)}

	switch resp.Status {
	case StatusOutOfMemory, StatusInternalError, StatusBadFormat, StatusUnknownCommand:
		return &Response{
			Status: resp.Status,
			Error:  &ServerFailureError{Status: resp.Status},
		}, nil

	case StatusInserted:
		resp.ID, err = parseUint(rest, "job id")
		if err != nil {
			return nil, err
		}

	case StatusBuried:
		// BURIED carries a job id in reply to put, nothing in reply to
		// release and bury.
		if len(rest) > 0 {
			resp.ID, err = parseUint(rest, "job id")
			if err != nil {
				return nil, err
			}
		}

	case StatusWatching:
		resp.Count, err = parseUint(rest, "watch count")
		if err != nil {
			return nil, err
		}

	case StatusKicked:
		// KICKED carries a count in reply to kick, nothing in reply to
		// kick-job.
		if len(rest) > 0 {
			resp.Count, err = parseUint(rest, "kick count")
			if err != nil {
				return nil, err
			}
		}

	case StatusUsing:
		if len(rest) == 0 {
			return nil, &ParseError{Message: "USING response missing tube name"}
		}
		resp.Name = string(rest)

	case StatusReserved, StatusFound:
		idTok, sizeTok := cutToken(rest)
		resp.ID, err = parseUint(idTok, "job id")
		if err != nil {
			return nil, err
		}
		resp.Body, err = readBody(r, sizeTok)
		if err != nil {
			return nil, err
		}

	case StatusOK:
		resp.Body, err = readBody(r, rest)
		if err != nil {
			return nil, err
		}
	}

	// Statuses with no fields, and status words this codec does not know,
	// pass through as-is; the per-verb dispatch decides whether an
	// unknown word is fatal.
	return resp, nil
}

// readBody reads a length-framed body plus its CRLF terminator.
func readBody(r *bufio.Reader, sizeTok []byte) ([]byte, error) {
	size, err := parseUint(sizeTok, "byte count")
	if err != nil {
		return nil, err
	}
	if size > MaxBodySize {
		return nil, &ParseError{Message: "declared body size exceeds limit"}
	}

	// Read body + CRLF together in a single read.
	body := make([]byte, size+2)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &ParseError{Message: "failed to read body", Err: err}
	}

	if !bytes.HasSuffix(body, crlfBytes) {
		return nil, &ParseError{Message: "body not CRLF-terminated"}
	}

	return body[:size], nil
}

// cutToken splits b at the first space, returning the token and the
// remainder with the separating space removed.
func cutToken(b []byte) (token, rest []byte) {
	i := bytes.IndexByte(b, ' ')
	if i == -1 {
		return b, nil
	}
	return b[:i], b[i+1:]
}

func parseUint(tok []byte, what string) (uint64, error) {
	if len(tok) == 0 {
		return 0, &ParseError{Message: "missing " + what}
	}
	n, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, &ParseError{Message: "invalid " + what, Err: err}
	}
	return n, nil
}
