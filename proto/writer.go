package proto

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for building requests.
var bufferPool = sync.Pool{
	New: func() any {
		// Typical command line is well under 100 bytes.
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// ValidateTubeName checks if a name is valid for the beanstalkd protocol.
// Names must be 1-200 bytes of ASCII letters, digits and the characters
// - + / ; . $ _ ( ), and may not begin with a hyphen.
// Returns an error describing the validation failure.
func ValidateTubeName(name string) error {
	if len(name) == 0 {
		return &InvalidNameError{Message: "tube name is empty"}
	}

	if len(name) > MaxTubeNameLength {
		return &InvalidNameError{Message: "tube name exceeds maximum length of 200 bytes"}
	}

	if name[0] == '-' {
		return &InvalidNameError{Message: "tube name begins with a hyphen"}
	}

	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return &InvalidNameError{Message: "tube name contains invalid character " + strconv.QuoteRune(rune(name[i]))}
		}
	}

	return nil
}

func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '+', '/', ';', '.', '$', '_', '(', ')':
		return true
	}
	return false
}

// WriteRequest serializes a Request to wire format and writes it to w.
// Format: <verb>[ <args>]\r\n[<body>\r\n]
//
// For put: put <pri> <delay> <ttr> <bytes>\r\n<body>\r\n
// For other commands: <verb>[ <args>]\r\n
//
// The byte count argument for body-bearing commands is derived from
// len(Body) here; callers never encode it themselves.
func WriteRequest(w io.Writer, req *Request) error {
	// Optimize for bufio.Writer (used by the connection).
	if bw, ok := w.(*bufio.Writer); ok {
		if err := writeRequest(bw, req); err != nil {
			return err
		}
		return bw.Flush()
	}

	// Fall back to a pooled buffer for other writers (tests, etc.) so the
	// request still reaches w in a single Write.
	buf := getBuffer()
	defer putBuffer(buf)

	if err := writeRequest(buf, req); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// byteStringWriter is satisfied by both bufio.Writer and bytes.Buffer.
type byteStringWriter interface {
	io.Writer
	WriteString(s string) (int, error)
}

func writeRequest(w byteStringWriter, req *Request) error {
	w.WriteString(string(req.Verb))

	if !req.Args.IsEmpty() {
		w.Write(req.Args) // includes leading space
	}

	if req.Body != nil {
		w.WriteString(Space)
		w.WriteString(strconv.Itoa(len(req.Body)))
	}

	if _, err := w.WriteString(CRLF); err != nil {
		return err
	}

	if req.Body != nil {
		if len(req.Body) > 0 {
			if _, err := w.Write(req.Body); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(CRLF); err != nil {
			return err
		}
	}

	return nil
}
