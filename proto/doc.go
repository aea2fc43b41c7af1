// Package proto provides a low-level wire protocol implementation for the
// beanstalkd work-queue protocol.
//
// This package serves as a foundation for building higher-level beanstalkd
// clients with different properties (producers, consumers, supervision
// loops, etc.). It focuses on correctness of serialization and parsing
// without imposing architectural decisions on clients.
//
// # Core Types
//
// Request and Response are pure data containers without embedded logic:
//
//   - Request: a protocol command (verb, arguments, optional job body)
//   - Response: a parsed server response (status word, typed fields, body)
//
// # Serialization and Parsing
//
// WriteRequest serializes requests to wire format:
//
//	req := proto.NewRequest(proto.VerbDelete, nil)
//	req.Args.AddUint64(1234)
//	err := proto.WriteRequest(conn, req)
//
// ReadResponse parses responses from wire format:
//
//	resp, err := proto.ReadResponse(bufio.NewReader(conn))
//	if err != nil {
//	    if proto.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// The protocol is strictly request-then-response over a single stream: a
// command must be fully written and its response fully consumed before the
// next command is sent. Enforcing that ordering is the caller's job; this
// package only translates bytes.
package proto
