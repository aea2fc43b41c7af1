package beanstalk

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/koodaamo/beanstalk/proto"
)

// aLongTimeAgo is a non-zero time in the distant past, used to force
// pending socket reads to fail when a context is cancelled.
var aLongTimeAgo = time.Unix(1, 0)

// Conn owns a single duplex byte stream to a beanstalkd server and
// provides ordered send-then-receive-one-response semantics. The mutex
// makes the request/response pair atomic: there is never more than one
// command in flight, which is what keeps response parsing unambiguous.
type Conn struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	closed bool
}

// NewConn returns a Conn using nc for I/O.
func NewConn(nc net.Conn, addr string) *Conn {
	return &Conn{
		addr:   addr,
		conn:   nc,
		reader: bufio.NewReader(nc),
		writer: bufio.NewWriter(nc),
	}
}

// DialConn establishes a connection to addr ("host:port") using dialer.
// A nil dialer uses a default net.Dialer.
func DialConn(ctx context.Context, addr string, dialer *net.Dialer) (*Conn, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnError{Op: "dial", Err: err}
	}
	log.Debugf("beanstalk: connected to %s", addr)
	return NewConn(nc, addr), nil
}

// Addr returns the remote address the Conn was dialed with.
func (c *Conn) Addr() string {
	return c.addr
}

// IsClosed returns whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the underlying stream. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.markClosed()
	return c.conn.Close()
}

// markClosed marks the connection as closed (must be called with lock held).
func (c *Conn) markClosed() {
	c.closed = true
}

// fail closes the stream after a fatal error (must be called with lock
// held). Subsequent calls fail fast without attempting I/O.
func (c *Conn) fail(op string, err error) {
	c.markClosed()
	c.conn.Close()
	log.WithError(err).Debugf("beanstalk: closing connection to %s after fatal %s error", c.addr, op)
}

// RoundTrip writes req and reads exactly one response. It blocks until
// the server replies, which for reserve may be indefinitely; cancel ctx
// to give up, which closes the stream, since the protocol has no way to
// abort a command already sent.
//
// Failure statuses that do not corrupt the stream (OUT_OF_MEMORY) are
// returned in Response.Error with the connection left open; every other
// error closes the connection.
func (c *Conn) RoundTrip(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := string(req.Verb)

	if c.closed {
		return nil, ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	// Unblock a pending read if ctx is cancelled mid-flight. The watcher
	// must be fully drained before returning: a late SetDeadline from a
	// leftover watcher would poison the next round trip.
	if ctx.Done() != nil {
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			select {
			case <-ctx.Done():
				c.conn.SetDeadline(aLongTimeAgo)
			case <-stop:
			}
		}()
		defer func() {
			close(stop)
			<-done
		}()
	}

	if err := proto.WriteRequest(c.writer, req); err != nil {
		return nil, c.sendErr(ctx, op, err)
	}

	resp, err := proto.ReadResponse(c.reader)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.fail(op, ctxErr)
			return nil, ctxErr
		}
		var parseErr *proto.ParseError
		if errors.As(err, &parseErr) {
			c.fail(op, err)
			return nil, err
		}
		c.fail(op, err)
		return nil, &ConnError{Op: op, Err: err}
	}

	if resp.HasError() && proto.ShouldCloseConnection(resp.Error) {
		c.fail(op, resp.Error)
	}

	return resp, nil
}

// sendErr handles a write-path failure. A partially written frame cannot
// be recovered, so every send failure is fatal.
func (c *Conn) sendErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.fail(op, ctxErr)
		return ctxErr
	}
	c.fail(op, err)
	return &ConnError{Op: op, Err: err}
}
