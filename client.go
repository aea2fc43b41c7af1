package beanstalk

import (
	"context"
	"errors"
	"net"
	"sort"
	"time"

	"github.com/koodaamo/beanstalk/proto"
)

// Protocol defaults.
const (
	// DefaultTube is the tube every connection starts out using and
	// watching.
	DefaultTube = "default"

	// DefaultPriority is a middle-of-the-road priority (0 is the most
	// urgent).
	DefaultPriority uint32 = 1 << 16

	// DefaultTTR is a reasonable time-to-run for jobs whose processing
	// time is unknown.
	DefaultTTR = 60 * time.Second
)

// Config holds configuration for a Client.
// The zero value is a working configuration.
type Config struct {
	// Dialer is the net.Dialer used to establish the connection.
	// If nil, a default net.Dialer is used.
	Dialer *net.Dialer

	// Use is the tube to use after connecting. Empty means the server
	// default ("default").
	Use string

	// Watch is the set of tubes to watch after connecting. The "default"
	// tube is ignored unless it is included. Empty means the server
	// default (watching only "default").
	Watch []string

	// for testing purposes only
	dial func(ctx context.Context) (net.Conn, error)
}

// Client is the public facade: it owns one Conn, exposes one method per
// protocol verb, and mirrors the session's used tube and watch list.
//
// The mirrors are convenience state for callers; the server is
// authoritative. They are owned exclusively by this Client and never
// shared, so they cannot drift except through this Client's own calls.
//
// A Client is not safe for concurrent use: the protocol allows one
// command in flight per connection, so concurrent callers must serialize
// access themselves.
type Client struct {
	addr   string
	config Config

	conn    *Conn
	used    string
	watched map[string]bool
}

// NewClient returns an unconnected Client for addr ("host:port").
// Call Connect before issuing commands, or use Dial.
func NewClient(addr string, config Config) *Client {
	return &Client{
		addr:    addr,
		config:  config,
		used:    DefaultTube,
		watched: map[string]bool{DefaultTube: true},
	}
}

// Dial connects to the beanstalkd server at addr with a default Config.
func Dial(ctx context.Context, addr string) (*Client, error) {
	return DialConfig(ctx, addr, Config{})
}

// DialConfig connects to the beanstalkd server at addr and applies the
// configured initial tube selection.
func DialConfig(ctx context.Context, addr string, config Config) (*Client, error) {
	c := NewClient(addr, config)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// With connects to addr, runs fn with the connected Client, and closes
// the Client on every exit path.
func With(ctx context.Context, addr string, config Config, fn func(*Client) error) error {
	c, err := DialConfig(ctx, addr, config)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// Connect establishes the connection and applies the Config's initial
// use/watch tubes. Calling Connect on an already connected Client is a
// no-op; a Client whose connection has been closed cannot be reconnected,
// construct a fresh one instead.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		if c.conn.IsClosed() {
			return ErrConnectionClosed
		}
		return nil
	}

	var conn *Conn
	if c.config.dial != nil {
		nc, err := c.config.dial(ctx)
		if err != nil {
			return &ConnError{Op: "dial", Err: err}
		}
		conn = NewConn(nc, c.addr)
	} else {
		var err error
		conn, err = DialConn(ctx, c.addr, c.config.Dialer)
		if err != nil {
			return err
		}
	}
	c.conn = conn

	if err := c.setupTubes(ctx); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}

// setupTubes replays the Config's initial tube selection on a fresh
// connection: use the configured tube, watch the configured tubes, then
// drop "default" from the watch list unless it was asked for.
func (c *Client) setupTubes(ctx context.Context) error {
	if c.config.Use != "" && c.config.Use != DefaultTube {
		if err := c.Use(ctx, c.config.Use); err != nil {
			return err
		}
	}

	if len(c.config.Watch) == 0 {
		return nil
	}

	watchingDefault := false
	for _, tube := range c.config.Watch {
		if tube == DefaultTube {
			watchingDefault = true
		}
		if _, err := c.Watch(ctx, tube); err != nil {
			return err
		}
	}
	if !watchingDefault {
		if _, err := c.Ignore(ctx, DefaultTube); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection. It is safe to call more than once and
// safe to call on a Client that never connected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Used returns the tube this client last selected with Use. This is the
// local mirror; ListTubeUsed asks the server.
func (c *Client) Used() string {
	return c.used
}

// Watched returns the tubes this client watches, as mirrored locally.
// ListTubesWatched asks the server.
func (c *Client) Watched() []string {
	tubes := make([]string, 0, len(c.watched))
	for tube := range c.watched {
		tubes = append(tubes, tube)
	}
	sort.Strings(tubes)
	return tubes
}

// roundTrip sends req and maps server failure statuses into the error
// taxonomy. Per-verb status dispatch stays in the verb methods.
func (c *Client) roundTrip(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	resp, err := c.conn.RoundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.HasError() {
		var failure *proto.ServerFailureError
		if errors.As(resp.Error, &failure) && failure.Status == proto.StatusOutOfMemory {
			return nil, ErrOutOfMemory
		}
		return nil, resp.Error
	}

	return resp, nil
}

// unexpected handles a status word outside the verb's expected set. The
// stream position can no longer be trusted relative to subsequent frames,
// so the connection is closed before returning.
func (c *Client) unexpected(verb proto.Verb, resp *proto.Response) error {
	c.conn.Close()
	return &ProtocolError{Op: string(verb), Status: resp.Status}
}

// Put inserts a job with the given body into the currently used tube and
// returns the job id. pri is the priority (0 is most urgent), delay how
// long the server holds the job before making it ready, and ttr how long
// a reservation of it may last.
//
// If the server is low on memory the job may be stored buried instead of
// ready; the id is then returned together with a *BuriedError.
func (c *Client) Put(ctx context.Context, body []byte, pri uint32, delay, ttr time.Duration) (uint64, error) {
	if body == nil {
		body = []byte{}
	}
	req := proto.NewRequest(proto.VerbPut, body)
	req.Args.AddUint32(pri)
	req.Args.AddDurationSeconds(delay)
	req.Args.AddDurationSeconds(ttr)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return 0, err
	}

	switch resp.Status {
	case proto.StatusInserted:
		return resp.ID, nil
	case proto.StatusBuried:
		return resp.ID, &BuriedError{ID: resp.ID}
	case proto.StatusJobTooBig:
		return 0, ErrJobTooBig
	case proto.StatusDraining:
		return 0, ErrDraining
	case proto.StatusExpectedCRLF:
		c.conn.Close()
		return 0, &ExpectedCRLFError{}
	default:
		return 0, c.unexpected(proto.VerbPut, resp)
	}
}

// Reserve claims the next ready job from a watched tube. It blocks until
// a job is available or ctx is done; cancellation closes the connection,
// since a pending reserve cannot be withdrawn.
func (c *Client) Reserve(ctx context.Context) (*Job, error) {
	return c.reserve(ctx, proto.NewRequest(proto.VerbReserve, nil), proto.VerbReserve)
}

// ReserveWithTimeout is Reserve with a server-side timeout: if no job
// becomes ready within the given time the server answers TIMED_OUT and
// ErrTimedOut is returned. A timeout of 0 reserves a ready job only if
// one is immediately available.
func (c *Client) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*Job, error) {
	req := proto.NewRequest(proto.VerbReserveWithTimeout, nil)
	req.Args.AddDurationSeconds(timeout)
	return c.reserve(ctx, req, proto.VerbReserveWithTimeout)
}

func (c *Client) reserve(ctx context.Context, req *proto.Request, verb proto.Verb) (*Job, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case proto.StatusReserved:
		return &Job{ID: resp.ID, Body: resp.Body}, nil
	case proto.StatusDeadlineSoon:
		return nil, ErrDeadlineSoon
	case proto.StatusTimedOut:
		return nil, ErrTimedOut
	default:
		return nil, c.unexpected(verb, resp)
	}
}

// ReserveJob reserves the job with the given id, regardless of tube or
// state. ErrNotFound is returned if the job does not exist or is already
// reserved.
func (c *Client) ReserveJob(ctx context.Context, id uint64) (*Job, error) {
	req := proto.NewRequest(proto.VerbReserveJob, nil)
	req.Args.AddUint64(id)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case proto.StatusReserved:
		return &Job{ID: resp.ID, Body: resp.Body}, nil
	case proto.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, c.unexpected(proto.VerbReserveJob, resp)
	}
}

// Delete removes a job from the server entirely.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	req := proto.NewRequest(proto.VerbDelete, nil)
	req.Args.AddUint64(id)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusDeleted:
		return nil
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbDelete, resp)
	}
}

// Release puts a job reserved by this client back in the ready queue
// with the given priority, after an optional delay.
func (c *Client) Release(ctx context.Context, id uint64, pri uint32, delay time.Duration) error {
	req := proto.NewRequest(proto.VerbRelease, nil)
	req.Args.AddUint64(id)
	req.Args.AddUint32(pri)
	req.Args.AddDurationSeconds(delay)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusReleased:
		return nil
	case proto.StatusBuried:
		return &BuriedError{}
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbRelease, resp)
	}
}

// Bury moves a job reserved by this client into the holding area, where
// it stays until kicked.
func (c *Client) Bury(ctx context.Context, id uint64, pri uint32) error {
	req := proto.NewRequest(proto.VerbBury, nil)
	req.Args.AddUint64(id)
	req.Args.AddUint32(pri)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusBuried:
		return nil
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbBury, resp)
	}
}

// Touch refreshes the TTR of a job reserved by this client, requesting
// more time to work on it.
func (c *Client) Touch(ctx context.Context, id uint64) error {
	req := proto.NewRequest(proto.VerbTouch, nil)
	req.Args.AddUint64(id)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusTouched:
		return nil
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbTouch, resp)
	}
}

// Use selects the tube subsequent Put commands insert into.
func (c *Client) Use(ctx context.Context, tube string) error {
	if err := proto.ValidateTubeName(tube); err != nil {
		return err
	}
	req := proto.NewRequest(proto.VerbUse, nil)
	req.Args.AddName(tube)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusUsing:
		c.used = resp.Name
		return nil
	default:
		return c.unexpected(proto.VerbUse, resp)
	}
}

// Watch adds a tube to the watch list and returns the number of tubes
// watched.
func (c *Client) Watch(ctx context.Context, tube string) (int, error) {
	if err := proto.ValidateTubeName(tube); err != nil {
		return 0, err
	}
	req := proto.NewRequest(proto.VerbWatch, nil)
	req.Args.AddName(tube)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return 0, err
	}

	switch resp.Status {
	case proto.StatusWatching:
		c.watched[tube] = true
		return int(resp.Count), nil
	default:
		return 0, c.unexpected(proto.VerbWatch, resp)
	}
}

// Ignore removes a tube from the watch list and returns the number of
// tubes still watched. Ignoring the only watched tube returns
// ErrNotIgnored and leaves the watch list unchanged.
func (c *Client) Ignore(ctx context.Context, tube string) (int, error) {
	if err := proto.ValidateTubeName(tube); err != nil {
		return 0, err
	}
	req := proto.NewRequest(proto.VerbIgnore, nil)
	req.Args.AddName(tube)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return 0, err
	}

	switch resp.Status {
	case proto.StatusWatching:
		delete(c.watched, tube)
		return int(resp.Count), nil
	case proto.StatusNotIgnored:
		return 0, ErrNotIgnored
	default:
		return 0, c.unexpected(proto.VerbIgnore, resp)
	}
}

// Peek returns a copy of the job with the given id without reserving it.
func (c *Client) Peek(ctx context.Context, id uint64) (*Job, error) {
	req := proto.NewRequest(proto.VerbPeek, nil)
	req.Args.AddUint64(id)
	return c.peek(ctx, req, proto.VerbPeek)
}

// PeekReady returns the next ready job in the currently used tube.
func (c *Client) PeekReady(ctx context.Context) (*Job, error) {
	return c.peek(ctx, proto.NewRequest(proto.VerbPeekReady, nil), proto.VerbPeekReady)
}

// PeekDelayed returns the delayed job with the shortest remaining delay
// in the currently used tube.
func (c *Client) PeekDelayed(ctx context.Context) (*Job, error) {
	return c.peek(ctx, proto.NewRequest(proto.VerbPeekDelayed, nil), proto.VerbPeekDelayed)
}

// PeekBuried returns the next job in the currently used tube's holding
// area, the one Kick would move first.
func (c *Client) PeekBuried(ctx context.Context) (*Job, error) {
	return c.peek(ctx, proto.NewRequest(proto.VerbPeekBuried, nil), proto.VerbPeekBuried)
}

func (c *Client) peek(ctx context.Context, req *proto.Request, verb proto.Verb) (*Job, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case proto.StatusFound:
		return &Job{ID: resp.ID, Body: resp.Body}, nil
	case proto.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, c.unexpected(verb, resp)
	}
}

// Kick moves up to bound buried jobs in the currently used tube into the
// ready queue, or delayed jobs if there are no buried ones, and returns
// the number of jobs moved.
func (c *Client) Kick(ctx context.Context, bound int) (int, error) {
	req := proto.NewRequest(proto.VerbKick, nil)
	req.Args.AddInt(bound)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return 0, err
	}

	switch resp.Status {
	case proto.StatusKicked:
		return int(resp.Count), nil
	default:
		return 0, c.unexpected(proto.VerbKick, resp)
	}
}

// KickJob moves the buried or delayed job with the given id into the
// ready queue.
func (c *Client) KickJob(ctx context.Context, id uint64) error {
	req := proto.NewRequest(proto.VerbKickJob, nil)
	req.Args.AddUint64(id)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusKicked:
		return nil
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbKickJob, resp)
	}
}

// PauseTube prevents jobs from being reserved from a tube for the given
// duration.
func (c *Client) PauseTube(ctx context.Context, tube string, delay time.Duration) error {
	if err := proto.ValidateTubeName(tube); err != nil {
		return err
	}
	req := proto.NewRequest(proto.VerbPauseTube, nil)
	req.Args.AddName(tube)
	req.Args.AddDurationSeconds(delay)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case proto.StatusPaused:
		return nil
	case proto.StatusNotFound:
		return ErrNotFound
	default:
		return c.unexpected(proto.VerbPauseTube, resp)
	}
}
