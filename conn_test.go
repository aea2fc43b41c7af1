package beanstalk

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koodaamo/beanstalk/internal/testutils"
	"github.com/koodaamo/beanstalk/proto"
)

func deleteRequest(id uint64) *proto.Request {
	req := proto.NewRequest(proto.VerbDelete, nil)
	req.Args.AddUint64(id)
	return req
}

func TestConnRoundTrip(t *testing.T) {
	mock := testutils.NewConnectionMock("DELETED\r\n")
	conn := NewConn(mock, "localhost:11300")

	resp, err := conn.RoundTrip(context.Background(), deleteRequest(1))
	require.NoError(t, err)
	assert.Equal(t, proto.StatusDeleted, resp.Status)
	assert.Equal(t, "delete 1\r\n", mock.WrittenRequests())
}

func TestConnRoundTripSequential(t *testing.T) {
	mock := testutils.NewConnectionMock("DELETED\r\n", "NOT_FOUND\r\n")
	conn := NewConn(mock, "localhost:11300")
	ctx := context.Background()

	resp, err := conn.RoundTrip(ctx, deleteRequest(1))
	require.NoError(t, err)
	assert.Equal(t, proto.StatusDeleted, resp.Status)

	resp, err = conn.RoundTrip(ctx, deleteRequest(2))
	require.NoError(t, err)
	assert.Equal(t, proto.StatusNotFound, resp.Status)

	assert.Equal(t, "delete 1\r\ndelete 2\r\n", mock.WrittenRequests())
}

func TestConnWriteFailureIsFatal(t *testing.T) {
	mock := testutils.NewConnectionMock()
	mock.FailWrites(errors.New("broken pipe"))
	conn := NewConn(mock, "localhost:11300")

	_, err := conn.RoundTrip(context.Background(), deleteRequest(1))
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "delete", connErr.Op)
	assert.True(t, conn.IsClosed())
	assert.True(t, mock.Closed())

	// Subsequent calls fail fast without touching the socket.
	_, err = conn.RoundTrip(context.Background(), deleteRequest(2))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnEOFIsFatal(t *testing.T) {
	// Stream ends before a response line is delivered.
	mock := testutils.NewConnectionMock()
	conn := NewConn(mock, "localhost:11300")

	_, err := conn.RoundTrip(context.Background(), deleteRequest(1))
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, conn.IsClosed())
}

func TestConnParseErrorIsFatal(t *testing.T) {
	mock := testutils.NewConnectionMock("INSERTED notanumber\r\n")
	conn := NewConn(mock, "localhost:11300")

	req := proto.NewRequest(proto.VerbPut, []byte("x"))
	req.Args.AddUint32(0)
	req.Args.AddDurationSeconds(0)
	req.Args.AddDurationSeconds(time.Second)

	_, err := conn.RoundTrip(context.Background(), req)
	var parseErr *proto.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.True(t, conn.IsClosed())

	_, err = conn.RoundTrip(context.Background(), deleteRequest(1))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnServerFailureStatuses(t *testing.T) {
	t.Run("OUT_OF_MEMORY keeps the connection", func(t *testing.T) {
		mock := testutils.NewConnectionMock("OUT_OF_MEMORY\r\n", "DELETED\r\n")
		conn := NewConn(mock, "localhost:11300")

		resp, err := conn.RoundTrip(context.Background(), deleteRequest(1))
		require.NoError(t, err)
		require.True(t, resp.HasError())
		assert.False(t, conn.IsClosed())

		resp, err = conn.RoundTrip(context.Background(), deleteRequest(2))
		require.NoError(t, err)
		assert.Equal(t, proto.StatusDeleted, resp.Status)
	})

	t.Run("INTERNAL_ERROR closes the connection", func(t *testing.T) {
		mock := testutils.NewConnectionMock("INTERNAL_ERROR\r\n")
		conn := NewConn(mock, "localhost:11300")

		resp, err := conn.RoundTrip(context.Background(), deleteRequest(1))
		require.NoError(t, err)
		require.True(t, resp.HasError())
		assert.True(t, conn.IsClosed())
		assert.True(t, mock.Closed())
	})
}

func TestConnCloseIdempotent(t *testing.T) {
	mock := testutils.NewConnectionMock()
	conn := NewConn(mock, "localhost:11300")

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
}

func TestConnContextAlreadyCancelled(t *testing.T) {
	mock := testutils.NewConnectionMock("DELETED\r\n")
	conn := NewConn(mock, "localhost:11300")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.RoundTrip(ctx, deleteRequest(1))
	assert.ErrorIs(t, err, context.Canceled)
	// Nothing was sent, the connection is still usable.
	assert.False(t, conn.IsClosed())
	assert.Empty(t, mock.WrittenRequests())
}

func TestConnCancellationClosesStream(t *testing.T) {
	// A reserve with no job available blocks until the server answers;
	// cancelling the context must close the stream, because the protocol
	// has no way to withdraw a command already sent.
	client, server := net.Pipe()
	defer server.Close()

	conn := NewConn(client, "pipe")

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// Consume the request, then never answer.
		buf := make([]byte, 64)
		server.Read(buf)
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := conn.RoundTrip(ctx, proto.NewRequest(proto.VerbReserve, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, conn.IsClosed())

	_, err = conn.RoundTrip(context.Background(), deleteRequest(1))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnCancelAfterReturnDoesNotPoisonNextCall(t *testing.T) {
	// Cancelling a context right after its round trip completed must not
	// leak a deadline into the next round trip: the cancellation watcher
	// is drained before RoundTrip returns.
	client, server := net.Pipe()
	defer server.Close()

	conn := NewConn(client, "pipe")

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
			if _, err := server.Write([]byte("DELETED\r\n")); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := conn.RoundTrip(ctx, deleteRequest(1))
		cancel()
		require.NoError(t, err)

		_, err = conn.RoundTrip(context.Background(), deleteRequest(2))
		require.NoError(t, err, "iteration %d", i)
	}
}

func TestConnDeadlineFromContext(t *testing.T) {
	// With a context deadline and a silent server, the read fails once
	// the deadline passes instead of blocking forever.
	client, server := net.Pipe()
	defer server.Close()

	conn := NewConn(client, "pipe")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
	}()

	start := time.Now()
	_, err := conn.RoundTrip(ctx, proto.NewRequest(proto.VerbReserve, nil))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, conn.IsClosed())
}
