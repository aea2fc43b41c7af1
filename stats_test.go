package beanstalk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// okResponse frames a YAML payload the way the server does for the
// stats and list commands.
func okResponse(body string) string {
	return fmt.Sprintf("OK %d\r\n%s\r\n", len(body), body)
}

func TestStatsJob(t *testing.T) {
	body := "---\nid: 42\ntube: emails\nstate: reserved\npri: 1024\nage: 12\ndelay: 0\nttr: 60\ntime-left: 55\nfile: 3\nreserves: 2\ntimeouts: 0\nreleases: 1\nburies: 0\nkicks: 0\n"
	c, mock := newTestClient(t, Config{}, okResponse(body))

	stats, err := c.StatsJob(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "stats-job 42\r\n", mock.WrittenRequests())

	assert.Equal(t, uint64(42), stats.ID)
	assert.Equal(t, "emails", stats.Tube)
	assert.Equal(t, "reserved", stats.State)
	assert.Equal(t, uint32(1024), stats.Priority)
	assert.Equal(t, int64(55), stats.TimeLeft)
	assert.Equal(t, uint64(2), stats.Reserves)
	assert.Equal(t, uint64(1), stats.Releases)
}

func TestStatsJobNotFound(t *testing.T) {
	c, _ := newTestClient(t, Config{}, "NOT_FOUND\r\n")

	_, err := c.StatsJob(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, c.conn.IsClosed())
}

func TestStatsTube(t *testing.T) {
	body := "---\nname: emails\ncurrent-jobs-urgent: 0\ncurrent-jobs-ready: 5\ncurrent-jobs-reserved: 1\ncurrent-jobs-delayed: 2\ncurrent-jobs-buried: 0\ntotal-jobs: 120\ncurrent-using: 3\ncurrent-watching: 4\ncurrent-waiting: 1\ncmd-delete: 100\ncmd-pause-tube: 1\npause: 0\npause-time-left: 0\n"
	c, mock := newTestClient(t, Config{}, okResponse(body))

	stats, err := c.StatsTube(context.Background(), "emails")
	require.NoError(t, err)
	assert.Equal(t, "stats-tube emails\r\n", mock.WrittenRequests())

	assert.Equal(t, "emails", stats.Name)
	assert.Equal(t, uint64(5), stats.CurrentJobsReady)
	assert.Equal(t, uint64(120), stats.TotalJobs)
	assert.Equal(t, uint64(1), stats.CmdPauseTube)
}

func TestStats(t *testing.T) {
	body := "---\ncurrent-jobs-urgent: 0\ncurrent-jobs-ready: 10\ncmd-put: 500\ncmd-reserve: 480\njob-timeouts: 2\ntotal-jobs: 500\nmax-job-size: 65535\ncurrent-tubes: 3\npid: 1234\nversion: \"1.13\"\nrusage-utime: 0.148125\nrusage-stime: 0.014812\nuptime: 3600\nhostname: queue-1\ndraining: false\n"
	c, mock := newTestClient(t, Config{}, okResponse(body))

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stats\r\n", mock.WrittenRequests())

	assert.Equal(t, uint64(10), stats.CurrentJobsReady)
	assert.Equal(t, uint64(500), stats.CmdPut)
	assert.Equal(t, 65535, stats.MaxJobSize)
	assert.Equal(t, "1.13", stats.Version)
	assert.InDelta(t, 0.148125, stats.RusageUtime, 1e-9)
	assert.Equal(t, int64(3600), stats.Uptime)
	assert.False(t, stats.Draining)
}

func TestStatsIgnoresUnknownKeys(t *testing.T) {
	body := "---\nuptime: 60\nsome-future-key: 7\n"
	c, _ := newTestClient(t, Config{}, okResponse(body))

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(60), stats.Uptime)
}

func TestStatsNotFoundIsUnexpected(t *testing.T) {
	// The server-wide stats command has no NOT_FOUND outcome; receiving
	// one means the stream is out of sync.
	c, mock := newTestClient(t, Config{}, "NOT_FOUND\r\n")

	_, err := c.Stats(context.Background())
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "stats", protoErr.Op)
	assert.True(t, mock.Closed())
}

func TestListTubes(t *testing.T) {
	body := "---\n- default\n- emails\n- imports\n"
	c, mock := newTestClient(t, Config{}, okResponse(body))

	tubes, err := c.ListTubes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "emails", "imports"}, tubes)
	assert.Equal(t, "list-tubes\r\n", mock.WrittenRequests())
}

func TestListTubesWatched(t *testing.T) {
	body := "---\n- default\n"
	c, mock := newTestClient(t, Config{}, okResponse(body))

	tubes, err := c.ListTubesWatched(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, tubes)
	assert.Equal(t, "list-tubes-watched\r\n", mock.WrittenRequests())
}

func TestListTubeUsed(t *testing.T) {
	c, mock := newTestClient(t, Config{}, "USING emails\r\n")

	tube, err := c.ListTubeUsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "emails", tube)
	assert.Equal(t, "list-tube-used\r\n", mock.WrittenRequests())

	// The server's answer refreshes the local mirror.
	assert.Equal(t, "emails", c.Used())
}

func TestStatsMalformedYAMLIsFatal(t *testing.T) {
	c, mock := newTestClient(t, Config{}, okResponse("{:::not yaml"))

	_, err := c.Stats(context.Background())
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.True(t, mock.Closed())

	_, err = c.Stats(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
