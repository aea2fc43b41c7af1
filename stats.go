package beanstalk

import (
	"context"

	"gopkg.in/yaml.v2"

	"github.com/koodaamo/beanstalk/proto"
)

// The server answers the stats and list commands with a YAML payload in
// an OK body. Unknown keys are ignored, so these structs stay valid
// across server versions.

// JobStats holds the statistics the server keeps per job.
type JobStats struct {
	ID       uint64 `yaml:"id"`
	Tube     string `yaml:"tube"`
	State    string `yaml:"state"` // "ready", "delayed", "reserved" or "buried"
	Priority uint32 `yaml:"pri"`
	Age      int64  `yaml:"age"`       // seconds since creation
	Delay    int64  `yaml:"delay"`     // seconds of the delay it was put/released with
	TTR      int64  `yaml:"ttr"`       // seconds a reservation of it may last
	TimeLeft int64  `yaml:"time-left"` // seconds until the server acts on the job
	File     int    `yaml:"file"`      // binlog number containing the job
	Reserves uint64 `yaml:"reserves"`
	Timeouts uint64 `yaml:"timeouts"`
	Releases uint64 `yaml:"releases"`
	Buries   uint64 `yaml:"buries"`
	Kicks    uint64 `yaml:"kicks"`
}

// TubeStats holds the statistics the server keeps per tube.
type TubeStats struct {
	Name                string `yaml:"name"`
	CurrentJobsUrgent   uint64 `yaml:"current-jobs-urgent"`
	CurrentJobsReady    uint64 `yaml:"current-jobs-ready"`
	CurrentJobsReserved uint64 `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed  uint64 `yaml:"current-jobs-delayed"`
	CurrentJobsBuried   uint64 `yaml:"current-jobs-buried"`
	TotalJobs           uint64 `yaml:"total-jobs"`
	CurrentUsing        uint64 `yaml:"current-using"`
	CurrentWatching     uint64 `yaml:"current-watching"`
	CurrentWaiting      uint64 `yaml:"current-waiting"`
	CmdDelete           uint64 `yaml:"cmd-delete"`
	CmdPauseTube        uint64 `yaml:"cmd-pause-tube"`
	Pause               int64  `yaml:"pause"`           // seconds the tube was paused for
	PauseTimeLeft       int64  `yaml:"pause-time-left"` // seconds until the tube unpauses
}

// ServerStats holds the server-wide statistics.
type ServerStats struct {
	CurrentJobsUrgent   uint64  `yaml:"current-jobs-urgent"`
	CurrentJobsReady    uint64  `yaml:"current-jobs-ready"`
	CurrentJobsReserved uint64  `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed  uint64  `yaml:"current-jobs-delayed"`
	CurrentJobsBuried   uint64  `yaml:"current-jobs-buried"`
	CmdPut              uint64  `yaml:"cmd-put"`
	CmdReserve          uint64  `yaml:"cmd-reserve"`
	CmdDelete           uint64  `yaml:"cmd-delete"`
	CmdRelease          uint64  `yaml:"cmd-release"`
	CmdBury             uint64  `yaml:"cmd-bury"`
	CmdKick             uint64  `yaml:"cmd-kick"`
	JobTimeouts         uint64  `yaml:"job-timeouts"`
	TotalJobs           uint64  `yaml:"total-jobs"`
	MaxJobSize          int     `yaml:"max-job-size"`
	CurrentTubes        uint64  `yaml:"current-tubes"`
	CurrentConnections  uint64  `yaml:"current-connections"`
	CurrentProducers    uint64  `yaml:"current-producers"`
	CurrentWorkers      uint64  `yaml:"current-workers"`
	CurrentWaiting      uint64  `yaml:"current-waiting"`
	TotalConnections    uint64  `yaml:"total-connections"`
	PID                 int     `yaml:"pid"`
	Version             string  `yaml:"version"`
	RusageUtime         float64 `yaml:"rusage-utime"`
	RusageStime         float64 `yaml:"rusage-stime"`
	Uptime              int64   `yaml:"uptime"`
	Hostname            string  `yaml:"hostname"`
	Draining            bool    `yaml:"draining"`
}

// StatsJob returns the server's statistics for one job.
func (c *Client) StatsJob(ctx context.Context, id uint64) (*JobStats, error) {
	req := proto.NewRequest(proto.VerbStatsJob, nil)
	req.Args.AddUint64(id)

	var stats JobStats
	if err := c.statsCmd(ctx, req, proto.VerbStatsJob, true, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// StatsTube returns the server's statistics for one tube.
func (c *Client) StatsTube(ctx context.Context, tube string) (*TubeStats, error) {
	if err := proto.ValidateTubeName(tube); err != nil {
		return nil, err
	}
	req := proto.NewRequest(proto.VerbStatsTube, nil)
	req.Args.AddName(tube)

	var stats TubeStats
	if err := c.statsCmd(ctx, req, proto.VerbStatsTube, true, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Stats returns the server-wide statistics.
func (c *Client) Stats(ctx context.Context) (*ServerStats, error) {
	var stats ServerStats
	if err := c.statsCmd(ctx, proto.NewRequest(proto.VerbStats, nil), proto.VerbStats, false, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListTubes returns the names of all tubes that currently exist.
func (c *Client) ListTubes(ctx context.Context) ([]string, error) {
	return c.listCmd(ctx, proto.NewRequest(proto.VerbListTubes, nil), proto.VerbListTubes)
}

// ListTubesWatched returns the tubes this client watches, as the server
// sees it.
func (c *Client) ListTubesWatched(ctx context.Context) ([]string, error) {
	return c.listCmd(ctx, proto.NewRequest(proto.VerbListTubesWatched, nil), proto.VerbListTubesWatched)
}

// ListTubeUsed returns the tube this client puts into, as the server
// sees it, and refreshes the local mirror.
func (c *Client) ListTubeUsed(ctx context.Context) (string, error) {
	resp, err := c.roundTrip(ctx, proto.NewRequest(proto.VerbListTubeUsed, nil))
	if err != nil {
		return "", err
	}

	switch resp.Status {
	case proto.StatusUsing:
		c.used = resp.Name
		return resp.Name, nil
	default:
		return "", c.unexpected(proto.VerbListTubeUsed, resp)
	}
}

// statsCmd runs a command answered with OK and a YAML dictionary body,
// decoded into out. notFound is true for the verbs whose expected set
// includes NOT_FOUND.
func (c *Client) statsCmd(ctx context.Context, req *proto.Request, verb proto.Verb, notFound bool, out interface{}) error {
	body, err := c.okBody(ctx, req, verb, notFound)
	if err != nil {
		return err
	}
	return c.decodeYAML(verb, body, out)
}

// listCmd runs a command answered with OK and a YAML list body.
func (c *Client) listCmd(ctx context.Context, req *proto.Request, verb proto.Verb) ([]string, error) {
	body, err := c.okBody(ctx, req, verb, false)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := c.decodeYAML(verb, body, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) okBody(ctx context.Context, req *proto.Request, verb proto.Verb, notFound bool) ([]byte, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Status == proto.StatusOK:
		return resp.Body, nil
	case notFound && resp.Status == proto.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, c.unexpected(verb, resp)
	}
}

// decodeYAML unmarshals an OK body. A payload the client cannot decode
// is treated like any other malformed response: fatal to the connection.
func (c *Client) decodeYAML(verb proto.Verb, body []byte, out interface{}) error {
	if err := yaml.Unmarshal(body, out); err != nil {
		c.conn.Close()
		return &ProtocolError{Op: string(verb), Err: err}
	}
	return nil
}
