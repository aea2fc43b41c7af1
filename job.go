package beanstalk

// Job is a snapshot of a job returned by the server. It carries no
// server-side lifecycle: deleting, releasing or burying the job is done
// through the Client with the job's ID.
type Job struct {
	// ID is the server-assigned job identifier.
	ID uint64

	// Body is the opaque job payload. It is raw bytes; any encoding is
	// an agreement between producers and consumers, not the protocol's.
	Body []byte
}
