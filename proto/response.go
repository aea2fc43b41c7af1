package proto

// Response represents a parsed protocol response. This is a low-level
// container for response data without parsing logic. Fields map directly
// to protocol elements; which fields are meaningful depends on Status.
type Response struct {
	// Status is the first token of the response line: INSERTED,
	// RESERVED, NOT_FOUND, ...
	Status Status

	// ID is the job id for INSERTED, RESERVED, FOUND and put's BURIED.
	ID uint64

	// Count is the watch-list size for WATCHING and the number of jobs
	// moved for kick's KICKED.
	Count uint64

	// Name is the tube name for USING.
	Name string

	// Body is the job body (RESERVED, FOUND) or the YAML payload (OK).
	Body []byte

	// Error is set for the failure statuses the server may emit in place
	// of any reply: OUT_OF_MEMORY, INTERNAL_ERROR, BAD_FORMAT,
	// UNKNOWN_COMMAND. When Error is set, the other fields are zero.
	Error error
}

// HasBody returns true if the response status carries a body.
func (r *Response) HasBody() bool {
	switch r.Status {
	case StatusReserved, StatusFound, StatusOK:
		return true
	default:
		return false
	}
}

// HasError returns true if the response is one of the server failure
// statuses.
func (r *Response) HasError() bool {
	return r.Error != nil
}
