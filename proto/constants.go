package proto

// Verb represents a protocol command name.
type Verb string

// Status represents the first token of a response line.
type Status string

// Protocol delimiters.
const (
	// CRLF is the line terminator for the beanstalkd protocol.
	CRLF = "\r\n"

	// Space separates command tokens.
	Space = " "
)

// Limits enforced by the codec.
const (
	// MaxTubeNameLength is the longest tube name the server accepts.
	MaxTubeNameLength = 200

	// MaxBodySize caps the declared length of a response body. A peer
	// declaring more than this is treated as misbehaving rather than
	// allocating an arbitrarily large buffer.
	MaxBodySize = 1 << 26
)

// Command verbs.
const (
	VerbPut                Verb = "put"
	VerbUse                Verb = "use"
	VerbReserve            Verb = "reserve"
	VerbReserveWithTimeout Verb = "reserve-with-timeout"
	VerbReserveJob         Verb = "reserve-job"
	VerbDelete             Verb = "delete"
	VerbRelease            Verb = "release"
	VerbBury               Verb = "bury"
	VerbTouch              Verb = "touch"
	VerbWatch              Verb = "watch"
	VerbIgnore             Verb = "ignore"
	VerbPeek               Verb = "peek"
	VerbPeekReady          Verb = "peek-ready"
	VerbPeekDelayed        Verb = "peek-delayed"
	VerbPeekBuried         Verb = "peek-buried"
	VerbKick               Verb = "kick"
	VerbKickJob            Verb = "kick-job"
	VerbStatsJob           Verb = "stats-job"
	VerbStatsTube          Verb = "stats-tube"
	VerbStats              Verb = "stats"
	VerbListTubes          Verb = "list-tubes"
	VerbListTubeUsed       Verb = "list-tube-used"
	VerbListTubesWatched   Verb = "list-tubes-watched"
	VerbPauseTube          Verb = "pause-tube"
)

// Response status words.
//
// The per-verb mapping from status word to outcome lives in the client;
// the codec only knows which statuses carry which line fields and whether
// a body follows.
const (
	// Statuses carrying a job id.
	StatusInserted Status = "INSERTED" // INSERTED <id>

	// Statuses carrying a job id and a body.
	StatusReserved Status = "RESERVED" // RESERVED <id> <bytes>\r\n<body>
	StatusFound    Status = "FOUND"    // FOUND <id> <bytes>\r\n<body>

	// Status carrying only a body.
	StatusOK Status = "OK" // OK <bytes>\r\n<body>

	// Statuses carrying a count.
	StatusWatching Status = "WATCHING" // WATCHING <count>

	// Status carrying a tube name.
	StatusUsing Status = "USING" // USING <tube>

	// Statuses with optional fields.
	StatusBuried Status = "BURIED" // BURIED [<id>] (id present for put only)
	StatusKicked Status = "KICKED" // KICKED [<count>] (count present for kick only)

	// Bare statuses.
	StatusDeleted      Status = "DELETED"
	StatusReleased     Status = "RELEASED"
	StatusTouched      Status = "TOUCHED"
	StatusPaused       Status = "PAUSED"
	StatusNotFound     Status = "NOT_FOUND"
	StatusNotIgnored   Status = "NOT_IGNORED"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusDeadlineSoon Status = "DEADLINE_SOON"
	StatusExpectedCRLF Status = "EXPECTED_CRLF"
	StatusJobTooBig    Status = "JOB_TOO_BIG"
	StatusDraining     Status = "DRAINING"

	// Failure statuses the server may emit in place of any reply. These
	// are surfaced as Response.Error rather than as a status to match.
	StatusOutOfMemory    Status = "OUT_OF_MEMORY"
	StatusInternalError  Status = "INTERNAL_ERROR"
	StatusBadFormat      Status = "BAD_FORMAT"
	StatusUnknownCommand Status = "UNKNOWN_COMMAND"
)
