package link

// State is the lifecycle position of a Session.
type State int32

const (
	StateSearching State = iota
	StateAttached
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateAttached:
		return "attached"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session outcomes, recorded once when shutdown is first requested.
const (
	OutcomeSentinel          = "sentinel"
	OutcomeDeviceAbsent      = "device_absent"
	OutcomeProtocolViolation = "protocol_violation"
	OutcomeWriteFailure      = "write_failure"
	OutcomeStopped           = "stopped"
)
