package registers

import "fmt"

// State of a register session.
type State uint8

const (
	// StateIdle is the initial state.
	StateIdle State = 0
	// StateRequesting means a request frame is being sent.
	StateRequesting State = 1
	// StateAwaitingReply means the session waits for response frames.
	StateAwaitingReply State = 2
	// StateRetrying means the last attempt timed out and another is due.
	StateRetrying State = 3
	// StateCompleted is the successful terminal state.
	StateCompleted State = 4
	// StateFailed is the failed terminal state.
	StateFailed State = 5
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequesting:
		return "Requesting"
	case StateAwaitingReply:
		return "AwaitingReply"
	case StateRetrying:
		return "Retrying"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Reason classifies why a session failed.
type Reason uint8

const (
	// ReasonNone means no failure.
	ReasonNone Reason = 0
	// ReasonTimeout means the retry budget ran out without a reply.
	ReasonTimeout Reason = 1
	// ReasonVerifyMismatch means a write did not stick. Terminal,
	// never retried.
	ReasonVerifyMismatch Reason = 2
	// ReasonTransportDown means the link was lost mid-session.
	ReasonTransportDown Reason = 3
	// ReasonCancelled means the caller cancelled the context.
	ReasonCancelled Reason = 4
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonTimeout:
		return "Timeout"
	case ReasonVerifyMismatch:
		return "VerifyMismatch"
	case ReasonTransportDown:
		return "TransportDown"
	case ReasonCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the terminal failure of a register session.
type Error struct {
	// Node is the target node.
	Node uint8

	// Reason classifies the failure.
	Reason Reason

	// Attempts is how many request frames were sent before giving up.
	Attempts int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("registers: node %d: %s after %d attempt(s)", e.Node, e.Reason, e.Attempts)
}

// Range names a contiguous run of registers.
type Range struct {
	// Page selects the register page.
	Page uint16

	// Reg is the first register offset within the page.
	Reg uint8

	// Count is the number of registers, 1..255. The run must not cross
	// the page boundary.
	Count int
}
