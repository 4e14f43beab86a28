package firmware

import "fmt"

// State of an update session.
type State uint8

const (
	// StateIdle is the initial state.
	StateIdle State = 0
	// StateHandshake means boot credentials are being read and the
	// boot loader entered.
	StateHandshake State = 1
	// StateTransferring means blocks are being sent.
	StateTransferring State = 2
	// StateVerifying means the image checksum is being confirmed.
	StateVerifying State = 3
	// StateCompleted is the successful terminal state.
	StateCompleted State = 4
	// StateAborted is the failed terminal state.
	StateAborted State = 5
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateHandshake:
		return "Handshake"
	case StateTransferring:
		return "Transferring"
	case StateVerifying:
		return "Verifying"
	case StateCompleted:
		return "Completed"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// AbortReason classifies why a session aborted.
type AbortReason uint8

const (
	// ReasonNone means no failure.
	ReasonNone AbortReason = 0
	// ReasonHandshakeRefused means the node rejected the boot loader
	// handshake. Nothing was written.
	ReasonHandshakeRefused AbortReason = 1
	// ReasonTimeout means a retry budget ran out waiting for the node.
	ReasonTimeout AbortReason = 2
	// ReasonBlockRejected means a block was refused past its retry
	// budget.
	ReasonBlockRejected AbortReason = 3
	// ReasonChecksumMismatch means the node rejected the final image
	// checksum. Terminal, never retried.
	ReasonChecksumMismatch AbortReason = 4
	// ReasonTooManyBlocks means the image does not fit the node's
	// flash geometry.
	ReasonTooManyBlocks AbortReason = 5
	// ReasonTransportDown means the link was lost mid-session.
	ReasonTransportDown AbortReason = 6
	// ReasonCancelled means the caller cancelled the context.
	ReasonCancelled AbortReason = 7
)

// String returns the reason name.
func (r AbortReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonHandshakeRefused:
		return "HandshakeRefused"
	case ReasonTimeout:
		return "Timeout"
	case ReasonBlockRejected:
		return "BlockRejected"
	case ReasonChecksumMismatch:
		return "ChecksumMismatch"
	case ReasonTooManyBlocks:
		return "TooManyBlocks"
	case ReasonTransportDown:
		return "TransportDown"
	case ReasonCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the terminal failure of an update session.
type Error struct {
	// Node is the target node.
	Node uint8

	// Reason classifies the abort.
	Reason AbortReason

	// Block is the block index being transferred at failure, or -1
	// outside the transfer phase.
	Block int64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("firmware: node %d: %s at block %d", e.Node, e.Reason, e.Block)
	}
	return fmt.Sprintf("firmware: node %d: %s", e.Node, e.Reason)
}

// Progress reports transfer advancement to an observer.
type Progress struct {
	// State is the session state at the time of the report.
	State State

	// Blocks is how many blocks have been programmed.
	Blocks uint32

	// Total is how many blocks the image has.
	Total uint32
}
