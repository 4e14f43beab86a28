package trace

import (
	"time"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Record is one captured engine event.
// CBOR encoding uses integer keys for compactness.
type Record struct {
	// Timestamp when the record was captured (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// CaptureID identifies the engine run (UUID).
	CaptureID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates frame flow. Local for non-frame records.
	Direction Direction `cbor:"3,keyasint"`

	// Kind classifies the record.
	Kind Kind `cbor:"4,keyasint"`

	// Type-specific payload (one of these will be set).
	Frame *FrameRecord `cbor:"5,keyasint,omitempty"` // Bus traffic
	State *StateRecord `cbor:"6,keyasint,omitempty"` // Session state changes
	Error *ErrorRecord `cbor:"7,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates a received frame.
	DirectionIn Direction = 0
	// DirectionOut indicates a sent frame.
	DirectionOut Direction = 1
	// DirectionLocal indicates a record with no wire counterpart.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies the record type.
type Kind uint8

const (
	// KindFrame indicates bus traffic (a sent or received event).
	KindFrame Kind = 0
	// KindState indicates a session or engine state change.
	KindState Kind = 1
	// KindError indicates an error record.
	KindError Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "FRAME"
	case KindState:
		return "STATE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameRecord captures one frame together with its decoded identity.
type FrameRecord struct {
	// ID is the raw 29-bit CAN identifier.
	ID uint32 `cbor:"1,keyasint"`

	// Data is the frame payload.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Class is the decoded event class.
	Class uint16 `cbor:"3,keyasint"`

	// Type is the decoded event type.
	Type uint16 `cbor:"4,keyasint"`

	// Node is the nickname of the sending node.
	Node uint8 `cbor:"5,keyasint"`

	// Label is the dictionary label ("PROTOCOL/PROBE_ACK").
	Label string `cbor:"6,keyasint,omitempty"`
}

// StateRecord captures a session or engine state change.
type StateRecord struct {
	// SessionID identifies the session (UUID), empty for engine-level
	// changes.
	SessionID string `cbor:"1,keyasint,omitempty"`

	// Node is the target node, if any.
	Node uint8 `cbor:"2,keyasint,omitempty"`

	// OldState is the previous state name (may be empty).
	OldState string `cbor:"3,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"4,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// ErrorRecord captures errors at any layer.
type ErrorRecord struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}

// FrameIn builds a record for a received event.
func FrameIn(captureID string, f wire.Frame, e wire.Event) Record {
	return frameRecord(captureID, DirectionIn, f, e)
}

// FrameOut builds a record for a sent event.
func FrameOut(captureID string, f wire.Frame, e wire.Event) Record {
	return frameRecord(captureID, DirectionOut, f, e)
}

func frameRecord(captureID string, dir Direction, f wire.Frame, e wire.Event) Record {
	return Record{
		Timestamp: time.Now(),
		CaptureID: captureID,
		Direction: dir,
		Kind:      KindFrame,
		Frame: &FrameRecord{
			ID:    f.ID,
			Data:  f.Data,
			Class: e.Class,
			Type:  e.Type,
			Node:  e.NodeID,
			Label: wire.Label(e),
		},
	}
}

// StateChange builds a record for a session state transition.
func StateChange(captureID, sessionID string, node uint8, oldState, newState, reason string) Record {
	return Record{
		Timestamp: time.Now(),
		CaptureID: captureID,
		Direction: DirectionLocal,
		Kind:      KindState,
		State: &StateRecord{
			SessionID: sessionID,
			Node:      node,
			OldState:  oldState,
			NewState:  newState,
			Reason:    reason,
		},
	}
}

// Failure builds an error record.
func Failure(captureID, context string, err error) Record {
	return Record{
		Timestamp: time.Now(),
		CaptureID: captureID,
		Direction: DirectionLocal,
		Kind:      KindError,
		Error: &ErrorRecord{
			Message: err.Error(),
			Context: context,
		},
	}
}
