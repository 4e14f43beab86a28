package wire

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frame is a raw CAN frame as exchanged with a transport port.
type Frame struct {
	// ID is the CAN identifier. Level I events always use the 29-bit
	// extended identifier space.
	ID uint32

	// Extended indicates a 29-bit identifier frame. Standard 11-bit
	// frames are not valid Level I events.
	Extended bool

	// Data is the frame payload (0-8 bytes).
	Data []byte
}

// Event is a decoded VSCP Level I event.
type Event struct {
	// Priority of the event (0 is highest, 7 is lowest).
	Priority Priority

	// Class is the event class (9 bits on the wire).
	Class uint16

	// Type is the event type within the class (8 bits on the wire).
	Type uint16

	// NodeID is the nickname of the sending node.
	NodeID uint8

	// Hardcoded indicates the sender has a fixed nickname.
	Hardcoded bool

	// Data is the event payload (0-8 bytes).
	Data []byte

	// Timestamp is when the event was decoded from the wire.
	Timestamp time.Time
}

// Priority is the event priority encoded in identifier bits 26-28.
// Lower values win CAN bus arbitration.
type Priority uint8

const (
	// PriorityHighest is priority 0.
	PriorityHighest Priority = 0
	// PriorityEvenHigher is priority 1.
	PriorityEvenHigher Priority = 1
	// PriorityHigher is priority 2.
	PriorityHigher Priority = 2
	// PriorityNormalHigh is priority 3.
	PriorityNormalHigh Priority = 3
	// PriorityNormalLow is priority 4.
	PriorityNormalLow Priority = 4
	// PriorityLower is priority 5.
	PriorityLower Priority = 5
	// PriorityEvenLower is priority 6.
	PriorityEvenLower Priority = 6
	// PriorityLowest is priority 7.
	PriorityLowest Priority = 7
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "Highest"
	case PriorityEvenHigher:
		return "Even higher"
	case PriorityHigher:
		return "Higher"
	case PriorityNormalHigh:
		return "Normal high"
	case PriorityNormalLow:
		return "Normal low"
	case PriorityLower:
		return "Lower"
	case PriorityEvenLower:
		return "Even lower"
	case PriorityLowest:
		return "Lowest"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}

// GUID is a 16-byte globally unique node identifier.
// Byte 15 of a node's GUID mirrors its nickname by convention.
type GUID [16]byte

// IsZero reports whether the GUID is all zeros (unresolved).
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// String returns the canonical colon-separated hex form,
// e.g. "FF:FF:FF:FF:FF:FF:FF:F5:00:00:00:00:00:00:00:02".
func (g GUID) String() string {
	parts := make([]string, len(g))
	for i, b := range g {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// ErrInvalidGUID is returned by ParseGUID for malformed input.
var ErrInvalidGUID = errors.New("wire: invalid GUID")

// ParseGUID parses the colon-separated hex form produced by String.
// A bare 32-character hex string is also accepted.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	s = strings.ReplaceAll(s, ":", "")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(g) {
		return GUID{}, ErrInvalidGUID
	}
	copy(g[:], raw)
	return g, nil
}
