package wire

import (
	"errors"
	"time"
)

// Identifier bit layout. The 29-bit extended identifier packs, from the
// most significant end: priority (3 bits), hardcoded flag (1 bit),
// class (9 bits), type (8 bits), nickname (8 bits).
const (
	priorityShift = 26
	priorityMask  = 0x7
	hardcodedBit  = 1 << 25
	classShift    = 16
	classMask     = 0x1FF
	typeShift     = 8
	typeMask      = 0xFF
	nicknameMask  = 0xFF

	// extendedIDMask covers the full 29-bit identifier space.
	extendedIDMask = 0x1FFFFFFF
)

// MaxDataLen is the maximum event payload a single CAN frame carries.
const MaxDataLen = 8

// Codec errors.
var (
	// ErrNotExtended is returned when a frame does not carry a valid
	// 29-bit extended identifier. Standard 11-bit frames may share the
	// bus but are never Level I events.
	ErrNotExtended = errors.New("wire: frame identifier is not a 29-bit extended identifier")

	// ErrDataTooLong is returned when a payload exceeds 8 bytes.
	ErrDataTooLong = errors.New("wire: data exceeds 8 bytes")

	// ErrClassRange is returned when an event class does not fit the
	// 9-bit identifier field.
	ErrClassRange = errors.New("wire: class exceeds 9 bits")

	// ErrTypeRange is returned when an event type does not fit the
	// 8-bit identifier field.
	ErrTypeRange = errors.New("wire: type exceeds 8 bits")

	// ErrPriorityRange is returned when a priority is above 7.
	ErrPriorityRange = errors.New("wire: priority exceeds 7")
)

// Decode converts a raw CAN frame into an event. The event timestamp is
// assigned here; the wire carries no time information. The frame's data
// is copied, never aliased.
func Decode(f Frame) (Event, error) {
	if !f.Extended || f.ID&^uint32(extendedIDMask) != 0 {
		return Event{}, ErrNotExtended
	}
	if len(f.Data) > MaxDataLen {
		return Event{}, ErrDataTooLong
	}

	e := Event{
		Priority:  Priority(f.ID >> priorityShift & priorityMask),
		Hardcoded: f.ID&hardcodedBit != 0,
		Class:     uint16(f.ID >> classShift & classMask),
		Type:      uint16(f.ID >> typeShift & typeMask),
		NodeID:    uint8(f.ID & nicknameMask),
		Timestamp: time.Now(),
	}
	if len(f.Data) > 0 {
		e.Data = append([]byte(nil), f.Data...)
	}
	return e, nil
}

// Encode converts an event into a raw CAN frame. The event's GUID and
// timestamp are host-side metadata and do not appear on the wire.
func Encode(e Event) (Frame, error) {
	if e.Priority > PriorityLowest {
		return Frame{}, ErrPriorityRange
	}
	if e.Class > classMask {
		return Frame{}, ErrClassRange
	}
	if e.Type > typeMask {
		return Frame{}, ErrTypeRange
	}
	if len(e.Data) > MaxDataLen {
		return Frame{}, ErrDataTooLong
	}

	id := uint32(e.Priority)<<priorityShift |
		uint32(e.Class)<<classShift |
		uint32(e.Type)<<typeShift |
		uint32(e.NodeID)
	if e.Hardcoded {
		id |= hardcodedBit
	}

	f := Frame{ID: id, Extended: true}
	if len(e.Data) > 0 {
		f.Data = append([]byte(nil), e.Data...)
	}
	return f, nil
}
