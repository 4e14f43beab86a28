package sniffer

import "github.com/vscp-protocol/vscp-go/pkg/wire"

// Filter selects events by node, class, type and priority. All set
// criteria must hold; an unset criterion matches everything, so the
// zero Filter passes every event.
type Filter struct {
	// Nodes limits to events originating from these nicknames.
	Nodes []uint8

	// Classes limits to these event classes.
	Classes []uint16

	// Types limits to these event types.
	Types []uint16

	// Priority limits to events at least this urgent. Priorities are
	// numerically inverted: 0 is the most urgent, 7 the least.
	Priority *wire.Priority
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(e wire.Event) bool {
	if len(f.Nodes) > 0 && !containsUint8(f.Nodes, e.NodeID) {
		return false
	}
	if len(f.Classes) > 0 && !containsUint16(f.Classes, e.Class) {
		return false
	}
	if len(f.Types) > 0 && !containsUint16(f.Types, e.Type) {
		return false
	}
	if f.Priority != nil && e.Priority > *f.Priority {
		return false
	}
	return true
}

func containsUint8(s []uint8, v uint8) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsUint16(s []uint16, v uint16) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
