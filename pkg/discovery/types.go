package discovery

import (
	"time"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Source records how a node entered the registry.
type Source uint8

const (
	// SourceScan means the node answered an active probe.
	SourceScan Source = 0
	// SourceAnnounce means the node announced itself.
	SourceAnnounce Source = 1
	// SourceHeartbeat means the node was first seen through a heartbeat.
	SourceHeartbeat Source = 2
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceScan:
		return "SCAN"
	case SourceAnnounce:
		return "ANNOUNCE"
	case SourceHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// Node is one registry entry.
type Node struct {
	// ID is the node's nickname.
	ID uint8

	// GUID is the node's globally unique identifier. Zero until the
	// who-is-there exchange resolves it.
	GUID wire.GUID

	// MDF is the module description file URL reported by the node.
	MDF string

	// Hardcoded indicates the node has a fixed nickname.
	Hardcoded bool

	// LastSeen is when the node last produced any evidence of life.
	LastSeen time.Time

	// Source is how the node most recently entered the registry.
	Source Source
}
