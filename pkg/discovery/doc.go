// Package discovery finds and tracks nodes on the segment.
//
// Two paths feed one registry. An active scan probes a nickname range
// and records every node that acknowledges. A passive listener reacts
// to announce and heartbeat events from nodes that appear on their own.
// Both paths resolve a node's GUID and MDF URL through the who-is-there
// exchange and upsert the same registry entry, so a node discovered
// twice is recorded once.
//
// Registry entries are never removed automatically; staleness is the
// caller's policy, based on LastSeen.
package discovery
