// Package engine composes the protocol stack behind one transport port.
//
// The engine owns the receive pump, the event bus, the serialized
// dispatcher, the node registry and the session clients, and exposes
// the operations a controller needs: scanning, register access,
// firmware updates, nickname management and sniffing.
//
// Each node carries at most one active session at a time; a second
// request against a busy node is rejected with ErrSessionBusy rather
// than queued. Transport loss ends every running session and the
// engine as a whole; there is no automatic reconnect.
package engine
