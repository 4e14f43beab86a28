package transport

import "github.com/vscp-protocol/vscp-go/pkg/wire"

// Port is the minimal contract a CAN backend implements.
type Port interface {
	// Send queues one frame for transmission. It returns an error when
	// the frame cannot be handed to the controller; it never waits for
	// a reply.
	Send(f wire.Frame) error

	// Receive returns the channel of incoming frames. The channel is
	// closed when the link goes down and is never reopened.
	Receive() <-chan wire.Frame

	// Connected reports whether the link is up.
	Connected() bool
}
