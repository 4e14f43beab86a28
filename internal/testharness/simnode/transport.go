// Package simnode provides an in-memory CAN segment with simulated
// Level I nodes for tests and the console's simulation mode.
//
// The Transport implements transport.Port. Nodes attached to it answer
// the device side of the protocol: probes, who-is-there, extended page
// register access and the boot loader. Fault injection knobs on Node
// drive the failure paths.
package simnode

import (
	"errors"
	"sync"

	"github.com/vscp-protocol/vscp-go/pkg/transport"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// ErrLinkDown is returned by Send after DropLink.
var ErrLinkDown = errors.New("simnode: link is down")

// Transport is an in-memory CAN segment.
type Transport struct {
	mu        sync.Mutex
	rx        chan wire.Frame
	nodes     []*Node
	connected bool
}

// NewTransport creates a connected, empty segment.
func NewTransport() *Transport {
	return &Transport{
		rx:        make(chan wire.Frame, 1024),
		connected: true,
	}
}

// AddNode attaches a node to the segment.
func (t *Transport) AddNode(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.emit = t.Inject
	t.nodes = append(t.nodes, n)
}

// Send delivers a host frame to every node on the segment.
func (t *Transport) Send(f wire.Frame) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return ErrLinkDown
	}
	nodes := append([]*Node(nil), t.nodes...)
	t.mu.Unlock()

	e, err := wire.Decode(f)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		n.Handle(e)
	}
	return nil
}

// Receive returns the host-side receive channel.
func (t *Transport) Receive() <-chan wire.Frame {
	return t.rx
}

// Connected reports whether the link is up.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Inject puts an event on the host's receive path, as if a node had
// sent it. Used by attached nodes and by tests that emit heartbeats.
func (t *Transport) Inject(e wire.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return
	}
	f, err := wire.Encode(e)
	if err != nil {
		return
	}
	select {
	case t.rx <- f:
	default:
		// Full host queue models a lossy controller.
	}
}

// EmitHeartbeats has every attached node emit one heartbeat.
func (t *Transport) EmitHeartbeats() {
	t.mu.Lock()
	nodes := append([]*Node(nil), t.nodes...)
	t.mu.Unlock()
	for _, n := range nodes {
		n.EmitHeartbeat()
	}
}

// InjectFrame puts a raw frame on the host's receive path, bypassing
// the codec. Used to test decode error handling.
func (t *Transport) InjectFrame(f wire.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return
	}
	select {
	case t.rx <- f:
	default:
	}
}

// DropLink simulates losing the adapter: Send starts failing and the
// receive channel closes.
func (t *Transport) DropLink() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return
	}
	t.connected = false
	close(t.rx)
}

// Compile-time interface satisfaction check.
var _ transport.Port = (*Transport)(nil)
