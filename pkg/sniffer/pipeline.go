package sniffer

import (
	"sync"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Tagged is an event paired with its decoded label.
type Tagged struct {
	// Event is the event as seen on the bus.
	Event wire.Event

	// Label is the class/type name, with numeric fallbacks for
	// identifiers outside the dictionary.
	Label string
}

// Pipeline attaches sniffer taps to a bus.
type Pipeline struct {
	bus *bus.Bus
}

// NewPipeline creates a pipeline on a bus.
func NewPipeline(b *bus.Bus) *Pipeline {
	return &Pipeline{bus: b}
}

// Attach starts a tap delivering events that pass the filter. Close the
// tap to detach.
func (p *Pipeline) Attach(f Filter) *Tap {
	t := &Tap{
		sub:  p.bus.Subscribe(),
		out:  make(chan Tagged, bus.DefaultCapacity),
		done: make(chan struct{}),
	}
	go t.run(f)
	return t
}

// Tap is one attached sniffer. Its channel closes when the tap is
// closed or the bus shuts down.
type Tap struct {
	sub  *bus.Subscription
	out  chan Tagged
	done chan struct{}
	once sync.Once
}

// Events returns the tagged event stream.
func (t *Tap) Events() <-chan Tagged {
	return t.out
}

// Dropped returns how many events this tap lost to backpressure.
func (t *Tap) Dropped() uint64 {
	return t.sub.Dropped()
}

// Close detaches the tap. Idempotent.
func (t *Tap) Close() {
	t.once.Do(func() {
		close(t.done)
		t.sub.Cancel()
	})
}

func (t *Tap) run(f Filter) {
	defer close(t.out)
	for {
		select {
		case ev, ok := <-t.sub.Events():
			if !ok {
				return
			}
			if !f.Matches(ev) {
				continue
			}
			select {
			case t.out <- Tagged{Event: ev, Label: wire.Label(ev)}:
			case <-t.done:
				return
			}
		case <-t.done:
			return
		}
	}
}
