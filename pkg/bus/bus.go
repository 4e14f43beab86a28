package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// DefaultCapacity is the per-subscriber queue capacity used when the
// caller passes a non-positive value. At typical Level I bus rates it
// buffers a few hundred milliseconds of burst.
const DefaultCapacity = 256

// Bus errors.
var (
	// ErrTimeout is returned by Await when no matching event arrives
	// within the deadline.
	ErrTimeout = errors.New("bus: wait timed out")

	// ErrClosed is returned by Await when the subscription channel
	// closes, which happens on cancellation and on transport loss.
	ErrClosed = errors.New("bus: subscription closed")
)

// Bus distributes events to subscribers. Safe for concurrent use,
// though Publish is expected to be called from a single goroutine.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	nextID   uint64
	capacity int
	closed   bool

	metrics *metric.Metrics
}

// New creates a bus whose subscribers get queues of the given capacity.
// Queue overflow is counted on m, which may be nil.
func New(capacity int, m *metric.Metrics) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[uint64]*Subscription),
		capacity: capacity,
		metrics:  m,
	}
}

// Subscribe registers a new subscriber. Events published after this
// call are delivered; there is no replay. The caller must Cancel the
// subscription when done.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		id:  b.nextID,
		bus: b,
		ch:  make(chan wire.Event, b.capacity),
	}
	if b.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Publish delivers an event to every subscriber. It never blocks; full
// subscriber queues drop their oldest unread event instead.
func (b *Bus) Publish(e wire.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		s.deliver(e)
	}
}

// Close closes every subscriber channel and rejects further publishes.
// Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.shutdown()
	}
	b.subs = make(map[uint64]*Subscription)
}

// remove detaches a cancelled subscription.
func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one subscriber's bounded view of the event stream.
type Subscription struct {
	id  uint64
	bus *Bus

	mu     sync.Mutex
	ch     chan wire.Event
	closed bool

	dropped atomic.Uint64
}

// Events returns the subscriber's channel. It is closed on Cancel and
// when the bus shuts down.
func (s *Subscription) Events() <-chan wire.Event {
	return s.ch
}

// Dropped returns how many events were discarded because the queue was
// full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Cancel detaches the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.bus.remove(s.id)
	s.shutdown()
}

// Await consumes events from the subscription until one matches, the
// timeout elapses (ErrTimeout), the context is done, or the channel
// closes (ErrClosed). Non-matching events are discarded; callers that
// need every event should not share a subscription with Await.
func (s *Subscription) Await(ctx context.Context, timeout time.Duration, match func(wire.Event) bool) (wire.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return wire.Event{}, ctx.Err()
		case <-timer.C:
			return wire.Event{}, ErrTimeout
		case e, ok := <-s.ch:
			if !ok {
				return wire.Event{}, ErrClosed
			}
			if match(e) {
				return e, nil
			}
		}
	}
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver enqueues an event, dropping the oldest unread event when the
// queue is full.
func (s *Subscription) deliver(e wire.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- e:
		return
	default:
	}

	// Queue full: make room by discarding the oldest entry. The
	// consumer may race us for it; either way the new event fits.
	select {
	case <-s.ch:
		s.dropped.Add(1)
		s.bus.metrics.BusDrops(1)
	default:
	}
	select {
	case s.ch <- e:
	default:
	}
}
