package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// ErrPortDown is returned when sending on a disconnected port.
var ErrPortDown = errors.New("transport: port is not connected")

// Dispatcher is the serialized outbound path to the port. All senders
// share one dispatcher; a mutex keeps their frames from interleaving
// mid-group.
type Dispatcher struct {
	mu        sync.Mutex
	port      Port
	logger    trace.Logger
	metrics   *metric.Metrics
	captureID string
}

// NewDispatcher creates a dispatcher for the given port. logger may be
// trace.NoopLogger{}; metrics may be nil.
func NewDispatcher(port Port, captureID string, logger trace.Logger, metrics *metric.Metrics) *Dispatcher {
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	return &Dispatcher{
		port:      port,
		logger:    logger,
		metrics:   metrics,
		captureID: captureID,
	}
}

// Send encodes and transmits one event.
func (d *Dispatcher) Send(e wire.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.send(e)
}

// SendGroup transmits several events as a contiguous unit relative to
// other senders. It stops at the first failure.
func (d *Dispatcher) SendGroup(events []wire.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range events {
		if err := d.send(e); err != nil {
			return fmt.Errorf("frame %d of %d: %w", i+1, len(events), err)
		}
	}
	return nil
}

func (d *Dispatcher) send(e wire.Event) error {
	f, err := wire.Encode(e)
	if err != nil {
		return err
	}
	if !d.port.Connected() {
		return ErrPortDown
	}
	if err := d.port.Send(f); err != nil {
		return fmt.Errorf("send %s: %w", wire.Label(e), err)
	}
	d.metrics.FrameSent()
	d.logger.Log(trace.FrameOut(d.captureID, f, e))
	return nil
}
