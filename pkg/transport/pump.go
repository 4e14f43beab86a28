package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Pump drains the port's receive channel, decodes frames and publishes
// events to the bus. Exactly one pump runs per port.
type Pump struct {
	port      Port
	bus       *bus.Bus
	logger    trace.Logger
	metrics   *metric.Metrics
	captureID string
	onDown    func()

	decodeErrs atomic.Uint64
	done       chan struct{}
}

// NewPump creates a pump. onDown, if non-nil, is called once after the
// port's receive channel closes and the bus has been shut down.
func NewPump(port Port, b *bus.Bus, captureID string, logger trace.Logger, metrics *metric.Metrics, onDown func()) *Pump {
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	return &Pump{
		port:      port,
		bus:       b,
		logger:    logger,
		metrics:   metrics,
		captureID: captureID,
		onDown:    onDown,
		done:      make(chan struct{}),
	}
}

// Start launches the receive goroutine.
func (p *Pump) Start() {
	go p.run()
}

// Done is closed when the pump has stopped, which happens only on
// transport loss.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// DecodeErrors returns how many received frames failed decoding.
// Undecodable frames are dropped and counted, never fatal.
func (p *Pump) DecodeErrors() uint64 {
	return p.decodeErrs.Load()
}

func (p *Pump) run() {
	for f := range p.port.Receive() {
		p.metrics.FrameReceived()

		e, err := wire.Decode(f)
		if err != nil {
			p.decodeErrs.Add(1)
			p.metrics.DecodeError()
			p.logger.Log(trace.Failure(p.captureID,
				fmt.Sprintf("decode frame id=0x%08X dlc=%d", f.ID, len(f.Data)), err))
			continue
		}

		p.logger.Log(trace.FrameIn(p.captureID, f, e))
		p.bus.Publish(e)
	}

	// Receive channel closed: the link is gone. Closing the bus tells
	// every subscriber.
	p.bus.Close()
	close(p.done)
	if p.onDown != nil {
		p.onDown()
	}
}
