package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/config"
	"github.com/vscp-protocol/vscp-go/pkg/discovery"
	"github.com/vscp-protocol/vscp-go/pkg/firmware"
	"github.com/vscp-protocol/vscp-go/pkg/mdf"
	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/registers"
	"github.com/vscp-protocol/vscp-go/pkg/sniffer"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/transport"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Engine errors.
var (
	// ErrSessionBusy is returned when a node already has an active
	// session. Requests are rejected, not queued.
	ErrSessionBusy = errors.New("engine: node busy")

	// ErrClosed is returned for operations on a closed engine.
	ErrClosed = errors.New("engine: closed")

	// ErrNoMDF is returned by Describe when the node is unknown, never
	// announced a description URL, or no mirror is configured.
	ErrNoMDF = errors.New("engine: no module description")
)

// Option customizes an engine.
type Option func(*options)

type options struct {
	logger   trace.Logger
	metrics  *metric.Metrics
	resolver *mdf.Resolver
}

// WithLogger adds a trace logger beside any configured trace file.
func WithLogger(l trace.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics attaches a metrics set.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMDFMirror serves module descriptions for Describe from a local
// mirror directory holding the given domain's files.
func WithMDFMirror(root, domain string) Option {
	return func(o *options) { o.resolver = mdf.NewResolver(root, domain) }
}

// Engine is the composition root of the protocol stack.
type Engine struct {
	cfg       config.Config
	captureID string
	logger    trace.Logger
	metrics   *metric.Metrics

	port       transport.Port
	bus        *bus.Bus
	dispatcher *transport.Dispatcher
	pump       *transport.Pump
	discovery  *discovery.Engine
	regs       *registers.Client
	pipeline   *sniffer.Pipeline
	resolver   *mdf.Resolver

	fileLog *trace.FileLogger

	mu       sync.Mutex
	sessions map[uint8]string
	closed   bool
}

// New builds and starts an engine on a connected port. The receive
// pump runs until the port's receive channel closes.
func New(port transport.Port, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:       cfg,
		captureID: uuid.NewString(),
		metrics:   o.metrics,
		port:      port,
		resolver:  o.resolver,
		sessions:  make(map[uint8]string),
	}

	logger := o.logger
	if cfg.TraceFile != "" {
		fl, err := trace.NewFileLogger(cfg.TraceFile)
		if err != nil {
			return nil, err
		}
		e.fileLog = fl
		if logger != nil {
			logger = trace.Tee{logger, fl}
		} else {
			logger = fl
		}
	}
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	e.logger = logger

	e.bus = bus.New(cfg.QueueCapacity, o.metrics)
	e.dispatcher = transport.NewDispatcher(port, e.captureID, logger, o.metrics)
	e.pump = transport.NewPump(port, e.bus, e.captureID, logger, o.metrics, nil)
	e.discovery = discovery.NewEngine(e.bus, e.dispatcher, discovery.NewRegistry(), discovery.Config{
		HostID:          cfg.HostNickname,
		ProbeTimeout:    cfg.ProbeTimeout.Std(),
		ResponseTimeout: cfg.ResponseTimeout.Std(),
	}, e.captureID, logger, o.metrics)
	e.regs = registers.NewClient(e.bus, e.dispatcher, cfg.HostNickname, registers.Config{
		ResponseTimeout: cfg.ResponseTimeout.Std(),
		RetryLimit:      cfg.RetryLimit,
	}, e.captureID, logger, o.metrics)
	e.pipeline = sniffer.NewPipeline(e.bus)

	e.pump.Start()
	return e, nil
}

// CaptureID identifies this engine run in trace records.
func (e *Engine) CaptureID() string {
	return e.captureID
}

// Connected reports whether the port considers the link up.
func (e *Engine) Connected() bool {
	return e.port.Connected()
}

// Done is closed when the transport is lost.
func (e *Engine) Done() <-chan struct{} {
	return e.pump.Done()
}

// DecodeErrors returns how many received frames failed decoding.
func (e *Engine) DecodeErrors() uint64 {
	return e.pump.DecodeErrors()
}

// Scan probes every nickname in [start, stop] and registers the nodes
// that answer.
func (e *Engine) Scan(ctx context.Context, start, stop uint8) ([]discovery.Node, error) {
	return e.discovery.Scan(ctx, start, stop)
}

// Probe checks whether a single nickname is taken.
func (e *Engine) Probe(ctx context.Context, id uint8) (bool, error) {
	return e.discovery.Probe(ctx, id)
}

// Nodes returns the registry contents, ordered by nickname.
func (e *Engine) Nodes() []discovery.Node {
	return e.discovery.Registry().Snapshot()
}

// RunDiscovery listens passively for announcements and heartbeats until
// the context is cancelled or the transport goes down.
func (e *Engine) RunDiscovery(ctx context.Context) error {
	return e.discovery.Run(ctx)
}

// SetNickname moves a node to a new nickname.
func (e *Engine) SetNickname(ctx context.Context, oldID, newID uint8) error {
	return e.discovery.SetNickname(ctx, oldID, newID)
}

// ReadRegisters reads count registers at page:reg from one node. The
// node must have no other active session.
func (e *Engine) ReadRegisters(ctx context.Context, node uint8, page uint16, reg uint8, count int) ([]byte, error) {
	if err := e.acquire(node, "registers"); err != nil {
		return nil, err
	}
	defer e.release(node)
	return e.regs.Read(ctx, node, page, reg, count)
}

// WriteRegisters writes values at page:reg on one node, verified by
// echo and read-back. The node must have no other active session.
func (e *Engine) WriteRegisters(ctx context.Context, node uint8, page uint16, reg uint8, values []byte) error {
	if err := e.acquire(node, "registers"); err != nil {
		return err
	}
	defer e.release(node)
	return e.regs.Write(ctx, node, page, reg, values)
}

// UpdateFirmware programs an image into one node. onProgress may be
// nil. The node must have no other active session.
func (e *Engine) UpdateFirmware(ctx context.Context, node uint8, img *firmware.Image, onProgress func(firmware.Progress)) error {
	if err := e.acquire(node, "firmware"); err != nil {
		return err
	}
	defer e.release(node)

	s := firmware.NewSession(e.bus, e.dispatcher, e.regs, e.cfg.HostNickname, node, firmware.Config{
		ResponseTimeout: e.cfg.ResponseTimeout.Std(),
		BlockAckTimeout: e.cfg.BlockAckTimeout.Std(),
		RetryLimit:      e.cfg.RetryLimit,
	}, e.captureID, e.logger, e.metrics)
	if onProgress != nil {
		s.OnProgress(onProgress)
	}
	return s.Run(ctx, img)
}

// Describe resolves the module description a node announced during
// discovery. Requires a mirror configured with WithMDFMirror.
func (e *Engine) Describe(node uint8) (*mdf.Module, error) {
	if e.resolver == nil {
		return nil, ErrNoMDF
	}
	n, ok := e.discovery.Registry().Get(node)
	if !ok || n.MDF == "" {
		return nil, ErrNoMDF
	}
	return e.resolver.Resolve(n.MDF)
}

// Sniff attaches a tap to the live event stream.
func (e *Engine) Sniff(f sniffer.Filter) *sniffer.Tap {
	return e.pipeline.Attach(f)
}

// SendHostDateTime broadcasts the host's wall clock as an information
// event, the way segment masters synchronize node clocks.
func (e *Engine) SendHostDateTime(zone, subzone uint8) error {
	return e.dispatcher.Send(wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassInformation,
		Type:     wire.TypeInformationDateTime,
		NodeID:   e.cfg.HostNickname,
		Data:     wire.EncodeDateTime(time.Now(), zone, subzone),
	})
}

// Close shuts the engine down. The port itself is the caller's to
// close.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.bus.Close()
	if e.fileLog != nil {
		return e.fileLog.Close()
	}
	return nil
}

// acquire claims the per-node session slot.
func (e *Engine) acquire(node uint8, kind string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if holder, busy := e.sessions[node]; busy {
		return fmt.Errorf("%w: node %d has an active %s session", ErrSessionBusy, node, holder)
	}
	e.sessions[node] = kind
	return nil
}

func (e *Engine) release(node uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, node)
}
