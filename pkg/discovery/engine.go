package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/transport"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Default timings. Probes are answered from interrupt context on most
// nodes and come back fast; resolution spans several frames.
const (
	DefaultProbeTimeout    = 250 * time.Millisecond
	DefaultResponseTimeout = 1500 * time.Millisecond
)

// Engine errors.
var (
	// ErrInvalidRange is returned for scan ranges outside 0..253 or
	// with start above stop.
	ErrInvalidRange = errors.New("discovery: invalid nickname range")

	// ErrNicknameRejected is returned when a set-nickname exchange gets
	// no acceptance.
	ErrNicknameRejected = errors.New("discovery: nickname change not accepted")
)

// Config holds the engine's timing and identity parameters.
type Config struct {
	// HostID is the nickname this host uses as event source.
	HostID uint8

	// ProbeTimeout bounds the wait for a probe acknowledgement.
	// A probe is never retried; an unanswered nickname is free.
	ProbeTimeout time.Duration

	// ResponseTimeout bounds resolution and nickname exchanges.
	ResponseTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
}

// Engine performs active scans and passive discovery into a shared
// registry.
type Engine struct {
	bus        *bus.Bus
	dispatcher *transport.Dispatcher
	registry   *Registry
	cfg        Config
	captureID  string
	logger     trace.Logger
	metrics    *metric.Metrics
}

// NewEngine creates a discovery engine. logger may be nil; metrics may
// be nil.
func NewEngine(b *bus.Bus, d *transport.Dispatcher, reg *Registry, cfg Config, captureID string, logger trace.Logger, metrics *metric.Metrics) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	return &Engine{
		bus:        b,
		dispatcher: d,
		registry:   reg,
		cfg:        cfg,
		captureID:  captureID,
		logger:     logger,
		metrics:    metrics,
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scan probes every nickname in [start, stop] and returns the nodes
// that answered, already upserted into the registry. The scan is
// sequential; an unanswered probe costs one probe timeout. Cancelling
// the context stops the scan between probes.
func (e *Engine) Scan(ctx context.Context, start, stop uint8) ([]Node, error) {
	if start > stop || stop > wire.NicknameMax {
		return nil, ErrInvalidRange
	}

	var found []Node
	for id := int(start); id <= int(stop); id++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		nick := uint8(id)
		if nick == e.cfg.HostID {
			continue
		}

		alive, err := e.Probe(ctx, nick)
		if err != nil {
			return found, err
		}
		if !alive {
			continue
		}

		n := e.admit(ctx, nick, SourceScan)
		found = append(found, n)
	}
	return found, nil
}

// Probe sends a single probe to one nickname and reports whether the
// node acknowledged within the probe timeout. Probes are not retried.
func (e *Engine) Probe(ctx context.Context, id uint8) (bool, error) {
	sub := e.bus.Subscribe()
	defer sub.Cancel()

	probe := wire.Event{
		Priority: wire.PriorityHighest,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolNewNodeOnline,
		NodeID:   e.cfg.HostID,
		Data:     []byte{id},
	}
	if err := e.dispatcher.Send(probe); err != nil {
		return false, err
	}

	_, err := sub.Await(ctx, e.cfg.ProbeTimeout, func(ev wire.Event) bool {
		return ev.Class == wire.ClassProtocol &&
			ev.Type == wire.TypeProtocolProbeAck &&
			ev.NodeID == id
	})
	if errors.Is(err, bus.ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Resolve runs the who-is-there exchange against one node and returns
// its GUID and MDF URL.
func (e *Engine) Resolve(ctx context.Context, id uint8) (wire.GUID, string, error) {
	sub := e.bus.Subscribe()
	defer sub.Cancel()

	req := wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolWhoIsThere,
		NodeID:   e.cfg.HostID,
		Data:     []byte{id},
	}
	if err := e.dispatcher.Send(req); err != nil {
		return wire.GUID{}, "", err
	}

	// Each response frame carries a chunk index and 7 payload bytes.
	// The reassembled buffer is the GUID followed by the MDF URL.
	var buf [wire.WhoIsThereChunks * 7]byte
	var seen [wire.WhoIsThereChunks]bool
	remaining := wire.WhoIsThereChunks

	deadline := time.Now().Add(e.cfg.ResponseTimeout)
	for remaining > 0 {
		wait := time.Until(deadline)
		if wait <= 0 {
			return wire.GUID{}, "", bus.ErrTimeout
		}

		ev, err := sub.Await(ctx, wait, func(ev wire.Event) bool {
			return ev.Class == wire.ClassProtocol &&
				ev.Type == wire.TypeProtocolWhoIsThereResponse &&
				ev.NodeID == id &&
				len(ev.Data) == 8 &&
				ev.Data[0] < wire.WhoIsThereChunks
		})
		if err != nil {
			return wire.GUID{}, "", err
		}

		idx := ev.Data[0]
		copy(buf[int(idx)*7:], ev.Data[1:])
		if !seen[idx] {
			seen[idx] = true
			remaining--
		}
	}

	var guid wire.GUID
	copy(guid[:], buf[:16])

	mdf := buf[16:]
	end := len(mdf)
	for i, b := range mdf {
		if b == 0 {
			end = i
			break
		}
	}
	return guid, string(mdf[:end]), nil
}

// Run listens passively for announce and heartbeat events until the
// context is cancelled or the transport goes down. New nodes are
// resolved and inserted; known nodes only have LastSeen refreshed.
func (e *Engine) Run(ctx context.Context) error {
	sub := e.bus.Subscribe()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return bus.ErrClosed
			}
			if src, relevant := classify(ev); relevant && ev.NodeID != e.cfg.HostID {
				e.observe(ctx, ev.NodeID, src)
			}
		}
	}
}

// classify maps an event to a discovery source, if it is one.
func classify(ev wire.Event) (Source, bool) {
	switch {
	case ev.Class == wire.ClassProtocol && ev.Type == wire.TypeProtocolNewNodeOnline:
		return SourceAnnounce, true
	case ev.Class == wire.ClassInformation &&
		(ev.Type == wire.TypeInformationNodeHeartbeat || ev.Type == wire.TypeInformationAlive):
		return SourceHeartbeat, true
	default:
		return 0, false
	}
}

// observe handles one sighting of a node.
func (e *Engine) observe(ctx context.Context, id uint8, src Source) {
	if id > wire.NicknameMax {
		return
	}
	if e.registry.Touch(id) {
		return
	}
	e.admit(ctx, id, src)
}

// admit resolves a newly seen node and upserts it. Resolution failure
// is not fatal: the node is recorded with a pending GUID.
func (e *Engine) admit(ctx context.Context, id uint8, src Source) Node {
	n := Node{ID: id, Source: src, LastSeen: time.Now()}

	guid, mdf, err := e.Resolve(ctx, id)
	if err != nil {
		e.logger.Log(trace.Failure(e.captureID, fmt.Sprintf("resolve node %d", id), err))
	} else {
		n.GUID = guid
		n.MDF = mdf
	}

	e.registry.Upsert(n)
	e.metrics.NodesKnown(e.registry.Len())

	got, _ := e.registry.Get(id)
	return got
}

// SetNickname asks the node at oldID to take newID. The registry entry
// moves on acceptance.
func (e *Engine) SetNickname(ctx context.Context, oldID, newID uint8) error {
	if oldID > wire.NicknameMax || newID > wire.NicknameMax {
		return ErrInvalidRange
	}

	sub := e.bus.Subscribe()
	defer sub.Cancel()

	req := wire.Event{
		Priority: wire.PriorityHighest,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolSetNickname,
		NodeID:   e.cfg.HostID,
		Data:     []byte{oldID, newID},
	}
	if err := e.dispatcher.Send(req); err != nil {
		return err
	}

	_, err := sub.Await(ctx, e.cfg.ResponseTimeout, func(ev wire.Event) bool {
		return ev.Class == wire.ClassProtocol &&
			ev.Type == wire.TypeProtocolNicknameAccepted &&
			(ev.NodeID == oldID || ev.NodeID == newID)
	})
	if errors.Is(err, bus.ErrTimeout) {
		return ErrNicknameRejected
	}
	if err != nil {
		return err
	}

	e.registry.Rename(oldID, newID)
	return nil
}
