package firmware

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/registers"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/transport"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Defaults.
const (
	DefaultResponseTimeout = 1500 * time.Millisecond
	DefaultBlockAckTimeout = 5 * time.Second
	DefaultRetryLimit      = 3
)

// ErrSessionDone is returned when Run is called on a session that has
// already run. Sessions are single use.
var ErrSessionDone = errors.New("firmware: session already run")

// Retryable block failures, resolved into an abort reason once the
// retry budget is spent.
var (
	errBlockRefused  = errors.New("firmware: block refused")
	errBlockChecksum = errors.New("firmware: block checksum mismatch")
)

// Config holds the session's timing parameters.
type Config struct {
	// ResponseTimeout bounds one control exchange.
	ResponseTimeout time.Duration

	// BlockAckTimeout bounds the block checksum and program
	// acknowledgements. Flash writes are slow, so this is longer than
	// ResponseTimeout.
	BlockAckTimeout time.Duration

	// RetryLimit is how many times a failed block transfer is repeated.
	// It also bounds handshake and activation retries on silence.
	RetryLimit int
}

func (c *Config) applyDefaults() {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.BlockAckTimeout <= 0 {
		c.BlockAckTimeout = DefaultBlockAckTimeout
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = DefaultRetryLimit
	}
}

// Session drives one firmware update of one node. Sessions are single
// use: create one per update attempt.
type Session struct {
	bus        *bus.Bus
	dispatcher *transport.Dispatcher
	regs       *registers.Client
	hostID     uint8
	node       uint8
	cfg        Config
	id         string
	captureID  string
	logger     trace.Logger
	metrics    *metric.Metrics

	mu         sync.Mutex
	state      State
	reason     AbortReason
	onProgress func(Progress)
}

// NewSession creates an update session for one node. The register
// client is used to read the boot credentials during the handshake.
// logger may be nil; metrics may be nil.
func NewSession(b *bus.Bus, d *transport.Dispatcher, regs *registers.Client, hostID, node uint8, cfg Config, captureID string, logger trace.Logger, metrics *metric.Metrics) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	return &Session{
		bus:        b,
		dispatcher: d,
		regs:       regs,
		hostID:     hostID,
		node:       node,
		cfg:        cfg,
		id:         uuid.NewString(),
		captureID:  captureID,
		logger:     logger,
		metrics:    metrics,
	}
}

// OnProgress registers a progress observer. Must be called before Run.
func (s *Session) OnProgress(fn func(Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// Status returns the session state and, once aborted, the reason.
func (s *Session) Status() (State, AbortReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.reason
}

// Run performs the update: handshake, block transfer in strictly
// increasing order, then activation of the new image. On any abort the
// node is told to reset, best effort.
func (s *Session) Run(ctx context.Context, img *Image) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionDone
	}
	s.mu.Unlock()

	sub := s.bus.Subscribe()
	defer sub.Cancel()

	err := s.run(ctx, sub, img)
	if err == nil {
		s.setState(StateCompleted, "")
		s.metrics.SessionCompleted("firmware")
		return nil
	}

	var fe *Error
	reason := ReasonNone
	if errors.As(err, &fe) {
		reason = fe.Reason
	}
	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()
	s.setState(StateAborted, reason.String())
	s.metrics.SessionFailed("firmware", reason.String())
	s.notifyAbort()
	return err
}

func (s *Session) run(ctx context.Context, sub *bus.Subscription, img *Image) error {
	s.setState(StateHandshake, "")
	blockSize, blockCount, err := s.handshake(ctx, sub)
	if err != nil {
		return err
	}

	padded := img.Padded(blockSize)
	total := uint32(len(padded)) / blockSize
	if total > blockCount {
		return &Error{Node: s.node, Reason: ReasonTooManyBlocks, Block: -1}
	}

	s.setState(StateTransferring, "")
	for idx := uint32(0); idx < total; idx++ {
		block := padded[idx*blockSize : (idx+1)*blockSize]
		if err := s.sendBlock(ctx, sub, idx, block); err != nil {
			return err
		}
		s.report(Progress{State: StateTransferring, Blocks: idx + 1, Total: total})
	}

	s.setState(StateVerifying, "")
	if err := s.activate(ctx, sub, wire.Crc16(padded)); err != nil {
		return err
	}
	s.report(Progress{State: StateCompleted, Blocks: total, Total: total})
	return nil
}

// handshake reads the boot credentials, enters the boot loader and
// returns the node's flash geometry.
func (s *Session) handshake(ctx context.Context, sub *bus.Subscription) (blockSize, blockCount uint32, err error) {
	// Page select registers 0x92/0x93 and the GUID, all on page 0.
	cred, err := s.regs.ReadRanges(ctx, s.node, []registers.Range{
		{Page: 0, Reg: 0x92, Count: 2},
		{Page: 0, Reg: 0xD0, Count: 8},
	})
	if err != nil {
		return 0, 0, s.mapError(err, -1)
	}
	pages, guid := cred[0], cred[1]

	req := s.protoEvent(wire.TypeProtocolEnterBootLoader, []byte{
		s.node, wire.BootAlgorithmVSCP,
		guid[0], guid[3], guid[5], guid[7],
		pages[0], pages[1],
	})

	for attempt := 0; attempt <= s.cfg.RetryLimit; attempt++ {
		if err := s.dispatcher.Send(req); err != nil {
			return 0, 0, s.mapError(err, -1)
		}

		ev, err := sub.Await(ctx, s.cfg.ResponseTimeout, func(ev wire.Event) bool {
			return ev.Class == wire.ClassProtocol &&
				ev.NodeID == s.node &&
				(ev.Type == wire.TypeProtocolAckBootLoader ||
					ev.Type == wire.TypeProtocolNackBootLoader)
		})
		if errors.Is(err, bus.ErrTimeout) {
			continue
		}
		if err != nil {
			return 0, 0, s.mapError(err, -1)
		}

		if ev.Type == wire.TypeProtocolNackBootLoader || len(ev.Data) < 8 {
			return 0, 0, &Error{Node: s.node, Reason: ReasonHandshakeRefused, Block: -1}
		}
		blockSize = binary.BigEndian.Uint32(ev.Data[0:4])
		blockCount = binary.BigEndian.Uint32(ev.Data[4:8])
		if blockSize == 0 {
			return 0, 0, &Error{Node: s.node, Reason: ReasonHandshakeRefused, Block: -1}
		}
		return blockSize, blockCount, nil
	}
	return 0, 0, &Error{Node: s.node, Reason: ReasonTimeout, Block: -1}
}

// sendBlock transfers one block, retrying the whole block on refusal,
// checksum mismatch or silence until the retry budget is spent.
func (s *Session) sendBlock(ctx context.Context, sub *bus.Subscription, idx uint32, block []byte) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryLimit; attempt++ {
		err := s.transferBlock(ctx, sub, idx, block)
		if err == nil {
			return nil
		}
		if errors.Is(err, errBlockRefused) ||
			errors.Is(err, errBlockChecksum) ||
			errors.Is(err, bus.ErrTimeout) {
			lastErr = err
			continue
		}
		return s.mapError(err, int64(idx))
	}

	switch {
	case errors.Is(lastErr, errBlockRefused):
		return &Error{Node: s.node, Reason: ReasonBlockRejected, Block: int64(idx)}
	case errors.Is(lastErr, errBlockChecksum):
		return &Error{Node: s.node, Reason: ReasonChecksumMismatch, Block: int64(idx)}
	default:
		return &Error{Node: s.node, Reason: ReasonTimeout, Block: int64(idx)}
	}
}

// transferBlock performs one start/stream/checksum/program round for a
// single block. Refusals and checksum mismatches come back as sentinel
// errors so the caller can retry.
func (s *Session) transferBlock(ctx context.Context, sub *bus.Subscription, idx uint32, block []byte) error {
	drain(sub)

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], idx)

	// Starting a block resets the node's chunk buffer, which is what
	// makes whole-block retries safe.
	if err := s.dispatcher.Send(s.protoEvent(wire.TypeProtocolStartBlock, hdr[:])); err != nil {
		return err
	}
	ev, err := sub.Await(ctx, s.cfg.ResponseTimeout, func(ev wire.Event) bool {
		if ev.Class != wire.ClassProtocol || ev.NodeID != s.node {
			return false
		}
		if ev.Type == wire.TypeProtocolStartBlockNack {
			return true
		}
		return ev.Type == wire.TypeProtocolStartBlockAck &&
			len(ev.Data) >= 4 &&
			binary.BigEndian.Uint32(ev.Data) == idx
	})
	if err != nil {
		return err
	}
	if ev.Type == wire.TypeProtocolStartBlockNack {
		return errBlockRefused
	}

	for off := 0; off < len(block); off += wire.MaxDataLen {
		end := off + wire.MaxDataLen
		if end > len(block) {
			end = len(block)
		}
		if err := s.dispatcher.Send(s.protoEvent(wire.TypeProtocolBlockData, block[off:end])); err != nil {
			return err
		}
		ev, err := sub.Await(ctx, s.cfg.ResponseTimeout, func(ev wire.Event) bool {
			return ev.Class == wire.ClassProtocol &&
				ev.NodeID == s.node &&
				(ev.Type == wire.TypeProtocolBlockChunkAck ||
					ev.Type == wire.TypeProtocolBlockChunkNack)
		})
		if err != nil {
			return err
		}
		if ev.Type == wire.TypeProtocolBlockChunkNack {
			return errBlockRefused
		}
	}

	// The node checksums the assembled block and reports back.
	ev, err = sub.Await(ctx, s.cfg.BlockAckTimeout, func(ev wire.Event) bool {
		return ev.Class == wire.ClassProtocol &&
			ev.NodeID == s.node &&
			(ev.Type == wire.TypeProtocolBlockDataAck ||
				ev.Type == wire.TypeProtocolBlockDataNack)
	})
	if err != nil {
		return err
	}
	if ev.Type == wire.TypeProtocolBlockDataNack {
		return errBlockRefused
	}
	if len(ev.Data) < 2 || uint16(ev.Data[0])<<8|uint16(ev.Data[1]) != wire.Crc16(block) {
		return errBlockChecksum
	}

	if err := s.dispatcher.Send(s.protoEvent(wire.TypeProtocolProgramBlockData, hdr[:])); err != nil {
		return err
	}
	ev, err = sub.Await(ctx, s.cfg.BlockAckTimeout, func(ev wire.Event) bool {
		if ev.Class != wire.ClassProtocol || ev.NodeID != s.node {
			return false
		}
		if ev.Type == wire.TypeProtocolProgramBlockDataNack {
			return true
		}
		return ev.Type == wire.TypeProtocolProgramBlockDataAck &&
			len(ev.Data) >= 4 &&
			binary.BigEndian.Uint32(ev.Data) == idx
	})
	if err != nil {
		return err
	}
	if ev.Type == wire.TypeProtocolProgramBlockDataNack {
		return errBlockRefused
	}
	return nil
}

// activate asks the node to take the new image under its checksum. A
// refusal is terminal; the image on the node does not match what was
// sent and resending the same bytes cannot fix that.
func (s *Session) activate(ctx context.Context, sub *bus.Subscription, crc uint16) error {
	req := s.protoEvent(wire.TypeProtocolActivateNewImage, []byte{byte(crc >> 8), byte(crc)})

	for attempt := 0; attempt <= s.cfg.RetryLimit; attempt++ {
		if err := s.dispatcher.Send(req); err != nil {
			return s.mapError(err, -1)
		}

		// Some boot loaders skip the ack and announce themselves after
		// the reboot instead.
		ev, err := sub.Await(ctx, s.cfg.BlockAckTimeout, func(ev wire.Event) bool {
			return ev.Class == wire.ClassProtocol &&
				ev.NodeID == s.node &&
				(ev.Type == wire.TypeProtocolActivateNewImageAck ||
					ev.Type == wire.TypeProtocolActivateNewImageNack ||
					ev.Type == wire.TypeProtocolNewNodeOnline)
		})
		if errors.Is(err, bus.ErrTimeout) {
			continue
		}
		if err != nil {
			return s.mapError(err, -1)
		}
		if ev.Type == wire.TypeProtocolActivateNewImageNack {
			return &Error{Node: s.node, Reason: ReasonChecksumMismatch, Block: -1}
		}
		return nil
	}
	return &Error{Node: s.node, Reason: ReasonTimeout, Block: -1}
}

// notifyAbort tells the node to reset and drop out of the boot loader.
// Best effort: a failure is logged, not returned.
func (s *Session) notifyAbort() {
	ev := s.protoEvent(wire.TypeProtocolDropNickname, []byte{s.node})
	if err := s.dispatcher.Send(ev); err != nil {
		s.logger.Log(trace.Failure(s.captureID, "firmware abort notify", err))
	}
}

func (s *Session) protoEvent(typ uint16, data []byte) wire.Event {
	return wire.Event{
		Priority: wire.PriorityHighest,
		Class:    wire.ClassProtocol,
		Type:     typ,
		NodeID:   s.hostID,
		Data:     data,
	}
}

// setState records a state change in the capture.
func (s *Session) setState(next State, reason string) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	s.logger.Log(trace.StateChange(s.captureID, s.id, s.node, prev.String(), next.String(), reason))
}

func (s *Session) report(p Progress) {
	s.mu.Lock()
	fn := s.onProgress
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// mapError folds register client failures and wait errors into an
// abort.
func (s *Session) mapError(err error, block int64) error {
	var re *registers.Error
	if errors.As(err, &re) {
		switch re.Reason {
		case registers.ReasonTransportDown:
			return &Error{Node: s.node, Reason: ReasonTransportDown, Block: block}
		case registers.ReasonCancelled:
			return &Error{Node: s.node, Reason: ReasonCancelled, Block: block}
		default:
			return &Error{Node: s.node, Reason: ReasonTimeout, Block: block}
		}
	}
	switch {
	case errors.Is(err, bus.ErrClosed), errors.Is(err, transport.ErrPortDown):
		return &Error{Node: s.node, Reason: ReasonTransportDown, Block: block}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Node: s.node, Reason: ReasonCancelled, Block: block}
	default:
		return &Error{Node: s.node, Reason: ReasonTimeout, Block: block}
	}
}

// drain discards frames queued before a block attempt so stale
// acknowledgements cannot satisfy the new attempt.
func drain(sub *bus.Subscription) {
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		default:
			return
		}
	}
}
