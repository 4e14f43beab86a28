package registers

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/transport"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Defaults.
const (
	DefaultResponseTimeout = 1500 * time.Millisecond
	DefaultRetryLimit      = 3
)

// ErrInvalidRange is returned for empty ranges and ranges that cross
// the page boundary.
var ErrInvalidRange = errors.New("registers: invalid register range")

// Config holds the client's timing parameters.
type Config struct {
	// ResponseTimeout bounds one request/response exchange.
	ResponseTimeout time.Duration

	// RetryLimit is how many times a timed-out exchange is repeated.
	// A transaction sends at most RetryLimit+1 requests.
	RetryLimit int
}

func (c *Config) applyDefaults() {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = DefaultRetryLimit
	}
}

// Client performs register transactions. One client serves any number
// of nodes; per-node exclusivity is the engine's concern.
type Client struct {
	bus        *bus.Bus
	dispatcher *transport.Dispatcher
	hostID     uint8
	cfg        Config
	captureID  string
	logger     trace.Logger
	metrics    *metric.Metrics
}

// NewClient creates a register client. logger may be nil; metrics may
// be nil. A zero Config gets defaults, except RetryLimit 0 which means
// no retries.
func NewClient(b *bus.Bus, d *transport.Dispatcher, hostID uint8, cfg Config, captureID string, logger trace.Logger, metrics *metric.Metrics) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = trace.NoopLogger{}
	}
	return &Client{
		bus:        b,
		dispatcher: d,
		hostID:     hostID,
		cfg:        cfg,
		captureID:  captureID,
		logger:     logger,
		metrics:    metrics,
	}
}

// Read reads count registers starting at page:reg from one node.
func (c *Client) Read(ctx context.Context, node uint8, page uint16, reg uint8, count int) ([]byte, error) {
	if count <= 0 || count > 255 || int(reg)+count > 256 {
		return nil, ErrInvalidRange
	}

	s := c.newSession(node)
	sub := c.bus.Subscribe()
	defer sub.Cancel()

	out, err := s.read(ctx, sub, page, reg, count)
	s.finish(err)
	return out, err
}

// ReadRanges reads several ranges sequentially, failing fast: the first
// failed range aborts the rest.
func (c *Client) ReadRanges(ctx context.Context, node uint8, ranges []Range) ([][]byte, error) {
	out := make([][]byte, 0, len(ranges))
	for _, r := range ranges {
		values, err := c.Read(ctx, node, r.Page, r.Reg, r.Count)
		if err != nil {
			return out, err
		}
		out = append(out, values)
	}
	return out, nil
}

// Write writes values starting at page:reg, verifying both the write
// echo and a read-back of the full range. No partial apply: the first
// failed chunk aborts the rest, and a verify mismatch is terminal.
func (c *Client) Write(ctx context.Context, node uint8, page uint16, reg uint8, values []byte) error {
	if len(values) == 0 || len(values) > 255 || int(reg)+len(values) > 256 {
		return ErrInvalidRange
	}

	s := c.newSession(node)
	sub := c.bus.Subscribe()
	defer sub.Cancel()

	err := s.write(ctx, sub, page, reg, values)
	s.finish(err)
	return err
}

// session carries the state machine of one transaction.
type session struct {
	c     *Client
	id    string
	node  uint8
	state State

	// attempts counts request frames sent, across retries.
	attempts int
}

func (c *Client) newSession(node uint8) *session {
	return &session{
		c:    c,
		id:   uuid.NewString(),
		node: node,
	}
}

// transition records a state change in the capture.
func (s *session) transition(next State, reason string) {
	if s.state == next {
		return
	}
	s.c.logger.Log(trace.StateChange(s.c.captureID, s.id, s.node, s.state.String(), next.String(), reason))
	s.state = next
}

// finish settles the terminal state and the session metrics.
func (s *session) finish(err error) {
	if err == nil {
		s.transition(StateCompleted, "")
		s.c.metrics.SessionCompleted("registers")
		return
	}
	var re *Error
	reason := ""
	if errors.As(err, &re) {
		reason = re.Reason.String()
	}
	s.transition(StateFailed, reason)
	s.c.metrics.SessionFailed("registers", reason)
}

// fail builds the terminal error for this session.
func (s *session) fail(reason Reason) *Error {
	return &Error{Node: s.node, Reason: reason, Attempts: s.attempts}
}

// reasonFor maps wait errors onto session failure reasons.
func (s *session) reasonFor(err error) *Error {
	switch {
	case errors.Is(err, bus.ErrClosed):
		return s.fail(ReasonTransportDown)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return s.fail(ReasonCancelled)
	default:
		return s.fail(ReasonTimeout)
	}
}

// read runs one read transaction with retries.
func (s *session) read(ctx context.Context, sub *bus.Subscription, page uint16, reg uint8, count int) ([]byte, error) {
	req := wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolExtendedPageRead,
		NodeID:   s.c.hostID,
		Data:     []byte{s.node, byte(page >> 8), byte(page), reg, byte(count)},
	}

	for attempt := 0; attempt <= s.c.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			s.transition(StateRetrying, "timeout")
		}
		s.transition(StateRequesting, "")
		s.attempts++
		if err := s.c.dispatcher.Send(req); err != nil {
			return nil, err
		}

		s.transition(StateAwaitingReply, "")
		buf, err := s.collect(ctx, sub, page, reg, count)
		if err == nil {
			return buf, nil
		}
		if errors.Is(err, bus.ErrTimeout) {
			continue
		}
		return nil, s.reasonFor(err)
	}
	return nil, s.fail(ReasonTimeout)
}

// collect gathers the indexed response frames of one read attempt.
func (s *session) collect(ctx context.Context, sub *bus.Subscription, page uint16, reg uint8, count int) ([]byte, error) {
	frames := (count + 3) / 4
	buf := make([]byte, count)
	seen := make([]bool, frames)
	remaining := frames

	deadline := time.Now().Add(s.c.cfg.ResponseTimeout)
	for remaining > 0 {
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, bus.ErrTimeout
		}

		ev, err := sub.Await(ctx, wait, func(ev wire.Event) bool {
			if ev.Class != wire.ClassProtocol ||
				ev.Type != wire.TypeProtocolExtendedPageResponse ||
				ev.NodeID != s.node ||
				len(ev.Data) < 5 {
				return false
			}
			idx := int(ev.Data[0])
			return uint16(ev.Data[1])<<8|uint16(ev.Data[2]) == page &&
				idx < frames &&
				ev.Data[3] == reg+byte(idx*4)
		})
		if err != nil {
			return nil, err
		}

		idx := int(ev.Data[0])
		offset := idx * 4
		chunk := count - offset
		if chunk > 4 {
			chunk = 4
		}
		if len(ev.Data)-4 < chunk {
			// Short frame; let the timeout trigger a retry.
			continue
		}
		copy(buf[offset:offset+chunk], ev.Data[4:4+chunk])
		if !seen[idx] {
			seen[idx] = true
			remaining--
		}
	}
	return buf, nil
}

// write runs one write transaction: chunked writes with echo compare,
// then a verifying read of the whole range.
func (s *session) write(ctx context.Context, sub *bus.Subscription, page uint16, reg uint8, values []byte) error {
	for off := 0; off < len(values); off += 4 {
		end := off + 4
		if end > len(values) {
			end = len(values)
		}
		if err := s.writeChunk(ctx, sub, page, reg+byte(off), values[off:end]); err != nil {
			return err
		}
	}

	// Read-back verification of the full range.
	got, err := s.read(ctx, sub, page, reg, len(values))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, values) {
		return s.fail(ReasonVerifyMismatch)
	}
	return nil
}

// writeChunk writes at most four values and compares the echo. An echo
// that differs from the written values is a verify mismatch and is
// never retried; only silence is.
func (s *session) writeChunk(ctx context.Context, sub *bus.Subscription, page uint16, reg uint8, values []byte) error {
	data := make([]byte, 4+len(values))
	data[0] = s.node
	data[1] = byte(page >> 8)
	data[2] = byte(page)
	data[3] = reg
	copy(data[4:], values)

	req := wire.Event{
		Priority: wire.PriorityNormalLow,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolExtendedPageWrite,
		NodeID:   s.c.hostID,
		Data:     data,
	}

	for attempt := 0; attempt <= s.c.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			s.transition(StateRetrying, "timeout")
		}
		s.transition(StateRequesting, "")
		s.attempts++
		if err := s.c.dispatcher.Send(req); err != nil {
			return err
		}

		s.transition(StateAwaitingReply, "")
		ev, err := sub.Await(ctx, s.c.cfg.ResponseTimeout, func(ev wire.Event) bool {
			return ev.Class == wire.ClassProtocol &&
				ev.Type == wire.TypeProtocolExtendedPageResponse &&
				ev.NodeID == s.node &&
				len(ev.Data) >= 4 &&
				uint16(ev.Data[1])<<8|uint16(ev.Data[2]) == page &&
				ev.Data[3] == reg
		})
		if errors.Is(err, bus.ErrTimeout) {
			continue
		}
		if err != nil {
			return s.reasonFor(err)
		}

		if !bytes.Equal(ev.Data[4:], values) {
			return s.fail(ReasonVerifyMismatch)
		}
		return nil
	}
	return s.fail(ReasonTimeout)
}
