package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vscp-protocol/vscp-go/pkg/bus"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// fakePort is an in-memory Port for testing.
type fakePort struct {
	mu        sync.Mutex
	sent      []wire.Frame
	rx        chan wire.Frame
	connected bool
	sendErr   error
}

func newFakePort() *fakePort {
	return &fakePort{rx: make(chan wire.Frame, 64), connected: true}
}

func (p *fakePort) Send(f wire.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, f)
	return nil
}

func (p *fakePort) Receive() <-chan wire.Frame { return p.rx }

func (p *fakePort) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePort) sentFrames() []wire.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wire.Frame(nil), p.sent...)
}

func probeEvent(target uint8) wire.Event {
	return wire.Event{
		Priority: wire.PriorityHighest,
		Class:    wire.ClassProtocol,
		Type:     wire.TypeProtocolNewNodeOnline,
		Data:     []byte{target},
	}
}

func TestDispatcherSend(t *testing.T) {
	port := newFakePort()
	d := NewDispatcher(port, "cap", trace.NoopLogger{}, nil)

	if err := d.Send(probeEvent(5)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sent := port.sentFrames()
	if len(sent) != 1 {
		t.Fatalf("sent frames: got %d, want 1", len(sent))
	}
	e, err := wire.Decode(sent[0])
	if err != nil {
		t.Fatalf("sent frame does not decode: %v", err)
	}
	if e.Type != wire.TypeProtocolNewNodeOnline || e.Data[0] != 5 {
		t.Errorf("wrong frame on the wire: %+v", e)
	}
}

func TestDispatcherSendGroupKeepsOrder(t *testing.T) {
	port := newFakePort()
	d := NewDispatcher(port, "cap", trace.NoopLogger{}, nil)

	events := []wire.Event{probeEvent(1), probeEvent(2), probeEvent(3)}
	if err := d.SendGroup(events); err != nil {
		t.Fatalf("SendGroup failed: %v", err)
	}

	sent := port.sentFrames()
	if len(sent) != 3 {
		t.Fatalf("sent frames: got %d, want 3", len(sent))
	}
	for i, f := range sent {
		if f.Data[0] != byte(i+1) {
			t.Errorf("frame %d: got target %d, want %d", i, f.Data[0], i+1)
		}
	}
}

func TestDispatcherRejectsDisconnectedPort(t *testing.T) {
	port := newFakePort()
	port.connected = false
	d := NewDispatcher(port, "cap", trace.NoopLogger{}, nil)

	if err := d.Send(probeEvent(1)); !errors.Is(err, ErrPortDown) {
		t.Errorf("got %v, want ErrPortDown", err)
	}
}

func TestDispatcherPropagatesEncodeError(t *testing.T) {
	port := newFakePort()
	d := NewDispatcher(port, "cap", trace.NoopLogger{}, nil)

	bad := wire.Event{Class: 512}
	if err := d.Send(bad); !errors.Is(err, wire.ErrClassRange) {
		t.Errorf("got %v, want ErrClassRange", err)
	}
	if len(port.sentFrames()) != 0 {
		t.Error("frame reached the port despite encode failure")
	}
}

func TestPumpPublishesDecodedEvents(t *testing.T) {
	port := newFakePort()
	b := bus.New(16, nil)
	pump := NewPump(port, b, "cap", trace.NoopLogger{}, nil, nil)
	pump.Start()

	sub := b.Subscribe()
	defer sub.Cancel()

	f, _ := wire.Encode(wire.Event{
		Class:  wire.ClassProtocol,
		Type:   wire.TypeProtocolProbeAck,
		NodeID: 7,
	})
	port.rx <- f

	select {
	case e := <-sub.Events():
		if e.NodeID != 7 || e.Type != wire.TypeProtocolProbeAck {
			t.Errorf("wrong event published: %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("event timestamp was not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
}

func TestPumpSurvivesDecodeErrors(t *testing.T) {
	port := newFakePort()
	b := bus.New(16, nil)
	pump := NewPump(port, b, "cap", trace.NoopLogger{}, nil, nil)
	pump.Start()

	sub := b.Subscribe()
	defer sub.Cancel()

	// A standard frame is not a Level I event and must be skipped.
	port.rx <- wire.Frame{ID: 0x123, Extended: false}

	good, _ := wire.Encode(wire.Event{Class: wire.ClassProtocol, Type: wire.TypeProtocolProbeAck, NodeID: 9})
	port.rx <- good

	select {
	case e := <-sub.Events():
		if e.NodeID != 9 {
			t.Errorf("wrong event published: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("pump stopped after a decode error")
	}

	if got := pump.DecodeErrors(); got != 1 {
		t.Errorf("DecodeErrors: got %d, want 1", got)
	}
}

func TestPumpSignalsTransportLoss(t *testing.T) {
	port := newFakePort()
	b := bus.New(16, nil)

	downCh := make(chan struct{})
	pump := NewPump(port, b, "cap", trace.NoopLogger{}, nil, func() { close(downCh) })
	pump.Start()

	sub := b.Subscribe()

	close(port.rx)

	select {
	case <-pump.Done():
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on receive channel close")
	}
	select {
	case <-downCh:
	case <-time.After(time.Second):
		t.Fatal("onDown was not called")
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("bus subscription still open after transport loss")
	}
}
