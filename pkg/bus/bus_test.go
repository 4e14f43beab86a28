package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vscp-protocol/vscp-go/pkg/metric"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

func event(node uint8, typ uint16) wire.Event {
	return wire.Event{Class: wire.ClassProtocol, Type: typ, NodeID: node}
}

func TestDeliveryPreservesPublishOrder(t *testing.T) {
	b := New(16, nil)
	sub := b.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 10; i++ {
		b.Publish(event(uint8(i), 0))
	}

	for i := 0; i < 10; i++ {
		select {
		case e := <-sub.Events():
			if e.NodeID != uint8(i) {
				t.Fatalf("event %d: got node %d, want %d", i, e.NodeID, i)
			}
		default:
			t.Fatalf("event %d missing", i)
		}
	}
}

func TestIndependentSubscriberQueues(t *testing.T) {
	b := New(16, nil)
	a := b.Subscribe()
	defer a.Cancel()
	c := b.Subscribe()
	defer c.Cancel()

	b.Publish(event(1, 0))

	if got := len(a.Events()); got != 1 {
		t.Errorf("subscriber a queue: got %d, want 1", got)
	}
	if got := len(c.Events()); got != 1 {
		t.Errorf("subscriber c queue: got %d, want 1", got)
	}
}

func TestOverflowDropsOldestAndCounts(t *testing.T) {
	b := New(4, nil)
	sub := b.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 6; i++ {
		b.Publish(event(uint8(i), 0))
	}

	if got := sub.Dropped(); got != 2 {
		t.Errorf("Dropped: got %d, want 2", got)
	}

	// The two oldest events (nodes 0 and 1) were discarded.
	want := []uint8{2, 3, 4, 5}
	for i, w := range want {
		e := <-sub.Events()
		if e.NodeID != w {
			t.Errorf("event %d: got node %d, want %d", i, e.NodeID, w)
		}
	}
}

func TestOverflowFeedsDropCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := New(2, metric.New(reg))
	sub := b.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 10; i++ {
		b.Publish(event(uint8(i), 0))
	}

	if got := sub.Dropped(); got != 8 {
		t.Errorf("Dropped: got %d, want 8", got)
	}
	if got := counterValue(t, reg, "vscp_bus_drops_total"); got != 8 {
		t.Errorf("vscp_bus_drops_total: got %v, want 8", got)
	}
}

// counterValue reads a registered counter's current value.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("counter %s not registered", name)
	return 0
}

func TestOverflowDoesNotAffectOtherSubscribers(t *testing.T) {
	b := New(4, nil)
	slow := b.Subscribe()
	defer slow.Cancel()
	fast := b.Subscribe()
	defer fast.Cancel()

	done := make(chan struct{})
	var got []uint8
	go func() {
		defer close(done)
		for e := range fast.Events() {
			got = append(got, e.NodeID)
		}
	}()

	for i := 0; i < 20; i++ {
		b.Publish(event(uint8(i), 0))
		time.Sleep(time.Millisecond)
	}
	b.Close()
	<-done

	if len(got) != 20 {
		t.Fatalf("fast subscriber: got %d events, want 20", len(got))
	}
	for i, n := range got {
		if n != uint8(i) {
			t.Fatalf("fast subscriber event %d: got node %d, want %d", i, n, i)
		}
	}
	if slow.Dropped() == 0 {
		t.Error("slow subscriber dropped nothing, expected overflow")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New(4, nil)
	sub := b.Subscribe()
	sub.Cancel()

	if _, ok := <-sub.Events(); ok {
		t.Error("channel still open after Cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(event(1, 0))

	// Double cancel must not panic.
	sub.Cancel()
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := New(4, nil)
	a := b.Subscribe()
	c := b.Subscribe()

	b.Close()

	if _, ok := <-a.Events(); ok {
		t.Error("subscriber a still open after Close")
	}
	if _, ok := <-c.Events(); ok {
		t.Error("subscriber c still open after Close")
	}

	// A subscription taken after Close is born closed.
	late := b.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Error("late subscription open on a closed bus")
	}
}

func TestAwaitMatches(t *testing.T) {
	b := New(16, nil)
	sub := b.Subscribe()
	defer sub.Cancel()

	go func() {
		b.Publish(event(1, wire.TypeProtocolProbeAck))
		b.Publish(event(2, wire.TypeProtocolProbeAck))
	}()

	e, err := sub.Await(context.Background(), time.Second, func(e wire.Event) bool {
		return e.NodeID == 2
	})
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if e.NodeID != 2 {
		t.Errorf("got node %d, want 2", e.NodeID)
	}
}

func TestAwaitTimeout(t *testing.T) {
	b := New(16, nil)
	sub := b.Subscribe()
	defer sub.Cancel()

	_, err := sub.Await(context.Background(), 10*time.Millisecond, func(wire.Event) bool {
		return true
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestAwaitClosed(t *testing.T) {
	b := New(16, nil)
	sub := b.Subscribe()

	go b.Close()

	_, err := sub.Await(context.Background(), time.Second, func(wire.Event) bool {
		return true
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestAwaitContextCancelled(t *testing.T) {
	b := New(16, nil)
	sub := b.Subscribe()
	defer sub.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sub.Await(ctx, time.Second, func(wire.Event) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
