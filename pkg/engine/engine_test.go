package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vscp-protocol/vscp-go/internal/testharness/simnode"
	"github.com/vscp-protocol/vscp-go/pkg/config"
	"github.com/vscp-protocol/vscp-go/pkg/firmware"
	"github.com/vscp-protocol/vscp-go/pkg/registers"
	"github.com/vscp-protocol/vscp-go/pkg/sniffer"
	"github.com/vscp-protocol/vscp-go/pkg/trace"
	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ProbeTimeout = config.Duration(50 * time.Millisecond)
	cfg.ResponseTimeout = config.Duration(100 * time.Millisecond)
	cfg.BlockAckTimeout = config.Duration(200 * time.Millisecond)
	cfg.RetryLimit = 1
	return cfg
}

func newEngine(t *testing.T, nodes ...*simnode.Node) (*Engine, *simnode.Transport) {
	t.Helper()

	tr := simnode.NewTransport()
	for _, n := range nodes {
		tr.AddNode(n)
	}

	e, err := New(tr, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, tr
}

func TestScanThenRead(t *testing.T) {
	n := simnode.NewNode(2)
	n.SetRegister(0, 0x10, 0x42)
	e, _ := newEngine(t, n)

	found, err := e.Scan(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != 2 {
		t.Fatalf("found %+v, want node 2", found)
	}
	if nodes := e.Nodes(); len(nodes) != 1 || nodes[0].GUID != n.GUID {
		t.Errorf("registry: got %+v", nodes)
	}

	got, err := e.ReadRegisters(context.Background(), 2, 0, 0x10, 1)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	if got[0] != 0x42 {
		t.Errorf("got %v, want [0x42]", got)
	}
}

func TestBusyNodeRejectsSecondSession(t *testing.T) {
	n := simnode.NewNode(2)
	n.DropPageReads = 100 // first session runs into its retry budget
	e, _ := newEngine(t, n)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := e.ReadRegisters(context.Background(), 2, 0, 0, 1)
		done <- err
	}()

	<-started
	time.Sleep(20 * time.Millisecond)

	if _, err := e.ReadRegisters(context.Background(), 2, 0, 0, 1); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("second session: got %v, want ErrSessionBusy", err)
	}

	if err := <-done; err == nil {
		t.Error("first session unexpectedly succeeded")
	}

	// The slot frees once the first session ends.
	n.DropPageReads = 0
	n.SetRegister(0, 0, 7)
	if _, err := e.ReadRegisters(context.Background(), 2, 0, 0, 1); err != nil {
		t.Errorf("read after release failed: %v", err)
	}
}

func TestDistinctNodesRunConcurrently(t *testing.T) {
	n2 := simnode.NewNode(2)
	n4 := simnode.NewNode(4)
	n2.SetRegister(0, 0, 2)
	n4.SetRegister(0, 0, 4)
	e, _ := newEngine(t, n2, n4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = e.ReadRegisters(context.Background(), 2, 0, 0, 1) }()
	go func() { defer wg.Done(); _, errs[1] = e.ReadRegisters(context.Background(), 4, 0, 0, 1) }()
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Errorf("concurrent reads failed: %v, %v", errs[0], errs[1])
	}
}

func TestUpdateFirmware(t *testing.T) {
	n := simnode.NewNode(2)
	e, _ := newEngine(t, n)

	img, err := firmware.NewImage(bytes.Repeat([]byte{0xAA}, 20))
	if err != nil {
		t.Fatal(err)
	}

	var last firmware.Progress
	if err := e.UpdateFirmware(context.Background(), 2, img, func(p firmware.Progress) { last = p }); err != nil {
		t.Fatalf("UpdateFirmware failed: %v", err)
	}
	if last.State != firmware.StateCompleted {
		t.Errorf("final progress state: got %v", last.State)
	}
	if got, want := n.ProgrammedImage(), img.Padded(n.BlockSize); !bytes.Equal(got, want) {
		t.Errorf("programmed image mismatch")
	}
}

func TestTransportLossEndsSessions(t *testing.T) {
	n := simnode.NewNode(2)
	n.DropPageReads = 100
	e, tr := newEngine(t, n)

	done := make(chan error, 1)
	go func() {
		_, err := e.ReadRegisters(context.Background(), 2, 0, 0, 1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tr.DropLink()

	select {
	case err := <-done:
		var re *registers.Error
		if !errors.As(err, &re) || re.Reason != registers.ReasonTransportDown {
			t.Errorf("got %v, want TransportDown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after transport loss")
	}

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after transport loss")
	}
	if e.Connected() {
		t.Error("Connected still true after transport loss")
	}
}

func TestSniffSeesNodeTraffic(t *testing.T) {
	n := simnode.NewNode(7)
	e, _ := newEngine(t, n)

	tap := e.Sniff(sniffer.Filter{Classes: []uint16{wire.ClassProtocol}})
	defer tap.Close()

	n.Announce()

	select {
	case ev := <-tap.Events():
		if ev.Label != "PROTOCOL/NEW_NODE_ONLINE" {
			t.Errorf("label: got %q", ev.Label)
		}
		if ev.Event.NodeID != 7 {
			t.Errorf("node: got %d, want 7", ev.Event.NodeID)
		}
	case <-time.After(time.Second):
		t.Fatal("tap saw nothing")
	}
}

func TestDescribeUsesTheMirror(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "mdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	desc := `{"module": {"name": "Sim Node", "buffersize": 8}}`
	if err := os.WriteFile(filepath.Join(root, "mdf", "node.xml"), []byte(desc), 0o644); err != nil {
		t.Fatal(err)
	}

	n := simnode.NewNode(2)
	tr := simnode.NewTransport()
	tr.AddNode(n)

	e, err := New(tr, testConfig(), WithMDFMirror(root, "example.com"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if _, err := e.Scan(context.Background(), 2, 2); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	m, err := e.Describe(2)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if m.Name != "Sim Node" {
		t.Errorf("module name: got %q", m.Name)
	}

	if _, err := e.Describe(9); !errors.Is(err, ErrNoMDF) {
		t.Errorf("unknown node: got %v, want ErrNoMDF", err)
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	recs []trace.Record
}

func (l *recordingLogger) Log(r trace.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, r)
}

func (l *recordingLogger) snapshot() []trace.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]trace.Record(nil), l.recs...)
}

func TestSendHostDateTime(t *testing.T) {
	tr := simnode.NewTransport()
	logger := &recordingLogger{}

	e, err := New(tr, testConfig(), WithLogger(logger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if err := e.SendHostDateTime(1, 2); err != nil {
		t.Fatalf("SendHostDateTime failed: %v", err)
	}

	var sent *trace.Record
	for _, rec := range logger.snapshot() {
		if rec.Kind == trace.KindFrame && rec.Direction == trace.DirectionOut {
			sent = &rec
			break
		}
	}
	if sent == nil || sent.Frame == nil {
		t.Fatal("no outbound frame recorded")
	}
	if sent.Frame.Class != wire.ClassInformation || sent.Frame.Type != wire.TypeInformationDateTime {
		t.Errorf("frame: got class %d type %d", sent.Frame.Class, sent.Frame.Type)
	}
	if when, ok := wire.DecodeDateTime(sent.Frame.Data); !ok || time.Since(when) > time.Minute {
		t.Errorf("payload does not decode to the current time: %v %v", when, ok)
	}
}

func TestClosedEngineRejectsSessions(t *testing.T) {
	n := simnode.NewNode(2)
	e, _ := newEngine(t, n)

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := e.ReadRegisters(context.Background(), 2, 0, 0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
