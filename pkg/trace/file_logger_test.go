package trace

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

func frameEvent(node uint8) (wire.Frame, wire.Event) {
	e := wire.Event{
		Class:  wire.ClassProtocol,
		Type:   wire.TypeProtocolProbeAck,
		NodeID: node,
	}
	f, _ := wire.Encode(e)
	return f, e
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	f, e := frameEvent(42)
	rec := FrameIn("cap-123", f, e)
	logger.Log(rec)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("capture file is empty")
	}

	decoded, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}

	if decoded.CaptureID != "cap-123" {
		t.Errorf("CaptureID: got %q, want %q", decoded.CaptureID, "cap-123")
	}
	if decoded.Direction != DirectionIn {
		t.Errorf("Direction: got %v, want IN", decoded.Direction)
	}
	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Node != 42 {
		t.Errorf("Frame.Node: got %d, want 42", decoded.Frame.Node)
	}
	if decoded.Frame.Label != "PROTOCOL/PROBE_ACK" {
		t.Errorf("Frame.Label: got %q, want %q", decoded.Frame.Label, "PROTOCOL/PROBE_ACK")
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vlog")

	f, e := frameEvent(1)

	logger1, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger1.Log(FrameIn("cap-1", f, e))
	logger1.Close()

	logger2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger second open failed: %v", err)
	}
	logger2.Log(FrameOut("cap-2", f, e))
	logger2.Close()

	recs := readAll(t, path)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].CaptureID != "cap-1" {
		t.Errorf("first record CaptureID: got %q, want %q", recs[0].CaptureID, "cap-1")
	}
	if recs[1].CaptureID != "cap-2" {
		t.Errorf("second record CaptureID: got %q, want %q", recs[1].CaptureID, "cap-2")
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	const numGoroutines = 10
	const recsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			f, e := frameEvent(uint8(id))
			for j := 0; j < recsPerGoroutine; j++ {
				logger.Log(FrameIn("cap", f, e))
			}
		}(i)
	}

	wg.Wait()
	logger.Close()

	count := len(readAll(t, path))
	if want := numGoroutines * recsPerGoroutine; count != want {
		t.Errorf("record count: got %d, want %d", count, want)
	}
}

// readAll drains a capture file through Reader.
func readAll(t *testing.T, path string) []Record {
	t.Helper()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		recs = append(recs, rec)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	f, e := frameEvent(1)
	logger.Log(FrameIn("cap", f, e))

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close should not panic.
	logger.Log(FrameIn("cap", f, e))
}

func TestStateChangeRoundTrip(t *testing.T) {
	rec := StateChange("cap", "sess-1", 7, "Transferring", "Aborted", "block rejected")

	data, err := rec.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord failed: %v", err)
	}

	if decoded.State == nil {
		t.Fatal("State is nil")
	}
	if decoded.State.NewState != "Aborted" || decoded.State.Reason != "block rejected" {
		t.Errorf("state record mismatch: %+v", decoded.State)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("Timestamp did not round-trip")
	}
}
