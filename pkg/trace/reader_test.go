package trace

import (
	"io"
	"path/filepath"
	"testing"
)

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	f1, e1 := frameEvent(1)
	f2, e2 := frameEvent(2)
	logger.Log(FrameIn("cap", f1, e1))
	logger.Log(FrameOut("cap", f2, e2))
	logger.Log(StateChange("cap", "sess", 2, "Idle", "Requesting", ""))
	logger.Close()

	return path
}

func readAllReader(t *testing.T, r *Reader) []Record {
	t.Helper()
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

func TestReaderReadsAll(t *testing.T) {
	path := writeCapture(t)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	if recs := readAllReader(t, r); len(recs) != 3 {
		t.Errorf("record count: got %d, want 3", len(recs))
	}
}

func TestReaderFiltersByDirection(t *testing.T) {
	path := writeCapture(t)

	dir := DirectionOut
	r, err := NewFilteredReader(path, Filter{Direction: &dir})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	recs := readAllReader(t, r)
	if len(recs) != 1 {
		t.Fatalf("record count: got %d, want 1", len(recs))
	}
	if recs[0].Frame == nil || recs[0].Frame.Node != 2 {
		t.Errorf("wrong record selected: %+v", recs[0])
	}
}

func TestReaderFiltersByNode(t *testing.T) {
	path := writeCapture(t)

	node := uint8(2)
	r, err := NewFilteredReader(path, Filter{Node: &node})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	// The outgoing frame to node 2 and the state change for node 2.
	if recs := readAllReader(t, r); len(recs) != 2 {
		t.Errorf("record count: got %d, want 2", len(recs))
	}
}

func TestReaderFiltersByKind(t *testing.T) {
	path := writeCapture(t)

	kind := KindState
	r, err := NewFilteredReader(path, Filter{Kind: &kind})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	recs := readAllReader(t, r)
	if len(recs) != 1 {
		t.Fatalf("record count: got %d, want 1", len(recs))
	}
	if recs[0].State == nil || recs[0].State.NewState != "Requesting" {
		t.Errorf("wrong record selected: %+v", recs[0])
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.vlog")); err == nil {
		t.Error("NewReader succeeded on a missing file")
	}
}
