package trace

import "testing"

type countingLogger struct {
	recs []Record
}

func (c *countingLogger) Log(rec Record) {
	c.recs = append(c.recs, rec)
}

func TestTeeForwardsToEveryLogger(t *testing.T) {
	a := &countingLogger{}
	b := &countingLogger{}
	tee := Tee{a, NoopLogger{}, b}

	f, e := frameEvent(3)
	tee.Log(FrameIn("cap", f, e))
	tee.Log(FrameOut("cap", f, e))

	if len(a.recs) != 2 || len(b.recs) != 2 {
		t.Fatalf("record counts: got %d and %d, want 2 and 2", len(a.recs), len(b.recs))
	}
	if a.recs[0].Direction != DirectionIn || a.recs[1].Direction != DirectionOut {
		t.Errorf("directions not preserved: %v, %v", a.recs[0].Direction, a.recs[1].Direction)
	}
}
