package trace

// Logger is the interface applications implement to receive capture
// records. Pass NoopLogger to disable capture.
type Logger interface {
	// Log records a capture event. Implementations must be thread-safe.
	// The record should be processed quickly or queued; blocking slows
	// the transport pump.
	Log(rec Record)
}

// NoopLogger discards all records. Use when capture is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the record.
func (NoopLogger) Log(Record) {}

// Tee forwards each record to every logger in the slice, in order. Use
// it to pair a console adapter with a capture file.
type Tee []Logger

// Log forwards the record.
func (t Tee) Log(rec Record) {
	for _, l := range t {
		l.Log(rec)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = Tee(nil)
)
