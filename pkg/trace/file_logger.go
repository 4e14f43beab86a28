package trace

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends capture records to a .vlog file, one CBOR item per
// record. Safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	f      *os.File
	enc    *cbor.Encoder
	closed bool
}

// NewFileLogger opens path for appending, creating it (0644) when it
// does not exist. Records from several engine runs may share one file;
// Reader tells them apart by capture id.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{f: f, enc: captureEnc().NewEncoder(f)}, nil
}

// Log appends one record. Write errors are swallowed; capture never
// disrupts the engine.
func (l *FileLogger) Log(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.enc.Encode(rec)
}

// Close closes the capture file. Records logged afterwards are
// discarded. Safe to call more than once.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
