// Package trace provides protocol capture for the engine.
//
// This package defines the Logger interface and Record types for
// capturing bus traffic and session state changes. It is separate from
// operational logging (slog) - a capture provides a complete
// machine-readable record of everything the engine sent, received and
// decided, for debugging and offline analysis.
//
// # Basic Usage
//
// Components take a Logger; pass NoopLogger to disable capture:
//
//	// For development: mirror records to console via slog
//	logger := trace.NewSlogAdapter(slog.Default())
//
//	// For captures: write to a binary file
//	logger, _ := trace.NewFileLogger("session.vlog")
//
//	// Both: use a Tee
//	logger := trace.Tee{
//	    trace.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	}
//
// # File Format
//
// Capture files are a CBOR stream of Record values with integer keys,
// conventionally with a .vlog extension. Reader iterates and filters
// them.
package trace
