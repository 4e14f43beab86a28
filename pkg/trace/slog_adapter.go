package trace

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture records to an slog.Logger.
// Useful for development when you want to see bus traffic in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the record to the slog logger at Debug level.
func (a *SlogAdapter) Log(rec Record) {
	attrs := []slog.Attr{
		slog.String("direction", rec.Direction.String()),
		slog.String("kind", rec.Kind.String()),
	}
	if rec.CaptureID != "" {
		attrs = append(attrs, slog.String("capture_id", rec.CaptureID))
	}

	switch {
	case rec.Frame != nil:
		attrs = append(attrs,
			slog.String("label", rec.Frame.Label),
			slog.Uint64("node", uint64(rec.Frame.Node)),
			slog.Uint64("id", uint64(rec.Frame.ID)),
			slog.Int("dlc", len(rec.Frame.Data)),
		)
	case rec.State != nil:
		attrs = append(attrs,
			slog.String("old_state", rec.State.OldState),
			slog.String("new_state", rec.State.NewState),
		)
		if rec.State.SessionID != "" {
			attrs = append(attrs, slog.String("session_id", rec.State.SessionID))
		}
		if rec.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", rec.State.Reason))
		}
	case rec.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", rec.Error.Message),
			slog.String("error_context", rec.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "bus", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
