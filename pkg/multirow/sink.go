package multirow

import (
	"context"
	"log/slog"
)

// Sink receives diagnostics about caller mistakes and aborted
// transactions. Logging never affects control flow.
type Sink interface {
	Log(ctx context.Context, msg string, attrs ...slog.Attr)
}

// SlogSink writes diagnostics to a slog.Logger at warning level.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a Sink writing to logger, or to slog.Default() when
// logger is nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Log implements Sink.
func (s *SlogSink) Log(ctx context.Context, msg string, attrs ...slog.Attr) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}
