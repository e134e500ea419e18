// Package logging adapts log/slog to the narrow pipeline.Logger interface.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// Level names accepted by New, matched case-insensitively.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SlogLogger wraps an *slog.Logger to satisfy pipeline.Logger.
type SlogLogger struct {
	l *slog.Logger
}

var _ pipeline.Logger = (*SlogLogger)(nil)

// New builds a text-handler slog.Logger writing to stderr at the given
// level, grounded on glyphoxa's newLogger helper (cmd/glyphoxa's
// config.LogLevel -> slog.Level switch, slog.NewTextHandler(os.Stderr)).
func New(level string) *SlogLogger {
	return &SlogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))}
}

// NewWithHandler wraps a caller-supplied slog.Logger, for tests or callers
// that want JSON output, a different writer, or extra fields attached.
func NewWithHandler(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// With returns a logger with the given key/value pairs attached to every
// subsequent record (e.g. session_id) — useful at Session construction.
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(args...)}
}
