package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides structured logging for the service layer.
// The args follow slog conventions: alternating key/value pairs.
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Options selects the output format and level of New.
type Options struct {
	JSON  bool
	Debug bool
}

// New builds the process logger. Production deployments get JSON lines,
// everything else gets the human-readable text handler.
func New(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h)
}

// Component returns a child logger tagged with the component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With("component", name)
}

// For tags any Logger with a component name. Loggers that cannot carry
// attributes are returned unchanged.
func For(l Logger, name string) Logger {
	if l == nil {
		return NewNopLogger()
	}
	if sl, ok := l.(*slog.Logger); ok {
		return Component(sl, name)
	}
	return l
}
