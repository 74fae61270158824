package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where structured logs are written.
type Options struct {
	Path    string
	Level   string
	Service string
}

// Setup returns a JSON logger writing to a rotated file. Stdout belongs to the
// chat session, so logs never go there. An empty path discards all records.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, err
	}
	sink := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
	}
	return New(sink, opts.Level, opts.Service), sink, nil
}

// New builds the JSON logger over an arbitrary writer.
func New(w io.Writer, level, service string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})
	logger := slog.New(handler)
	if service = strings.TrimSpace(service); service != "" {
		logger = logger.With(slog.String("service", service))
	}
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger for callers that were not handed one.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
