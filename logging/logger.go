// Package logging configures log/slog and adapts it to the printf-style
// logger the export pipeline expects.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

// Setup configures the global slog logger based on level and format and
// returns it. Logs go to stderr so normalized output can go to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// ExportLogger implements export.Logger on top of slog.
type ExportLogger struct {
	Logger *slog.Logger
}

var _ export.Logger = ExportLogger{}

// NewExportLogger adapts logger, or the default logger when nil.
func NewExportLogger(logger *slog.Logger) ExportLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return ExportLogger{Logger: logger}
}

func (l ExportLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, format, args)
}

func (l ExportLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, format, args)
}

func (l ExportLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args)
}

func (l ExportLogger) log(level slog.Level, format string, args []any) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "export")
}

// SkipLogger returns an enrich.SkipFunc compatible hook that logs dropped
// auxiliary lines at debug level.
func SkipLogger(logger *slog.Logger, path string) func(lineNo int, line string, fields []string) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(lineNo int, line string, fields []string) {
		logger.Debug("auxiliary line skipped", "file", path, "line", lineNo, "fields", len(fields))
	}
}
