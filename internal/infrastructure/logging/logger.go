package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/mqttmon/internal/infrastructure/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "mqttmon"

// Logger is the structured logger shared by all mqttmon components.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds the process logger.
//
// Entries are written to console, the writer that also carries the
// message stream, unless cfg.Output selects stderr. Every entry carries
// the service name and version.
//
// Parameters:
//   - cfg: Logging configuration (level, format, output)
//   - version: Application version for the default field
//   - console: Destination used when cfg.Output is "stdout" or empty
func New(cfg config.LoggingConfig, version string, console io.Writer) *Logger {
	h := newHandler(cfg.Format, destination(cfg.Output, console), parseLevel(cfg.Level))
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// destination resolves the configured output name to a writer.
func destination(output string, console io.Writer) io.Writer {
	if strings.EqualFold(output, "stderr") || console == nil {
		return os.Stderr
	}
	return console
}

// newHandler picks text for terminals and JSON for everything else.
func newHandler(format string, w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel maps debug, warn/warning and error to their slog levels;
// anything else is info.
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

// With returns a child logger carrying the extra key-value pairs, e.g.
// logger.With("component", "manager").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
