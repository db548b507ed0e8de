// Package logger wraps log/slog with the configuration and redaction
// behavior used across the service.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a Logger.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewDefault creates a JSON logger at info level.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: "json", Output: os.Stdout})
}

// NewDevelopment creates a text logger at debug level.
func NewDevelopment() *Logger {
	return New(Config{Level: "debug", Format: "text", Output: os.Stdout})
}

// NewNop creates a logger that discards all output. Useful in tests.
func NewNop() *Logger {
	return New(Config{Level: "error", Format: "json", Output: io.Discard})
}

// sensitiveKeys are masked in log output. Upstream tokens and session cookies
// must never reach the logs.
var sensitiveKeys = map[string]bool{
	"password":       true,
	"passwd":         true,
	"secret":         true,
	"token":          true,
	"authorization":  true,
	"bearer":         true,
	"api_key":        true,
	"apikey":         true,
	"cookie":         true,
	"session":        true,
	"credential":     true,
	"credentials":    true,
	"dsn":            true,
	"encryption_key": true,
}

// sanitizeAttr masks sensitive values in log attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	if sensitiveKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}
	for sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError returns a new Logger with the error attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any("error", err))}
}

// SetDefault installs this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextKey types context values shared with the HTTP middleware.
type ContextKey string

// ContextKeyRequestID carries the per-request correlation ID.
const ContextKeyRequestID ContextKey = "request_id"

// WithContext returns a Logger enriched with known context values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	log := l.Logger
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		log = log.With(slog.String("request_id", requestID))
	}
	return &Logger{Logger: log}
}
