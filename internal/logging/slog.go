package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager manages slog-based logging with optional OTel and Graylog sinks.
type SlogManager struct {
	logger *slog.Logger
	level  slog.Level

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
	gelf        *GelfHandler
}

// Sinks are the optional outputs besides the console.
type Sinks struct {
	File     io.Writer
	Provider *sdklog.LoggerProvider
	Gelf     *GelfHandler
	// Context adds dynamic attributes to every record.
	Context ContextProvider
	// Console overrides stdout, mainly for tests.
	Console io.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Nil sinks are skipped.
func (m *SlogManager) Setup(level string, sinks Sinks) {
	m.level = ParseLevel(level)
	m.logProvider = sinks.Provider
	m.gelf = sinks.Gelf

	handlerOpts := &slog.HandlerOptions{
		Level: m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	console := sinks.Console
	if console == nil {
		console = os.Stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}

	if sinks.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(sinks.File, handlerOpts))
	}
	if sinks.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler("tracksim", otelslog.WithLoggerProvider(sinks.Provider)))
	}
	if sinks.Gelf != nil {
		handlers = append(handlers, sinks.Gelf)
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if sinks.Context != nil {
		h = NewContextHandler(h, sinks.Context)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level.String())
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases the Graylog connection.
func (m *SlogManager) Close() error {
	if m.gelf != nil {
		return m.gelf.Close()
	}
	return nil
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), ParseLevel(level), data, "function", functionName)
}
