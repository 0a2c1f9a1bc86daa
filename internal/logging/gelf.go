package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
)

// MessageWriter is the part of gelf.Writer the handler uses.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GelfHandler ships records to Graylog as GELF messages.
type GelfHandler struct {
	w        MessageWriter
	closer   func() error
	host     string
	facility string
	level    slog.Leveler

	// fields holds attributes bound with WithAttrs, already qualified.
	fields map[string]any
	group  string
}

// NewGelfHandler dials the Graylog UDP input at addr.
func NewGelfHandler(addr, facility string, level slog.Leveler) (*GelfHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	h := newGelfHandler(w, facility, level)
	h.closer = w.Close
	return h, nil
}

func newGelfHandler(w MessageWriter, facility string, level slog.Leveler) *GelfHandler {
	host, _ := os.Hostname()
	return &GelfHandler{
		w:        w,
		closer:   func() error { return nil },
		host:     host,
		facility: facility,
		level:    level,
	}
}

func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		extra[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addExtra(extra, h.group, a)
		return true
	})

	short, full := r.Message, ""
	if i := strings.IndexByte(r.Message, '\n'); i >= 0 {
		short, full = r.Message[:i], r.Message
	}

	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    short,
		Full:     full,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	})
}

func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.fields = make(map[string]any, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		c.fields[k] = v
	}
	for _, a := range attrs {
		addExtra(c.fields, h.group, a)
	}
	return &c
}

func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "."
	}
	c.group += name
	return &c
}

// Close closes the underlying connection.
func (h *GelfHandler) Close() error {
	return h.closer()
}

// GELF additional fields are prefixed with an underscore.
func addExtra(extra map[string]any, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, sub := range a.Value.Group() {
			addExtra(extra, key, sub)
		}
		return
	}
	if key == "" {
		return
	}
	switch a.Value.Kind() {
	case slog.KindString, slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool:
		extra["_"+key] = a.Value.Any()
	default:
		extra["_"+key] = a.Value.String()
	}
}

func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
