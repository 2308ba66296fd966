package testutil

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log call. Attribute keys inside groups are
// dotted, e.g. "request.method".
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler captures log records so tests can assert on what a
// component logged. Handlers derived through WithAttrs or WithGroup share the
// same sink.
type BufferedSlogHandler struct {
	sink   *logSink
	prefix string
	attrs  map[string]any
	t      testing.TB
}

// NewTestLogger returns a logger backed by a fresh capture handler. Records
// are echoed through t.Logf.
func NewTestLogger(t testing.TB) (*slog.Logger, *BufferedSlogHandler) {
	h := &BufferedSlogHandler{sink: &logSink{}, attrs: map[string]any{}, t: t}
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(attrs, h.prefix, a)
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, LogRecord{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})
	h.sink.mu.Unlock()

	if h.t != nil {
		h.t.Logf("%-5s %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		collect(next.attrs, h.prefix, a)
	}
	return next
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *BufferedSlogHandler) clone() *BufferedSlogHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &BufferedSlogHandler{sink: h.sink, prefix: h.prefix, attrs: attrs, t: h.t}
}

func collect(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			collect(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// GetRecords returns a copy of every captured record in order.
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return slices.Clone(h.sink.records)
}

// GetRecordsByLevel returns the records logged at exactly level.
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	return slices.DeleteFunc(h.GetRecords(), func(r LogRecord) bool { return r.Level != level })
}

// Find returns the first record at level whose message contains substr.
func (h *BufferedSlogHandler) Find(level slog.Level, substr string) (LogRecord, bool) {
	for _, r := range h.GetRecordsByLevel(level) {
		if strings.Contains(r.Message, substr) {
			return r, true
		}
	}
	return LogRecord{}, false
}

func (h *BufferedSlogHandler) Messages() []string {
	records := h.GetRecords()
	msgs := make([]string, len(records))
	for i, r := range records {
		msgs[i] = r.Message
	}
	return msgs
}

// ContainsMessage reports whether any message contains substr.
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	return slices.ContainsFunc(h.Messages(), func(m string) bool { return strings.Contains(m, substr) })
}

// ContainsAttr reports whether any record carries key with exactly value.
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	return slices.ContainsFunc(h.GetRecords(), func(r LogRecord) bool {
		v, ok := r.Attrs[key]
		return ok && v == value
	})
}

func (h *BufferedSlogHandler) Count() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.records)
}
