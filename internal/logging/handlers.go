package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// LogCallback receives every entry written to the ring buffer.
type LogCallback func(entry LogEntry)

// field is an attribute flattened under its group path.
type field struct {
	key   string
	value slog.Value
}

// scope is what WithAttrs and WithGroup accumulate. Attributes are
// flattened when added so later groups do not requalify them.
type scope struct {
	module string
	prefix []string
	fields []field
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	next := scope{module: s.module, prefix: s.prefix, fields: slices.Clone(s.fields)}
	for _, a := range attrs {
		if a.Key == "module" && len(s.prefix) == 0 {
			next.module = a.Value.String()
			continue
		}
		next.fields = flatten(next.fields, s.prefix, a)
	}
	return next
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	return scope{module: s.module, prefix: append(slices.Clone(s.prefix), name), fields: s.fields}
}

// collect returns the module and every field of r, scope fields first.
func (s scope) collect(r slog.Record) (string, []field) {
	module := s.module
	fields := slices.Clone(s.fields)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(s.prefix) == 0 {
			module = a.Value.String()
		} else {
			fields = flatten(fields, s.prefix, a)
		}
		return true
	})
	if module == "" {
		module = "app"
	}
	return module, fields
}

func flatten(dst []field, prefix []string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = append(slices.Clone(prefix), a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = flatten(dst, inner, ga)
		}
		return dst
	}
	key := a.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, field{key: key, value: a.Value})
}

// plain converts v to something encoding/json renders readably.
func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// bufferHandler records entries into a RingBuffer for the logs API.
type bufferHandler struct {
	buf    *RingBuffer
	level  slog.Leveler
	notify LogCallback
	scope  scope
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *bufferHandler) Handle(_ context.Context, r slog.Record) error {
	module, fields := h.scope.collect(r)
	var attrs map[string]any
	if len(fields) > 0 {
		attrs = make(map[string]any, len(fields))
		for _, f := range fields {
			attrs[f.key] = plain(f.value)
		}
	}
	entry := h.buf.Write(LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	})
	if h.notify != nil {
		h.notify(entry)
	}
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.scope = h.scope.withAttrs(attrs)
	return &c
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.scope = h.scope.withGroup(name)
	return &c
}

// journalHandler sends records to the systemd journal with attributes as
// uppercase journal fields.
type journalHandler struct {
	ident string
	level slog.Leveler
	scope scope
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	module, fields := h.scope.collect(r)
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": h.ident,
		"MODULE":            module,
	}
	for _, f := range fields {
		vars[journalKey(f.key)] = journalValue(f.value)
	}
	return journal.Send(r.Message, priority(r.Level), vars)
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.scope = h.scope.withAttrs(attrs)
	return &c
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.scope = h.scope.withGroup(name)
	return &c
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey maps "capture.device" to CAPTURE_DEVICE. Journal field names
// allow only A-Z, 0-9 and underscore, and must not start with an underscore.
func journalKey(key string) string {
	k := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	k = strings.TrimLeft(k, "_")
	if k == "" {
		return "ATTR"
	}
	return k
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	}
	return v.String()
}

// fanout hands each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
