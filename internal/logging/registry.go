package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

const defaultBufferSize = 1000

// Logger is the leveled logging surface handed to components.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Registry owns the sinks and per-module levels for one process.
// The entry point creates it, hands module loggers to components, and
// closes it on shutdown.
type Registry struct {
	mu       sync.RWMutex
	config   Config
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	buffer   *RingBuffer
	callback LogCallback
	stdout   io.Writer
	journal  bool
}

// Option customizes a Registry.
type Option func(*Registry)

// WithOutput redirects the text/json sink. Used by tests.
func WithOutput(w io.Writer) Option {
	return func(r *Registry) { r.stdout = w }
}

// WithoutJournal disables the systemd journal sink even when it is available.
func WithoutJournal() Option {
	return func(r *Registry) { r.journal = false }
}

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = NewRingBuffer(n)
		}
	}
}

// New creates a registry from config.
func New(config Config, opts ...Option) *Registry {
	r := &Registry{
		config:  config,
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
		buffer:  NewRingBuffer(defaultBufferSize),
		journal: journal.Enabled(),
	}
	if isStdoutAvailable() {
		r.stdout = os.Stdout
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the logger for module, creating it on first use.
func (r *Registry) Logger(module string) *slog.Logger {
	r.mu.RLock()
	if l, ok := r.loggers[module]; ok {
		r.mu.RUnlock()
		return l
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[module]; ok {
		return l
	}

	lv := &slog.LevelVar{}
	lv.Set(r.moduleLevel(module))
	l := slog.New(r.handler(lv)).With("module", module)
	r.loggers[module] = l
	r.levels[module] = lv
	return l
}

// Default returns a logger without a module attribute, suitable for slog.SetDefault.
func (r *Registry) Default() *slog.Logger {
	lv := &slog.LevelVar{}
	r.mu.RLock()
	lv.Set(levelOr(r.config.Level, slog.LevelInfo))
	h := r.handler(lv)
	r.mu.RUnlock()
	return slog.New(h)
}

// Apply updates levels of existing and future module loggers in place.
// Format changes only affect loggers created afterwards.
func (r *Registry) Apply(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
	for module, lv := range r.levels {
		lv.Set(r.moduleLevel(module))
	}
}

// SetLevel overrides the level of a single module at runtime.
func (r *Registry) SetLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}
	r.Logger(module)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.Modules == nil {
		r.config.Modules = make(map[string]string)
	}
	r.config.Modules[module] = level
	r.levels[module].Set(*parsed)
	return true
}

// Buffer returns the in-memory log history.
func (r *Registry) Buffer() *RingBuffer {
	return r.buffer
}

// SetCallback registers a function invoked for every buffered entry.
func (r *Registry) SetCallback(cb LogCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = cb
}

// Close detaches the callback. Loggers stay usable but stop publishing.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = nil
}

func (r *Registry) notify(entry LogEntry) {
	r.mu.RLock()
	cb := r.callback
	r.mu.RUnlock()
	if cb != nil {
		cb(entry)
	}
}

// moduleLevel must be called with r.mu held.
func (r *Registry) moduleLevel(module string) slog.Level {
	level := levelOr(r.config.Level, slog.LevelInfo)
	if s, ok := r.config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// handler builds the sink chain: stdout, journal when available, and the ring buffer.
func (r *Registry) handler(level slog.Leveler) slog.Handler {
	handlers := make([]slog.Handler, 0, 3)

	if r.stdout != nil {
		opts := &slog.HandlerOptions{Level: level}
		if r.config.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(r.stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(r.stdout, opts))
		}
	}

	if r.journal {
		handlers = append(handlers, &journalHandler{ident: "webcam", level: level})
	}

	handlers = append(handlers, &bufferHandler{buf: r.buffer, level: level, notify: r.notify})

	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// /dev/null is ModeDevice without ModeCharDevice semantics we care about
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return fallback
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
