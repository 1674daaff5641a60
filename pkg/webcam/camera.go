// Package webcam drives a V4L2 memory-mapped capture device: it negotiates
// input and pixel format, owns a pool of driver buffers mapped into the
// process, and exposes a bounded-wait Grab.
//
// A Camera is single-owner. Grab, Start, Stop and the negotiation methods must
// not be called concurrently; use Runner for a dedicated capture goroutine.
//
//	cam := webcam.New("0", webcam.WithLogger(logger))
//	defer cam.Close()
//
//	if err := cam.Open(false); err != nil { ... }
//	if err := cam.QueryCapability(); err != nil { ... }
//	if err := cam.SetInput(""); err != nil { ... }
//	got, err := cam.SetPixFormat(webcam.FormatMJPEG, 1280, 720)
//	_, _ = cam.SetFps(30)
//	if err := cam.Start(); err != nil { ... }
//	jpeg, err := cam.Grab(webcam.DefaultGrabTimeout)
package webcam

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
)

const devicePrefix = "/dev/video"

// DevicePath maps a numeric identifier to its video node. Anything else is
// returned unchanged.
func DevicePath(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil && n >= 0 {
		return devicePrefix + strconv.Itoa(n)
	}
	return id
}

// Logger is the leveled, structured sink a Camera reports to.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Transform post-processes a captured frame. It must not retain raw.
type Transform interface {
	Transform(raw []byte) ([]byte, error)
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(raw []byte) ([]byte, error)

// Transform calls f(raw).
func (f TransformFunc) Transform(raw []byte) ([]byte, error) { return f(raw) }

// Option configures a Camera.
type Option func(*Camera)

// WithLogger sets the log sink.
func WithLogger(l Logger) Option {
	return func(c *Camera) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDriver replaces the system V4L2 driver.
func WithDriver(d Driver) Option {
	return func(c *Camera) { c.drv = d }
}

// WithTransform sets the transform applied to every grabbed frame.
func WithTransform(t Transform) Option {
	return func(c *Camera) { c.transform = t }
}

// WithBufferCount sets how many buffers to request from the driver.
// Values below MinBufferCount are raised to it.
func WithBufferCount(n int) Option {
	return func(c *Camera) {
		c.bufferCount = uint32(max(n, MinBufferCount))
	}
}

// Camera is one V4L2 capture device.
type Camera struct {
	path        string
	drv         Driver
	log         Logger
	transform   Transform
	bufferCount uint32

	fd      int
	lastErr string

	capQueried bool
	caps       Capability
	inputs     []Input
	input      uint32
	formats    []FormatDesc
	format     Negotiated
	sizes      []FrameSize
	interval   Fraction

	pool  *bufferPool
	state State

	// inCallback is set while a Runner callback executes.
	inCallback atomic.Bool
}

// New creates a closed Camera for device, a number or a full path.
func New(device string, opts ...Option) *Camera {
	c := &Camera{
		path:        DevicePath(device),
		log:         nopLogger{},
		bufferCount: DefaultBufferCount,
		fd:          -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.drv == nil {
		c.drv = SystemDriver()
	}
	return c
}

// Path returns the device node path.
func (c *Camera) Path() string { return c.path }

// IsOpen reports whether a descriptor is held.
func (c *Camera) IsOpen() bool { return c.fd >= 0 }

// LastError returns the description of the most recent failure, or "".
func (c *Camera) LastError() string { return c.lastErr }

// SetTransform replaces the frame transform. Nil disables it.
func (c *Camera) SetTransform(t Transform) { c.transform = t }

// Open verifies the path is a character device and opens it non-blocking.
// An open Camera is left alone unless force is set, in which case it is
// closed and reopened.
func (c *Camera) Open(force bool) error {
	const op = "open"
	if c.IsOpen() {
		if !force {
			return nil
		}
		c.Close()
	}

	isChar, err := c.drv.IsCharDevice(c.path)
	if err != nil {
		return c.fail(newError(KindIO, op, "cannot identify device", err))
	}
	if !isChar {
		return c.fail(newError(KindIO, op, "not a character device", nil))
	}

	fd, err := c.drv.Open(c.path)
	if err != nil {
		return c.fail(newError(KindIO, op, "cannot open device", err))
	}
	c.fd = fd
	c.log.Debug("device opened", "device", c.path, "fd", fd)
	return nil
}

// Close stops streaming, unmaps buffers and closes the descriptor, in that
// order. It is idempotent and never fails.
func (c *Camera) Close() {
	if !c.IsOpen() {
		return
	}
	if c.state == Streaming {
		_ = c.Stop()
	}
	c.Release()

	if err := c.drv.Close(c.fd); err != nil {
		c.log.Warn("close failed", "device", c.path, "error", err)
	}
	c.fd = -1
	c.capQueried = false
	c.log.Debug("device closed", "device", c.path)
}

// fail records err as the last error and logs it.
func (c *Camera) fail(err *Error) error {
	err.Path = c.path
	c.lastErr = err.Error()
	switch err.Kind {
	case KindTimeout:
		c.log.Debug("grab timed out", "device", c.path)
	case KindTransform:
		c.log.Debug("frame transform failed", "device", c.path, "error", c.lastErr)
	default:
		c.log.Warn("operation failed", "device", c.path, "op", err.Op, "kind", err.Kind.String(), "error", c.lastErr)
	}
	return err
}

// guard rejects calls made from inside a Runner callback.
func (c *Camera) guard(op string) error {
	if c.inCallback.Load() {
		return c.fail(newError(KindPrecondition, op, "called from grab callback", nil))
	}
	return nil
}

var errNotOpen = errors.New("device not open")
