// Package capture runs one camera for the lifetime of the process: it
// negotiates the configured format, keeps the latest frame, renegotiates on
// config reload and reopens the device after it fails or is replugged.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/metrics"
	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/transform"
)

// DefaultRetryDelay is how long the service waits before reopening a failed
// device when no hotplug event arrives first.
const DefaultRetryDelay = 2 * time.Second

// ErrNoDevice is returned while no device is open.
var ErrNoDevice = errors.New("capture: no device open")

// Bus is the event surface the service uses. *events.Bus satisfies it.
type Bus interface {
	Publish(ev events.Event)
	Subscribe(handler any) func()
}

type nopBus struct{}

func (nopBus) Publish(events.Event) {}
func (nopBus) Subscribe(any) func() { return func() {} }

// DeviceInfo describes the open device and the negotiated session.
type DeviceInfo struct {
	Path            string              `json:"path"`
	Driver          string              `json:"driver,omitempty"`
	Card            string              `json:"card,omitempty"`
	BusInfo         string              `json:"bus_info,omitempty"`
	Version         string              `json:"version,omitempty"`
	Input           string              `json:"input,omitempty"`
	Format          string              `json:"format,omitempty"`
	FourCC          string              `json:"fourcc,omitempty"`
	Width           uint32              `json:"width"`
	Height          uint32              `json:"height"`
	RequestedWidth  uint32              `json:"requested_width"`
	RequestedHeight uint32              `json:"requested_height"`
	Adjusted        bool                `json:"adjusted"`
	FPS             float64             `json:"fps"`
	Interval        string              `json:"interval,omitempty"`
	SizeImage       uint32              `json:"size_image"`
	Buffers         int                 `json:"buffers"`
	State           string              `json:"state"`
	LastError       string              `json:"last_error,omitempty"`
	Formats         []webcam.FormatDesc `json:"formats,omitempty"`
	Sizes           []webcam.FrameSize  `json:"sizes,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service and camera logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBus publishes events to b and listens for hotplug events on it.
func WithBus(b Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithDriver replaces the system V4L2 driver.
func WithDriver(d webcam.Driver) Option {
	return func(s *Service) { s.drv = d }
}

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retry = d
		}
	}
}

// Service owns one Camera and its Runner. Only the supervisor goroutine
// touches the Camera; everything exported reads snapshots.
type Service struct {
	log   *slog.Logger
	bus   Bus
	drv   webcam.Driver
	retry time.Duration

	mu       sync.Mutex
	settings Settings
	info     DeviceInfo
	controls []webcam.ControlInfo
	cancel   context.CancelFunc
	done     chan struct{}
	unsub    func()

	frameMu  sync.RWMutex
	latest   webcam.Frame
	hasFrame bool

	// consecutive non-fatal grab errors since the last good frame
	drops atomic.Int64

	reload chan struct{}
	replug chan struct{}
}

// New validates settings and returns a stopped service.
func New(settings Settings, opts ...Option) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		log:      slog.New(slog.DiscardHandler),
		bus:      nopBus{},
		retry:    DefaultRetryDelay,
		settings: settings,
		reload:   make(chan struct{}, 1),
		replug:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.info = DeviceInfo{Path: webcam.DevicePath(settings.Device), State: webcam.Idle.String()}
	return s, nil
}

// Start launches the supervisor. Device failures are retried in the
// background rather than returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("capture: already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.unsub = s.bus.Subscribe(s.onHotplug)
	go s.supervise(ctx, s.done)
	return nil
}

// Stop ends the session, closes the device and waits for the supervisor.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done, unsub := s.cancel, s.done, s.unsub
	s.cancel, s.unsub = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	unsub()
}

// Settings returns the settings the next session will use.
func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Reconfigure replaces the settings. A running session is stopped,
// renegotiated while idle, and restarted; the device stays open unless
// the device itself changed.
func (s *Service) Reconfigure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.settings == settings {
		s.mu.Unlock()
		return nil
	}
	s.settings = settings
	s.mu.Unlock()

	s.log.Info("reconfiguring capture", "device", webcam.DevicePath(settings.Device),
		"format", settings.Format.String(), "width", settings.Width, "height", settings.Height, "fps", settings.FPS)
	signal(s.reload)
	return nil
}

// Latest returns the most recent frame. Its Data must not be modified.
func (s *Service) Latest() (webcam.Frame, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.latest, s.hasFrame
}

// Info returns the device description captured at the last negotiation.
func (s *Service) Info() DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Controls returns the controls read at the last negotiation.
func (s *Service) Controls() ([]webcam.ControlInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Driver == "" {
		return nil, ErrNoDevice
	}
	return s.controls, nil
}

func (s *Service) onHotplug(ev events.DeviceHotplugEvent) {
	path := webcam.DevicePath(s.Settings().Device)
	if ev.Device != path {
		return
	}
	switch ev.Action {
	case "add":
		s.log.Info("device plugged in", "device", path)
		signal(s.replug)
	case "remove":
		s.log.Warn("device unplugged", "device", path)
	}
}

func (s *Service) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		cam    *webcam.Camera
		opened Settings
		failed bool
	)
	defer func() {
		if cam != nil {
			cam.Close()
		}
	}()

	for {
		st := s.Settings()
		if cam != nil && !opened.sameDevice(st) {
			cam.Close()
			cam = nil
		}
		if cam == nil {
			opened = st
			if failed {
				metrics.ObserveReconnect(webcam.DevicePath(st.Device))
			}
		}

		var err error
		cam, err = s.session(ctx, cam, st)
		if ctx.Err() != nil {
			return
		}
		failed = err != nil
		if !failed {
			continue
		}

		s.log.Info("waiting to reopen device", "device", webcam.DevicePath(st.Device), "retry", s.retry)
		timer := time.NewTimer(s.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.reload:
		case <-s.replug:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// session runs one streaming session on cam, opening it first when nil.
// It returns the still-open camera after a reload, or nil with the error
// once the camera had to be closed.
func (s *Service) session(ctx context.Context, cam *webcam.Camera, st Settings) (*webcam.Camera, error) {
	path := webcam.DevicePath(st.Device)
	fail := func(err error) (*webcam.Camera, error) {
		if cam != nil {
			cam.Close()
		}
		s.clearDevice(path)
		if ctx.Err() == nil {
			s.recordError(path, err, true)
		}
		return nil, err
	}

	if cam == nil {
		opts := []webcam.Option{webcam.WithLogger(s.log), webcam.WithDriver(s.drv)}
		if st.Buffers > 0 {
			opts = append(opts, webcam.WithBufferCount(st.Buffers))
		}
		cam = webcam.New(st.Device, opts...)
		if err := s.open(cam); err != nil {
			return fail(err)
		}
	}
	if err := s.negotiate(cam, st); err != nil {
		return fail(err)
	}

	runner := webcam.NewRunner(cam, st.TimeoutMs)
	_ = runner.SetGrabCallback(s.frameHandler(path))
	if err := runner.RunStart(ctx); err != nil {
		return fail(err)
	}
	s.setState(path, cam, webcam.Streaming, "")

	var seen uint64
	syncTimeouts := func() {
		t := runner.Timeouts()
		metrics.ObserveTimeouts(path, t-seen)
		seen = t
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	reason := ""
wait:
	for {
		select {
		case <-ctx.Done():
			reason = "shutdown"
			break wait
		case <-s.reload:
			reason = "reconfigure"
			break wait
		case <-runner.Done():
			reason = "device error"
			break wait
		case <-ticker.C:
			syncTimeouts()
		}
	}

	stopErr := runner.RunStop()
	syncTimeouts()
	s.setState(path, cam, webcam.Idle, reason)

	if err := runner.Err(); err != nil {
		// already reported by the frame handler
		cam.Close()
		s.clearDevice(path)
		return nil, err
	}
	if ctx.Err() != nil {
		cam.Close()
		return nil, nil
	}
	if stopErr != nil {
		return fail(stopErr)
	}
	return cam, nil
}

func (s *Service) open(cam *webcam.Camera) error {
	if err := cam.Open(false); err != nil {
		return err
	}
	if err := cam.QueryCapability(); err != nil {
		return err
	}
	if !cam.IsVideoCaptureDevice() {
		return &webcam.Error{Kind: webcam.KindUnsupported, Op: "open", Path: cam.Path(), Msg: "not a video capture device"}
	}
	caps := cam.Capability()
	s.log.Info("device opened", "device", cam.Path(), "driver", caps.Driver, "card", caps.Card, "bus", caps.BusInfo)
	return nil
}

// negotiate applies input, format, rate and transforms while cam is idle,
// then snapshots everything the API reports.
func (s *Service) negotiate(cam *webcam.Camera, st Settings) error {
	if err := cam.SetInput(st.Input); err != nil {
		return err
	}
	neg, err := cam.SetPixFormat(st.Format, st.Width, st.Height)
	if err != nil {
		return err
	}
	interval := cam.FrameInterval()
	if st.FPS > 0 {
		if interval, err = cam.SetFps(st.FPS); err != nil {
			return err
		}
	}
	tr, err := transform.ForFormat(neg.PixelFormat, st.Rotate, st.FixJPEG)
	if err != nil {
		return err
	}
	cam.SetTransform(tr)

	controls, err := cam.Controls()
	if err != nil {
		s.log.Debug("controls unavailable", "device", cam.Path(), "error", err)
	}

	caps := cam.Capability()
	info := DeviceInfo{
		Path:            cam.Path(),
		Driver:          caps.Driver,
		Card:            caps.Card,
		BusInfo:         caps.BusInfo,
		Version:         caps.Version,
		Format:          neg.PixelFormat.String(),
		FourCC:          neg.PixelFormat.FourCC(),
		Width:           neg.Width,
		Height:          neg.Height,
		RequestedWidth:  neg.RequestedWidth,
		RequestedHeight: neg.RequestedHeight,
		Adjusted:        neg.Adjusted(),
		FPS:             interval.FPS(),
		SizeImage:       neg.SizeImage,
		State:           cam.State().String(),
		Formats:         cam.Formats(),
		Sizes:           cam.FrameSizes(),
	}
	if interval.Numerator != 0 {
		info.Interval = interval.String()
	}
	for _, in := range cam.Inputs() {
		if in.Index == cam.Input() {
			info.Input = in.Name
		}
	}

	s.mu.Lock()
	info.LastError = s.info.LastError
	s.info = info
	s.controls = controls
	s.mu.Unlock()

	metrics.SetFormat(cam.Path(), neg.Width, neg.Height, interval.FPS())
	s.bus.Publish(events.FormatNegotiatedEvent{
		Device:    cam.Path(),
		Format:    info.Format,
		Width:     neg.Width,
		Height:    neg.Height,
		FPS:       interval.FPS(),
		Adjusted:  info.Adjusted,
		Timestamp: now(),
	})
	return nil
}

// frameHandler runs on the capture goroutine for every frame or error.
func (s *Service) frameHandler(path string) webcam.FrameHandler {
	return func(f webcam.Frame, err error) {
		if err != nil {
			s.recordError(path, err, webcam.IsFatal(err))
			return
		}
		s.frameMu.Lock()
		s.latest, s.hasFrame = f, true
		s.frameMu.Unlock()

		if n := s.drops.Swap(0); n > 1 {
			s.log.Info("frames recovered", "device", path, "dropped", n)
		}

		metrics.ObserveFrame(path, len(f.Data), f.Captured)
		s.bus.Publish(events.FrameCapturedEvent{
			Device:    path,
			Sequence:  f.Sequence,
			Bytes:     len(f.Data),
			Timestamp: f.Captured.UTC().Format(time.RFC3339Nano),
		})
	}
}

func (s *Service) setState(path string, cam *webcam.Camera, state webcam.State, reason string) {
	s.mu.Lock()
	s.info.State = state.String()
	s.info.Buffers = cam.BufferCount()
	s.mu.Unlock()

	s.drops.Store(0)
	if state == webcam.Idle {
		s.frameMu.Lock()
		s.latest, s.hasFrame = webcam.Frame{}, false
		s.frameMu.Unlock()
	}

	metrics.SetStreaming(path, state == webcam.Streaming)
	s.log.Info("session "+state.String(), "device", path, "reason", reason)
	s.bus.Publish(events.SessionStateEvent{
		Device:    path,
		State:     state.String(),
		Reason:    reason,
		Timestamp: now(),
	})
}

// clearDevice forgets the snapshot of a device that is no longer open.
func (s *Service) clearDevice(path string) {
	s.mu.Lock()
	s.info = DeviceInfo{Path: path, State: webcam.Idle.String(), LastError: s.info.LastError}
	s.controls = nil
	s.mu.Unlock()
}

func (s *Service) recordError(path string, err error, fatal bool) {
	kind := webcam.KindOf(err).String()
	if webcam.KindOf(err) == webcam.KindNone {
		kind = "config"
	}
	metrics.ObserveError(path, kind)

	s.mu.Lock()
	s.info.LastError = err.Error()
	s.mu.Unlock()

	switch {
	case fatal:
		s.log.Error("capture failed", "device", path, "kind", kind, "error", err)
	case s.drops.Add(1) == 1:
		s.log.Warn("frame dropped", "device", path, "kind", kind, "error", err)
	default:
		s.log.Debug("frame dropped", "device", path, "kind", kind, "error", err)
	}
	s.bus.Publish(events.CaptureErrorEvent{
		Device:    path,
		Kind:      kind,
		Error:     err.Error(),
		Fatal:     fatal,
		Timestamp: now(),
	})
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
