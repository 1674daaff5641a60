package capture_test

import (
	"context"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/internal/capture"
	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/metrics"
	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/webcamtest"
)

const waitFor = 2 * time.Second

// settingsFor uses a distinct device path per test so the global metrics
// do not collide.
func settingsFor(t *testing.T) capture.Settings {
	st := capture.DefaultSettings()
	st.Device = "/dev/video-" + t.Name()
	st.TimeoutMs = 10
	return st
}

func startService(t *testing.T, st capture.Settings, opts ...capture.Option) *capture.Service {
	t.Helper()
	svc, err := capture.New(st, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc
}

func hasFrame(svc *capture.Service) func() bool {
	return func() bool {
		_, ok := svc.Latest()
		return ok
	}
}

func TestNewValidatesSettings(t *testing.T) {
	_, err := capture.New(capture.Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device is required")
	assert.Contains(t, err.Error(), "resolution 0x0")

	st := capture.DefaultSettings()
	st.Rotate = 45
	_, err = capture.New(st)
	require.Error(t, err)
}

func TestServiceStreams(t *testing.T) {
	drv := webcamtest.NewDriver()
	st := settingsFor(t)
	svc := startService(t, st, capture.WithDriver(drv))

	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)
	f, _ := svc.Latest()
	assert.Contains(t, string(f.Data), "frame-")

	info := svc.Info()
	assert.Equal(t, st.Device, info.Path)
	assert.Equal(t, "uvcvideo", info.Driver)
	assert.Equal(t, "Camera 1", info.Input)
	assert.Equal(t, "MJPEG", info.Format)
	assert.Equal(t, "MJPG", info.FourCC)
	assert.Equal(t, uint32(1280), info.Width)
	assert.Equal(t, uint32(720), info.Height)
	assert.False(t, info.Adjusted)
	assert.InDelta(t, 30.0, info.FPS, 0.01)
	assert.Equal(t, "streaming", info.State)
	assert.Equal(t, webcam.DefaultBufferCount, info.Buffers)
	assert.Len(t, info.Formats, 2)

	controls, err := svc.Controls()
	require.NoError(t, err)
	assert.Len(t, controls, 2)

	stats, ok := metrics.Stats(st.Device)
	require.True(t, ok)
	assert.Positive(t, stats.Frames)
	assert.True(t, stats.Streaming)
	assert.Equal(t, uint32(1280), stats.Width)

	svc.Stop()
	_, ok = svc.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, drv.Stats().OpenFDs)
	assert.Equal(t, 0, drv.Stats().LiveMappings)
}

func TestServiceStartTwice(t *testing.T) {
	svc := startService(t, settingsFor(t), capture.WithDriver(webcamtest.NewDriver()))
	assert.Error(t, svc.Start(context.Background()))
}

func TestServiceStopIsIdempotent(t *testing.T) {
	svc, err := capture.New(settingsFor(t), capture.WithDriver(webcamtest.NewDriver()))
	require.NoError(t, err)
	svc.Stop()
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	svc.Stop()
}

func TestServicePublishesEvents(t *testing.T) {
	bus := events.New()
	var (
		mu         sync.Mutex
		states     []string
		negotiated []events.FormatNegotiatedEvent
	)
	defer bus.Subscribe(func(e events.SessionStateEvent) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})()
	defer bus.Subscribe(func(e events.FormatNegotiatedEvent) {
		mu.Lock()
		negotiated = append(negotiated, e)
		mu.Unlock()
	})()

	st := settingsFor(t)
	st.Width, st.Height = 800, 600
	startService(t, st, capture.WithDriver(webcamtest.NewDriver()), capture.WithBus(bus))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && len(negotiated) > 0
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "streaming", states[0])
	assert.Equal(t, st.Device, negotiated[0].Device)
	assert.Equal(t, uint32(640), negotiated[0].Width)
	assert.True(t, negotiated[0].Adjusted)
}

func TestServiceReconfigureKeepsDeviceOpen(t *testing.T) {
	drv := webcamtest.NewDriver()
	st := settingsFor(t)
	svc := startService(t, st, capture.WithDriver(drv))
	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)

	next := st
	next.Format = webcam.FormatYUYV422
	next.Width, next.Height = 640, 480
	require.NoError(t, svc.Reconfigure(next))
	assert.Equal(t, next, svc.Settings())

	require.Eventually(t, func() bool {
		info := svc.Info()
		return info.Format == "YUYV422" && info.State == "streaming"
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)

	stats := drv.Stats()
	assert.Equal(t, 0, stats.Closes)
	assert.Equal(t, 1, stats.OpenFDs)
	assert.Equal(t, webcam.FormatYUYV422, stats.Format.PixelFormat)
	assert.Equal(t, uint32(640), svc.Info().Width)
}

func TestServiceReconfigureRejectsInvalid(t *testing.T) {
	st := settingsFor(t)
	svc, err := capture.New(st, capture.WithDriver(webcamtest.NewDriver()))
	require.NoError(t, err)

	bad := st
	bad.Width = 0
	require.Error(t, svc.Reconfigure(bad))
	assert.Equal(t, st, svc.Settings())
}

func TestServiceRetriesOpen(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.SetOpenErr(syscall.ENOENT)
	st := settingsFor(t)
	svc := startService(t, st, capture.WithDriver(drv), capture.WithRetryDelay(10*time.Millisecond))

	require.Eventually(t, func() bool { return svc.Info().LastError != "" }, waitFor, 5*time.Millisecond)
	_, err := svc.Controls()
	require.ErrorIs(t, err, capture.ErrNoDevice)
	assert.Equal(t, "idle", svc.Info().State)

	drv.SetOpenErr(nil)
	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)
}

func TestServiceReconnectsOnHotplug(t *testing.T) {
	bus := events.New()
	fatal := make(chan events.CaptureErrorEvent, 8)
	defer bus.Subscribe(func(e events.CaptureErrorEvent) {
		if e.Fatal {
			select {
			case fatal <- e:
			default:
			}
		}
	})()

	drv := webcamtest.NewDriver()
	st := settingsFor(t)
	svc := startService(t, st,
		capture.WithDriver(drv),
		capture.WithBus(bus),
		capture.WithRetryDelay(time.Hour))
	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)

	drv.SetWaitErr(syscall.EBADF)
	select {
	case e := <-fatal:
		assert.Equal(t, "io", e.Kind)
		assert.Equal(t, st.Device, e.Device)
	case <-time.After(waitFor):
		t.Fatal("no fatal error event")
	}
	require.Eventually(t, func() bool { return drv.Stats().OpenFDs == 0 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "idle", svc.Info().State)

	drv.SetWaitErr(nil)
	bus.Publish(events.DeviceHotplugEvent{Device: "/dev/video99", Action: "add"})
	bus.Publish(events.DeviceHotplugEvent{Device: st.Device, Action: "add"})
	require.Eventually(t, hasFrame(svc), waitFor, 5*time.Millisecond)
	assert.Equal(t, "streaming", svc.Info().State)
	assert.NotEmpty(t, svc.Info().LastError)
}

type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

func TestServiceWarnsOncePerDropStreak(t *testing.T) {
	h := &recordHandler{}
	st := settingsFor(t)
	st.Format = webcam.FormatMJPEG
	st.Rotate = 90 // simulated frames are not JPEG, so every rotation fails
	startService(t, st, capture.WithDriver(webcamtest.NewDriver()), capture.WithLogger(slog.New(h)))

	require.Eventually(t, func() bool {
		return h.count(slog.LevelDebug, "frame dropped") >= 3
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, h.count(slog.LevelWarn, "frame dropped"))
	assert.Zero(t, h.count(slog.LevelWarn, "operation failed"))

	stats, ok := metrics.Stats(st.Device)
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.Errors, uint64(4), "every drop is still counted")
}
