package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/internal/capture"
	"github.com/smazurov/webcam/pkg/webcam"
)

func defaultOptions() Options {
	return Options{
		Config:        "config.toml",
		Device:        "/dev/video0",
		Format:        "mjpeg",
		Width:         1280,
		Height:        720,
		FPS:           30,
		TimeoutMs:     100,
		Buffers:       5,
		RetryDelay:    "2s",
		LoggingLevel:  "info",
		LoggingFormat: "text",
	}
}

func TestCaptureSettings(t *testing.T) {
	opts := defaultOptions()
	opts.Rotate = 90

	st, err := opts.captureSettings()
	require.NoError(t, err)
	assert.Equal(t, "/dev/video0", st.Device)
	assert.Equal(t, webcam.FormatMJPEG, st.Format)
	assert.Equal(t, uint32(1280), st.Width)
	assert.Equal(t, uint32(720), st.Height)
	assert.Equal(t, uint32(30), st.FPS)
	assert.Equal(t, 5, st.Buffers)
	assert.Equal(t, 90, st.Rotate)
}

func TestCaptureSettingsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative width", func(o *Options) { o.Width = -1 }},
		{"negative buffers", func(o *Options) { o.Buffers = -3 }},
		{"unknown format", func(o *Options) { o.Format = "h265" }},
		{"bad rotation", func(o *Options) { o.Rotate = 45 }},
		{"rotated yuyv", func(o *Options) {
			o.Format = "yuyv"
			o.Rotate = 90
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(&opts)
			_, err := opts.captureSettings()
			assert.Error(t, err)
		})
	}
}

func TestRetryDelay(t *testing.T) {
	opts := defaultOptions()
	opts.RetryDelay = "500ms"
	assert.Equal(t, 500*time.Millisecond, opts.retryDelay())

	opts.RetryDelay = "soon"
	assert.Equal(t, capture.DefaultRetryDelay, opts.retryDelay())
}

func TestReloaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[camera]
device = "/dev/video2"
format = "yuyv"
width = 640
height = 480

[logging]
level = "debug"
capture = "warn"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	load := reloader(defaultOptions(), &cobra.Command{})
	rc, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/video2", rc.Capture.Device)
	assert.Equal(t, webcam.FormatYUYV422, rc.Capture.Format)
	assert.Equal(t, uint32(640), rc.Capture.Width)
	assert.Equal(t, uint32(480), rc.Capture.Height)
	assert.Equal(t, "debug", rc.Logging.Level)
	assert.Equal(t, "warn", rc.Logging.Modules["capture"])
}

func TestReloaderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[camera]\nrotate = 45\n"), 0o644))

	_, err := reloader(defaultOptions(), &cobra.Command{})(path)
	assert.Error(t, err)
}

type fakeSource struct {
	info   capture.DeviceInfo
	frame  webcam.Frame
	hasOne bool
}

func (f fakeSource) Latest() (webcam.Frame, bool) { return f.frame, f.hasOne }
func (f fakeSource) Info() capture.DeviceInfo     { return f.info }

func TestHealthy(t *testing.T) {
	now := time.Now()
	streaming := capture.DeviceInfo{State: webcam.Streaming.String()}

	assert.True(t, healthy(fakeSource{info: capture.DeviceInfo{State: webcam.Idle.String()}}, now))
	assert.True(t, healthy(fakeSource{info: streaming}, now))
	assert.True(t, healthy(fakeSource{info: streaming, hasOne: true, frame: webcam.Frame{Captured: now.Add(-time.Second)}}, now))
	assert.False(t, healthy(fakeSource{info: streaming, hasOne: true, frame: webcam.Frame{Captured: now.Add(-time.Minute)}}, now))
}

func TestRotateHelpMentionsReencode(t *testing.T) {
	field, ok := reflect.TypeOf(Options{}).FieldByName("Rotate")
	require.True(t, ok)
	assert.Contains(t, field.Tag.Get("help"), "re-encodes")
}
