package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/webcam/internal/capture"
	"github.com/smazurov/webcam/internal/config"
	"github.com/smazurov/webcam/internal/devices"
	"github.com/smazurov/webcam/internal/logging"
	"github.com/smazurov/webcam/pkg/webcam"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"CORS_ORIGIN"`

	// Camera settings, hot-reloaded from the config file
	Device     string `help:"Video device number, path or stable ID" short:"d" default:"0" toml:"camera.device" env:"DEVICE"`
	Input      string `help:"Input name, empty for the first input" default:"" toml:"camera.input" env:"INPUT"`
	Format     string `help:"Pixel format (mjpeg, yuyv, auto)" short:"f" default:"mjpeg" toml:"camera.format" env:"FORMAT"`
	Width      int    `help:"Requested width" default:"1280" toml:"camera.width" env:"WIDTH"`
	Height     int    `help:"Requested height" default:"720" toml:"camera.height" env:"HEIGHT"`
	FPS        int    `help:"Requested frame rate, 0 keeps the driver's" default:"30" toml:"camera.fps" env:"FPS"`
	TimeoutMs  int    `help:"Wait per grab in milliseconds" default:"100" toml:"camera.timeout_ms" env:"TIMEOUT_MS"`
	Buffers    int    `help:"Buffers to request from the driver" default:"5" toml:"camera.buffers" env:"BUFFERS"`
	Rotate     int    `help:"Rotate MJPEG frames by 0, 90, 180 or 270 degrees (lossy, re-encodes each frame)" default:"0" toml:"camera.rotate" env:"ROTATE"`
	FixJPEG    bool   `help:"Repair MJPEG frames that lack Huffman tables" default:"false" toml:"camera.fix_jpeg" env:"FIX_JPEG"`
	RetryDelay string `help:"Wait before reopening a failed device" default:"2s" toml:"camera.retry_delay" env:"RETRY_DELAY"`

	// Metrics settings
	MetricsPrometheus bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS"`
	MetricsSSE        bool `help:"Stream capture stats at /api/metrics" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

// runtimeConfig is what a config file reload can change without a restart.
type runtimeConfig struct {
	Capture capture.Settings
	Logging logging.Config
}

// captureSettings converts the camera options, resolving stable device IDs
// to their /dev/videoN node.
func (o *Options) captureSettings() (capture.Settings, error) {
	format, err := webcam.ParsePixelFormat(o.Format)
	if err != nil {
		return capture.Settings{}, err
	}
	for name, v := range map[string]int{"width": o.Width, "height": o.Height, "fps": o.FPS, "timeout_ms": o.TimeoutMs, "buffers": o.Buffers} {
		if v < 0 {
			return capture.Settings{}, fmt.Errorf("camera.%s must not be negative", name)
		}
	}
	device, err := devices.ResolveDevicePath(o.Device)
	if err != nil {
		return capture.Settings{}, err
	}

	st := capture.Settings{
		Device:    device,
		Input:     o.Input,
		Format:    format,
		Width:     uint32(o.Width),
		Height:    uint32(o.Height),
		FPS:       uint32(o.FPS),
		TimeoutMs: o.TimeoutMs,
		Buffers:   o.Buffers,
		Rotate:    o.Rotate,
		FixJPEG:   o.FixJPEG,
	}
	return st, st.Validate()
}

func (o *Options) retryDelay() time.Duration {
	d, err := time.ParseDuration(o.RetryDelay)
	if err != nil || d <= 0 {
		return capture.DefaultRetryDelay
	}
	return d
}

// loggingConfig takes level and format from the options and per-module
// levels from the [logging] table of the config file.
func (o *Options) loggingConfig() logging.Config {
	cfg := config.LoadLogging(o.Config)
	cfg.Level = o.LoggingLevel
	cfg.Format = o.LoggingFormat
	return cfg
}

// reloader re-reads path over base. Flags given on the command line keep
// winning over the file.
func reloader(base Options, root *cobra.Command) func(string) (runtimeConfig, error) {
	return func(path string) (runtimeConfig, error) {
		next := base
		next.Config = path
		if err := config.Load(&next, root); err != nil {
			return runtimeConfig{}, err
		}
		st, err := next.captureSettings()
		if err != nil {
			return runtimeConfig{}, err
		}
		return runtimeConfig{Capture: st, Logging: next.loggingConfig()}, nil
	}
}

// stallTimeout is how long a streaming session may go without a frame
// before the watchdog stops vouching for the process.
const stallTimeout = 10 * time.Second

// frameSource is the part of capture.Service the watchdog looks at.
type frameSource interface {
	Latest() (webcam.Frame, bool)
	Info() capture.DeviceInfo
}

// healthy reports false only for a streaming session whose frames stopped.
// A service waiting for its device to come back is healthy.
func healthy(src frameSource, now time.Time) bool {
	if src.Info().State != webcam.Streaming.String() {
		return true
	}
	frame, ok := src.Latest()
	if !ok {
		return true
	}
	return now.Sub(frame.Captured) < stallTimeout
}
