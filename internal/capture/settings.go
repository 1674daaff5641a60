package capture

import (
	"errors"
	"fmt"

	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/transform"
)

// Settings selects the device and the format to negotiate.
type Settings struct {
	Device    string
	Input     string
	Format    webcam.PixelFormat
	Width     uint32
	Height    uint32
	FPS       uint32 // 0 leaves the driver's rate alone
	TimeoutMs int
	Buffers   int
	Rotate    int
	FixJPEG   bool
}

// DefaultSettings is MJPEG 1280x720 at 30 fps from /dev/video0.
func DefaultSettings() Settings {
	return Settings{
		Device:    "0",
		Format:    webcam.FormatMJPEG,
		Width:     1280,
		Height:    720,
		FPS:       30,
		TimeoutMs: webcam.DefaultGrabTimeout,
		Buffers:   webcam.DefaultBufferCount,
	}
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var errs []error
	if s.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if s.Width == 0 || s.Height == 0 {
		errs = append(errs, fmt.Errorf("resolution %dx%d must be positive", s.Width, s.Height))
	}
	if s.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("timeout %dms must be positive", s.TimeoutMs))
	}
	if s.Buffers != 0 && s.Buffers < webcam.MinBufferCount {
		errs = append(errs, fmt.Errorf("buffers must be at least %d", webcam.MinBufferCount))
	}
	if _, err := transform.NewRotate(s.Rotate); err != nil {
		errs = append(errs, err)
	}
	if s.Rotate%360 != 0 && s.Format == webcam.FormatYUYV422 {
		errs = append(errs, errors.New("rotation requires mjpeg"))
	}
	return errors.Join(errs...)
}

// sameDevice reports whether switching from s to o can keep the device open.
func (s Settings) sameDevice(o Settings) bool {
	return webcam.DevicePath(s.Device) == webcam.DevicePath(o.Device) && s.Buffers == o.Buffers
}
