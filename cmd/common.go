// Package cmd holds the cobra subcommands that run the capture core
// directly, without the HTTP service.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/webcam/internal/logging"
	"github.com/smazurov/webcam/pkg/webcam"
)

// Deps lets tests swap the V4L2 driver and the log sink.
type Deps struct {
	Driver webcam.Driver // nil uses the system driver
	Logger *slog.Logger  // nil logs warnings and errors to stderr
}

func (d Deps) logger(verbose bool) *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: "text"},
		logging.WithOutput(os.Stderr),
		logging.WithoutJournal(),
		logging.WithBufferSize(1),
	).Logger("cli")
}

func (d Deps) camera(device string, log *slog.Logger, opts ...webcam.Option) *webcam.Camera {
	opts = append(opts, webcam.WithLogger(log))
	if d.Driver != nil {
		opts = append(opts, webcam.WithDriver(d.Driver))
	}
	return webcam.New(device, opts...)
}

// openCapture opens the device and checks that it can capture video.
func openCapture(cam *webcam.Camera) error {
	if err := cam.Open(false); err != nil {
		return err
	}
	if err := cam.QueryCapability(); err != nil {
		return err
	}
	if !cam.IsVideoCaptureDevice() {
		return fmt.Errorf("%s: %w", cam.Path(), errNotCapture)
	}
	return nil
}

var errNotCapture = errors.New("not a video capture device")

// cameraFlags are shared by capture and probe. Names and types match the
// root command's persistent options so the local flags can shadow them.
type cameraFlags struct {
	device  string
	input   string
	format  string
	width   int
	height  int
	verbose bool
}

func (f *cameraFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.device, "device", "d", "0", "Video device number or path")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input name, empty for the first input")
	cmd.Flags().StringVarP(&f.format, "format", "f", "mjpeg", "Pixel format (mjpeg, yuyv, auto)")
	cmd.Flags().IntVar(&f.width, "width", 1280, "Requested width")
	cmd.Flags().IntVar(&f.height, "height", 720, "Requested height")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log every ioctl step")
}

// size checks the requested resolution and converts it for the driver.
func (f *cameraFlags) size() (uint32, uint32, error) {
	if f.width <= 0 || f.height <= 0 {
		return 0, 0, fmt.Errorf("resolution %dx%d must be positive", f.width, f.height)
	}
	return uint32(f.width), uint32(f.height), nil
}
