package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/transform"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd(deps Deps) *cobra.Command {
	var (
		cam         cameraFlags
		count       int
		outDir      string
		fps         int
		rotate      int
		fixJPEG     bool
		timeoutMs   int
		buffers     int
		maxTimeouts int
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Grab frames to files",
		Long: `Opens the device, negotiates the requested format, grabs N frames and writes ` +
			`them to the output directory as frame-0000.jpg (MJPEG) or frame-0000.yuv (raw).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := webcam.ParsePixelFormat(cam.format)
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if fps < 0 {
				return fmt.Errorf("--fps must not be negative")
			}
			width, height, err := cam.size()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			log := deps.logger(cam.verbose)
			opts := []webcam.Option{}
			if buffers > 0 {
				opts = append(opts, webcam.WithBufferCount(buffers))
			}
			c := deps.camera(cam.device, log, opts...)
			defer c.Close()

			if err := openCapture(c); err != nil {
				return err
			}
			if err := c.SetInput(cam.input); err != nil {
				return err
			}
			neg, err := c.SetPixFormat(format, width, height)
			if err != nil {
				return err
			}
			if neg.Adjusted() {
				fmt.Fprintf(cmd.ErrOrStderr(), "driver adjusted %dx%d to %dx%d\n",
					neg.RequestedWidth, neg.RequestedHeight, neg.Width, neg.Height)
			}
			if fps > 0 {
				if _, err := c.SetFps(uint32(fps)); err != nil {
					return err
				}
			}
			tr, err := transform.ForFormat(neg.PixelFormat, rotate, fixJPEG)
			if err != nil {
				return err
			}
			c.SetTransform(tr)

			if err := c.Start(); err != nil {
				return err
			}
			defer func() { _ = c.Stop() }()

			ext := ".yuv"
			if neg.PixelFormat == webcam.FormatMJPEG {
				ext = ".jpg"
			}

			start := time.Now()
			var total, timeouts int
			for written := 0; written < count; {
				data, err := c.Grab(timeoutMs)
				if webcam.IsRecoverable(err) {
					timeouts++
					if timeouts >= maxTimeouts {
						return fmt.Errorf("no frame after %d timeouts: %w", timeouts, err)
					}
					continue
				}
				if err != nil {
					return err
				}
				timeouts = 0

				name := filepath.Join(outDir, fmt.Sprintf("frame-%04d%s", written, ext))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					return fmt.Errorf("write frame: %w", err)
				}
				total += len(data)
				written++
			}

			elapsed := time.Since(start)
			fmt.Fprintf(cmd.OutOrStdout(), "captured %d frames (%d bytes) %s %dx%d in %s\n",
				count, total, neg.PixelFormat, neg.Width, neg.Height, elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cam.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of frames to grab")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Output directory")
	cmd.Flags().IntVar(&fps, "fps", 0, "Requested frame rate, 0 keeps the driver's")
	cmd.Flags().IntVar(&rotate, "rotate", 0, "Rotate MJPEG frames by 0, 90, 180 or 270 degrees (lossy, re-encodes each frame)")
	cmd.Flags().BoolVar(&fixJPEG, "fix-jpeg", false, "Repair MJPEG frames that lack Huffman tables")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", webcam.DefaultGrabTimeout, "Wait per grab in milliseconds")
	cmd.Flags().IntVar(&buffers, "buffers", webcam.DefaultBufferCount, "Buffers to request from the driver")
	cmd.Flags().IntVar(&maxTimeouts, "max-timeouts", 50, "Consecutive timeouts before giving up")
	return cmd
}
