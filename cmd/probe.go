package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/webcam/pkg/webcam"
)

// ProbeReport is everything probe learns about a device.
type ProbeReport struct {
	Path       string               `json:"path"`
	Capability webcam.Capability    `json:"capability"`
	Capture    bool                 `json:"capture"`
	Streaming  bool                 `json:"streaming"`
	Inputs     []webcam.Input       `json:"inputs,omitempty"`
	Formats    []webcam.FormatDesc  `json:"formats,omitempty"`
	Negotiated *webcam.Negotiated   `json:"negotiated,omitempty"`
	Sizes      []webcam.FrameSize   `json:"sizes,omitempty"`
	Interval   *webcam.Fraction     `json:"interval,omitempty"`
	Controls   []webcam.ControlInfo `json:"controls,omitempty"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd(deps Deps) *cobra.Command {
	var (
		cam    cameraFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print device capabilities, formats and controls",
		Long: `Queries capabilities and inputs, negotiates the requested format to list its sizes ` +
			`and frame intervals, and reads every enabled control. Nothing is streamed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := webcam.ParsePixelFormat(cam.format)
			if err != nil {
				return err
			}
			width, height, err := cam.size()
			if err != nil {
				return err
			}

			c := deps.camera(cam.device, deps.logger(cam.verbose))
			defer c.Close()

			report, err := probe(c, cam.input, format, width, height)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cam.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func probe(c *webcam.Camera, input string, format webcam.PixelFormat, width, height uint32) (*ProbeReport, error) {
	if err := c.Open(false); err != nil {
		return nil, err
	}
	if err := c.QueryCapability(); err != nil {
		return nil, err
	}
	report := &ProbeReport{
		Path:       c.Path(),
		Capability: c.Capability(),
		Capture:    c.IsVideoCaptureDevice(),
		Streaming:  c.CanStream(),
	}
	if !report.Capture {
		return report, nil
	}

	if err := c.SetInput(input); err != nil {
		return nil, err
	}
	report.Inputs = c.Inputs()

	neg, err := c.SetPixFormat(format, width, height)
	if err != nil {
		return nil, err
	}
	report.Negotiated = &neg
	report.Formats = c.Formats()
	report.Sizes = c.FrameSizes()

	if controls, err := c.Controls(); err == nil {
		report.Controls = controls
	}
	return report, nil
}

func printReport(w io.Writer, r *ProbeReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Device:\t%s\n", r.Path)
	fmt.Fprintf(tw, "Driver:\t%s %s\n", r.Capability.Driver, r.Capability.Version)
	fmt.Fprintf(tw, "Card:\t%s\n", r.Capability.Card)
	fmt.Fprintf(tw, "Bus:\t%s\n", r.Capability.BusInfo)
	fmt.Fprintf(tw, "Capabilities:\t0x%08x (capture=%t streaming=%t)\n", r.Capability.Caps, r.Capture, r.Streaming)
	if !r.Capture {
		return
	}

	fmt.Fprintln(tw, "\nInputs:")
	for _, in := range r.Inputs {
		fmt.Fprintf(tw, "  %d\t%s\n", in.Index, in.Name)
	}

	fmt.Fprintln(tw, "\nFormats:")
	for _, f := range r.Formats {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", f.Index, f.PixelFormat.FourCC(), f.Description)
	}

	if n := r.Negotiated; n != nil {
		fmt.Fprintf(tw, "\nNegotiated:\t%s %dx%d", n.PixelFormat, n.Width, n.Height)
		if n.Adjusted() {
			fmt.Fprintf(tw, " (requested %dx%d)", n.RequestedWidth, n.RequestedHeight)
		}
		fmt.Fprintf(tw, ", %d bytes per image\n", n.SizeImage)

		fmt.Fprintf(tw, "\nSizes for %s:\n", n.PixelFormat.FourCC())
		for _, s := range r.Sizes {
			if s.Stepwise() {
				fmt.Fprintf(tw, "  %dx%d - %dx%d\tstep %dx%d\n", s.Width, s.Height, s.MaxWidth, s.MaxHeight, s.StepWidth, s.StepHeight)
				continue
			}
			rates := make([]string, 0, len(s.Intervals))
			for _, iv := range s.Intervals {
				rates = append(rates, fmt.Sprintf("%.4g", iv.FPS()))
			}
			fmt.Fprintf(tw, "  %dx%d\t%s fps\n", s.Width, s.Height, strings.Join(rates, ", "))
		}
	}

	if len(r.Controls) > 0 {
		fmt.Fprintln(tw, "\nControls:")
		for _, ctrl := range r.Controls {
			fmt.Fprintf(tw, "  %s\t%s\tvalue=%d\tdefault=%d\trange=[%d, %d]\n",
				ctrl.Name, ctrl.Type, ctrl.Value, ctrl.Default, ctrl.Minimum, ctrl.Maximum)
			for _, item := range ctrl.Menu {
				label := item.Name
				if label == "" {
					label = fmt.Sprint(item.Value)
				}
				fmt.Fprintf(tw, "    %d:\t%s\n", item.Index, label)
			}
		}
	}
}
