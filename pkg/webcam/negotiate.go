package webcam

import "strings"

// QueryCapability reads and caches the device capability snapshot.
func (c *Camera) QueryCapability() error {
	const op = "query capability"
	if !c.IsOpen() {
		return c.fail(newError(KindDevice, op, "", errNotOpen))
	}
	caps, err := c.drv.QueryCapability(c.fd)
	if err != nil {
		return c.fail(newError(KindDevice, op, "", err))
	}
	c.caps = caps
	c.capQueried = true
	c.log.Debug("capability",
		"device", c.path,
		"driver", caps.Driver,
		"card", caps.Card,
		"bus", caps.BusInfo,
		"caps", caps.Caps)
	return nil
}

// Capability returns the cached snapshot from QueryCapability.
func (c *Camera) Capability() Capability { return c.caps }

// IsVideoCaptureDevice reports whether the cached snapshot advertises video capture.
func (c *Camera) IsVideoCaptureDevice() bool {
	return c.capQueried && c.caps.Caps&CapVideoCapture != 0
}

// CanStream reports whether the cached snapshot advertises streaming I/O.
func (c *Camera) CanStream() bool {
	return c.capQueried && c.caps.Caps&CapStreaming != 0
}

// mutable checks the ordering rules shared by input, format and fps changes.
func (c *Camera) mutable(op string) error {
	if err := c.guard(op); err != nil {
		return err
	}
	if !c.IsOpen() {
		return c.fail(newError(KindDevice, op, "", errNotOpen))
	}
	if !c.IsVideoCaptureDevice() {
		return c.fail(newError(KindPrecondition, op, "capability not queried or device cannot capture video", nil))
	}
	if c.state == Streaming {
		return c.fail(newError(KindPrecondition, op, "device is streaming", nil))
	}
	if c.pool != nil {
		return c.fail(newError(KindPrecondition, op, "buffers are allocated", nil))
	}
	return nil
}

// SetInput selects the input whose name matches name case-insensitively,
// or input 0 when name is empty or nothing matches.
func (c *Camera) SetInput(name string) error {
	const op = "set input"
	if err := c.mutable(op); err != nil {
		return err
	}

	var inputs []Input
	for i := uint32(0); ; i++ {
		in, err := c.drv.EnumInput(c.fd, i)
		if err != nil {
			break // end of list
		}
		c.log.Debug("input", "device", c.path, "index", in.Index, "name", in.Name, "type", in.Type)
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return c.fail(newError(KindDevice, op, "device has no inputs", nil))
	}
	c.inputs = inputs

	selected := inputs[0]
	matched := name == ""
	for _, in := range inputs {
		if name != "" && strings.EqualFold(in.Name, name) {
			selected = in
			matched = true
			break
		}
	}
	if !matched {
		c.log.Warn("input not found, using default", "device", c.path, "input", name)
	}

	if err := c.drv.SetInput(c.fd, selected.Index); err != nil {
		return c.fail(newError(KindDevice, op, "input "+selected.Name, err))
	}
	c.input = selected.Index
	c.log.Debug("input selected", "device", c.path, "index", selected.Index, "name", selected.Name)
	return nil
}

// Inputs returns the list enumerated by the last SetInput.
func (c *Camera) Inputs() []Input { return c.inputs }

// Input returns the selected input index.
func (c *Camera) Input() uint32 { return c.input }

// SetPixFormat negotiates a pixel format and resolution in three steps:
// pick a code from the driver's list, try it, then set it.
//
// A driver that swaps the codec fails with KindFormat. A driver that swaps
// the resolution succeeds; the returned Negotiated reports Adjusted.
func (c *Camera) SetPixFormat(format PixelFormat, width, height uint32) (Negotiated, error) {
	const op = "set pix format"
	if err := c.mutable(op); err != nil {
		return Negotiated{}, err
	}

	var formats []FormatDesc
	for i := uint32(0); ; i++ {
		f, err := c.drv.EnumFormat(c.fd, i)
		if err != nil {
			break // end of list
		}
		c.log.Debug("format", "device", c.path, "index", f.Index, "fourcc", f.PixelFormat.FourCC(), "description", f.Description)
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return Negotiated{}, c.fail(newError(KindUnsupported, op, "device reports no formats", nil))
	}
	c.formats = formats

	code := formats[0].PixelFormat
	if format == FormatMJPEG || format == FormatYUYV422 {
		for _, f := range formats {
			if f.PixelFormat == format {
				code = f.PixelFormat
				break
			}
		}
		if code != format {
			c.log.Warn("format not offered, using driver default", "device", c.path, "requested", format.String(), "fourcc", code.FourCC())
		}
	}

	want := PixFormat{Width: width, Height: height, PixelFormat: code, Field: fieldAny}
	tried, err := c.drv.TryFormat(c.fd, want)
	if err != nil {
		return Negotiated{}, c.fail(newError(KindFormat, op, "try "+code.FourCC(), err))
	}
	if tried.PixelFormat != code {
		return Negotiated{}, c.fail(newError(KindFormat, op,
			"driver substituted "+tried.PixelFormat.FourCC()+" for "+code.FourCC(), nil))
	}
	if tried.Width != width || tried.Height != height {
		c.log.Info("adjusting resolution",
			"device", c.path,
			"requested_width", width, "requested_height", height,
			"width", tried.Width, "height", tried.Height)
	}

	set, err := c.drv.SetFormat(c.fd, tried)
	if err != nil {
		return Negotiated{}, c.fail(newError(KindFormat, op, "set "+code.FourCC(), err))
	}
	if set.PixelFormat != code {
		return Negotiated{}, c.fail(newError(KindFormat, op,
			"driver substituted "+set.PixelFormat.FourCC()+" for "+code.FourCC(), nil))
	}

	c.format = Negotiated{
		PixelFormat:     set.PixelFormat,
		Width:           set.Width,
		Height:          set.Height,
		RequestedWidth:  width,
		RequestedHeight: height,
		BytesPerLine:    set.BytesPerLine,
		SizeImage:       set.SizeImage,
	}
	c.sizes = c.enumSizes(code)

	c.log.Info("format negotiated",
		"device", c.path,
		"fourcc", code.FourCC(),
		"width", set.Width,
		"height", set.Height,
		"size_image", set.SizeImage)
	return c.format, nil
}

// enumSizes collects frame sizes and their intervals for diagnostics only.
func (c *Camera) enumSizes(code PixelFormat) []FrameSize {
	sizes, err := c.drv.EnumFrameSizes(c.fd, code)
	if err != nil {
		c.log.Debug("frame size enumeration incomplete", "device", c.path, "error", err)
	}
	for i := range sizes {
		if sizes[i].Stepwise() {
			continue
		}
		intervals, err := c.drv.EnumFrameIntervals(c.fd, code, sizes[i].Width, sizes[i].Height)
		if err != nil {
			c.log.Debug("frame interval enumeration incomplete", "device", c.path, "error", err)
		}
		sizes[i].Intervals = intervals
		c.log.Debug("frame size", "device", c.path, "width", sizes[i].Width, "height", sizes[i].Height, "intervals", len(intervals))
	}
	return sizes
}

// Format returns the result of the last successful SetPixFormat.
func (c *Camera) Format() Negotiated { return c.format }

// Formats returns the formats enumerated by the last SetPixFormat.
func (c *Camera) Formats() []FormatDesc { return c.formats }

// FrameSizes returns the sizes and intervals enumerated by the last SetPixFormat.
func (c *Camera) FrameSizes() []FrameSize { return c.sizes }

// SetFps asks for fps frames per second and returns the interval in effect.
//
// The rate is advisory: if the driver rejects the change the current interval
// is returned without error. Only a failure to read the interval is reported.
func (c *Camera) SetFps(fps uint32) (Fraction, error) {
	const op = "set fps"
	if err := c.mutable(op); err != nil {
		return Fraction{}, err
	}
	if fps == 0 {
		return Fraction{}, c.fail(newError(KindPrecondition, op, "fps must be positive", nil))
	}

	cur, err := c.drv.GetFrameInterval(c.fd)
	if err != nil {
		return Fraction{}, c.fail(newError(KindDevice, op, "read frame interval", err))
	}
	c.interval = cur

	want := Fraction{Numerator: 1, Denominator: fps}
	if cur == want {
		return cur, nil
	}

	applied, err := c.drv.SetFrameInterval(c.fd, want)
	if err != nil {
		c.log.Warn("frame rate not applied", "device", c.path, "fps", fps, "error", err)
		return cur, nil
	}

	actual, err := c.drv.GetFrameInterval(c.fd)
	if err != nil {
		actual = applied
	}
	c.interval = actual
	if actual != want {
		c.log.Info("frame rate adjusted", "device", c.path, "fps", fps, "actual", actual.String())
	}
	return actual, nil
}

// FrameInterval returns the interval observed by the last SetFps.
func (c *Camera) FrameInterval() Fraction { return c.interval }

const fieldAny = 0
