//go:build linux

package webcam

import (
	"github.com/smazurov/webcam/pkg/linuxav/v4l2"
)

// SystemDriver returns the V4L2 ioctl driver.
func SystemDriver() Driver { return sysDriver{} }

type sysDriver struct{}

func (sysDriver) IsCharDevice(path string) (bool, error) { return v4l2.IsCharDevice(path) }
func (sysDriver) Open(path string) (int, error)          { return v4l2.Open(path) }
func (sysDriver) Close(fd int) error                     { return v4l2.Close(fd) }

func (sysDriver) QueryCapability(fd int) (Capability, error) {
	c, err := v4l2.QueryCapability(fd)
	if err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:  c.Driver,
		Card:    c.Card,
		BusInfo: c.BusInfo,
		Version: c.VersionString(),
		Caps:    c.Effective(),
	}, nil
}

func (sysDriver) EnumInput(fd int, index uint32) (Input, error) {
	in, err := v4l2.EnumInput(fd, index)
	if err != nil {
		return Input{}, err
	}
	return Input{Index: in.Index, Name: in.Name, Type: in.Type}, nil
}

func (sysDriver) SetInput(fd int, index uint32) error { return v4l2.SetInput(fd, index) }

func (sysDriver) EnumFormat(fd int, index uint32) (FormatDesc, error) {
	f, err := v4l2.EnumFormat(fd, index)
	if err != nil {
		return FormatDesc{}, err
	}
	return FormatDesc{
		Index:       f.Index,
		PixelFormat: PixelFormat(f.PixelFormat),
		Description: f.FormatName,
	}, nil
}

func (sysDriver) TryFormat(fd int, f PixFormat) (PixFormat, error) {
	out, err := v4l2.TryFormat(fd, toPix(f))
	return fromPix(out), err
}

func (sysDriver) SetFormat(fd int, f PixFormat) (PixFormat, error) {
	out, err := v4l2.SetFormat(fd, toPix(f))
	return fromPix(out), err
}

func (sysDriver) EnumFrameSizes(fd int, f PixelFormat) ([]FrameSize, error) {
	sizes, err := v4l2.EnumFrameSizes(fd, uint32(f))
	out := make([]FrameSize, 0, len(sizes))
	for _, s := range sizes {
		fs := FrameSize{Width: s.Width, Height: s.Height}
		if s.Type != v4l2.FrmsizeTypeDiscrete {
			fs.MaxWidth, fs.MaxHeight = s.MaxWidth, s.MaxHeight
			fs.StepWidth, fs.StepHeight = s.StepWidth, s.StepHeight
		}
		out = append(out, fs)
	}
	return out, err
}

func (sysDriver) EnumFrameIntervals(fd int, f PixelFormat, width, height uint32) ([]Fraction, error) {
	intervals, err := v4l2.EnumFrameIntervals(fd, uint32(f), width, height)
	out := make([]Fraction, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, Fraction(iv.Discrete))
		if iv.Type != v4l2.FrmivalTypeDiscrete {
			out = append(out, Fraction(iv.Max))
		}
	}
	return out, err
}

func (sysDriver) GetFrameInterval(fd int) (Fraction, error) {
	p, err := v4l2.GetStreamParm(fd)
	if err != nil {
		return Fraction{}, err
	}
	return Fraction(p.TimePerFrame), nil
}

func (sysDriver) SetFrameInterval(fd int, interval Fraction) (Fraction, error) {
	out, err := v4l2.SetFrameInterval(fd, v4l2.Framerate(interval))
	return Fraction(out), err
}

func (sysDriver) RequestBuffers(fd int, count uint32) (uint32, error) {
	return v4l2.RequestBuffers(fd, count)
}

func (sysDriver) QueryBuffer(fd int, index uint32) (BufferInfo, error) {
	b, err := v4l2.QueryBuffer(fd, index)
	return fromBuffer(b), err
}

func (sysDriver) Mmap(fd int, offset, length uint32) ([]byte, error) {
	return v4l2.Mmap(fd, int64(offset), int(length))
}

func (sysDriver) Munmap(mem []byte) error                { return v4l2.Munmap(mem) }
func (sysDriver) QueueBuffer(fd int, index uint32) error { return v4l2.QueueBuffer(fd, index) }

func (sysDriver) DequeueBuffer(fd int) (BufferInfo, error) {
	b, err := v4l2.DequeueBuffer(fd)
	return fromBuffer(b), err
}

func (sysDriver) StreamOn(fd int) error  { return v4l2.StreamOn(fd) }
func (sysDriver) StreamOff(fd int) error { return v4l2.StreamOff(fd) }

func (sysDriver) WaitReadable(fd int, timeoutMs int) (bool, error) {
	return v4l2.WaitReadable(fd, timeoutMs)
}

func (sysDriver) QueryControl(fd int, id uint32) (ControlInfo, error) {
	c, err := v4l2.QueryControl(fd, id)
	if err != nil {
		return ControlInfo{}, err
	}
	return ControlInfo{
		ID:       c.ID,
		Name:     c.Name,
		Type:     ControlType(c.Type),
		Minimum:  c.Minimum,
		Maximum:  c.Maximum,
		Step:     c.Step,
		Default:  c.Default,
		Flags:    c.Flags,
		Disabled: c.Disabled(),
	}, nil
}

func (sysDriver) QueryMenu(fd int, id, index uint32) (MenuItem, error) {
	m, err := v4l2.QueryMenu(fd, id, index)
	if err != nil {
		return MenuItem{}, err
	}
	return MenuItem{Index: m.Index, Name: m.Name, Value: m.Value}, nil
}

func (sysDriver) GetControl(fd int, id uint32) (int32, error) { return v4l2.GetControl(fd, id) }

func toPix(f PixFormat) v4l2.PixFormat {
	return v4l2.PixFormat{
		Width:       f.Width,
		Height:      f.Height,
		PixelFormat: uint32(f.PixelFormat),
		Field:       f.Field,
	}
}

func fromPix(p v4l2.PixFormat) PixFormat {
	return PixFormat{
		Width:        p.Width,
		Height:       p.Height,
		PixelFormat:  PixelFormat(p.PixelFormat),
		Field:        p.Field,
		BytesPerLine: p.BytesPerLine,
		SizeImage:    p.SizeImage,
	}
}

func fromBuffer(b v4l2.Buffer) BufferInfo {
	return BufferInfo{
		Index:     b.Index,
		Offset:    b.Offset,
		Length:    b.Length,
		BytesUsed: b.BytesUsed,
		Sequence:  b.Sequence,
		Timestamp: b.Timestamp,
	}
}
