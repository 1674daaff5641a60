//go:build linux

package v4l2

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EnumFormat returns the capture format at index. The kernel answers EINVAL past the last one.
func EnumFormat(fd int, index uint32) (FormatInfo, error) {
	desc := v4l2Fmtdesc{
		index: index,
		typ:   BufTypeVideoCapture,
	}
	if err := xioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
		return FormatInfo{}, err
	}
	return FormatInfo{
		Index:       desc.index,
		PixelFormat: desc.pixelformat,
		FormatName:  cstr(desc.description[:]),
		Compressed:  desc.flags&FmtFlagCompressed != 0,
		Emulated:    desc.flags&FmtFlagEmulated != 0,
	}, nil
}

// EnumFormats returns all supported capture pixel formats.
func EnumFormats(fd int) ([]FormatInfo, error) {
	var formats []FormatInfo
	for i := uint32(0); ; i++ {
		f, err := EnumFormat(fd, i)
		if errors.Is(err, unix.EINVAL) {
			return formats, nil // End of enumeration
		}
		if err != nil {
			return formats, err
		}
		formats = append(formats, f)
	}
}

// TryFormat asks the driver what it would do with pf without changing state.
func TryFormat(fd int, pf PixFormat) (PixFormat, error) {
	return exchangeFormat(fd, vidiocTryFmt, pf)
}

// SetFormat commits pf and returns what the driver actually applied.
func SetFormat(fd int, pf PixFormat) (PixFormat, error) {
	return exchangeFormat(fd, vidiocSFmt, pf)
}

// GetFormat returns the current capture format.
func GetFormat(fd int) (PixFormat, error) {
	f := v4l2Format{typ: BufTypeVideoCapture}
	if err := xioctl(fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPix(&f.pix), nil
}

func exchangeFormat(fd int, req uint, pf PixFormat) (PixFormat, error) {
	f := v4l2Format{typ: BufTypeVideoCapture}
	f.pix.width = pf.Width
	f.pix.height = pf.Height
	f.pix.pixelformat = pf.PixelFormat
	f.pix.field = pf.Field
	if err := xioctl(fd, req, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPix(&f.pix), nil
}

func fromPix(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}

// EnumFrameSizes returns all frame sizes for a pixel format.
// A stepwise or continuous range is returned as a single entry.
func EnumFrameSizes(fd int, pixelFormat uint32) ([]FrameSize, error) {
	var sizes []FrameSize

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}

		if err := xioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				return sizes, nil // End of enumeration
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(err, unix.ENOTTY) {
				return sizes, nil
			}
			return sizes, err
		}

		switch frmsize.typ {
		case FrmsizeTypeDiscrete:
			sizes = append(sizes, FrameSize{
				Type:   frmsize.typ,
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case FrmsizeTypeContinuous, FrmsizeTypeStepwise:
			sw := frmsize.stepwise()
			return append(sizes, FrameSize{
				Type:       frmsize.typ,
				Width:      sw.minWidth,
				Height:     sw.minHeight,
				MaxWidth:   sw.maxWidth,
				MaxHeight:  sw.maxHeight,
				StepWidth:  sw.stepWidth,
				StepHeight: sw.stepHeight,
			}), nil
		}
	}
}

// EnumFrameIntervals returns all frame intervals for a format and size.
func EnumFrameIntervals(fd int, pixelFormat, width, height uint32) ([]FrameInterval, error) {
	var intervals []FrameInterval

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}

		if err := xioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTTY) {
				return intervals, nil
			}
			return intervals, err
		}

		switch frmival.typ {
		case FrmivalTypeDiscrete:
			intervals = append(intervals, FrameInterval{
				Type:     frmival.typ,
				Discrete: fract(frmival.discrete),
			})
		case FrmivalTypeContinuous, FrmivalTypeStepwise:
			sw := frmival.stepwise()
			return append(intervals, FrameInterval{
				Type:     frmival.typ,
				Discrete: fract(sw.min),
				Max:      fract(sw.max),
				Step:     fract(sw.step),
			}), nil
		}
	}
}

func fract(f v4l2Fract) Framerate {
	return Framerate{Numerator: f.numerator, Denominator: f.denominator}
}
