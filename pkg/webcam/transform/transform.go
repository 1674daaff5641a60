// Package transform provides webcam.Transform implementations for JPEG
// frames: rotation, header repair, and chaining.
package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/AlexxIT/go2rtc/pkg/mjpeg"
	"github.com/disintegration/imaging"

	"github.com/smazurov/webcam/pkg/webcam"
)

// DefaultQuality is the JPEG quality used when re-encoding a rotated frame.
const DefaultQuality = 90

// ErrNotJPEG is returned when a JPEG-only transform sees another payload.
var ErrNotJPEG = errors.New("transform: frame is not a JPEG")

// ErrAngle is returned for rotations other than 0, 90, 180 and 270.
var ErrAngle = errors.New("transform: rotation must be 0, 90, 180 or 270")

// Rotate turns JPEG frames clockwise by a multiple of 90 degrees.
type Rotate struct {
	degrees int
	quality int
}

// NewRotate validates degrees. Negative angles count counter-clockwise.
func NewRotate(degrees int) (*Rotate, error) {
	d := ((degrees % 360) + 360) % 360
	if d%90 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrAngle, degrees)
	}
	return &Rotate{degrees: d, quality: DefaultQuality}, nil
}

// Degrees returns the normalized clockwise angle.
func (r *Rotate) Degrees() int { return r.degrees }

// Transform decodes raw, rotates it and re-encodes it. A zero rotation
// returns raw unchanged.
func (r *Rotate) Transform(raw []byte) ([]byte, error) {
	if r.degrees == 0 {
		return raw, nil
	}
	if !isJPEG(raw) {
		return nil, ErrNotJPEG
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("transform: decode: %w", err)
	}

	// imaging rotates counter-clockwise
	var out image.Image
	switch r.degrees {
	case 90:
		out = imaging.Rotate270(img)
	case 180:
		out = imaging.Rotate180(img)
	case 270:
		out = imaging.Rotate90(img)
	}

	var buf bytes.Buffer
	buf.Grow(len(raw))
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("transform: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// FixJPEG re-encodes MJPEG frames whose headers strict decoders reject.
// Frames that already carry a quantization table, JFIF or Exif header, and
// anything that is not a JPEG, pass through untouched.
func FixJPEG() webcam.Transform {
	return webcam.TransformFunc(func(raw []byte) ([]byte, error) {
		return mjpeg.FixJPEG(raw), nil
	})
}

// Chain applies transforms in order. Nil entries are skipped; an empty
// chain returns nil so the camera skips the transform step entirely.
func Chain(ts ...webcam.Transform) webcam.Transform {
	var steps []webcam.Transform
	for _, t := range ts {
		if t != nil {
			steps = append(steps, t)
		}
	}
	switch len(steps) {
	case 0:
		return nil
	case 1:
		return steps[0]
	}
	return webcam.TransformFunc(func(raw []byte) ([]byte, error) {
		var err error
		for _, t := range steps {
			if raw, err = t.Transform(raw); err != nil {
				return nil, err
			}
		}
		return raw, nil
	})
}

// ForFormat builds the chain configured for a negotiated pixel format.
// Rotation and repair only apply to MJPEG; requesting rotation of any other
// format is an error.
func ForFormat(format webcam.PixelFormat, rotate int, fixJPEG bool) (webcam.Transform, error) {
	r, err := NewRotate(rotate)
	if err != nil {
		return nil, err
	}
	if format != webcam.FormatMJPEG {
		if r.Degrees() != 0 {
			return nil, fmt.Errorf("transform: cannot rotate %s frames", format)
		}
		return nil, nil
	}

	var steps []webcam.Transform
	if fixJPEG {
		steps = append(steps, FixJPEG())
	}
	if r.Degrees() != 0 {
		steps = append(steps, r)
	}
	return Chain(steps...), nil
}

func isJPEG(b []byte) bool {
	return len(b) > 3 && b[0] == 0xFF && b[1] == 0xD8
}
