package webcam

import (
	"fmt"
	"strings"
	"time"
)

// DefaultGrabTimeout is the readiness wait used by Runner and the CLI.
const DefaultGrabTimeout = 100 // milliseconds

// Buffer pool sizing.
const (
	DefaultBufferCount = 5
	MinBufferCount     = 2
)

// Capability flags, matching the kernel values.
const (
	CapVideoCapture = 0x00000001
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
)

// PixelFormat is a V4L2 fourcc code.
type PixelFormat uint32

// Pixel formats exposed to callers. FormatNone lets the driver pick.
const (
	FormatNone    PixelFormat = 0
	FormatMJPEG   PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	FormatYUYV422 PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
)

// FourCC returns the four character code, e.g. "MJPG".
func (f PixelFormat) FourCC() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return strings.TrimRight(string(b), " \x00")
}

func (f PixelFormat) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatMJPEG:
		return "MJPEG"
	case FormatYUYV422:
		return "YUYV422"
	}
	return f.FourCC()
}

// ParsePixelFormat accepts the names used in configuration files and flags.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "auto":
		return FormatNone, nil
	case "mjpeg", "mjpg", "jpeg":
		return FormatMJPEG, nil
	case "yuyv", "yuyv422", "yuy2":
		return FormatYUYV422, nil
	}
	return FormatNone, fmt.Errorf("unknown pixel format %q", s)
}

// Fraction is a frame interval in seconds, numerator over denominator.
type Fraction struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS converts the interval to frames per second.
func (f Fraction) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// Capability is the snapshot taken by QueryCapability.
type Capability struct {
	Driver  string `json:"driver"`
	Card    string `json:"card"`
	BusInfo string `json:"bus_info"`
	Version string `json:"version"`
	// Caps are the effective capabilities of the opened node.
	Caps uint32 `json:"caps"`
}

// Input is one entry of the device's input list.
type Input struct {
	Index uint32 `json:"index"`
	Name  string `json:"name"`
	Type  uint32 `json:"type"`
}

// FormatDesc is one format advertised by the driver.
type FormatDesc struct {
	Index       uint32      `json:"index"`
	PixelFormat PixelFormat `json:"pixel_format"`
	Description string      `json:"description"`
}

// PixFormat is the image format exchanged during negotiation.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  PixelFormat
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// FrameSize is a supported resolution. Stepwise ranges set the Max and Step fields.
type FrameSize struct {
	Width      uint32     `json:"width"`
	Height     uint32     `json:"height"`
	MaxWidth   uint32     `json:"max_width,omitempty"`
	MaxHeight  uint32     `json:"max_height,omitempty"`
	StepWidth  uint32     `json:"step_width,omitempty"`
	StepHeight uint32     `json:"step_height,omitempty"`
	Intervals  []Fraction `json:"intervals,omitempty"`
}

// Stepwise reports whether the entry describes a range.
func (s FrameSize) Stepwise() bool {
	return s.MaxWidth != 0 || s.MaxHeight != 0
}

// BufferInfo is what the driver reports for one buffer on QUERYBUF and DQBUF.
type BufferInfo struct {
	Index     uint32
	Offset    uint32
	Length    uint32
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Duration
}

// Negotiated is the outcome of SetPixFormat.
type Negotiated struct {
	PixelFormat     PixelFormat `json:"pixel_format"`
	Width           uint32      `json:"width"`
	Height          uint32      `json:"height"`
	RequestedWidth  uint32      `json:"requested_width"`
	RequestedHeight uint32      `json:"requested_height"`
	BytesPerLine    uint32      `json:"bytes_per_line"`
	SizeImage       uint32      `json:"size_image"`
}

// Adjusted reports whether the driver substituted a different resolution.
func (n Negotiated) Adjusted() bool {
	return n.Width != n.RequestedWidth || n.Height != n.RequestedHeight
}

// Frame is one captured image and its driver metadata.
type Frame struct {
	Data      []byte
	Index     uint32
	Sequence  uint32
	BytesUsed uint32
	// Timestamp is the driver capture time, usually CLOCK_MONOTONIC.
	Timestamp time.Duration
	// Captured is the wall clock time the frame was dequeued.
	Captured time.Time
}

// State is the capture session state.
type State int

// Session states.
const (
	Idle State = iota
	Streaming
)

func (s State) String() string {
	if s == Streaming {
		return "streaming"
	}
	return "idle"
}
