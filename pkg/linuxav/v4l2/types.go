//go:build linux

package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	Caps       uint32
}

// Capability is the decoded result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of the opened node rather than the whole device.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// VersionString formats the kernel-style version as major.minor.patch.
func (c Capability) VersionString() string {
	return itoa((c.Version>>16)&0xff) + "." + itoa((c.Version>>8)&0xff) + "." + itoa(c.Version&0xff)
}

// Input describes one video input of a device.
type Input struct {
	Index  uint32
	Name   string
	Type   uint32
	Status uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	Index       uint32
	PixelFormat uint32
	FormatName  string
	Compressed  bool
	Emulated    bool
}

// PixFormat is the single-planar image format exchanged with TRY_FMT/S_FMT/G_FMT.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// FrameSize is one VIDIOC_ENUM_FRAMESIZES entry. For stepwise and continuous
// ranges Width/Height hold the minimum.
type FrameSize struct {
	Type       uint32
	Width      uint32
	Height     uint32
	MaxWidth   uint32
	MaxHeight  uint32
	StepWidth  uint32
	StepHeight uint32
}

// Framerate represents a frame interval as a fraction of seconds.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// FrameInterval is one VIDIOC_ENUM_FRAMEINTERVALS entry. For ranges
// Discrete holds the minimum interval.
type FrameInterval struct {
	Type     uint32
	Discrete Framerate
	Max      Framerate
	Step     Framerate
}

// StreamParm is the capture part of VIDIOC_G_PARM.
type StreamParm struct {
	Capability   uint32
	TimePerFrame Framerate
	ReadBuffers  uint32
}

// CanSetFramerate reports whether the driver honors S_PARM time-per-frame.
func (p StreamParm) CanSetFramerate() bool {
	return p.Capability&CapTimePerFrame != 0
}

// Buffer is the decoded result of QUERYBUF/DQBUF for an mmap capture buffer.
type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Sequence  uint32
	Offset    uint32
	Length    uint32
	// Timestamp is the driver capture time, usually CLOCK_MONOTONIC.
	Timestamp time.Duration
}

// Control describes one user control reported by VIDIOC_QUERYCTRL.
type Control struct {
	ID      uint32
	Type    uint32
	Name    string
	Minimum int32
	Maximum int32
	Step    int32
	Default int32
	Flags   uint32
}

// Disabled reports whether the control is permanently unavailable.
func (c Control) Disabled() bool {
	return c.Flags&CtrlFlagDisabled != 0
}

// HasMenu reports whether QueryMenu applies to the control.
func (c Control) HasMenu() bool {
	return c.Type == CtrlTypeMenu || c.Type == CtrlTypeIntegerMenu
}

// MenuItem is one entry of a menu control.
type MenuItem struct {
	Index uint32
	Name  string
	Value int64
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Stream parameter capability flags.
const (
	CapTimePerFrame = 0x1000
)

// Format flags.
const (
	FmtFlagCompressed = 0x0001
	FmtFlagEmulated   = 0x0002
)

// Common pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtJPEG  = 0x4745504A // 'JPEG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtNV12  = 0x3231564E // 'NV12'
)

// Field orders.
const (
	FieldAny  = 0
	FieldNone = 1
)

// Frame size types.
const (
	FrmsizeTypeDiscrete   = 1
	FrmsizeTypeContinuous = 2
	FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	FrmivalTypeDiscrete   = 1
	FrmivalTypeContinuous = 2
	FrmivalTypeStepwise   = 3
)

// Buffer types and memory models.
const (
	BufTypeVideoCapture = 1
	MemoryMmap          = 1
)

// Buffer flags.
const (
	BufFlagMapped = 0x00000001
	BufFlagQueued = 0x00000002
	BufFlagDone   = 0x00000004
	BufFlagError  = 0x00000040
)

// Control types.
const (
	CtrlTypeInteger     = 1
	CtrlTypeBoolean     = 2
	CtrlTypeMenu        = 3
	CtrlTypeButton      = 4
	CtrlTypeInteger64   = 5
	CtrlTypeCtrlClass   = 6
	CtrlTypeString      = 7
	CtrlTypeBitmask     = 8
	CtrlTypeIntegerMenu = 9
)

// Control flags.
const (
	CtrlFlagDisabled = 0x0001
	CtrlFlagReadOnly = 0x0004
	CtrlFlagInactive = 0x0010
	CtrlFlagNextCtrl = 0x80000000
)

// Well-known control IDs.
const (
	CidBrightness   = 0x00980900
	CidContrast     = 0x00980901
	CidSaturation   = 0x00980902
	CidExposureAuto = 0x009a0901
	CidExposureAbs  = 0x009a0902
)
