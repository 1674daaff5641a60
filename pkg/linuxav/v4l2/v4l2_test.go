//go:build linux

package v4l2

import (
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestStructOffsets(t *testing.T) {
	var buf v4l2Buffer
	var in v4l2Input
	var parm v4l2Streamparm
	var frmsize v4l2Frmsizeenum

	assert.EqualValues(t, 8, unsafe.Offsetof(buf.bytesused))
	assert.EqualValues(t, 16, unsafe.Offsetof(buf.field))
	assert.EqualValues(t, 48, unsafe.Offsetof(in.std))
	assert.EqualValues(t, 60, unsafe.Offsetof(in.capabilities))
	assert.EqualValues(t, 4, unsafe.Offsetof(parm.capture))
	assert.EqualValues(t, 12, unsafe.Offsetof(frmsize.discrete))

	if unsafe.Sizeof(uintptr(0)) == 8 {
		assert.EqualValues(t, 24, unsafe.Offsetof(buf.timestamp))
		assert.EqualValues(t, 64, unsafe.Offsetof(buf.offset))
		assert.EqualValues(t, 72, unsafe.Offsetof(buf.length))
	} else {
		assert.EqualValues(t, 20, unsafe.Offsetof(buf.timestamp))
		assert.EqualValues(t, 52, unsafe.Offsetof(buf.offset))
		assert.EqualValues(t, 56, unsafe.Offsetof(buf.length))
	}
}

func TestFourCC(t *testing.T) {
	tests := []struct {
		code  string
		value uint32
	}{
		{"YUYV", PixFmtYUYV},
		{"MJPG", PixFmtMJPEG},
		{"JPEG", PixFmtJPEG},
		{"H264", PixFmtH264},
		{"NV12", PixFmtNV12},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.value, FourCC(tt.code))
			assert.Equal(t, tt.code, FormatFourCC(tt.value))
		})
	}

	assert.Equal(t, "Y8", FormatFourCC(FourCC("Y8")))
}

func TestFramerateFPS(t *testing.T) {
	assert.InDelta(t, 30.0, Framerate{1, 30}.FPS(), 0.001)
	assert.InDelta(t, 29.97, Framerate{1001, 30000}.FPS(), 0.001)
	assert.Zero(t, Framerate{0, 30}.FPS())
}

func TestCapabilityEffective(t *testing.T) {
	c := Capability{
		Capabilities: CapVideoCapture | CapStreaming | CapDeviceCaps | 0x2,
		DeviceCaps:   CapVideoCapture | CapStreaming,
	}
	assert.EqualValues(t, CapVideoCapture|CapStreaming, c.Effective())

	c.Capabilities = CapVideoCapture
	assert.EqualValues(t, CapVideoCapture, c.Effective())

	c.Version = 6<<16 | 8<<8 | 12
	assert.Equal(t, "6.8.12", c.VersionString())
}

func TestQuerymenuValue(t *testing.T) {
	m := v4l2Querymenu{}
	m.name[0] = 0x40
	m.name[1] = 0x42
	m.name[2] = 0x0f
	assert.EqualValues(t, 1000000, m.value())
}

func TestTimevalDuration(t *testing.T) {
	tv := timeval{sec: 12, usec: 500}
	assert.Equal(t, 12*time.Second+500*time.Microsecond, tv.duration())
}

func TestControlPredicates(t *testing.T) {
	assert.True(t, Control{Flags: CtrlFlagDisabled}.Disabled())
	assert.True(t, Control{Type: CtrlTypeMenu}.HasMenu())
	assert.True(t, Control{Type: CtrlTypeIntegerMenu}.HasMenu())
	assert.False(t, Control{Type: CtrlTypeInteger}.HasMenu())
}

func TestNodeNumber(t *testing.T) {
	assert.Equal(t, 0, nodeNumber("/dev/video0"))
	assert.Equal(t, 12, nodeNumber("/dev/video12"))
	assert.Equal(t, -1, nodeNumber("/dev/media0"))
}

func TestIsCharDevice(t *testing.T) {
	ok, err := IsCharDevice("/dev/null")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsCharDevice(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsCharDevice("/dev/does-not-exist-video")
	assert.True(t, errors.Is(err, unix.ENOENT))
}

func TestWaitReadablePipe(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	ok, err := WaitReadable(p[0], 10)
	require.NoError(t, err)
	assert.False(t, ok, "nothing written yet")

	_, err = unix.Write(p[1], []byte{1})
	require.NoError(t, err)

	ok, err = WaitReadable(p[0], 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIoctlOnNonDevice(t *testing.T) {
	fd, err := unix.Open("/dev/null", unix.O_RDWR, 0)
	require.NoError(t, err)
	defer unix.Close(fd)

	_, err = QueryCapability(fd)
	assert.True(t, errors.Is(err, unix.ENOTTY), "got %v", err)
}
