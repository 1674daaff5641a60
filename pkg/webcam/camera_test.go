package webcam_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/webcamtest"
)

// openCamera returns an opened camera with its capability snapshot taken.
func openCamera(t *testing.T, drv *webcamtest.Driver, opts ...webcam.Option) *webcam.Camera {
	t.Helper()
	cam := webcam.New("0", append([]webcam.Option{webcam.WithDriver(drv)}, opts...)...)
	require.NoError(t, cam.Open(false))
	require.NoError(t, cam.QueryCapability())
	t.Cleanup(cam.Close)
	return cam
}

// streamingCamera returns a camera negotiated to MJPEG 1280x720 and streaming.
func streamingCamera(t *testing.T, drv *webcamtest.Driver, opts ...webcam.Option) *webcam.Camera {
	t.Helper()
	cam := openCamera(t, drv, opts...)
	require.NoError(t, cam.SetInput(""))
	_, err := cam.SetPixFormat(webcam.FormatMJPEG, 1280, 720)
	require.NoError(t, err)
	require.NoError(t, cam.Start())
	return cam
}

func TestDevicePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "/dev/video0"},
		{"12", "/dev/video12"},
		{" 3 ", "/dev/video3"},
		{"/dev/video2", "/dev/video2"},
		{"/dev/v4l/by-id/usb-cam-video-index0", "/dev/v4l/by-id/usb-cam-video-index0"},
		{"-1", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, webcam.DevicePath(tt.in))
		})
	}
}

func TestOpen(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		cam := webcam.New("0", webcam.WithDriver(drv))
		require.NoError(t, cam.Open(false))
		assert.True(t, cam.IsOpen())
		assert.Equal(t, "/dev/video0", cam.Path())
		assert.Equal(t, 1, drv.Stats().OpenFDs)
		cam.Close()
	})

	t.Run("already open without force is a no-op", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		cam := webcam.New("0", webcam.WithDriver(drv))
		require.NoError(t, cam.Open(false))
		require.NoError(t, cam.Open(false))
		assert.Equal(t, 1, drv.Stats().OpenFDs)
		assert.Equal(t, 0, drv.Stats().Closes)
		cam.Close()
	})

	t.Run("force reopens", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		cam := webcam.New("0", webcam.WithDriver(drv))
		require.NoError(t, cam.Open(false))
		require.NoError(t, cam.Open(true))
		assert.Equal(t, 1, drv.Stats().OpenFDs)
		assert.Equal(t, 1, drv.Stats().Closes)
		cam.Close()
	})

	t.Run("stat failure", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		drv.StatErr = syscall.ENOENT
		cam := webcam.New("/dev/video9", webcam.WithDriver(drv))
		err := cam.Open(false)
		require.Error(t, err)
		assert.ErrorIs(t, err, webcam.ErrIO)
		assert.ErrorIs(t, err, syscall.ENOENT)
		assert.Contains(t, cam.LastError(), "/dev/video9")
		assert.Contains(t, cam.LastError(), "errno 2")
		assert.False(t, cam.IsOpen())
	})

	t.Run("not a character device", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		drv.NotCharDevice = true
		cam := webcam.New("/tmp/file", webcam.WithDriver(drv))
		err := cam.Open(false)
		assert.ErrorIs(t, err, webcam.ErrIO)
		assert.Contains(t, err.Error(), "not a character device")
	})

	t.Run("open failure", func(t *testing.T) {
		drv := webcamtest.NewDriver()
		drv.OpenErr = syscall.EACCES
		cam := webcam.New("0", webcam.WithDriver(drv))
		err := cam.Open(false)
		assert.ErrorIs(t, err, webcam.ErrIO)
		assert.ErrorIs(t, err, syscall.EACCES)
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := webcam.New("0", webcam.WithDriver(drv))
	cam.Close()
	require.NoError(t, cam.Open(false))
	cam.Close()
	cam.Close()
	assert.False(t, cam.IsOpen())
	assert.Equal(t, 1, drv.Stats().Closes)
}

func TestCloseTearsDownInOrder(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	require.Equal(t, webcam.Streaming, cam.State())

	cam.Close()

	st := drv.Stats()
	assert.False(t, st.Streaming)
	assert.Equal(t, 0, st.LiveMappings)
	assert.Equal(t, 0, st.OpenFDs)
	assert.Equal(t, webcam.Idle, cam.State())
	assert.Equal(t, 0, cam.BufferCount())
}

func TestLastErrorOverwritten(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := webcam.New("0", webcam.WithDriver(drv))
	assert.Empty(t, cam.LastError())

	require.Error(t, cam.QueryCapability())
	first := cam.LastError()
	assert.Contains(t, first, "query capability")

	require.NoError(t, cam.Open(false))
	require.NoError(t, cam.QueryCapability())
	require.Error(t, cam.Stop())
	assert.NotEqual(t, first, cam.LastError())
	assert.Contains(t, cam.LastError(), "not streaming")
	cam.Close()
}

func TestErrorKinds(t *testing.T) {
	err := &webcam.Error{Kind: webcam.KindTimeout, Op: "grab", Path: "/dev/video0", Msg: "no frame within 100ms"}
	assert.True(t, errors.Is(err, webcam.ErrTimeout))
	assert.False(t, errors.Is(err, webcam.ErrIO))
	assert.Equal(t, webcam.KindTimeout, webcam.KindOf(err))
	assert.True(t, webcam.IsRecoverable(err))
	assert.False(t, webcam.IsFatal(err))
	assert.Equal(t, "webcam: grab /dev/video0: no frame within 100ms", err.Error())

	wrapped := errors.Join(errors.New("capture loop"), &webcam.Error{Kind: webcam.KindDevice, Err: syscall.ENODEV})
	assert.Equal(t, webcam.KindDevice, webcam.KindOf(wrapped))
	assert.True(t, webcam.IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, syscall.ENODEV)

	assert.Equal(t, webcam.KindNone, webcam.KindOf(errors.New("plain")))
	assert.Equal(t, "precondition", webcam.KindPrecondition.String())
	assert.Equal(t, "webcam: resource error", webcam.ErrResource.Error())
}

func TestPixelFormat(t *testing.T) {
	assert.Equal(t, "MJPG", webcam.FormatMJPEG.FourCC())
	assert.Equal(t, "YUYV", webcam.FormatYUYV422.FourCC())
	assert.Equal(t, "MJPEG", webcam.FormatMJPEG.String())
	assert.Equal(t, "none", webcam.FormatNone.String())
	assert.Equal(t, "H264", webcam.PixelFormat(0x34363248).String())

	for in, want := range map[string]webcam.PixelFormat{
		"":        webcam.FormatNone,
		"auto":    webcam.FormatNone,
		"MJPEG":   webcam.FormatMJPEG,
		"mjpg":    webcam.FormatMJPEG,
		"yuyv422": webcam.FormatYUYV422,
	} {
		got, err := webcam.ParsePixelFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := webcam.ParsePixelFormat("h265")
	assert.Error(t, err)
}
