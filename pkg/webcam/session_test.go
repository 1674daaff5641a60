package webcam_test

import (
	"bytes"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/webcamtest"
)

func TestStartIsIdempotent(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)

	require.NoError(t, cam.Start())
	assert.Equal(t, webcam.Streaming, cam.State())
	assert.Len(t, drv.Stats().Requests, 1, "pool allocated once")
}

func TestStartStreamOnFailureKeepsPool(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.StreamOnErr = syscall.ENOSPC
	cam := openCamera(t, drv)

	err := cam.Start()
	assert.ErrorIs(t, err, webcam.ErrDevice)
	assert.ErrorIs(t, err, syscall.ENOSPC)
	assert.Equal(t, webcam.Idle, cam.State())
	assert.Equal(t, webcam.DefaultBufferCount, cam.BufferCount(), "pool stays allocated for a retry")

	drv.StreamOnErr = nil
	require.NoError(t, cam.Start())
	assert.Len(t, drv.Stats().Requests, 1)
}

func TestStopWhileIdle(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)

	err := cam.Stop()
	assert.ErrorIs(t, err, webcam.ErrPrecondition)
	assert.Equal(t, webcam.Idle, cam.State())
}

func TestStop(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)

	require.NoError(t, cam.Stop())
	st := drv.Stats()
	assert.False(t, st.Streaming)
	assert.Equal(t, 0, st.LiveMappings)
	assert.Equal(t, webcam.Idle, cam.State())

	assert.ErrorIs(t, cam.Stop(), webcam.ErrPrecondition)
}

func TestStopStreamOffFailureStillTearsDown(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.StreamOffErr = syscall.EIO

	require.NoError(t, cam.Stop())
	assert.Equal(t, 0, drv.Stats().LiveMappings)
	assert.Equal(t, webcam.Idle, cam.State())
}

func TestGrabRequiresStreaming(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)

	_, err := cam.Grab(webcam.DefaultGrabTimeout)
	assert.ErrorIs(t, err, webcam.ErrPrecondition)
}

func TestGrab(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.PushFrame([]byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9})

	data, err := cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}, data)

	st := drv.Stats()
	require.Len(t, st.Dequeued, 1)
	idx := st.Dequeued[0]
	assert.Equal(t, 2, st.CountQueued(idx), "queued at allocation and requeued once after grab")
	assert.Zero(t, st.DoubleQueued)
	assert.Len(t, st.DriverQueue, webcam.DefaultBufferCount)
}

func TestGrabFrameMetadata(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)

	first, err := cam.GrabFrame(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	second, err := cam.GrabFrame(webcam.DefaultGrabTimeout)
	require.NoError(t, err)

	assert.EqualValues(t, 0, first.Sequence)
	assert.EqualValues(t, 1, second.Sequence)
	assert.NotEqual(t, first.Index, second.Index)
	assert.Equal(t, "frame-0", string(first.Data))
	assert.EqualValues(t, len(first.Data), first.BytesUsed)
	assert.Greater(t, second.Timestamp, first.Timestamp)
	assert.False(t, first.Captured.IsZero())
}

func TestGrabCopiesOnlyBytesUsed(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.MaxBuffers = 2
	cam := streamingCamera(t, drv)

	big := bytes.Repeat([]byte{0xAA}, 1000)
	small := []byte{1, 2, 3}

	// Two buffers cycle, so the third frame lands in the first frame's buffer.
	drv.PushFrame(big)
	drv.PushFrame(big)
	drv.PushFrame(small)

	for range 2 {
		data, err := cam.Grab(webcam.DefaultGrabTimeout)
		require.NoError(t, err)
		require.Len(t, data, 1000)
	}

	data, err := cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, small, data, "no stale bytes from the earlier, larger frame")
	st := drv.Stats()
	assert.Equal(t, st.Dequeued[0], st.Dequeued[2])
}

func TestGrabTimeout(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.NotReady = true

	_, err := cam.Grab(10)
	assert.ErrorIs(t, err, webcam.ErrTimeout)
	assert.True(t, webcam.IsRecoverable(err))

	st := drv.Stats()
	assert.Empty(t, st.Dequeued)
	assert.Len(t, st.DriverQueue, webcam.DefaultBufferCount, "every buffer still owned by the driver")
	assert.Zero(t, st.DoubleQueued)
	for _, owner := range cam.SlotOwners() {
		assert.Equal(t, "driver", owner)
	}

	drv.NotReady = false
	_, err = cam.Grab(10)
	assert.NoError(t, err, "retry after timeout succeeds")
}

func TestGrabWaitFailure(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.WaitErr = syscall.EBADF

	_, err := cam.Grab(10)
	assert.ErrorIs(t, err, webcam.ErrIO)
	assert.True(t, webcam.IsFatal(err))
}

func TestGrabDequeueFailure(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.DequeueErr = syscall.ENODEV

	_, err := cam.Grab(10)
	assert.ErrorIs(t, err, webcam.ErrDevice)
	assert.ErrorIs(t, err, syscall.ENODEV)
}

func TestGrabDequeueAgainIsTimeout(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	drv.DequeueErr = syscall.EAGAIN

	_, err := cam.Grab(10)
	assert.ErrorIs(t, err, webcam.ErrTimeout)
}

func TestGrabTransform(t *testing.T) {
	drv := webcamtest.NewDriver()
	upper := webcam.TransformFunc(func(raw []byte) ([]byte, error) {
		return bytes.ToUpper(raw), nil
	})
	cam := streamingCamera(t, drv, webcam.WithTransform(upper))

	data, err := cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, "FRAME-0", string(data))
}

func TestGrabTransformFailureStillRequeues(t *testing.T) {
	drv := webcamtest.NewDriver()
	errBad := errors.New("malformed jpeg")
	cam := streamingCamera(t, drv, webcam.WithTransform(webcam.TransformFunc(func([]byte) ([]byte, error) {
		return nil, errBad
	})))

	_, err := cam.Grab(webcam.DefaultGrabTimeout)
	assert.ErrorIs(t, err, webcam.ErrTransform)
	assert.ErrorIs(t, err, errBad)
	assert.False(t, webcam.IsFatal(err))

	st := drv.Stats()
	require.Len(t, st.Dequeued, 1)
	assert.Equal(t, 2, st.CountQueued(st.Dequeued[0]), "requeued exactly once despite transform failure")
	assert.Len(t, st.DriverQueue, webcam.DefaultBufferCount)
	assert.Equal(t, webcam.Streaming, cam.State())
}

func TestSetTransform(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	cam.SetTransform(webcam.TransformFunc(func(raw []byte) ([]byte, error) {
		return append([]byte("x"), raw...), nil
	}))

	data, err := cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, "xframe-0", string(data))

	cam.SetTransform(nil)
	data, err = cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(data))
}

func TestRestartAfterStop(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := streamingCamera(t, drv)
	require.NoError(t, cam.Stop())

	_, err := cam.SetPixFormat(webcam.FormatYUYV422, 640, 480)
	require.NoError(t, err, "format may change once idle")

	require.NoError(t, cam.Start())
	_, err = cam.Grab(webcam.DefaultGrabTimeout)
	require.NoError(t, err)
	assert.Equal(t, 2*webcam.DefaultBufferCount, drv.Stats().Mmaps)
}
