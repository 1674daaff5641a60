package webcam_test

import (
	"context"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/pkg/webcam"
	"github.com/smazurov/webcam/pkg/webcam/webcamtest"
)

func waitDone(t *testing.T, r *webcam.Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit")
	}
}

func TestRunnerDeliversFrames(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)
	_, err := cam.SetPixFormat(webcam.FormatMJPEG, 1280, 720)
	require.NoError(t, err)

	frames := make(chan webcam.Frame, 64)
	r := webcam.NewRunner(cam, 10)
	require.NoError(t, r.SetGrabCallback(func(f webcam.Frame, err error) {
		if err != nil {
			return
		}
		select {
		case frames <- f:
		default:
		}
	}))
	require.NoError(t, r.RunStart(context.Background()))

	var got []webcam.Frame
	for len(got) < 3 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatal("no frames delivered")
		}
	}

	require.NoError(t, r.RunStop())
	waitDone(t, r)
	assert.NoError(t, r.Err())
	assert.Equal(t, webcam.Idle, cam.State())
	assert.Equal(t, 0, drv.Stats().LiveMappings)

	for i, f := range got {
		assert.EqualValues(t, i, f.Sequence)
	}
	assert.Zero(t, drv.Stats().DoubleQueued)
}

func TestRunnerRejectsDoubleStart(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)
	r := webcam.NewRunner(cam, 10)

	require.NoError(t, r.RunStart(context.Background()))
	t.Cleanup(func() { _ = r.RunStop() })

	assert.ErrorIs(t, r.RunStart(context.Background()), webcam.ErrRunning)
	assert.ErrorIs(t, r.SetGrabCallback(nil), webcam.ErrRunning)
}

func TestRunnerStartFailure(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.MaxBuffers = 1
	cam := openCamera(t, drv)
	r := webcam.NewRunner(cam, 10)

	err := r.RunStart(context.Background())
	assert.ErrorIs(t, err, webcam.ErrResource)
	assert.NoError(t, r.RunStop(), "stop without a running loop is a no-op")
}

func TestRunnerCallbackCannotReenter(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)

	var once sync.Once
	errs := make(chan [3]error, 1)
	r := webcam.NewRunner(cam, 10)
	require.NoError(t, r.SetGrabCallback(func(webcam.Frame, error) {
		once.Do(func() {
			_, grabErr := cam.Grab(10)
			errs <- [3]error{cam.Stop(), grabErr, cam.SetInput("")}
		})
	}))
	require.NoError(t, r.RunStart(context.Background()))

	select {
	case got := <-errs:
		for _, err := range got {
			assert.ErrorIs(t, err, webcam.ErrPrecondition)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}

	require.NoError(t, r.RunStop())
	assert.Equal(t, webcam.Idle, cam.State())
}

func TestRunnerRetriesTimeouts(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.NotReady = true
	cam := openCamera(t, drv)

	calls := make(chan error, 16)
	r := webcam.NewRunner(cam, 1)
	require.NoError(t, r.SetGrabCallback(func(_ webcam.Frame, err error) {
		select {
		case calls <- err:
		default:
		}
	}))
	require.NoError(t, r.RunStart(context.Background()))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.RunStop())

	assert.Empty(t, calls, "timeouts are not reported to the callback")
	assert.NoError(t, r.Err())
	assert.Positive(t, r.Timeouts())
}

func TestRunnerFatalErrorEndsLoop(t *testing.T) {
	drv := webcamtest.NewDriver()
	drv.WaitErr = syscall.EBADF
	cam := openCamera(t, drv)

	var reported error
	r := webcam.NewRunner(cam, 10)
	require.NoError(t, r.SetGrabCallback(func(_ webcam.Frame, err error) {
		reported = err
	}))
	require.NoError(t, r.RunStart(context.Background()))
	waitDone(t, r)

	assert.ErrorIs(t, reported, webcam.ErrIO)
	assert.ErrorIs(t, r.Err(), webcam.ErrIO)
	assert.Equal(t, webcam.Streaming, cam.State(), "the session is left for RunStop to tear down")

	require.NoError(t, r.RunStop())
	assert.Equal(t, webcam.Idle, cam.State())
}

func TestRunnerContextCancel(t *testing.T) {
	drv := webcamtest.NewDriver()
	cam := openCamera(t, drv)

	ctx, cancel := context.WithCancel(context.Background())
	r := webcam.NewRunner(cam, 10)
	require.NoError(t, r.RunStart(ctx))
	cancel()
	waitDone(t, r)

	require.NoError(t, r.RunStop())
	assert.Equal(t, webcam.Idle, cam.State())
}
