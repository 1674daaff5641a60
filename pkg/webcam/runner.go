package webcam

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// FrameHandler receives each frame, or a non-timeout error, from a Runner.
// It runs on the capture goroutine and must not call back into the Camera.
type FrameHandler func(Frame, error)

// ErrRunning is returned when a Runner is configured or started twice.
var ErrRunning = errors.New("webcam: runner already running")

// Runner drives a Camera from one dedicated capture goroutine and pushes
// frames to a callback instead of blocking the caller.
//
// Timeouts are retried silently. Other errors reach the handler; IO and
// device errors also end the loop.
type Runner struct {
	cam     *Camera
	timeout int

	mu       sync.Mutex
	handler  FrameHandler
	running  bool
	stop     atomic.Bool
	done     chan struct{}
	err      error
	timeouts atomic.Uint64
}

// NewRunner wraps cam. timeoutMs bounds each wait; values <= 0 use DefaultGrabTimeout.
func NewRunner(cam *Camera, timeoutMs int) *Runner {
	if timeoutMs <= 0 {
		timeoutMs = DefaultGrabTimeout
	}
	done := make(chan struct{})
	close(done)
	return &Runner{cam: cam, timeout: timeoutMs, done: done}
}

// SetGrabCallback installs the frame handler. It fails while running.
func (r *Runner) SetGrabCallback(h FrameHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunning
	}
	r.handler = h
	return nil
}

// RunStart starts streaming and the capture goroutine. The loop ends on
// RunStop, ctx cancellation, or a fatal error.
func (r *Runner) RunStart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunning
	}
	if err := r.cam.Start(); err != nil {
		return err
	}

	r.running = true
	r.err = nil
	r.stop.Store(false)
	r.done = make(chan struct{})
	go r.loop(ctx, r.handler, r.done)
	return nil
}

func (r *Runner) loop(ctx context.Context, handler FrameHandler, done chan struct{}) {
	defer close(done)
	for !r.stop.Load() && ctx.Err() == nil {
		f, err := r.cam.GrabFrame(r.timeout)
		if err != nil && IsRecoverable(err) {
			r.timeouts.Add(1)
			continue
		}
		if handler != nil {
			r.cam.inCallback.Store(true)
			handler(f, err)
			r.cam.inCallback.Store(false)
		}
		if err != nil && IsFatal(err) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			return
		}
	}
}

// RunStop ends the capture goroutine, waits for it, and stops streaming.
// It is safe to call when not running.
func (r *Runner) RunStop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	done := r.done
	r.mu.Unlock()

	r.stop.Store(true)
	<-done

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	if r.cam.State() == Streaming {
		return r.cam.Stop()
	}
	return nil
}

// Done is closed when the capture goroutine exits.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the fatal error that ended the loop, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Timeouts returns how many grabs timed out since the Runner was created.
func (r *Runner) Timeouts() uint64 { return r.timeouts.Load() }
