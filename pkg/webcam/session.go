package webcam

import (
	"errors"
	"strconv"
	"syscall"
	"time"
)

// State returns the session state.
func (c *Camera) State() State { return c.state }

// Start allocates the buffer pool if needed and turns streaming on.
// Calling it while streaming is a no-op. If stream-on fails the pool stays
// allocated and the session stays Idle.
func (c *Camera) Start() error {
	const op = "start"
	if err := c.guard(op); err != nil {
		return err
	}
	if c.state == Streaming {
		return nil
	}
	if err := c.Allocate(); err != nil {
		return err
	}
	if err := c.drv.StreamOn(c.fd); err != nil {
		return c.fail(newError(KindDevice, op, "stream on", err))
	}
	c.state = Streaming
	c.log.Info("streaming started", "device", c.path, "buffers", c.pool.mapped)
	return nil
}

// Stop turns streaming off and releases the buffer pool. Stopping an Idle
// session is reported as a precondition failure.
func (c *Camera) Stop() error {
	const op = "stop"
	if err := c.guard(op); err != nil {
		return err
	}
	if c.state != Streaming {
		return c.fail(newError(KindPrecondition, op, "not streaming", nil))
	}
	if err := c.drv.StreamOff(c.fd); err != nil {
		c.log.Warn("stream off failed", "device", c.path, "error", err)
	}
	if c.pool != nil {
		// stream-off hands every buffer back to the application
		for i := range c.pool.slots {
			c.pool.slots[i].owner = ownedByApp
		}
	}
	c.Release()
	c.state = Idle
	c.log.Info("streaming stopped", "device", c.path)
	return nil
}

// Grab waits up to timeoutMs for a frame and returns a copy of it, passed
// through the configured Transform.
func (c *Camera) Grab(timeoutMs int) ([]byte, error) {
	f, err := c.GrabFrame(timeoutMs)
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// GrabFrame is Grab with the driver's buffer metadata.
//
// The dequeued buffer is requeued before the transform runs, so a failing
// transform never starves the driver.
func (c *Camera) GrabFrame(timeoutMs int) (Frame, error) {
	const op = "grab"
	if err := c.guard(op); err != nil {
		return Frame{}, err
	}
	if c.state != Streaming {
		return Frame{}, c.fail(newError(KindPrecondition, op, "not streaming", nil))
	}

	ready, err := c.drv.WaitReadable(c.fd, timeoutMs)
	if err != nil {
		return Frame{}, c.fail(newError(KindIO, op, "wait for frame", err))
	}
	if !ready {
		return Frame{}, c.fail(newError(KindTimeout, op, "no frame within "+strconv.Itoa(timeoutMs)+"ms", nil))
	}

	frame, err := c.dequeue(op)
	if err != nil {
		return Frame{}, err
	}

	if c.transform != nil {
		out, err := c.transform.Transform(frame.Data)
		if err != nil {
			return Frame{}, c.fail(newError(KindTransform, op, "", err))
		}
		frame.Data = out
	}
	return frame, nil
}

// dequeue takes one buffer from the driver, copies exactly bytesused bytes
// out of it and hands it straight back.
func (c *Camera) dequeue(op string) (Frame, error) {
	info, err := c.drv.DequeueBuffer(c.fd)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return Frame{}, c.fail(newError(KindTimeout, op, "buffer not ready", err))
		}
		return Frame{}, c.fail(newError(KindDevice, op, "dequeue buffer", err))
	}
	if int(info.Index) >= len(c.pool.slots) {
		return Frame{}, c.fail(newError(KindDevice, op, "driver returned unknown buffer "+strconv.Itoa(int(info.Index)), nil))
	}

	s := &c.pool.slots[info.Index]
	s.owner = ownedByApp
	s.bytesUsed = info.BytesUsed

	n := int(min(info.BytesUsed, uint32(len(s.mem))))
	data := make([]byte, n)
	copy(data, s.mem[:n])

	if err := c.drv.QueueBuffer(c.fd, s.index); err != nil {
		return Frame{}, c.fail(newError(KindDevice, op, "requeue buffer "+strconv.Itoa(int(s.index)), err))
	}
	s.owner = queuedToDriver

	return Frame{
		Data:      data,
		Index:     info.Index,
		Sequence:  info.Sequence,
		BytesUsed: info.BytesUsed,
		Timestamp: info.Timestamp,
		Captured:  time.Now(),
	}, nil
}
