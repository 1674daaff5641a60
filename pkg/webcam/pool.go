package webcam

import "strconv"

// owner records which side holds a buffer. The kernel is never visible to the
// Go memory model, so the hand-off is tracked explicitly per slot.
type owner uint8

const (
	ownedByApp owner = iota
	queuedToDriver
)

func (o owner) String() string {
	if o == queuedToDriver {
		return "driver"
	}
	return "app"
}

// slot is one mapped driver buffer.
type slot struct {
	index     uint32
	mem       []byte
	offset    uint32
	length    uint32
	bytesUsed uint32
	owner     owner
}

// bufferPool is an arena of slots indexed by the driver-assigned buffer index.
type bufferPool struct {
	slots []slot
	// mapped counts slots with live mappings; teardown unmaps exactly these.
	mapped int
}

// Allocate requests the buffer pool, maps every buffer and queues it to the
// driver. It is a no-op when a pool already exists. On failure every
// mapping made so far is released.
func (c *Camera) Allocate() error {
	const op = "allocate buffers"
	if c.pool != nil {
		return nil
	}
	if !c.IsOpen() {
		return c.fail(newError(KindDevice, op, "", errNotOpen))
	}
	if !c.IsVideoCaptureDevice() {
		return c.fail(newError(KindPrecondition, op, "capability not queried or device cannot capture video", nil))
	}
	if !c.CanStream() {
		return c.fail(newError(KindUnsupported, op, "device does not support streaming i/o", nil))
	}

	granted, err := c.drv.RequestBuffers(c.fd, c.bufferCount)
	if err != nil {
		return c.fail(newError(KindDevice, op, "request buffers", err))
	}
	if granted < MinBufferCount {
		c.freeDriverBuffers()
		return c.fail(newError(KindResource, op,
			"insufficient buffer memory: driver granted "+strconv.FormatUint(uint64(granted), 10), nil))
	}

	pool := &bufferPool{slots: make([]slot, granted)}
	for i := uint32(0); i < granted; i++ {
		info, err := c.drv.QueryBuffer(c.fd, i)
		if err != nil {
			c.teardown(pool)
			return c.fail(newError(KindDevice, op, "query buffer "+strconv.Itoa(int(i)), err))
		}
		mem, err := c.drv.Mmap(c.fd, info.Offset, info.Length)
		if err != nil {
			c.teardown(pool)
			return c.fail(newError(KindIO, op, "map buffer "+strconv.Itoa(int(i)), err))
		}
		pool.slots[i] = slot{
			index:  i,
			mem:    mem,
			offset: info.Offset,
			length: info.Length,
		}
		pool.mapped = int(i) + 1
	}

	for i := range pool.slots {
		if err := c.drv.QueueBuffer(c.fd, pool.slots[i].index); err != nil {
			c.teardown(pool)
			return c.fail(newError(KindDevice, op, "queue buffer "+strconv.Itoa(i), err))
		}
		pool.slots[i].owner = queuedToDriver
	}

	c.pool = pool
	c.log.Debug("buffers mapped and queued", "device", c.path, "count", granted)
	return nil
}

// Release unmaps every mapped buffer and frees the driver's pool. A second
// call finds no pool and does nothing.
func (c *Camera) Release() {
	pool := c.pool
	if pool == nil {
		return
	}
	c.pool = nil
	c.teardown(pool)
	c.log.Debug("buffers released", "device", c.path)
}

// teardown is the single releaser for a pool.
func (c *Camera) teardown(pool *bufferPool) {
	for i := 0; i < pool.mapped; i++ {
		s := &pool.slots[i]
		if err := c.drv.Munmap(s.mem); err != nil {
			c.log.Warn("unmap failed", "device", c.path, "index", s.index, "error", err)
		}
		s.mem = nil
		s.owner = ownedByApp
	}
	pool.mapped = 0
	c.freeDriverBuffers()
}

// freeDriverBuffers asks the driver to drop its buffers. Best effort.
func (c *Camera) freeDriverBuffers() {
	if !c.IsOpen() {
		return
	}
	if _, err := c.drv.RequestBuffers(c.fd, 0); err != nil {
		c.log.Debug("free driver buffers", "device", c.path, "error", err)
	}
}

// BufferCount returns the number of mapped buffers, or 0 without a pool.
func (c *Camera) BufferCount() int {
	if c.pool == nil {
		return 0
	}
	return c.pool.mapped
}
