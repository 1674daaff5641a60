// Package webcamtest provides a simulated V4L2 device for tests.
package webcamtest

import (
	"fmt"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/webcam/pkg/webcam"
)

// Driver is an in-memory webcam.Driver. Exported fields script its
// behavior and must be set before the Camera uses it; counters are read
// through methods so they can be inspected while a Runner is active.
type Driver struct {
	// Device identity.
	NotCharDevice bool
	StatErr       error
	OpenErr       error
	Caps          webcam.Capability
	QueryCapErr   error

	Inputs      []webcam.Input
	SetInputErr error

	// Formats advertised, and the sizes the driver can produce per format.
	// TryFormat and SetFormat snap to the closest listed size.
	Formats   []webcam.FormatDesc
	Sizes     map[webcam.PixelFormat][]webcam.FrameSize
	Intervals []webcam.Fraction
	// SubstituteCodec, when set, replaces the codec on try and set.
	SubstituteCodec webcam.PixelFormat
	TryErr          error
	SetFormatErr    error

	Interval   webcam.Fraction
	GetParmErr error
	SetParmErr error

	// MaxBuffers caps how many buffers RequestBuffers grants; negative grants all.
	MaxBuffers   int
	BufferLen    uint32
	RequestErr   error
	QueryBufErr  error
	MmapFailAt   int // 0-based Mmap call that fails; -1 disables
	QueueFailAt  int // 0-based QueueBuffer call that fails; -1 disables
	StreamOnErr  error
	StreamOffErr error

	// NotReady simulates a device that never completes a frame.
	NotReady   bool
	WaitErr    error
	DequeueErr error

	Controls []webcam.ControlInfo
	Menus    map[uint32][]webcam.MenuItem
	Values   map[uint32]int32

	mu        sync.Mutex
	nextFD    int
	open      map[int]bool
	closes    int
	current   webcam.PixFormat
	selected  uint32
	requests  []uint32
	granted   uint32
	kernel    [][]byte
	mmaps     int
	live      int
	unmaps    int
	queueN    int
	queued    []uint32
	dequeued  []uint32
	fifo      []uint32
	doubleQ   int
	streaming bool
	sequence  uint32
	payloads  [][]byte
}

// NewDriver returns a USB webcam offering MJPEG at 1280x720 and 640x480
// and YUYV at 640x480.
func NewDriver() *Driver {
	return &Driver{
		Caps: webcam.Capability{
			Driver:  "uvcvideo",
			Card:    "Simulated Camera",
			BusInfo: "usb-0000:00:14.0-1",
			Version: "6.8.0",
			Caps:    webcam.CapVideoCapture | webcam.CapStreaming,
		},
		Inputs: []webcam.Input{{Index: 0, Name: "Camera 1", Type: 2}},
		Formats: []webcam.FormatDesc{
			{Index: 0, PixelFormat: webcam.FormatMJPEG, Description: "Motion-JPEG"},
			{Index: 1, PixelFormat: webcam.FormatYUYV422, Description: "YUYV 4:2:2"},
		},
		Sizes: map[webcam.PixelFormat][]webcam.FrameSize{
			webcam.FormatMJPEG:   {{Width: 1280, Height: 720}, {Width: 640, Height: 480}},
			webcam.FormatYUYV422: {{Width: 640, Height: 480}},
		},
		Intervals:   []webcam.Fraction{{Numerator: 1, Denominator: 30}, {Numerator: 1, Denominator: 15}},
		Interval:    webcam.Fraction{Numerator: 1, Denominator: 30},
		MaxBuffers:  -1,
		BufferLen:   64 * 1024,
		MmapFailAt:  -1,
		QueueFailAt: -1,
		Controls: []webcam.ControlInfo{
			{ID: 0x00980900, Name: "Brightness", Type: webcam.ControlInteger, Minimum: -64, Maximum: 64, Step: 1},
			{ID: 0x00980918, Name: "Power Line Frequency", Type: webcam.ControlMenu, Maximum: 2, Step: 1, Default: 1},
		},
		Menus: map[uint32][]webcam.MenuItem{
			0x00980918: {{Index: 0, Name: "Disabled"}, {Index: 1, Name: "50 Hz"}, {Index: 2, Name: "60 Hz"}},
		},
		Values: map[uint32]int32{0x00980900: 10, 0x00980918: 1},
		nextFD: 3,
		open:   make(map[int]bool),
	}
}

// SetWaitErr makes every readiness wait fail with err, or succeed again
// when err is nil. Safe to call while a Runner is active.
func (d *Driver) SetWaitErr(err error) {
	d.mu.Lock()
	d.WaitErr = err
	d.mu.Unlock()
}

// SetNotReady toggles NotReady while a Runner is active.
func (d *Driver) SetNotReady(v bool) {
	d.mu.Lock()
	d.NotReady = v
	d.mu.Unlock()
}

// SetOpenErr makes Open fail with err, or succeed again when err is nil.
func (d *Driver) SetOpenErr(err error) {
	d.mu.Lock()
	d.OpenErr = err
	d.mu.Unlock()
}

// PushFrame schedules payload as the content of the next dequeued buffer.
func (d *Driver) PushFrame(payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, slices.Clone(payload))
}

func (d *Driver) IsCharDevice(string) (bool, error) {
	if d.StatErr != nil {
		return false, d.StatErr
	}
	return !d.NotCharDevice, nil
}

func (d *Driver) Open(string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return -1, d.OpenErr
	}
	fd := d.nextFD
	d.nextFD++
	d.open[fd] = true
	return fd, nil
}

func (d *Driver) Close(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[fd] {
		return syscall.EBADF
	}
	delete(d.open, fd)
	d.closes++
	return nil
}

func (d *Driver) QueryCapability(int) (webcam.Capability, error) {
	return d.Caps, d.QueryCapErr
}

func (d *Driver) EnumInput(_ int, index uint32) (webcam.Input, error) {
	if int(index) >= len(d.Inputs) {
		return webcam.Input{}, syscall.EINVAL
	}
	return d.Inputs[index], nil
}

func (d *Driver) SetInput(_ int, index uint32) error {
	if d.SetInputErr != nil {
		return d.SetInputErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = index
	return nil
}

func (d *Driver) EnumFormat(_ int, index uint32) (webcam.FormatDesc, error) {
	if int(index) >= len(d.Formats) {
		return webcam.FormatDesc{}, syscall.EINVAL
	}
	return d.Formats[index], nil
}

func (d *Driver) TryFormat(_ int, f webcam.PixFormat) (webcam.PixFormat, error) {
	if d.TryErr != nil {
		return webcam.PixFormat{}, d.TryErr
	}
	return d.fit(f), nil
}

func (d *Driver) SetFormat(_ int, f webcam.PixFormat) (webcam.PixFormat, error) {
	if d.SetFormatErr != nil {
		return webcam.PixFormat{}, d.SetFormatErr
	}
	out := d.fit(f)
	d.mu.Lock()
	d.current = out
	d.mu.Unlock()
	return out, nil
}

// fit snaps f to the closest supported size, like a real driver.
func (d *Driver) fit(f webcam.PixFormat) webcam.PixFormat {
	if d.SubstituteCodec != webcam.FormatNone {
		f.PixelFormat = d.SubstituteCodec
	}
	sizes := d.Sizes[f.PixelFormat]
	if len(sizes) > 0 {
		best := sizes[0]
		bestDist := distance(best, f)
		for _, s := range sizes[1:] {
			if dist := distance(s, f); dist < bestDist {
				best, bestDist = s, dist
			}
		}
		f.Width, f.Height = best.Width, best.Height
	}
	f.Field = 1
	f.BytesPerLine = f.Width * 2
	f.SizeImage = f.Width * f.Height * 2
	return f
}

func distance(s webcam.FrameSize, f webcam.PixFormat) int64 {
	dw := int64(s.Width) - int64(f.Width)
	dh := int64(s.Height) - int64(f.Height)
	return dw*dw + dh*dh
}

func (d *Driver) EnumFrameSizes(_ int, f webcam.PixelFormat) ([]webcam.FrameSize, error) {
	return slices.Clone(d.Sizes[f]), nil
}

func (d *Driver) EnumFrameIntervals(int, webcam.PixelFormat, uint32, uint32) ([]webcam.Fraction, error) {
	return slices.Clone(d.Intervals), nil
}

func (d *Driver) GetFrameInterval(int) (webcam.Fraction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Interval, d.GetParmErr
}

func (d *Driver) SetFrameInterval(_ int, interval webcam.Fraction) (webcam.Fraction, error) {
	if d.SetParmErr != nil {
		return webcam.Fraction{}, d.SetParmErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Interval = interval
	return interval, nil
}

func (d *Driver) RequestBuffers(_ int, count uint32) (uint32, error) {
	if d.RequestErr != nil {
		return 0, d.RequestErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, count)
	if count == 0 {
		d.granted = 0
		d.kernel = nil
		d.fifo = nil
		return 0, nil
	}
	granted := count
	if d.MaxBuffers >= 0 && granted > uint32(d.MaxBuffers) {
		granted = uint32(d.MaxBuffers)
	}
	d.granted = granted
	d.kernel = make([][]byte, granted)
	for i := range d.kernel {
		d.kernel[i] = make([]byte, d.BufferLen)
	}
	return granted, nil
}

func (d *Driver) QueryBuffer(_ int, index uint32) (webcam.BufferInfo, error) {
	if d.QueryBufErr != nil {
		return webcam.BufferInfo{}, d.QueryBufErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= d.granted {
		return webcam.BufferInfo{}, syscall.EINVAL
	}
	return webcam.BufferInfo{Index: index, Offset: index * d.BufferLen, Length: d.BufferLen}, nil
}

func (d *Driver) Mmap(_ int, offset, length uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.mmaps
	d.mmaps++
	if n == d.MmapFailAt {
		return nil, syscall.ENOMEM
	}
	index := offset / d.BufferLen
	if int(index) >= len(d.kernel) || length != d.BufferLen {
		return nil, syscall.EINVAL
	}
	d.live++
	return d.kernel[index], nil
}

func (d *Driver) Munmap([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unmaps++
	d.live--
	return nil
}

func (d *Driver) QueueBuffer(_ int, index uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.queueN
	d.queueN++
	if n == d.QueueFailAt {
		return syscall.EIO
	}
	if index >= d.granted {
		return syscall.EINVAL
	}
	if slices.Contains(d.fifo, index) {
		d.doubleQ++
		return syscall.EINVAL
	}
	d.queued = append(d.queued, index)
	d.fifo = append(d.fifo, index)
	return nil
}

func (d *Driver) DequeueBuffer(int) (webcam.BufferInfo, error) {
	if d.DequeueErr != nil {
		return webcam.BufferInfo{}, d.DequeueErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streaming || len(d.fifo) == 0 {
		return webcam.BufferInfo{}, syscall.EAGAIN
	}
	index := d.fifo[0]
	d.fifo = d.fifo[1:]
	d.dequeued = append(d.dequeued, index)

	payload := []byte(fmt.Sprintf("frame-%d", d.sequence))
	if len(d.payloads) > 0 {
		payload = d.payloads[0]
		d.payloads = d.payloads[1:]
	}
	n := copy(d.kernel[index], payload)
	d.sequence++

	return webcam.BufferInfo{
		Index:     index,
		Offset:    index * d.BufferLen,
		Length:    d.BufferLen,
		BytesUsed: uint32(n),
		Sequence:  d.sequence - 1,
		Timestamp: time.Duration(d.sequence) * 33 * time.Millisecond,
	}, nil
}

func (d *Driver) StreamOn(int) error {
	if d.StreamOnErr != nil {
		return d.StreamOnErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = true
	return nil
}

func (d *Driver) StreamOff(int) error {
	d.mu.Lock()
	d.streaming = false
	d.fifo = nil
	d.mu.Unlock()
	return d.StreamOffErr
}

func (d *Driver) WaitReadable(_ int, timeoutMs int) (bool, error) {
	d.mu.Lock()
	if err := d.WaitErr; err != nil {
		d.mu.Unlock()
		return false, err
	}
	ready := !d.NotReady && d.streaming && len(d.fifo) > 0
	d.mu.Unlock()
	if !ready && timeoutMs > 0 {
		time.Sleep(time.Millisecond)
	}
	return ready, nil
}

func (d *Driver) QueryControl(_ int, id uint32) (webcam.ControlInfo, error) {
	const next = 0x80000000
	if id&next != 0 {
		after := id &^ next
		var best *webcam.ControlInfo
		for i, c := range d.Controls {
			if c.ID > after && (best == nil || c.ID < best.ID) {
				best = &d.Controls[i]
			}
		}
		if best == nil {
			return webcam.ControlInfo{}, syscall.EINVAL
		}
		return *best, nil
	}
	for _, c := range d.Controls {
		if c.ID == id {
			return c, nil
		}
	}
	return webcam.ControlInfo{}, syscall.EINVAL
}

func (d *Driver) QueryMenu(_ int, id, index uint32) (webcam.MenuItem, error) {
	for _, m := range d.Menus[id] {
		if m.Index == index {
			return m, nil
		}
	}
	return webcam.MenuItem{}, syscall.EINVAL
}

func (d *Driver) GetControl(_ int, id uint32) (int32, error) {
	v, ok := d.Values[id]
	if !ok {
		return 0, syscall.EINVAL
	}
	return v, nil
}

// Stats is a snapshot of what the simulated device has observed.
type Stats struct {
	OpenFDs      int
	Closes       int
	Requests     []uint32
	Granted      uint32
	Mmaps        int
	LiveMappings int
	Unmaps       int
	Queued       []uint32
	Dequeued     []uint32
	DriverQueue  []uint32
	DoubleQueued int
	Streaming    bool
	Input        uint32
	Format       webcam.PixFormat
}

// Stats returns a snapshot of the recorded activity.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		OpenFDs:      len(d.open),
		Closes:       d.closes,
		Requests:     slices.Clone(d.requests),
		Granted:      d.granted,
		Mmaps:        d.mmaps,
		LiveMappings: d.live,
		Unmaps:       d.unmaps,
		Queued:       slices.Clone(d.queued),
		Dequeued:     slices.Clone(d.dequeued),
		DriverQueue:  slices.Clone(d.fifo),
		DoubleQueued: d.doubleQ,
		Streaming:    d.streaming,
		Input:        d.selected,
		Format:       d.current,
	}
}

// CountQueued returns how many times index was queued.
func (s Stats) CountQueued(index uint32) int {
	n := 0
	for _, q := range s.Queued {
		if q == index {
			n++
		}
	}
	return n
}

var _ webcam.Driver = (*Driver)(nil)
