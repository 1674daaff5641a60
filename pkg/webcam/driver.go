package webcam

// Driver is the kernel surface a Camera drives. SystemDriver talks to V4L2
// through ioctl; tests substitute a simulated device.
//
// Enumeration calls signal the end of the list with any error.
type Driver interface {
	IsCharDevice(path string) (bool, error)
	Open(path string) (int, error)
	Close(fd int) error

	QueryCapability(fd int) (Capability, error)
	EnumInput(fd int, index uint32) (Input, error)
	SetInput(fd int, index uint32) error

	EnumFormat(fd int, index uint32) (FormatDesc, error)
	TryFormat(fd int, f PixFormat) (PixFormat, error)
	SetFormat(fd int, f PixFormat) (PixFormat, error)
	EnumFrameSizes(fd int, f PixelFormat) ([]FrameSize, error)
	EnumFrameIntervals(fd int, f PixelFormat, width, height uint32) ([]Fraction, error)
	GetFrameInterval(fd int) (Fraction, error)
	SetFrameInterval(fd int, interval Fraction) (Fraction, error)

	RequestBuffers(fd int, count uint32) (uint32, error)
	QueryBuffer(fd int, index uint32) (BufferInfo, error)
	Mmap(fd int, offset, length uint32) ([]byte, error)
	Munmap(mem []byte) error
	QueueBuffer(fd int, index uint32) error
	DequeueBuffer(fd int) (BufferInfo, error)
	StreamOn(fd int) error
	StreamOff(fd int) error
	WaitReadable(fd int, timeoutMs int) (bool, error)

	QueryControl(fd int, id uint32) (ControlInfo, error)
	QueryMenu(fd int, id, index uint32) (MenuItem, error)
	GetControl(fd int, id uint32) (int32, error)
}
