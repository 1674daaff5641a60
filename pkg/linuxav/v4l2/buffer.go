//go:build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// RequestBuffers asks the driver for count mmap capture buffers and returns
// how many it granted. A count of zero frees the driver's buffers.
func RequestBuffers(fd int, count uint32) (uint32, error) {
	req := v4l2Requestbuffers{
		count:  count,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := xioctl(fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

// QueryBuffer returns the length and mmap offset of buffer index.
func QueryBuffer(fd int, index uint32) (Buffer, error) {
	b := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := xioctl(fd, vidiocQuerybuf, unsafe.Pointer(&b)); err != nil {
		return Buffer{}, err
	}
	return b.decode(), nil
}

// QueueBuffer hands buffer index to the driver.
func QueueBuffer(fd int, index uint32) error {
	b := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	return xioctl(fd, vidiocQbuf, unsafe.Pointer(&b))
}

// DequeueBuffer takes one filled buffer from the driver. On a non-blocking
// descriptor it returns EAGAIN when nothing is ready.
func DequeueBuffer(fd int) (Buffer, error) {
	b := v4l2Buffer{
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := xioctl(fd, vidiocDqbuf, unsafe.Pointer(&b)); err != nil {
		return Buffer{}, err
	}
	return b.decode(), nil
}

// StreamOn starts the capture queue.
func StreamOn(fd int) error {
	typ := uint32(BufTypeVideoCapture)
	return xioctl(fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff stops the capture queue and returns every buffer to the application.
func StreamOff(fd int) error {
	typ := uint32(BufTypeVideoCapture)
	return xioctl(fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// Mmap maps a driver buffer read-write and shared.
func Mmap(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Munmap releases a region returned by Mmap.
func Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (b *v4l2Buffer) decode() Buffer {
	return Buffer{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Field:     b.field,
		Sequence:  b.sequence,
		Offset:    b.offset,
		Length:    b.length,
		Timestamp: b.timestamp.duration(),
	}
}
