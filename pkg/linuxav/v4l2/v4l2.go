//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for memory-mapped streaming capture.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm). Every function takes a
// raw descriptor obtained from Open and returns the kernel errno unwrapped,
// so callers can match it with errors.Is.
//
// # Device Enumeration
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Streaming
//
//	fd, _ := v4l2.Open("/dev/video0")
//	n, _ := v4l2.RequestBuffers(fd, 4)
//	for i := uint32(0); i < n; i++ {
//	    b, _ := v4l2.QueryBuffer(fd, i)
//	    mem, _ := v4l2.Mmap(fd, int64(b.Offset), int(b.Length))
//	    _ = v4l2.QueueBuffer(fd, i)
//	}
//	_ = v4l2.StreamOn(fd)
//	if ok, _ := v4l2.WaitReadable(fd, 100); ok {
//	    b, _ := v4l2.DequeueBuffer(fd)
//	    frame := append([]byte(nil), mem[:b.BytesUsed]...)
//	    _ = v4l2.QueueBuffer(fd, b.Index)
//	}
package v4l2
