//go:build linux

package v4l2

import (
	"golang.org/x/sys/unix"
)

// WaitReadable blocks until fd has a completed buffer or timeoutMs elapses.
// It returns false with a nil error on timeout. A negative timeout blocks forever.
func WaitReadable(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		break
	}

	revents := fds[0].Revents
	switch {
	case revents&unix.POLLNVAL != 0:
		return false, unix.EBADF
	case revents&unix.POLLIN != 0:
		return true, nil
	case revents&(unix.POLLERR|unix.POLLHUP) != 0:
		// streaming is off or the device went away
		return false, unix.EIO
	}
	return false, nil
}
