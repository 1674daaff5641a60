//go:build linux

package v4l2

import "unsafe"

// GetStreamParm reads the capture streaming parameters.
func GetStreamParm(fd int) (StreamParm, error) {
	p := v4l2Streamparm{typ: BufTypeVideoCapture}
	if err := xioctl(fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return StreamParm{}, err
	}
	return StreamParm{
		Capability:   p.capture.capability,
		TimePerFrame: fract(p.capture.timeperframe),
		ReadBuffers:  p.capture.readbuffers,
	}, nil
}

// SetFrameInterval requests a time per frame and returns what the driver applied.
func SetFrameInterval(fd int, interval Framerate) (Framerate, error) {
	p := v4l2Streamparm{typ: BufTypeVideoCapture}
	p.capture.timeperframe = v4l2Fract{
		numerator:   interval.Numerator,
		denominator: interval.Denominator,
	}
	if err := xioctl(fd, vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, err
	}
	return fract(p.capture.timeperframe), nil
}
