//go:build linux

package v4l2

import "unsafe"

// QueryCapability issues VIDIOC_QUERYCAP.
func QueryCapability(fd int) (Capability, error) {
	c := v4l2Capability{}
	if err := xioctl(fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      c.version,
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}, nil
}

// EnumInput returns the input at index. The kernel answers EINVAL past the last one.
func EnumInput(fd int, index uint32) (Input, error) {
	in := v4l2Input{index: index}
	if err := xioctl(fd, vidiocEnuminput, unsafe.Pointer(&in)); err != nil {
		return Input{}, err
	}
	return Input{
		Index:  in.index,
		Name:   cstr(in.name[:]),
		Type:   in.typ,
		Status: in.status,
	}, nil
}

// GetInput returns the index of the active input.
func GetInput(fd int) (uint32, error) {
	var index uint32
	if err := xioctl(fd, vidiocGInput, unsafe.Pointer(&index)); err != nil {
		return 0, err
	}
	return index, nil
}

// SetInput selects the active input.
func SetInput(fd int, index uint32) error {
	return xioctl(fd, vidiocSInput, unsafe.Pointer(&index))
}
