//go:build linux

package v4l2

import "unsafe"

// QueryControl describes control id. OR id with CtrlFlagNextCtrl to get the
// control that follows it.
func QueryControl(fd int, id uint32) (Control, error) {
	q := v4l2Queryctrl{id: id}
	if err := xioctl(fd, vidiocQueryctrl, unsafe.Pointer(&q)); err != nil {
		return Control{}, err
	}
	return Control{
		ID:      q.id,
		Type:    q.typ,
		Name:    cstr(q.name[:]),
		Minimum: q.minimum,
		Maximum: q.maximum,
		Step:    q.step,
		Default: q.defaultValue,
		Flags:   q.flags,
	}, nil
}

// QueryMenu returns one menu entry. Drivers answer EINVAL for holes in sparse menus.
func QueryMenu(fd int, id, index uint32) (MenuItem, error) {
	m := v4l2Querymenu{id: id, index: index}
	if err := xioctl(fd, vidiocQuerymenu, unsafe.Pointer(&m)); err != nil {
		return MenuItem{}, err
	}
	return MenuItem{
		Index: m.index,
		Name:  cstr(m.name[:]),
		Value: m.value(),
	}, nil
}

// GetControl reads the current value of control id.
func GetControl(fd int, id uint32) (int32, error) {
	c := v4l2Control{id: id}
	if err := xioctl(fd, vidiocGCtrl, unsafe.Pointer(&c)); err != nil {
		return 0, err
	}
	return c.value, nil
}
