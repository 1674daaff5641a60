package webcam

// ControlType mirrors the V4L2 control type codes.
type ControlType uint32

// Control types.
const (
	ControlInteger     ControlType = 1
	ControlBoolean     ControlType = 2
	ControlMenu        ControlType = 3
	ControlButton      ControlType = 4
	ControlInteger64   ControlType = 5
	ControlClass       ControlType = 6
	ControlString      ControlType = 7
	ControlBitmask     ControlType = 8
	ControlIntegerMenu ControlType = 9
)

var controlTypeNames = map[ControlType]string{
	ControlInteger:     "int",
	ControlBoolean:     "bool",
	ControlMenu:        "menu",
	ControlButton:      "button",
	ControlInteger64:   "int64",
	ControlClass:       "class",
	ControlString:      "string",
	ControlBitmask:     "bitmask",
	ControlIntegerMenu: "intmenu",
}

func (t ControlType) String() string {
	if s, ok := controlTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// MenuItem is one choice of a menu control.
type MenuItem struct {
	Index uint32 `json:"index"`
	Name  string `json:"name,omitempty"`
	Value int64  `json:"value,omitempty"`
}

// ControlInfo describes a device control and its current value.
type ControlInfo struct {
	ID       uint32      `json:"id"`
	Name     string      `json:"name"`
	Type     ControlType `json:"type"`
	Minimum  int32       `json:"minimum"`
	Maximum  int32       `json:"maximum"`
	Step     int32       `json:"step"`
	Default  int32       `json:"default"`
	Value    int32       `json:"value"`
	Flags    uint32      `json:"flags"`
	Disabled bool        `json:"-"`
	Menu     []MenuItem  `json:"menu,omitempty"`
}

const (
	ctrlFlagNextCtrl = 0x80000000
	maxControls      = 1024
	maxMenuItems     = 256
)

// Controls enumerates the device's controls with their current values and
// menu entries. It is read-only and safe to call in any session state.
func (c *Camera) Controls() ([]ControlInfo, error) {
	const op = "query controls"
	if !c.IsOpen() {
		return nil, c.fail(newError(KindDevice, op, "", errNotOpen))
	}

	var controls []ControlInfo
	id := uint32(0)
	for range maxControls {
		ctrl, err := c.drv.QueryControl(c.fd, id|ctrlFlagNextCtrl)
		if err != nil {
			break // end of list
		}
		id = ctrl.ID
		if ctrl.Disabled || ctrl.Type == ControlClass {
			continue
		}

		switch ctrl.Type {
		case ControlButton, ControlString, ControlInteger64:
		default:
			if v, err := c.drv.GetControl(c.fd, ctrl.ID); err == nil {
				ctrl.Value = v
			} else {
				c.log.Debug("read control", "device", c.path, "control", ctrl.Name, "error", err)
			}
		}

		if ctrl.Type == ControlMenu || ctrl.Type == ControlIntegerMenu {
			ctrl.Menu = c.menu(ctrl)
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

// Control reads the current value of control id.
func (c *Camera) Control(id uint32) (int32, error) {
	const op = "get control"
	if !c.IsOpen() {
		return 0, c.fail(newError(KindDevice, op, "", errNotOpen))
	}
	v, err := c.drv.GetControl(c.fd, id)
	if err != nil {
		return 0, c.fail(newError(KindDevice, op, "", err))
	}
	return v, nil
}

// menu returns the valid entries of a menu control. Sparse menus have holes.
func (c *Camera) menu(ctrl ControlInfo) []MenuItem {
	var items []MenuItem
	for i := ctrl.Minimum; i <= ctrl.Maximum && i >= 0 && i-ctrl.Minimum < maxMenuItems; i++ {
		item, err := c.drv.QueryMenu(c.fd, ctrl.ID, uint32(i))
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}
