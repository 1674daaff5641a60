package devices

import (
	"fmt"
	"path/filepath"
	"strings"
)

var v4lDir = "/dev/v4l"

// ResolveDevicePath turns a stable device ID from /dev/v4l/by-id or
// /dev/v4l/by-path into the /dev/videoN node it points at, so hotplug
// events can be matched against it. Paths and bare node numbers are
// returned unchanged.
func ResolveDevicePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/") {
		if strings.HasPrefix(deviceID, v4lDir+"/") {
			return filepath.EvalSymlinks(deviceID)
		}
		return deviceID, nil
	}
	if !strings.HasPrefix(deviceID, "usb-") && !strings.HasPrefix(deviceID, "platform-") && !strings.HasPrefix(deviceID, "pci-") {
		return deviceID, nil
	}

	for _, dir := range []string{"by-id", "by-path"} {
		if target, err := filepath.EvalSymlinks(filepath.Join(v4lDir, dir, deviceID)); err == nil {
			return target, nil
		}
	}
	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}
