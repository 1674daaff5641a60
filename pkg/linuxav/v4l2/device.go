//go:build linux

package v4l2

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const sysfsVideo = "/sys/class/video4linux"

// FindDevices finds all V4L2 nodes that can capture video.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideo)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		info, err := Describe(devicePath)
		if err != nil {
			slog.Debug("skipping video node", "path", devicePath, "error", err)
			continue
		}
		if info.Caps&CapVideoCapture == 0 {
			continue
		}

		busInfo := info.DeviceID
		indexValue := readSysfsInt(filepath.Join(sysfsVideo, entry.Name(), "index"))
		info.DeviceID = findStableID(entry.Name(), indexValue)
		if info.DeviceID == "" {
			info.DeviceID = syntheticID(busInfo, indexValue)
		}

		devices = append(devices, info)
	}

	sort.Slice(devices, func(i, j int) bool {
		return nodeNumber(devices[i].DevicePath) < nodeNumber(devices[j].DevicePath)
	})
	return devices, nil
}

// Describe opens devicePath briefly and reports its identity and effective capabilities.
func Describe(devicePath string) (DeviceInfo, error) {
	fd, err := Open(devicePath)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer Close(fd)

	c, err := QueryCapability(fd)
	if err != nil {
		return DeviceInfo{}, err
	}

	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: c.Card,
		DeviceID:   c.BusInfo, // replaced by a stable ID in FindDevices
		Driver:     c.Driver,
		Caps:       c.Effective(),
	}, nil
}

// syntheticID builds an identifier from bus info when udev provides no by-id link.
func syntheticID(busInfo string, index int) string {
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// nodeNumber extracts N from /dev/videoN, or -1.
func nodeNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	if err != nil {
		return -1
	}
	return n
}
