// Package devices lists V4L2 capture nodes and reports them coming and going.
package devices

import (
	"context"
	"log/slog"

	"github.com/smazurov/webcam/internal/events"
)

// Node describes one capture node.
type Node struct {
	Path   string `json:"path" example:"/dev/video0" doc:"Device node"`
	Name   string `json:"name" example:"HD Pro Webcam C920" doc:"Card name reported by the driver"`
	ID     string `json:"id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable identifier"`
	Driver string `json:"driver" example:"uvcvideo" doc:"Kernel driver"`
	Caps   uint32 `json:"caps" doc:"Effective V4L2 capability flags"`
}

// Publisher receives hotplug events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// Detector provides platform-specific device discovery.
type Detector interface {
	// FindDevices returns the capture nodes present now, ordered by node number.
	FindDevices() ([]Node, error)

	// StartMonitoring publishes a DeviceHotplugEvent for every video node
	// added or removed until ctx is done or StopMonitoring is called.
	StartMonitoring(ctx context.Context, pub Publisher) error

	// StopMonitoring stops the monitor started by StartMonitoring.
	StopMonitoring()
}

// NewDetector creates the detector for the running platform.
func NewDetector(logger *slog.Logger) Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return newDetector(logger)
}
