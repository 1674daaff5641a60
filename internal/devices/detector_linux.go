//go:build linux

package devices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/pkg/linuxav/hotplug"
	"github.com/smazurov/webcam/pkg/linuxav/v4l2"
)

type linuxDetector struct {
	logger *slog.Logger
	find   func() ([]v4l2.DeviceInfo, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	known  map[string]Node // key is Path
}

func newDetector(logger *slog.Logger) Detector {
	return &linuxDetector{
		logger: logger,
		find:   v4l2.FindDevices,
		known:  make(map[string]Node),
	}
}

// FindDevices returns all currently available capture nodes.
func (d *linuxDetector) FindDevices() ([]Node, error) {
	found, err := d.find()
	if err != nil {
		return nil, err
	}
	devices := make([]Node, len(found))
	for i, dev := range found {
		devices[i] = Node{
			Path:   dev.DevicePath,
			Name:   dev.DeviceName,
			ID:     dev.DeviceID,
			Driver: dev.Driver,
			Caps:   dev.Caps,
		}
	}
	return devices, nil
}

// StartMonitoring listens to video4linux uevents on netlink.
func (d *linuxDetector) StartMonitoring(ctx context.Context, pub Publisher) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return fmt.Errorf("device monitor already running")
	}

	mon, err := hotplug.NewMonitor()
	if err != nil {
		return fmt.Errorf("open uevent socket: %w", err)
	}
	mon.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	if devices, err := d.FindDevices(); err != nil {
		d.logger.Warn("Failed to get initial device list", "error", err)
	} else {
		for _, dev := range devices {
			d.known[dev.Path] = dev
		}
		d.logger.Info("Initialized with V4L2 devices", "count", len(devices))
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	ch := make(chan hotplug.Event, 16)

	go func() {
		if err := mon.Run(ctx, ch); err != nil && ctx.Err() == nil {
			d.logger.Error("Uevent monitor failed", "error", err)
		}
	}()
	go func(done chan struct{}) {
		defer close(done)
		defer mon.Close()
		d.logger.Info("Hotplug monitoring started")
		for ev := range ch {
			d.handle(ev, pub)
		}
		d.logger.Info("Hotplug monitor stopped")
	}(d.done)
	return nil
}

// StopMonitoring cancels the monitor and waits for it to exit.
func (d *linuxDetector) StopMonitoring() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// handle publishes add and remove events for capture nodes. Nodes that
// cannot capture (metadata nodes of the same camera) are skipped on add.
func (d *linuxDetector) handle(ev hotplug.Event, pub Publisher) {
	node := ev.Node()
	if node == "" {
		return
	}

	switch ev.Action {
	case hotplug.ActionAdd:
		dev, ok := d.lookup(node)
		if !ok {
			d.logger.Debug("Ignoring non-capture node", "device", node)
			return
		}
		d.mu.Lock()
		d.known[node] = dev
		d.mu.Unlock()
		d.logger.Info("Device added", "device", node, "name", dev.Name, "id", dev.ID)

	case hotplug.ActionRemove:
		d.mu.Lock()
		dev, ok := d.known[node]
		delete(d.known, node)
		d.mu.Unlock()
		if !ok {
			return
		}
		d.logger.Info("Device removed", "device", node, "name", dev.Name, "id", dev.ID)

	default:
		return
	}

	pub.Publish(events.DeviceHotplugEvent{
		Device:    node,
		Action:    ev.Action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// lookup rescans and returns the entry for node. The kernel may announce
// the node slightly before it can be opened, so it retries briefly.
func (d *linuxDetector) lookup(node string) (Node, bool) {
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(200 * time.Millisecond)
		}
		devices, err := d.FindDevices()
		if err != nil {
			d.logger.Debug("Rescan failed", "error", err)
			continue
		}
		for _, dev := range devices {
			if dev.Path == node {
				return dev, true
			}
		}
	}
	return Node{}, false
}
