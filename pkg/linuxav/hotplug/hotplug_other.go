//go:build !linux

package hotplug

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrUnsupported is returned by NewMonitor off Linux.
var ErrUnsupported = errors.New("hotplug: netlink uevents require linux")

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

const SubsystemVideo4Linux = "video4linux"

type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
	Env       map[string]string
}

func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

func (e Event) Matches(devPath string) bool {
	n := e.Node()
	return n != "" && path.Clean(n) == path.Clean(devPath)
}

type Monitor struct{}

func NewMonitor() (*Monitor, error) { return nil, ErrUnsupported }

func (m *Monitor) AddSubsystemFilter(string) {}

func (m *Monitor) Close() error { return nil }

func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return ErrUnsupported
}
