//go:build !linux

package devices

import (
	"context"
	"errors"
	"log/slog"
)

var errUnsupported = errors.New("device discovery requires linux")

type otherDetector struct{}

func newDetector(*slog.Logger) Detector { return otherDetector{} }

func (otherDetector) FindDevices() ([]Node, error) { return nil, errUnsupported }

func (otherDetector) StartMonitoring(context.Context, Publisher) error { return errUnsupported }

func (otherDetector) StopMonitoring() {}
