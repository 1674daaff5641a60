//go:build !linux

package webcam

import "errors"

var errNoV4L2 = errors.New("V4L2 is only available on linux")

// SystemDriver returns a driver that fails to open any device.
func SystemDriver() Driver { return unsupportedDriver{} }

// unsupportedDriver rejects Open, so no other method is ever reached.
type unsupportedDriver struct{ Driver }

func (unsupportedDriver) IsCharDevice(string) (bool, error) { return false, errNoV4L2 }
func (unsupportedDriver) Open(string) (int, error)          { return -1, errNoV4L2 }
func (unsupportedDriver) Close(int) error                   { return nil }
