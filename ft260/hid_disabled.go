//go:build (!linux && !darwin && !windows) || ios || !cgo
// +build !linux,!darwin,!windows ios !cgo

package ft260

import "github.com/antongulenko/hid"

// Without cgo the HID library cannot exchange feature reports
func openDevice(info hid.DeviceInfo) (HidDevice, error) {
	return nil, hid.ErrUnsupportedPlatform
}
