//go:build (linux && cgo) || (darwin && !ios && cgo) || (windows && cgo)
// +build linux,cgo darwin,!ios,cgo windows,cgo

package ft260

import "github.com/antongulenko/hid"

func openDevice(info hid.DeviceInfo) (HidDevice, error) {
	dev, err := info.Open()
	if err != nil {
		return nil, err
	}
	return dev, nil
}
