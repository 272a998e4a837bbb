// Driver for the FTDI FT260 USB HID to I2C bridge.
// https://www.ftdichip.com/Support/Documents/DataSheets/ICs/DS_FT260.pdf
// https://www.ftdichip.com/Support/Documents/AppNotes/AN_394_User_Guide_for_FT260.pdf
package ft260

import (
	"errors"
	"fmt"
	"time"

	"github.com/antongulenko/hid"
	log "github.com/sirupsen/logrus"
)

const (
	FTDIVendorId   = 0x0403
	FT260ProductId = 0x6030

	// Largest HID report exchanged with the device, including the report ID
	MaxReportLen = 64

	// How long to wait for an input report on the interrupt endpoint
	DefaultReadTimeout = 100 * time.Millisecond
)

var ErrReadTimeout = errors.New("ft260: timed out waiting for input report")

// HidDevice is the part of *hid.Device used here. Feature reports go through the control
// endpoint, all other reports through the interrupt endpoints.
// A timeout of zero blocks until an input report arrives.
type HidDevice interface {
	DoWrite(b []byte, featureReport bool) (int, error)
	DoRead(b []byte, featureReport bool, timeout time.Duration) (int, error)
	Close() error
}

type Ft260Driver struct {
	Vendor  uint16
	Product uint16
	Path    string // Optional, selects one of multiple connected devices
}

func (d *Ft260Driver) Open() (*Ft260, error) {
	if !hid.Supported() {
		return nil, errors.New("The library github.com/antongulenko/hid is not supported on this platform")
	}
	vendor, product := d.Vendor, d.Product
	if vendor == 0 {
		vendor = FTDIVendorId
	}
	if product == 0 {
		product = FT260ProductId
	}
	devices := hid.Enumerate(vendor, product)
	if d.Path != "" {
		var matching []hid.DeviceInfo
		for _, info := range devices {
			if info.Path == d.Path {
				matching = append(matching, info)
			}
		}
		devices = matching
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("No USB HID device found with vendorID=%04x productID=%04x path=%q", vendor, product, d.Path)
	}
	if len(devices) > 1 {
		log.Warnf("Multiple devices connected with vendorID=%04x productID=%04x, using first", vendor, product)
	}
	info := devices[0]
	log.Printf("Opening USB HID device %v (USB %v): %v (%04x) from %v (%04x), Release %v",
		info.Path, info.Interface, info.Product, info.ProductID, info.Manufacturer, info.VendorID, info.Release)
	dev, err := openDevice(info)
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

func Open() (*Ft260, error) {
	return (&Ft260Driver{}).Open()
}

func OpenPath(path string) (*Ft260, error) {
	return (&Ft260Driver{Path: path}).Open()
}

type Ft260 struct {
	Device      HidDevice
	ReadTimeout time.Duration
}

func New(dev HidDevice) *Ft260 {
	return &Ft260{Device: dev, ReadTimeout: DefaultReadTimeout}
}

func (f *Ft260) Close() error {
	return f.Device.Close()
}

type ReportIn interface {
	ReportID() byte
	ReportLen() int // Without the report ID
	Unmarshall(data []byte) error
}

type ReportOut interface {
	ReportID() byte
	ReportLen() int // Without the report ID
	Marshall(data []byte) error
}

// Feature reports are exchanged through the control endpoint
type FeatureReport interface {
	IsFeatureReport() bool
}

func isFeature(report interface{}) bool {
	f, ok := report.(FeatureReport)
	return ok && f.IsFeatureReport()
}

func (f *Ft260) Write(report ReportOut) error {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	if err := report.Marshall(data[1:]); err != nil {
		return err
	}
	n, err := f.Device.DoWrite(data, isFeature(report))
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong write len (%v instead of %v)", n, len(data))
	}
	return err
}

// Read receives a report of the type requested by the given report. Reports with variable
// size and ID (VariableReport) may be shorter and carry a different report ID.
// Input reports that do not arrive within ReadTimeout result in ErrReadTimeout.
func (f *Ft260) Read(report ReportIn) error {
	variable := isVariable(report)
	size := report.ReportLen() + 1
	if variable {
		size = MaxReportLen
	}
	data := make([]byte, size)
	data[0] = report.ReportID()

	feature := isFeature(report)
	var timeout time.Duration
	if !feature {
		timeout = f.ReadTimeout
	}
	n, err := f.Device.DoRead(data, feature, timeout)
	if errors.Is(err, hid.ErrTimeout) || (err == nil && n == 0 && timeout > 0) {
		return ErrReadTimeout
	}
	if err != nil {
		return err
	}
	if !variable && n != len(data) {
		return fmt.Errorf("ft260: wrong read len (%v instead of %v)", n, len(data))
	}
	if n < 1 {
		return errors.New("ft260: empty report")
	}
	if !variable && data[0] != report.ReportID() {
		return fmt.Errorf("Unexpected report id (expected %02x, received %02x)", report.ReportID(), data[0])
	}
	return report.Unmarshall(data[1:n])
}

type VariableReport interface {
	IsVariableSize() bool
}

func isVariable(report interface{}) bool {
	v, ok := report.(VariableReport)
	return ok && v.IsVariableSize()
}
