package board

import (
	"flag"
	"fmt"

	"github.com/antongulenko/ads7830/ads7830"
	"github.com/antongulenko/ads7830/bus"
	"github.com/antongulenko/ads7830/ft260"
	"github.com/antongulenko/ads7830/periphbus"
	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	log "github.com/sirupsen/logrus"
)

const (
	TransportFT260 = "ft260"
	TransportLinux = "linux"
)

var DefaultBoard = Board{
	Transport:       TransportFT260,
	UsbDevice:       "",
	LinuxBus:        "",
	I2cFreq:         uint(400),
	I2cRequestQueue: 20,
	Adc: Adc{
		I2cAddr:          ads7830.ADDRESS,
		PowerDown:        ads7830.PD_DEFAULT,
		ReferenceVoltage: 2.5, // Internal reference
	},
}

// Board connects the ADC through one of the supported I2C transports.
type Board struct {
	Transport       string
	UsbDevice       string
	LinuxBus        string
	I2cFreq         uint
	I2cRequestQueue int
	NoI2cSequencer  bool
	Dummy           bool

	Adc Adc

	hidInitialized bool
	usb            *ft260.Ft260
	linux          *periphbus.Bus
	sequencer      *bus.Sequencer
	bus            bus.I2cBus
}

func (b *Board) RegisterFlags() {
	flag.StringVar(&b.Transport, "transport", b.Transport, fmt.Sprintf("I2C transport, one of: %v, %v", TransportFT260, TransportLinux))
	flag.StringVar(&b.UsbDevice, "dev", b.UsbDevice, "Specify a USB path for FT260")
	flag.StringVar(&b.LinuxBus, "bus", b.LinuxBus, "Name or number of the Linux I2C bus (default: first bus)")
	flag.UintVar(&b.I2cFreq, "freq", b.I2cFreq, "The I2C bus frequency in kHz (60 - 3400)")
	flag.BoolVar(&b.NoI2cSequencer, "no-i2c-sequencer", b.NoI2cSequencer, "Disable the extra goroutine for sequencing I2C commands")
	flag.BoolVar(&b.Dummy, "dummy", b.Dummy, "Disable USB/I2C peripherals")
	b.Adc.RegisterFlags()
}

// Setup opens the transport and initializes the ADC. Everything opened so far is
// released again when an error is returned.
func (b *Board) Setup() (err error) {
	defer func() {
		if err != nil {
			b.Cleanup()
		}
	}()
	var transport bus.Transport
	if b.Dummy {
		log.Println("Dummy board: skipping initialization of USB/I2C peripherals")
		transport = new(bus.Dummy)
	} else {
		transport, err = b.openTransport()
		if err != nil {
			return err
		}
	}
	if !b.NoI2cSequencer {
		b.sequencer = bus.NewSequencer(transport, b.I2cRequestQueue)
		b.sequencer.Start()
		transport = b.sequencer
	}
	b.bus = bus.Locked(transport)
	if err = b.Adc.Init(b.bus); err != nil {
		return err
	}
	log.Println("Successfully initialized I2C peripherals")
	return nil
}

func (b *Board) openTransport() (bus.Transport, error) {
	switch b.Transport {
	case TransportFT260:
		// Prepare Usb HID library, open FT260 device
		if err := hid.Init(); err != nil {
			return nil, err
		}
		b.hidInitialized = true
		usb, err := ft260.OpenPath(b.UsbDevice)
		if err != nil {
			return nil, err
		}
		b.usb = usb
		if err := usb.ValidateChipCode(); err != nil {
			return nil, err
		}
		if err := usb.Configure(b.I2cFreq); err != nil {
			return nil, err
		}
		if err := usb.Validate(b.I2cFreq); err != nil {
			return nil, err
		}
		return usb, nil
	case TransportLinux:
		linux, err := periphbus.Open(b.LinuxBus, b.I2cFreq)
		if err != nil {
			return nil, err
		}
		b.linux = linux
		return linux, nil
	default:
		return nil, fmt.Errorf("Unknown I2C transport %q (available: %v, %v)", b.Transport, TransportFT260, TransportLinux)
	}
}

// Bus is only available after Setup()
func (b *Board) Bus() bus.I2cBus {
	return b.bus
}

func (b *Board) Cleanup() {
	if b.sequencer != nil {
		b.sequencer.Stop()
	}
	if b.usb != nil {
		golib.Printerr(b.usb.Close())
		b.usb = nil
	}
	if b.hidInitialized {
		golib.Printerr(hid.Shutdown())
		b.hidInitialized = false
	}
	if b.linux != nil {
		golib.Printerr(b.linux.Close())
		b.linux = nil
	}
}
