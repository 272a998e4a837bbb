// Package periphbus accesses the Linux I2C character devices (/dev/i2c-*) through periph.io.
package periphbus

import (
	"fmt"
	"strings"

	"github.com/antongulenko/ads7830/bus"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type Bus struct {
	i2c.Bus
	closer interface{ Close() error }
}

// Open initializes the host drivers and opens the named bus. An empty name selects the first bus.
// A frequency of zero keeps the current bus speed.
func Open(name string, freqKHz uint) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("Failed to initialize periph host drivers: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	log.Printf("Opened I2C bus %v", b)
	if freqKHz > 0 {
		if err := b.SetSpeed(physic.Frequency(freqKHz) * physic.KiloHertz); err != nil {
			log.Warnf("Failed to set I2C bus speed to %vkHz: %v", freqKHz, err)
		}
	}
	return &Bus{Bus: b, closer: b}, nil
}

// New wraps an already opened bus
func New(b i2c.Bus) *Bus {
	return &Bus{Bus: b}
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Texts of ENXIO and EREMOTEIO, which the Linux adapters return for a missing acknowledgement.
// periph.io only passes on the error text.
var noAckErrors = []string{"no such device or address", "remote I/O error"}

func (b *Bus) tx(addr byte, w, r []byte) error {
	err := b.Tx(uint16(addr), w, r)
	if err != nil {
		msg := err.Error()
		for _, noAck := range noAckErrors {
			if strings.HasSuffix(msg, noAck) {
				return &bus.AckError{Addr: addr, Err: err}
			}
		}
	}
	return err
}

func (b *Bus) I2cWrite(addr byte, data ...byte) error {
	return b.tx(addr, data, nil)
}

func (b *Bus) I2cRead(addr byte, data []byte) error {
	return b.tx(addr, nil, data)
}

func (b *Bus) I2cWriteRead(addr byte, out, in []byte) error {
	return b.tx(addr, out, in)
}
