package bus

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// Addresses outside this range are reserved by the I2C specification
	MinAddress = byte(0x08)
	MaxAddress = byte(0x77)
)

// Transport moves bytes to and from devices on a two-wire bus.
// The addresses are 7 bit slave addresses.
type Transport interface {
	I2cWrite(addr byte, data ...byte) error
	I2cRead(addr byte, data []byte) error

	// Write out without a stop condition, then fill in after a repeated start.
	// Both parts form one transaction on the bus.
	I2cWriteRead(addr byte, out, in []byte) error
}

// I2cBus is a Transport that can be held exclusively by one caller.
type I2cBus interface {
	sync.Locker
	Transport
}

type lockedBus struct {
	sync.Mutex
	Transport
}

// Locked guards the given Transport with a mutex. Drivers sharing one physical bus
// should share the returned I2cBus.
func Locked(t Transport) I2cBus {
	return &lockedBus{Transport: t}
}

// Device is one slave on a shared bus. All transactions hold the bus lock
// for their entire duration.
type Device struct {
	Bus  I2cBus
	Addr byte
}

func (d *Device) acquire() func() {
	d.Bus.Lock()
	return d.Bus.Unlock
}

func (d *Device) Write(data ...byte) error {
	defer d.acquire()()
	return d.Bus.I2cWrite(d.Addr, data...)
}

func (d *Device) Read(data []byte) error {
	defer d.acquire()()
	return d.Bus.I2cRead(d.Addr, data)
}

func (d *Device) WriteThenRead(out, in []byte) error {
	defer d.acquire()()
	return d.Bus.I2cWriteRead(d.Addr, out, in)
}

func (d *Device) String() string {
	return fmt.Sprintf("I2C device %#02x", d.Addr)
}

// AckError is returned by transports when no device acknowledged the address.
type AckError struct {
	Addr byte
	Err  error
}

func (e *AckError) Error() string {
	return fmt.Sprintf("I2C address %#02x not acknowledged: %v", e.Addr, e.Err)
}

func (e *AckError) Unwrap() error {
	return e.Err
}

func (e *AckError) NoAck() bool {
	return true
}

// IsNoAck reports whether err, or an error it wraps, marks a missing acknowledgement
// through a NoAck() method.
func IsNoAck(err error) bool {
	var ack interface{ NoAck() bool }
	return errors.As(err, &ack) && ack.NoAck()
}

// Scan tries every non-reserved address with a single byte read and returns the
// addresses that answered. Addresses that are not acknowledged are skipped, any other
// transport error aborts the scan.
func Scan(t Transport) ([]byte, error) {
	var result []byte
	buf := make([]byte, 1)
	for addr := MinAddress; addr <= MaxAddress; addr++ {
		err := t.I2cRead(addr, buf)
		if err == nil {
			result = append(result, addr)
		} else if !IsNoAck(err) {
			return result, fmt.Errorf("Scanning I2C address %#02x failed: %w", addr, err)
		}
	}
	return result, nil
}
