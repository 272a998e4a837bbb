// Driver for the TI ADS7830 8-channel 8-bit ADC.
// http://www.ti.com/lit/ds/symlink/ads7830.pdf
package ads7830

import (
	"errors"
	"fmt"

	"github.com/antongulenko/ads7830/bus"
	log "github.com/sirupsen/logrus"
)

const (
	// The A0 and A1 pins select one of the following addresses. The names refer to A1 (GND/VDD) and A0 (SDA/SCL) strapping.
	ADDR_GND = byte(0x48) // A1 = 0, A0 = 0
	ADDR_VDD = byte(0x49) // A1 = 0, A0 = 1
	ADDR_SDA = byte(0x4A) // A1 = 1, A0 = 0
	ADDR_SCL = byte(0x4B) // A1 = 1, A0 = 1

	ADDRESS = ADDR_GND

	NUM_CHANNELS = 8
	NUM_PAIRS    = NUM_CHANNELS / 2
)

// Power-down selection (PD1 PD0 bits of the command byte)
const (
	PD_BETWEEN_CONVERSIONS = iota // Power down between conversions
	PD_REF_OFF_ADC_ON             // Internal reference off, ADC on
	PD_REF_ON_ADC_OFF             // Internal reference on, ADC off
	PD_REF_ON_ADC_ON              // Internal reference on, ADC on

	PD_DEFAULT = PD_REF_ON_ADC_ON
)

var powerDownCodes = [...]byte{
	PD_BETWEEN_CONVERSIONS: 0x00,
	PD_REF_OFF_ADC_ON:      0x01,
	PD_REF_ON_ADC_OFF:      0x02,
	PD_REF_ON_ADC_ON:       0x03,
}

// SD C2 C1 C0 bits of the command byte, indexed by channel.
// The order is given by the datasheet and is not monotonic.
var singleEndedCodes = [NUM_CHANNELS]byte{
	0x08, // CH0
	0x0C, // CH1
	0x09, // CH2
	0x0D, // CH3
	0x0A, // CH4
	0x0E, // CH5
	0x0B, // CH6
	0x0F, // CH7
}

// Indexed by channel / 2
var differentialCodes = [NUM_CHANNELS]byte{
	0x00, // CH0 - CH1
	0x04, // CH1 - CH0
	0x01, // CH2 - CH3
	0x05, // CH3 - CH2
	0x02, // CH4 - CH5
	0x06, // CH5 - CH4
	0x03, // CH6 - CH7
	0x07, // CH7 - CH6
}

var differentialNames = [NUM_CHANNELS]string{
	"CH0-CH1", "CH1-CH0", "CH2-CH3", "CH3-CH2", "CH4-CH5", "CH5-CH4", "CH6-CH7", "CH7-CH6",
}

var (
	ErrInvalidChannel       = errors.New("channel must be 0-7")
	ErrInvalidPowerDownMode = errors.New("power-down mode must be 0-3")
)

// ReadError is returned when the bus transaction for a conversion fails.
type ReadError struct {
	Channel int
	Command byte
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("ADS7830: failed to read channel %v (command %#02x): %v", e.Channel, e.Command, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= NUM_CHANNELS {
		return fmt.Errorf("invalid channel %v: %w", channel, ErrInvalidChannel)
	}
	return nil
}

func checkPowerDown(mode int) error {
	if mode < 0 || mode >= len(powerDownCodes) {
		return fmt.Errorf("invalid power-down mode %v: %w", mode, ErrInvalidPowerDownMode)
	}
	return nil
}

// CommandByte encodes the channel selection and the power-down mode.
func CommandByte(channel int, differential bool, powerDown int) (byte, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	if err := checkPowerDown(powerDown); err != nil {
		return 0, err
	}
	var code byte
	if differential {
		code = differentialCodes[channel/2]
	} else {
		code = singleEndedCodes[channel]
	}
	return code<<4 | powerDownCodes[powerDown]<<2, nil
}

// ChannelName returns the datasheet label of the input selected by CommandByte.
func ChannelName(channel int, differential bool) string {
	if checkChannel(channel) != nil {
		return fmt.Sprintf("invalid channel %v", channel)
	}
	if differential {
		return differentialNames[channel/2]
	}
	return fmt.Sprintf("CH%v", channel)
}

// Scale widens a raw 8 bit conversion result to the 16 bit range.
func Scale(raw byte) uint16 {
	return uint16(raw) << 8
}

type Option func(d *Driver)

func Address(addr byte) Option {
	return func(d *Driver) {
		d.dev.Addr = addr
	}
}

func Differential(differential bool) Option {
	return func(d *Driver) {
		d.differential = differential
	}
}

func PowerDown(mode int) Option {
	return func(d *Driver) {
		d.powerDown = mode
	}
}

type Driver struct {
	dev          bus.Device
	differential bool
	powerDown    int
}

// New does not access the bus.
func New(i2c bus.I2cBus, options ...Option) (*Driver, error) {
	d := &Driver{
		dev: bus.Device{
			Bus:  i2c,
			Addr: ADDRESS,
		},
		powerDown: PD_DEFAULT,
	}
	for _, opt := range options {
		opt(d)
	}
	if err := checkPowerDown(d.powerDown); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Address() byte {
	return d.dev.Addr
}

func (d *Driver) IsDifferential() bool {
	return d.differential
}

func (d *Driver) PowerDownMode() int {
	return d.powerDown
}

// Read converts the given channel in the configured mode and returns the result in the range 0..65280.
func (d *Driver) Read(channel int) (uint16, error) {
	raw, err := d.ReadRaw(channel)
	return Scale(raw), err
}

func (d *Driver) ReadRaw(channel int) (byte, error) {
	return d.read(channel, d.differential)
}

func (d *Driver) read(channel int, differential bool) (byte, error) {
	cmd, err := CommandByte(channel, differential, d.powerDown)
	if err != nil {
		return 0, err
	}
	var result [1]byte
	if err := d.dev.WriteThenRead([]byte{cmd}, result[:]); err != nil {
		return 0, &ReadError{Channel: channel, Command: cmd, Err: err}
	}
	log.Debugf("ADS7830 %#02x: command %#02x -> %#02x", d.dev.Addr, cmd, result[0])
	return result[0], nil
}

// AllSingleEnded reads channels 0..7 in single-ended mode, regardless of the configured mode.
// The first error aborts the whole snapshot.
func (d *Driver) AllSingleEnded() ([]uint16, error) {
	result := make([]uint16, NUM_CHANNELS)
	for channel := range result {
		raw, err := d.read(channel, false)
		if err != nil {
			return nil, err
		}
		result[channel] = Scale(raw)
	}
	return result, nil
}

// AllDifferential reads the channels 0, 2, 4 and 6 in differential mode, regardless of the configured mode.
// See ChannelName for the input pair selected by each of them.
func (d *Driver) AllDifferential() ([]uint16, error) {
	result := make([]uint16, NUM_PAIRS)
	for i := range result {
		raw, err := d.read(i*2, true)
		if err != nil {
			return nil, err
		}
		result[i] = Scale(raw)
	}
	return result, nil
}
