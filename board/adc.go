package board

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/antongulenko/ads7830/ads7830"
	"github.com/antongulenko/ads7830/bus"
	log "github.com/sirupsen/logrus"
)

const maxRaw = 0xFF

type Adc struct {
	I2cAddr          byte
	Differential     bool
	PowerDown        int
	ReferenceVoltage float64 // Full scale voltage in Volt

	driver *ads7830.Driver
}

func (a *Adc) RegisterFlags() {
	flag.Func("adc", "I2C address of the ADS7830 (default 0x48)", a.parseAddr)
	flag.BoolVar(&a.Differential, "diff", a.Differential, "Read the ADC in differential mode")
	flag.IntVar(&a.PowerDown, "pd", a.PowerDown, "ADC power-down mode (0: power down between conversions, 1: reference off, 2: ADC off, 3: both on)")
	flag.Float64Var(&a.ReferenceVoltage, "vref", a.ReferenceVoltage, "ADC reference voltage")
}

func (a *Adc) parseAddr(val string) error {
	addr, err := strconv.ParseUint(val, 0, 8)
	if err != nil {
		return err
	}
	if addr > 0x7F {
		return fmt.Errorf("Invalid 7 bit I2C address %#02x", addr)
	}
	a.I2cAddr = byte(addr)
	return nil
}

func (a *Adc) Init(i2c bus.I2cBus) error {
	log.Printf("Initializing ADS7830 driver at %#02x (differential: %v, power-down mode: %v)...", a.I2cAddr, a.Differential, a.PowerDown)
	driver, err := ads7830.New(i2c,
		ads7830.Address(a.I2cAddr),
		ads7830.Differential(a.Differential),
		ads7830.PowerDown(a.PowerDown))
	if err != nil {
		return err
	}
	a.driver = driver
	return nil
}

func (a *Adc) Driver() *ads7830.Driver {
	return a.driver
}

func (a *Adc) Read(channel int) (uint16, error) {
	return a.driver.Read(channel)
}

func (a *Adc) AllSingleEnded() ([]uint16, error) {
	return a.driver.AllSingleEnded()
}

func (a *Adc) AllDifferential() ([]uint16, error) {
	return a.driver.AllDifferential()
}

func (a *Adc) ConvertToVoltage(raw byte) float64 {
	return float64(raw) / maxRaw * a.ReferenceVoltage
}

// Voltage reads the given channel and converts the 8 bit result into Volt.
func (a *Adc) Voltage(channel int) (float64, error) {
	raw, err := a.driver.ReadRaw(channel)
	if err != nil {
		return 0, err
	}
	return a.ConvertToVoltage(raw), nil
}
