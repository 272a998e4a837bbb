package ft260

import (
	"errors"
	"fmt"
)

const (
	ReportID_ChipCode      = 0xA0 // Feature In
	ReportID_SystemSetting = 0xA1 // Feature In/Out

	FT260_CHIP_CODE = uint32(0x02600200)
)

// Requests for ReportID_SystemSetting Feature Out
const (
	SetSystemSetting_Clock           = 0x01 // Clock...
	SetSystemSetting_EnableWakeupInt = 0x05 // bool

	SetSystemSetting_GPIO_2 = 0x06 // GPIO_2_...
	SetSystemSetting_GPIO_A = 0x08 // GPIO_A_...
	SetSystemSetting_GPIO_G = 0x09 // GPIO_G_...

	SetSystemSetting_I2CReset    = 0x20 // <empty>
	SetSystemSetting_I2CSetClock = 0x22 // LSB+MSB of clock speed in kHz (60-3400)
)

const (
	Clock12MHz = byte(0)
	Clock24MHz = byte(1)
	Clock48MHz = byte(2)

	GPIO_2_Normal = byte(0)
	GPIO_A_Normal = byte(0)
	GPIO_G_Normal = byte(0)

	I2CMinFreq = 60
	I2CMaxFreq = 3400
)

// Result of ReportID_ChipCode Feature In
type ReportChipCode struct {
	ChipCode uint32
	// 8 reserved byte
}

func (r *ReportChipCode) IsFeatureReport() bool {
	return true
}

func (r *ReportChipCode) ReportID() byte {
	return ReportID_ChipCode
}

func (r *ReportChipCode) ReportLen() int {
	return 12
}

// The chip code is transmitted most significant byte first
func (r *ReportChipCode) Unmarshall(b []byte) error {
	r.ChipCode = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return nil
}

// Result of ReportID_SystemSetting Feature In
type ReportSystemStatus struct {
	ChipMode          byte // Bit 0: DCNF0, Bit 1: DCNF1
	Clock             byte // 0..2 (Clock...MHz)
	Suspended         bool
	PowerStatus       bool // Device Ready?
	I2CEnable         bool
	UartMode          byte
	HidOverI2cEnable  bool
	GPIO2Function     byte // GPIO_2_...
	GPIOAFunction     byte // GPIO_A_...
	GPIOGFunction     byte // GPIO_G_...
	SuspendOutActLow  bool
	EnableWakeupInt   bool // If disabled: pin acts as GPIO3
	InterruptCond     byte
	EnablePowerSaving bool // Enabled: reduce clock to 30kHz after 5 sec idle
	// 10 reserved byte
}

func (r *ReportSystemStatus) IsFeatureReport() bool {
	return true
}

func (r *ReportSystemStatus) ReportID() byte {
	return ReportID_SystemSetting
}

func (r *ReportSystemStatus) ReportLen() int {
	// This should be 19 byte, but the device returns an error for less than 25...
	return 24
}

func readBool(b []byte, index int, e *error) bool {
	if *e == nil {
		switch b[index] {
		case 0:
			return false
		case 1:
			return true
		default:
			*e = fmt.Errorf("Expected 0 or 1 for byte at index %v, but got %02x", index, b[index])
		}
	}
	return false
}

func (r *ReportSystemStatus) Unmarshall(b []byte) (err error) {
	r.ChipMode = b[0]
	r.Clock = b[1]
	r.Suspended = readBool(b, 2, &err)
	r.PowerStatus = readBool(b, 3, &err)
	r.I2CEnable = readBool(b, 4, &err)
	r.UartMode = b[5]
	r.HidOverI2cEnable = readBool(b, 6, &err)
	r.GPIO2Function = b[7]
	r.GPIOAFunction = b[8]
	r.GPIOGFunction = b[9]
	r.SuspendOutActLow = readBool(b, 10, &err)
	r.EnableWakeupInt = readBool(b, 11, &err)
	r.InterruptCond = b[12]
	r.EnablePowerSaving = readBool(b, 13, &err)
	return
}

type SetSystemStatus struct {
	Request byte
	Value   interface{}
}

func (r *SetSystemStatus) IsFeatureReport() bool {
	return true
}

func (r *SetSystemStatus) ReportID() byte {
	return ReportID_SystemSetting
}

func (r *SetSystemStatus) ReportLen() int {
	switch r.Request {
	case SetSystemSetting_I2CReset:
		return 1
	case SetSystemSetting_I2CSetClock:
		return 3
	default:
		return 2
	}
}

func (r *SetSystemStatus) Marshall(b []byte) error {
	b[0] = r.Request
	switch r.Request {
	case SetSystemSetting_I2CReset:
		// No payload
	case SetSystemSetting_Clock, SetSystemSetting_GPIO_2, SetSystemSetting_GPIO_A, SetSystemSetting_GPIO_G:
		val, ok := r.Value.(byte)
		if !ok {
			return fmt.Errorf("System Setting Request ID %02x expects type %T, but got value of type %T (%v)", r.Request, byte(0), r.Value, r.Value)
		}
		b[1] = val
	case SetSystemSetting_EnableWakeupInt:
		val, ok := r.Value.(bool)
		if !ok {
			return fmt.Errorf("System Setting Request ID %02x expects type %T, but got value of type %T (%v)", r.Request, false, r.Value, r.Value)
		}
		if val {
			b[1] = 1
		} else {
			b[1] = 0
		}
	case SetSystemSetting_I2CSetClock:
		val, ok := r.Value.(uint16)
		if !ok {
			return fmt.Errorf("System Setting Request ID %02x expects type %T, but got value of type %T (%v)", r.Request, uint16(0), r.Value, r.Value)
		}
		b[1], b[2] = byte(val), byte(val>>8)
	default:
		return fmt.Errorf("Unsupported system setting request ID: %02x", r.Request)
	}
	return nil
}

func (f *Ft260) ValidateChipCode() error {
	var code ReportChipCode
	if err := f.Read(&code); err != nil {
		return err
	}
	if code.ChipCode != FT260_CHIP_CODE {
		return fmt.Errorf("Unexpected chip code %08x (expected %08x)", code.ChipCode, FT260_CHIP_CODE)
	}
	return nil
}

// Configure resets the I2C engine and prepares the chip for plain I2C operation with the given bus frequency in kHz.
func (f *Ft260) Configure(i2cFreq uint) (err error) {
	if i2cFreq < I2CMinFreq || i2cFreq > I2CMaxFreq {
		return fmt.Errorf("FT260: I2C frequency %vkHz out of range (%v - %v)", i2cFreq, I2CMinFreq, I2CMaxFreq)
	}
	f.writeConfigValue(&err, SetSystemSetting_Clock, Clock48MHz)
	f.writeConfigValue(&err, SetSystemSetting_I2CReset, nil) // Reset i2c bus in case it was disturbed
	f.writeConfigValue(&err, SetSystemSetting_I2CSetClock, uint16(i2cFreq))
	f.writeConfigValue(&err, SetSystemSetting_GPIO_2, GPIO_2_Normal)
	f.writeConfigValue(&err, SetSystemSetting_GPIO_A, GPIO_A_Normal)
	f.writeConfigValue(&err, SetSystemSetting_GPIO_G, GPIO_G_Normal)
	f.writeConfigValue(&err, SetSystemSetting_EnableWakeupInt, false)
	return
}

func (f *Ft260) writeConfigValue(outErr *error, request byte, val interface{}) {
	if *outErr == nil {
		*outErr = f.Write(&SetSystemStatus{
			Request: request,
			Value:   val,
		})
	}
}

// Validate checks the settings applied by Configure
func (f *Ft260) Validate(i2cFreq uint) error {
	var status ReportSystemStatus
	if err := f.Read(&status); err != nil {
		return err
	}
	if status.Clock != Clock48MHz {
		return fmt.Errorf("FT260: unexpected clock value %02x (expected %02x)", status.Clock, Clock48MHz)
	}
	if status.EnableWakeupInt {
		return fmt.Errorf("FT260: unexpected wakeup interrupt setting %v (expected %v)", status.EnableWakeupInt, false)
	}
	if status.Suspended {
		return errors.New("FT260: device is suspended")
	}
	if !status.PowerStatus {
		return errors.New("FT260: device is powered off")
	}
	if !status.I2CEnable {
		return errors.New("FT260: I2C is not enabled on the device")
	}

	i2cStatus, err := f.I2cStatus()
	if err != nil {
		return err
	}
	if i2cStatus.BusSpeed != uint16(i2cFreq) {
		return fmt.Errorf("FT260: unexpected I2C bus speed %v (expected %v)", i2cStatus.BusSpeed, i2cFreq)
	}
	return nil
}
