package ft260

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	ReportID_I2CStatus    = 0xC0 // Feature In
	ReportID_I2CRead      = 0xC2 // Output
	ReportID_I2CInOut     = 0xD0 // 0xD0 - 0xDE, Input, Output
	ReportID_I2CInOut_Max = 0xDE

	// Max size of I2C payload per report: (1 + Report ID - 0xD0) * 4 byte
	I2CMaxPayload = (1 + ReportID_I2CInOut_Max - ReportID_I2CInOut) * 4

	// Number of status polls while waiting for the I2C controller to finish a transfer
	I2CStatusPolls     = 50
	I2CStatusPollSleep = time.Millisecond
)

const (
	I2C_StatusControllerBusy = byte(1 << iota)
	I2C_StatusError
	I2C_StatusNoSlaveAck
	I2C_StatusNoDataAck
	I2C_StatusArbitrationLost
	I2C_StatusControllerIdle
	I2C_StatusBusBusy

	i2cStatusFailure = I2C_StatusError | I2C_StatusNoSlaveAck | I2C_StatusNoDataAck | I2C_StatusArbitrationLost
)

var i2cStatusNames = []string{"controller busy", "error", "slave address not acknowledged",
	"data not acknowledged", "arbitration lost", "controller idle", "bus busy"}

const (
	I2C_MasterNone         = byte(0x0)
	I2C_MasterStart        = byte(0x2)
	I2C_MasterRepStart     = byte(0x3)
	I2C_MasterStop         = byte(0x4)
	I2C_MasterStartStop    = byte(0x6)
	I2C_MasterRepStartStop = byte(0x7)
)

func I2cMasterCodeString(code byte) string {
	switch code {
	case I2C_MasterNone:
		return "Nothing"
	case I2C_MasterStart:
		return "Start"
	case I2C_MasterRepStart:
		return "Repeated Start"
	case I2C_MasterStop:
		return "Stop"
	case I2C_MasterStartStop:
		return "Start + Stop"
	case I2C_MasterRepStartStop:
		return "Repeated Start + Stop"
	default:
		return fmt.Sprintf("Unknown I2C Master code %v", code)
	}
}

// I2cStatusError reports the failure bits of the I2C controller status after a transfer.
type I2cStatusError struct {
	Addr   byte
	Status byte
}

func (e *I2cStatusError) Error() string {
	var flags []string
	for i, name := range i2cStatusNames {
		if e.Status&(1<<uint(i)) != 0 {
			flags = append(flags, name)
		}
	}
	return fmt.Sprintf("FT260: I2C transfer to %#02x failed (status %#02x: %v)", e.Addr, e.Status, strings.Join(flags, ", "))
}

func (e *I2cStatusError) NoAck() bool {
	return e.Status&(I2C_StatusNoSlaveAck|I2C_StatusNoDataAck) != 0
}

// Result of ReportID_I2CStatus Feature In
type ReportI2cStatus struct {
	BusStatus byte   // Bitmask of I2C_Status...
	BusSpeed  uint16 // 2 byte: LSB+MSB, kHz
	// 1 reserved
}

func (r *ReportI2cStatus) IsFeatureReport() bool {
	return true
}

func (r *ReportI2cStatus) ReportID() byte {
	return ReportID_I2CStatus
}

func (r *ReportI2cStatus) ReportLen() int {
	return 4
}

func (r *ReportI2cStatus) Unmarshall(b []byte) error {
	r.BusStatus = b[0]
	r.BusSpeed = uint16(b[1]) | uint16(b[2])<<8
	return nil
}

// Data of ReportID_I2CRead Interrupt Out
type OperationI2cRead struct {
	SlaveAddr byte   // 0..127
	Condition byte   // I2C_Master...
	Len       uint16 // data length (little endian)
}

func (r *OperationI2cRead) ReportID() byte {
	return ReportID_I2CRead
}

func (r *OperationI2cRead) ReportLen() int {
	return 4
}

func (r *OperationI2cRead) Marshall(b []byte) error {
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2], b[3] = byte(r.Len), byte(r.Len>>8)
	return nil
}

// Data of ReportID_I2CInOut Interrupt Out
type OperationI2cWrite struct {
	SlaveAddr byte // 0..127
	Condition byte // I2C_Master...
	// 1 byte payload len
	Payload []byte
}

// Every report ID covers 4 more payload bytes
func (r *OperationI2cWrite) ReportID() byte {
	if len(r.Payload) == 0 {
		return ReportID_I2CInOut
	}
	return ReportID_I2CInOut + byte((len(r.Payload)-1)/4)
}

func (r *OperationI2cWrite) ReportLen() int {
	return len(r.Payload) + 3
}

func (r *OperationI2cWrite) Marshall(b []byte) error {
	if len(r.Payload) > I2CMaxPayload {
		return fmt.Errorf("Payload len %v exceeds maximum size of %v", len(r.Payload), I2CMaxPayload)
	}
	if r.SlaveAddr&0x80 != 0 {
		return fmt.Errorf("Invalid I2C slave address: %02x", r.SlaveAddr)
	}
	b[0] = r.SlaveAddr
	b[1] = r.Condition
	b[2] = byte(len(r.Payload))
	copy(b[3:], r.Payload)
	return nil
}

// Data of ReportID_I2CInOut Interrupt In
type OperationI2cInput struct {
	// 1 byte payload length
	Data []byte // Filled up to the received length
}

func (r *OperationI2cInput) IsVariableSize() bool {
	return true
}

func (r *OperationI2cInput) ReportID() byte {
	return ReportID_I2CInOut
}

func (r *OperationI2cInput) ReportLen() int {
	return I2CMaxPayload + 1
}

func (r *OperationI2cInput) Unmarshall(d []byte) error {
	if len(d) < 1 {
		return fmt.Errorf("Short I2C input report (%v byte)", len(d))
	}
	l := int(d[0])
	if len(d) < l+1 {
		return fmt.Errorf("Short I2C read (%v, needed at least %v)", len(d), l+1)
	}
	r.Data = r.Data[:0]
	r.Data = append(r.Data, d[1:1+l]...)
	return nil
}

// i2cSplitTransaction splits data into payloads of at most I2CMaxPayload byte, together with the
// start/stop conditions for each of them.
func i2cSplitTransaction(stop bool, data []byte) ([][]byte, []byte) {
	var payloads [][]byte
	var conditions []byte
	for start := 0; start < len(data); start += I2CMaxPayload {
		end := start + I2CMaxPayload
		if end > len(data) {
			end = len(data)
		}
		condition := I2C_MasterNone
		if start == 0 {
			condition |= I2C_MasterStart
		}
		if end == len(data) && stop {
			condition |= I2C_MasterStop
		}
		payloads = append(payloads, data[start:end])
		conditions = append(conditions, condition)
	}
	return payloads, conditions
}

func (f *Ft260) I2cStatus() (*ReportI2cStatus, error) {
	var status ReportI2cStatus
	err := f.Read(&status)
	return &status, err
}

// waitI2c polls the controller status until the current transfer is finished
func (f *Ft260) waitI2c(addr byte) error {
	for i := 0; i < I2CStatusPolls; i++ {
		status, err := f.I2cStatus()
		if err != nil {
			return err
		}
		if status.BusStatus&i2cStatusFailure != 0 {
			return &I2cStatusError{Addr: addr, Status: status.BusStatus}
		}
		if status.BusStatus&I2C_StatusControllerBusy == 0 {
			return nil
		}
		time.Sleep(I2CStatusPollSleep)
	}
	return fmt.Errorf("FT260: timeout waiting for I2C transfer to %#02x", addr)
}

func (f *Ft260) i2cWrite(addr byte, stop bool, data []byte) error {
	payloads, conditions := i2cSplitTransaction(stop, data)
	for i, payload := range payloads {
		log.Debugf("FT260 I2C write to %#02x (%v): %#02x", addr, I2cMasterCodeString(conditions[i]), payload)
		err := f.Write(&OperationI2cWrite{
			SlaveAddr: addr,
			Condition: conditions[i],
			Payload:   payload,
		})
		if err != nil {
			return err
		}
	}
	return f.waitI2c(addr)
}

func (f *Ft260) i2cRead(addr byte, condition byte, data []byte) error {
	if len(data) > 0xFFFF {
		return fmt.Errorf("FT260: I2C read of %v byte exceeds maximum of %v", len(data), 0xFFFF)
	}
	log.Debugf("FT260 I2C read of %v byte from %#02x (%v)", len(data), addr, I2cMasterCodeString(condition))
	err := f.Write(&OperationI2cRead{
		SlaveAddr: addr,
		Condition: condition,
		Len:       uint16(len(data)),
	})
	if err != nil {
		return err
	}
	input := OperationI2cInput{Data: make([]byte, 0, I2CMaxPayload)}
	for received := 0; received < len(data); {
		if err := f.Read(&input); err != nil {
			if !errors.Is(err, ErrReadTimeout) {
				return err
			}
			// No input report is sent for a slave that does not acknowledge its address
			if statusErr := f.waitI2c(addr); statusErr != nil {
				return statusErr
			}
			return fmt.Errorf("FT260: I2C read from %#02x incomplete (%v of %v byte): %w", addr, received, len(data), err)
		}
		if len(input.Data) == 0 {
			if err := f.waitI2c(addr); err != nil {
				return err
			}
			return fmt.Errorf("FT260: short I2C read from %#02x (%v of %v byte)", addr, received, len(data))
		}
		received += copy(data[received:], input.Data)
	}
	return f.waitI2c(addr)
}

func (f *Ft260) I2cWrite(addr byte, data ...byte) error {
	return f.i2cWrite(addr, true, data)
}

func (f *Ft260) I2cRead(addr byte, data []byte) error {
	return f.i2cRead(addr, I2C_MasterStartStop, data)
}

// I2cWriteRead keeps the bus after writing and reads with a repeated start condition.
func (f *Ft260) I2cWriteRead(addr byte, out, in []byte) error {
	if err := f.i2cWrite(addr, false, out); err != nil {
		return err
	}
	return f.i2cRead(addr, I2C_MasterRepStartStop, in)
}
