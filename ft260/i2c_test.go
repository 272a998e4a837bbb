package ft260

import (
	"errors"
	"testing"
	"time"

	"github.com/antongulenko/ads7830/bus"
	"github.com/stretchr/testify/assert"
)

func Test_i2c_split_transactions(t *testing.T) {
	a := assert.New(t)
	test := func(stop bool, data []byte, expectedPayload [][]byte, expectedConditions []byte) {
		payload, conditions := i2cSplitTransaction(stop, data)
		a.Equal(expectedPayload, payload, "Payload differs")
		a.Equal(expectedConditions, conditions, "Conditions differ")
	}

	test(true, nil, nil, nil)
	test(false, nil, nil, nil)
	test(true, []byte{}, nil, nil)
	test(false, []byte{}, nil, nil)

	test(true, []byte{44}, [][]byte{{44}}, []byte{I2C_MasterStartStop})
	test(false, []byte{44}, [][]byte{{44}}, []byte{I2C_MasterStart})

	data := make([]byte, 130)
	for i := byte(0); i < byte(len(data)); i++ {
		data[i] = i + 10
	}

	// 60 byte
	test(true, data[:60], [][]byte{data[:60]}, []byte{I2C_MasterStartStop})
	test(false, data[:60], [][]byte{data[:60]}, []byte{I2C_MasterStart})

	// 61 byte
	test(true, data[:61], [][]byte{data[:60], data[60:61]}, []byte{I2C_MasterStart, I2C_MasterStop})
	test(false, data[:61], [][]byte{data[:60], data[60:61]}, []byte{I2C_MasterStart, I2C_MasterNone})

	// 121 byte
	test(true, data[:121], [][]byte{data[:60], data[60:120], data[120:121]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterStop})
	test(false, data[:121], [][]byte{data[:60], data[60:120], data[120:121]}, []byte{I2C_MasterStart, I2C_MasterNone, I2C_MasterNone})
}

func Test_i2c_write_report_ids(t *testing.T) {
	a := assert.New(t)
	test := func(payloadLen int, expectedID byte) {
		op := OperationI2cWrite{Payload: make([]byte, payloadLen)}
		a.Equal(expectedID, op.ReportID(), "payload len %v", payloadLen)
	}
	test(1, 0xD0)
	test(4, 0xD0)
	test(5, 0xD1)
	test(8, 0xD1)
	test(59, 0xDE)
	test(60, 0xDE)

	b := make([]byte, 64)
	a.Error((&OperationI2cWrite{SlaveAddr: 0x90}).Marshall(b), "8 bit address")
	a.Error((&OperationI2cRead{SlaveAddr: 0x80}).Marshall(b), "8 bit address")
	a.Error((&OperationI2cWrite{SlaveAddr: 0x48, Payload: make([]byte, 61)}).Marshall(b), "payload too large")
}

type fakeHid struct {
	written  [][]byte
	features [][]byte
	inputs   [][]byte
	statuses []byte
	timeouts []time.Duration

	// Answers read requests to these addresses, all other addresses are not acknowledged
	devices map[byte]byte
}

func (f *fakeHid) DoWrite(b []byte, featureReport bool) (int, error) {
	if featureReport {
		f.features = append(f.features, append([]byte(nil), b...))
	} else {
		f.written = append(f.written, append([]byte(nil), b...))
		if f.devices != nil && b[0] == ReportID_I2CRead {
			if val, ok := f.devices[b[1]]; ok {
				f.inputs = append(f.inputs, []byte{0xD0, 0x01, val})
			} else {
				f.statuses = append(f.statuses, I2C_StatusError|I2C_StatusNoSlaveAck)
			}
		}
	}
	return len(b), nil
}

func (f *fakeHid) DoRead(b []byte, featureReport bool, timeout time.Duration) (int, error) {
	if featureReport {
		return f.getFeatureReport(b)
	}
	f.timeouts = append(f.timeouts, timeout)
	if len(f.inputs) == 0 {
		if timeout == 0 {
			return 0, errors.New("blocking read without input report")
		}
		return 0, nil
	}
	n := copy(b, f.inputs[0])
	f.inputs = f.inputs[1:]
	return n, nil
}

func (f *fakeHid) getFeatureReport(b []byte) (int, error) {
	switch b[0] {
	case ReportID_I2CStatus:
		status := I2C_StatusControllerIdle
		if len(f.statuses) > 0 {
			status = f.statuses[0]
			f.statuses = f.statuses[1:]
		}
		copy(b, []byte{ReportID_I2CStatus, status, 0x90, 0x01, 0})
		return 5, nil
	case ReportID_ChipCode:
		copy(b, []byte{ReportID_ChipCode, 0x02, 0x60, 0x02, 0x00})
		return len(b), nil
	case ReportID_SystemSetting:
		for i := range b[1:] {
			b[i+1] = 0
		}
		b[2] = Clock48MHz
		b[4] = 1 // Powered
		b[5] = 1 // I2C enabled
		return len(b), nil
	}
	return 0, errors.New("unknown feature report")
}

func (f *fakeHid) Close() error {
	return nil
}

func TestWriteRead(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{
		inputs:   [][]byte{{0xD0, 0x01, 0x7F}},
		statuses: []byte{I2C_StatusControllerBusy | I2C_StatusBusBusy, I2C_StatusBusBusy},
	}
	f := New(dev)
	in := make([]byte, 1)
	a.NoError(f.I2cWriteRead(0x48, []byte{0x8C}, in))
	a.Equal([]byte{0x7F}, in)
	a.Equal([][]byte{
		{0xD0, 0x48, I2C_MasterStart, 0x01, 0x8C},
		{ReportID_I2CRead, 0x48, I2C_MasterRepStartStop, 0x01, 0x00},
	}, dev.written)
	a.Empty(dev.statuses)
}

func TestReadMultipleReports(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{
		inputs: [][]byte{{0xD0, 0x02, 1, 2}, {0xD0, 0x01, 3}},
	}
	in := make([]byte, 3)
	a.NoError(New(dev).I2cRead(0x20, in))
	a.Equal([]byte{1, 2, 3}, in)
	a.Equal([][]byte{{ReportID_I2CRead, 0x20, I2C_MasterStartStop, 0x03, 0x00}}, dev.written)
}

func TestNoAck(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{statuses: []byte{I2C_StatusError | I2C_StatusNoSlaveAck}}
	err := New(dev).I2cWriteRead(0x4B, []byte{0x8C}, make([]byte, 1))
	var statusErr *I2cStatusError
	a.True(errors.As(err, &statusErr))
	a.True(statusErr.NoAck())
	a.Equal(byte(0x4B), statusErr.Addr)
	a.EqualError(err, "FT260: I2C transfer to 0x4b failed (status 0x06: error, slave address not acknowledged)")
	a.Len(dev.written, 1, "no read after a failed write")
}

func TestReadNoAck(t *testing.T) {
	a := assert.New(t)
	// The bridge sends no input report when the address is not acknowledged
	dev := &fakeHid{statuses: []byte{I2C_StatusError | I2C_StatusNoSlaveAck}}
	err := New(dev).I2cRead(0x21, make([]byte, 1))
	var statusErr *I2cStatusError
	a.True(errors.As(err, &statusErr))
	a.True(statusErr.NoAck())
	a.True(bus.IsNoAck(err))
	a.Equal(byte(0x21), statusErr.Addr)
	a.Equal([]time.Duration{DefaultReadTimeout}, dev.timeouts)
	a.Equal([][]byte{{ReportID_I2CRead, 0x21, I2C_MasterStartStop, 0x01, 0x00}}, dev.written)
}

func TestScan(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{devices: map[byte]byte{0x48: 0x10, 0x4B: 0x20}}
	addrs, err := bus.Scan(New(dev))
	a.NoError(err)
	a.Equal([]byte{0x48, 0x4B}, addrs)
	a.Len(dev.written, int(bus.MaxAddress-bus.MinAddress)+1)
	a.Empty(dev.statuses)
	a.Empty(dev.inputs)
}

func TestReadTimeout(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{inputs: [][]byte{{0xD0, 0x01, 9}}}
	f := New(dev)
	f.ReadTimeout = 5 * time.Millisecond
	in := make([]byte, 2)
	err := f.I2cRead(0x20, in)
	a.True(errors.Is(err, ErrReadTimeout))
	a.EqualError(err, "FT260: I2C read from 0x20 incomplete (1 of 2 byte): ft260: timed out waiting for input report")
	a.Equal([]time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, dev.timeouts)
}

func TestShortRead(t *testing.T) {
	a := assert.New(t)
	dev := &fakeHid{inputs: [][]byte{{0xD0, 0x00}}}
	err := New(dev).I2cRead(0x20, make([]byte, 2))
	a.EqualError(err, "FT260: short I2C read from 0x20 (0 of 2 byte)")
}

func TestConfigure(t *testing.T) {
	a := assert.New(t)
	dev := new(fakeHid)
	f := New(dev)
	a.NoError(f.Configure(400))
	a.Equal([][]byte{
		{ReportID_SystemSetting, SetSystemSetting_Clock, Clock48MHz},
		{ReportID_SystemSetting, SetSystemSetting_I2CReset},
		{ReportID_SystemSetting, SetSystemSetting_I2CSetClock, 0x90, 0x01},
		{ReportID_SystemSetting, SetSystemSetting_GPIO_2, GPIO_2_Normal},
		{ReportID_SystemSetting, SetSystemSetting_GPIO_A, GPIO_A_Normal},
		{ReportID_SystemSetting, SetSystemSetting_GPIO_G, GPIO_G_Normal},
		{ReportID_SystemSetting, SetSystemSetting_EnableWakeupInt, 0},
	}, dev.features)
	a.Empty(dev.written)

	a.NoError(f.ValidateChipCode())
	a.NoError(f.Validate(400))
	a.Error(f.Validate(100), "bus speed differs")
	a.Error(f.Configure(10), "frequency out of range")
	a.Empty(dev.timeouts, "feature reports never wait on the interrupt endpoint")
}
