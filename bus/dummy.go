package bus

import (
	log "github.com/sirupsen/logrus"
)

// Dummy only logs written data. Reads return zero bytes.
type Dummy struct {
}

func (d *Dummy) I2cWrite(addr byte, data ...byte) error {
	log.Debugf("Dummy I2C write to %#02x: %#02x", addr, data)
	return nil
}

func (d *Dummy) I2cRead(addr byte, data []byte) error {
	for i := range data {
		data[i] = 0
	}
	log.Debugf("Dummy I2C read of %v byte from %#02x", len(data), addr)
	return nil
}

func (d *Dummy) I2cWriteRead(addr byte, out, in []byte) error {
	if err := d.I2cWrite(addr, out...); err != nil {
		return err
	}
	return d.I2cRead(addr, in)
}
