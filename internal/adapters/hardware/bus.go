// Package hardware talks to the course's I²C peripherals through periph.io.
package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"formatif-grader/internal/domain/model"
)

// Tx is one addressed I²C device. i2c.Dev implements it.
type Tx interface {
	Tx(w, r []byte) error
}

// Bus hands out devices on one I²C bus.
type Bus interface {
	Device(addr uint16) Tx
	Name() string
	Close() error
}

// PeriphBus is a Bus backed by the host's I²C driver.
type PeriphBus struct {
	bus i2c.BusCloser
}

// Open initializes the host drivers and opens the named bus ("" is the
// first one, /dev/i2c-1 on a Raspberry Pi).
func Open(name string) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %v: %w", err, model.ErrLibraryUnavailable)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %v: %w", err, model.ErrHardwareUnavailable)
	}
	return &PeriphBus{bus: b}, nil
}

func (b *PeriphBus) Device(addr uint16) Tx {
	return &i2c.Dev{Bus: b.bus, Addr: addr}
}

func (b *PeriphBus) Name() string { return b.bus.String() }

func (b *PeriphBus) Close() error { return b.bus.Close() }
