package hardware

import (
	"context"
	"fmt"
	"time"

	"formatif-grader/internal/domain/model"
)

// NeoSlider defaults: seesaw address, NeoPixel pin and pixel count.
const (
	NeoSliderAddr   uint16 = 0x30
	NeoSliderPin           = 14
	NeoSliderPixels        = 4
)

const (
	seesawStatusBase = 0x00
	seesawHWID       = 0x01
	seesawSWReset    = 0x7F

	seesawNeoBase      = 0x0E
	seesawNeoPin       = 0x01
	seesawNeoSpeed     = 0x02
	seesawNeoBufLength = 0x03
	seesawNeoBuf       = 0x04
	seesawNeoShow      = 0x05

	// Time the seesaw needs between a register write and the read.
	seesawReadDelay = 5 * time.Millisecond
)

// Hardware ids reported by SAMD09 and ATtiny8x7/16x7 seesaw chips.
var seesawIDs = map[byte]string{
	0x55: "SAMD09",
	0x84: "ATtiny817",
	0x85: "ATtiny807",
	0x86: "ATtiny816",
	0x87: "ATtiny806",
}

// Color is an RGB triple.
type Color struct{ R, G, B uint8 }

var (
	Off   = Color{}
	Green = Color{G: 255}
)

// NeoSlider drives the NeoPixels of an Adafruit NeoSlider over seesaw.
type NeoSlider struct {
	dev    Tx
	chip   string
	pixels int
	sleep  func(time.Duration)
}

// NewNeoSlider resets the seesaw, checks its hardware id and configures the
// NeoPixel strand (GRB, 800 kHz).
func NewNeoSlider(dev Tx) (*NeoSlider, error) {
	return newNeoSlider(dev, time.Sleep)
}

func newNeoSlider(dev Tx, sleep func(time.Duration)) (*NeoSlider, error) {
	n := &NeoSlider{dev: dev, pixels: NeoSliderPixels, sleep: sleep}
	if err := n.write(seesawStatusBase, seesawSWReset, 0xFF); err != nil {
		return nil, fmt.Errorf("seesaw reset: %v: %w", err, model.ErrHardwareUnavailable)
	}
	n.sleep(500 * time.Millisecond)

	id, err := n.read(seesawStatusBase, seesawHWID, 1)
	if err != nil {
		return nil, fmt.Errorf("seesaw hw id: %v: %w", err, model.ErrHardwareUnavailable)
	}
	chip, ok := seesawIDs[id[0]]
	if !ok {
		return nil, fmt.Errorf("seesaw: unexpected hw id 0x%02x: %w", id[0], model.ErrHardwareUnavailable)
	}
	n.chip = chip

	bufLen := n.pixels * 3
	for _, w := range [][]byte{
		{seesawNeoPin, NeoSliderPin},
		{seesawNeoSpeed, 1},
		{seesawNeoBufLength, byte(bufLen >> 8), byte(bufLen)},
	} {
		if err := n.write(seesawNeoBase, w[0], w[1:]...); err != nil {
			return nil, fmt.Errorf("neopixel setup: %w", err)
		}
	}
	return n, nil
}

// Chip names the seesaw microcontroller.
func (n *NeoSlider) Chip() string { return n.chip }

// Fill sets every pixel to c and latches it.
func (n *NeoSlider) Fill(c Color) error {
	data := []byte{0, 0}
	for i := 0; i < n.pixels; i++ {
		data = append(data, c.G, c.R, c.B)
	}
	if err := n.write(seesawNeoBase, seesawNeoBuf, data...); err != nil {
		return fmt.Errorf("neopixel buffer: %w", err)
	}
	if err := n.write(seesawNeoBase, seesawNeoShow); err != nil {
		return fmt.Errorf("neopixel show: %w", err)
	}
	return nil
}

// Flash shows c for d, then turns the pixels off.
func (n *NeoSlider) Flash(ctx context.Context, c Color, d time.Duration) error {
	if err := n.Fill(c); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return n.Fill(Off)
}

func (n *NeoSlider) write(base, reg byte, data ...byte) error {
	return n.dev.Tx(append([]byte{base, reg}, data...), nil)
}

func (n *NeoSlider) read(base, reg byte, size int) ([]byte, error) {
	if err := n.dev.Tx([]byte{base, reg}, nil); err != nil {
		return nil, err
	}
	n.sleep(seesawReadDelay)
	r := make([]byte, size)
	if err := n.dev.Tx(nil, r); err != nil {
		return nil, err
	}
	return r, nil
}
