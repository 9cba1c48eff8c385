package hardware

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"formatif-grader/internal/domain/model"
)

// regDevice emulates a register-addressed chip: a one-byte write followed by
// a read returns consecutive registers, longer writes store bytes.
type regDevice struct {
	regs map[byte]byte
	err  error
}

func (d *regDevice) Tx(w, r []byte) error {
	if d.err != nil {
		return d.err
	}
	if len(w) == 0 {
		return errors.New("empty write")
	}
	for i, b := range w[1:] {
		d.regs[w[0]+byte(i)] = b
	}
	for i := range r {
		r[i] = d.regs[w[0]+byte(i)]
	}
	return nil
}

// datasheetDevice holds the calibration and raw sample from the BMP280
// datasheet worked example.
func datasheetDevice() *regDevice {
	d := &regDevice{regs: map[byte]byte{bmpRegChipID: bmpChipID}}
	cal := []int{27504, 26435, -1000, 36477, -10685, 3024, 2855, 140, -7, 15500, -14600, 6000}
	for i, v := range cal {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
		if i == 0 || i == 3 {
			binary.LittleEndian.PutUint16(b[:], uint16(v))
		}
		d.regs[bmpRegCalib+byte(2*i)] = b[0]
		d.regs[bmpRegCalib+byte(2*i)+1] = b[1]
	}
	// adc_P = 415148, adc_T = 519888
	raw := []byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00}
	for i, b := range raw {
		d.regs[bmpRegData+byte(i)] = b
	}
	return d
}

func TestBMP280DatasheetExample(t *testing.T) {
	dev := datasheetDevice()
	s, err := NewBMP280(dev, BMP280Primary, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.sleep = func(time.Duration) {}
	if dev.regs[bmpRegCtrlMeas] != bmpCtrlMeas {
		t.Fatalf("ctrl_meas not written: 0x%02x", dev.regs[bmpRegCtrlMeas])
	}

	r, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if math.Abs(r.TemperatureC-25.08) > 0.01 {
		t.Fatalf("temperature = %.4f, want 25.08", r.TemperatureC)
	}
	if math.Abs(r.PressureHPa-1006.5327) > 0.05 {
		t.Fatalf("pressure = %.4f hPa, want ~1006.53", r.PressureHPa)
	}
	if r.Address != 0x77 || math.Abs(r.AltitudeM-Altitude(r.PressureHPa, DefaultSeaLevelHPa)) > 1e-9 {
		t.Fatalf("unexpected reading %+v", r)
	}
}

func TestBMP280RejectsWrongChip(t *testing.T) {
	dev := &regDevice{regs: map[byte]byte{bmpRegChipID: 0x00}}
	if _, err := NewBMP280(dev, BMP280Secondary, 0); !errors.Is(err, model.ErrHardwareUnavailable) {
		t.Fatalf("expected ErrHardwareUnavailable, got %v", err)
	}
	dev = &regDevice{err: errors.New("remote I/O error")}
	if _, err := NewBMP280(dev, BMP280Primary, 0); !errors.Is(err, model.ErrHardwareUnavailable) {
		t.Fatalf("expected ErrHardwareUnavailable for bus error, got %v", err)
	}
}

func TestAltitude(t *testing.T) {
	if a := Altitude(1013.25, 1013.25); a != 0 {
		t.Fatalf("altitude at sea level = %f", a)
	}
	if a := Altitude(1000, 1013.25); a < 105 || a > 115 {
		t.Fatalf("altitude at 1000 hPa = %f", a)
	}
}

type seesawDevice struct {
	hwID   byte
	writes [][]byte
	last   []byte
}

func (d *seesawDevice) Tx(w, r []byte) error {
	if len(w) > 0 {
		d.writes = append(d.writes, append([]byte(nil), w...))
		d.last = w
	}
	if len(r) > 0 && bytes.Equal(d.last, []byte{seesawStatusBase, seesawHWID}) {
		r[0] = d.hwID
	}
	return nil
}

func TestNeoSliderSetupAndFlash(t *testing.T) {
	dev := &seesawDevice{hwID: 0x84}
	n, err := newNeoSlider(dev, func(time.Duration) {})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n.Chip() != "ATtiny817" {
		t.Fatalf("chip = %s", n.Chip())
	}
	want := [][]byte{
		{seesawStatusBase, seesawSWReset, 0xFF},
		{seesawStatusBase, seesawHWID},
		{seesawNeoBase, seesawNeoPin, 14},
		{seesawNeoBase, seesawNeoSpeed, 1},
		{seesawNeoBase, seesawNeoBufLength, 0, 12},
	}
	for i, w := range want {
		if !bytes.Equal(dev.writes[i], w) {
			t.Fatalf("write %d = % x, want % x", i, dev.writes[i], w)
		}
	}

	dev.writes = nil
	if err := n.Flash(context.Background(), Green, time.Millisecond); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if len(dev.writes) != 4 {
		t.Fatalf("expected buffer+show twice, got %d writes", len(dev.writes))
	}
	on := dev.writes[0]
	if on[0] != seesawNeoBase || on[1] != seesawNeoBuf || len(on) != 4+12 || on[4] != 255 || on[5] != 0 {
		t.Fatalf("green must be sent GRB: % x", on)
	}
	off := dev.writes[2]
	for _, b := range off[4:] {
		if b != 0 {
			t.Fatalf("pixels not cleared: % x", off)
		}
	}
}

func TestNeoSliderUnknownChip(t *testing.T) {
	if _, err := newNeoSlider(&seesawDevice{hwID: 0x12}, func(time.Duration) {}); !errors.Is(err, model.ErrHardwareUnavailable) {
		t.Fatalf("expected ErrHardwareUnavailable, got %v", err)
	}
}
