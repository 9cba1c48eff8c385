package hardware

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"formatif-grader/internal/domain/model"
)

// BMP280 I²C addresses: SDO high then SDO low.
const (
	BMP280Primary   uint16 = 0x77
	BMP280Secondary uint16 = 0x76

	DefaultSeaLevelHPa = 1013.25
)

const (
	bmpRegCalib    = 0x88
	bmpRegChipID   = 0xD0
	bmpRegCtrlMeas = 0xF4
	bmpRegConfig   = 0xF5
	bmpRegData     = 0xF7

	bmpChipID = 0x58
	// A BME280 answers with 0x60 and shares the temperature/pressure layout.
	bmeChipID = 0x60

	// osrs_t x1, osrs_p x4, normal mode.
	bmpCtrlMeas = 0x2F
)

type bmpCalibration struct {
	t1             uint16
	t2, t3         int16
	p1             uint16
	p2, p3, p4, p5 int16
	p6, p7, p8, p9 int16
}

// BMP280 reads temperature and pressure from a Bosch BMP280.
type BMP280 struct {
	dev      Tx
	addr     uint16
	cal      bmpCalibration
	seaLevel float64
	sleep    func(time.Duration)
}

// NewBMP280 checks the chip id, loads the factory calibration and starts
// continuous measurement.
func NewBMP280(dev Tx, addr uint16, seaLevelHPa float64) (*BMP280, error) {
	if seaLevelHPa <= 0 {
		seaLevelHPa = DefaultSeaLevelHPa
	}
	s := &BMP280{dev: dev, addr: addr, seaLevel: seaLevelHPa, sleep: time.Sleep}

	id := make([]byte, 1)
	if err := dev.Tx([]byte{bmpRegChipID}, id); err != nil {
		return nil, fmt.Errorf("bmp280 at 0x%02x: %v: %w", addr, err, model.ErrHardwareUnavailable)
	}
	if id[0] != bmpChipID && id[0] != bmeChipID {
		return nil, fmt.Errorf("bmp280 at 0x%02x: unexpected chip id 0x%02x: %w", addr, id[0], model.ErrHardwareUnavailable)
	}

	raw := make([]byte, 24)
	if err := dev.Tx([]byte{bmpRegCalib}, raw); err != nil {
		return nil, fmt.Errorf("bmp280 calibration: %w", err)
	}
	s.cal = parseCalibration(raw)

	if err := dev.Tx([]byte{bmpRegConfig, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("bmp280 config: %w", err)
	}
	if err := dev.Tx([]byte{bmpRegCtrlMeas, bmpCtrlMeas}, nil); err != nil {
		return nil, fmt.Errorf("bmp280 ctrl_meas: %w", err)
	}
	return s, nil
}

// Read returns one compensated sample.
func (s *BMP280) Read() (model.BarometerReading, error) {
	// First conversion at x4 pressure oversampling takes ~14 ms.
	s.sleep(20 * time.Millisecond)

	buf := make([]byte, 6)
	if err := s.dev.Tx([]byte{bmpRegData}, buf); err != nil {
		return model.BarometerReading{}, fmt.Errorf("bmp280 read: %w", err)
	}
	adcP := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	adcT := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4

	temp, tFine := s.cal.temperature(adcT)
	hPa := s.cal.pressure(adcP, tFine) / 100
	return model.BarometerReading{
		Address:      s.addr,
		TemperatureC: temp,
		PressureHPa:  hPa,
		AltitudeM:    Altitude(hPa, s.seaLevel),
	}, nil
}

// Altitude is the international barometric formula.
func Altitude(pressureHPa, seaLevelHPa float64) float64 {
	return 44330 * (1 - math.Pow(pressureHPa/seaLevelHPa, 0.1903))
}

func parseCalibration(b []byte) bmpCalibration {
	u := func(i int) uint16 { return binary.LittleEndian.Uint16(b[i:]) }
	s := func(i int) int16 { return int16(binary.LittleEndian.Uint16(b[i:])) }
	return bmpCalibration{
		t1: u(0), t2: s(2), t3: s(4),
		p1: u(6), p2: s(8), p3: s(10), p4: s(12), p5: s(14),
		p6: s(16), p7: s(18), p8: s(20), p9: s(22),
	}
}

// temperature follows the floating point compensation of the datasheet (§8.1).
func (c bmpCalibration) temperature(adc int32) (celsius, tFine float64) {
	a := float64(adc)
	v1 := (a/16384 - float64(c.t1)/1024) * float64(c.t2)
	d := a/131072 - float64(c.t1)/8192
	v2 := d * d * float64(c.t3)
	tFine = v1 + v2
	return tFine / 5120, tFine
}

// pressure returns Pa.
func (c bmpCalibration) pressure(adc int32, tFine float64) float64 {
	v1 := tFine/2 - 64000
	v2 := v1 * v1 * float64(c.p6) / 32768
	v2 += v1 * float64(c.p5) * 2
	v2 = v2/4 + float64(c.p4)*65536
	v1 = (float64(c.p3)*v1*v1/524288 + float64(c.p2)*v1) / 524288
	v1 = (1 + v1/32768) * float64(c.p1)
	if v1 == 0 {
		return 0
	}
	p := 1048576 - float64(adc)
	p = (p - v2/4096) * 6250 / v1
	v1 = float64(c.p9) * p * p / 2147483648
	v2 = p * float64(c.p8) / 32768
	return p + (v1+v2+float64(c.p7))/16
}
