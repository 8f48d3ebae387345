// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adxl345

import (
	"encoding/binary"

	"github.com/i2ckit/i2ckit/io/i2c/i2ctest"
)

// Simulator is an in-memory ADXL345 for i2ctest buses. It reports data
// ready at all times.
type Simulator struct {
	*i2ctest.Registers
}

// NewSimulator returns a simulated device in its power-on state, at rest
// with 1g on Z.
func NewSimulator() *Simulator {
	s := &Simulator{i2ctest.NewRegisters(map[byte]byte{
		RegDevID:     DeviceID,
		RegBWRate:    0x0a,
		RegIntSource: intDataReady | 0x02,
	})}
	s.SetReadOnly(RegDevID)
	s.SetReadOnly(RegIntSource)
	s.SetRaw(0, 0, 64)
	return s
}

// SetRaw sets the raw data registers. Samples read back are the raw
// values shifted left by two.
func (s *Simulator) SetRaw(x, y, z int16) {
	var buf [sampleDataSize]byte
	binary.LittleEndian.PutUint16(buf[0:], uint16(x))
	binary.LittleEndian.PutUint16(buf[2:], uint16(y))
	binary.LittleEndian.PutUint16(buf[4:], uint16(z))
	for i, v := range buf {
		s.Set(RegDataX0+byte(i), v)
	}
}

// Measuring reports whether the device is in measurement mode.
func (s *Simulator) Measuring() bool {
	return s.Get(RegPowerCtl)&powerMeasure != 0
}
