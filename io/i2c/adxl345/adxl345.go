// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adxl345 drives the Analog Devices ADXL345 3-axis accelerometer
// over I2C.
package adxl345 // import "github.com/i2ckit/i2ckit/io/i2c/adxl345"

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c"
)

const (
	// Name is the device type name the driver matches.
	Name = "adxl345"

	// Addr is the bus address with ALT ADDRESS tied high; AltAddr with it
	// tied low.
	Addr    = 0x1d
	AltAddr = 0x53

	// DeviceID is the fixed content of RegDevID.
	DeviceID = 0xe5
)

// Register map.
const (
	RegDevID        = 0x00
	RegThreshTap    = 0x1d
	RegOfsX         = 0x1e
	RegOfsY         = 0x1f
	RegOfsZ         = 0x20
	RegDur          = 0x21
	RegLatent       = 0x22
	RegWindow       = 0x23
	RegThreshAct    = 0x24
	RegThreshInact  = 0x25
	RegTimeInact    = 0x26
	RegActInactCtl  = 0x27
	RegThreshFF     = 0x28
	RegTimeFF       = 0x29
	RegTapAxes      = 0x2a
	RegActTapStatus = 0x2b
	RegBWRate       = 0x2c
	RegPowerCtl     = 0x2d
	RegIntEnable    = 0x2e
	RegIntMap       = 0x2f
	RegIntSource    = 0x30
	RegDataFormat   = 0x31
	RegDataX0       = 0x32
	RegDataX1       = 0x33
	RegDataY0       = 0x34
	RegDataY1       = 0x35
	RegDataZ0       = 0x36
	RegDataZ1       = 0x37
	RegFIFOCtl      = 0x38
	RegFIFOStatus   = 0x39
)

const (
	powerMeasure   = 1 << 3
	bwLowPower     = 1 << 4
	intDataReady   = 0x80
	fifoModeMask   = 3 << 6
	formatFullRes  = 0x0b // full resolution, right justified, +/-16g
	wakeUpTime     = 2 * time.Millisecond
	pollInterval   = 10 * time.Millisecond
	sampleDataSize = 6
)

// Sample is one acceleration reading.
type Sample struct {
	X, Y, Z int16
}

// ErrWrongDevice is returned by Device.Check when the ID register does
// not read DeviceID.
var ErrWrongDevice = xerrors.New("adxl345: unexpected device id")

// Device is an ADXL345 on the bus. Its methods serialize access to the
// device.
type Device struct {
	c  *i2c.Client
	mu sync.Mutex
}

// New returns a Device talking through c.
func New(c *i2c.Client) *Device {
	return &Device{c: c}
}

// Client returns the handle the device talks through.
func (d *Device) Client() *i2c.Client { return d.c }

// Check reads the ID register and fails with ErrWrongDevice unless it
// holds DeviceID.
func (d *Device) Check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.c.ReadByteData(RegDevID)
	if err != nil {
		return err
	}
	if id != DeviceID {
		return xerrors.Errorf("%w: %#02x", ErrWrongDevice, id)
	}
	return nil
}

// SetDefaultConfig puts the device in standby with interrupts off,
// normal power, full resolution at +/-16g, all interrupts on INT1 and the
// FIFO bypassed.
func (d *Device) SetDefaultConfig() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	log := d.c.Logger()
	if err := d.c.WriteByteData(RegPowerCtl, 0); err != nil {
		return xerrors.Errorf("adxl345: standby: %w", err)
	}
	if err := d.c.WriteByteData(RegIntEnable, 0); err != nil {
		return xerrors.Errorf("adxl345: disable interrupts: %w", err)
	}
	bw, err := d.c.ReadByteData(RegBWRate)
	if err != nil {
		return xerrors.Errorf("adxl345: read bw rate: %w", err)
	}
	log.V(1).Info("output data rate", "hz", int(bw&0xf)*10)
	if err := d.c.WriteByteData(RegBWRate, bw&^bwLowPower); err != nil {
		return xerrors.Errorf("adxl345: write bw rate: %w", err)
	}
	if err := d.c.WriteByteData(RegDataFormat, formatFullRes); err != nil {
		return xerrors.Errorf("adxl345: data format: %w", err)
	}
	if err := d.c.WriteByteData(RegIntMap, 0); err != nil {
		return xerrors.Errorf("adxl345: interrupt map: %w", err)
	}
	fifo, err := d.c.ReadByteData(RegFIFOCtl)
	if err != nil {
		return xerrors.Errorf("adxl345: read fifo ctl: %w", err)
	}
	if err := d.c.WriteByteData(RegFIFOCtl, fifo&^fifoModeMask); err != nil {
		return xerrors.Errorf("adxl345: write fifo ctl: %w", err)
	}
	return nil
}

func (d *Device) updatePower(set bool) error {
	v, err := d.c.ReadByteData(RegPowerCtl)
	if err != nil {
		return err
	}
	if set {
		v |= powerMeasure
	} else {
		v &^= powerMeasure
	}
	return d.c.WriteByteData(RegPowerCtl, v)
}

// EnableMeasure switches the device to measurement mode. The device
// needs about 2ms to wake up before the first sample is valid.
func (d *Device) EnableMeasure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.updatePower(true); err != nil {
		return xerrors.Errorf("adxl345: enable measure: %w", err)
	}
	return nil
}

// DisableMeasure puts the device back in standby.
func (d *Device) DisableMeasure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.updatePower(false); err != nil {
		return xerrors.Errorf("adxl345: disable measure: %w", err)
	}
	return nil
}

// DataReady reports whether a new sample is available.
func (d *Device) DataReady() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dataReady()
}

func (d *Device) dataReady() (bool, error) {
	v, err := d.c.ReadByteData(RegIntSource)
	if err != nil {
		return false, xerrors.Errorf("adxl345: read int source: %w", err)
	}
	return v&intDataReady != 0, nil
}

// ReadSample reads the current X, Y and Z data registers.
func (d *Device) ReadSample() (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ReadSample(d.c)
}

// ReadSample reads one sample through c with a single 6-byte I2C block
// read starting at RegDataX0.
func ReadSample(c *i2c.Client) (Sample, error) {
	var buf [sampleDataSize]byte
	n, err := c.ReadI2CBlockData(RegDataX0, buf[:])
	if err != nil {
		return Sample{}, xerrors.Errorf("adxl345: read data: %w", err)
	}
	if n != sampleDataSize {
		return Sample{}, xerrors.Errorf("adxl345: short data read (%d bytes): %w", n, unix.EIO)
	}
	return Sample{
		X: int16(binary.LittleEndian.Uint16(buf[0:])) << 2,
		Y: int16(binary.LittleEndian.Uint16(buf[2:])) << 2,
		Z: int16(binary.LittleEndian.Uint16(buf[4:])) << 2,
	}, nil
}

// Init configures the device, takes one sample to check the data path
// and leaves the device in standby. It is what the driver does on probe.
func (d *Device) Init() (Sample, error) {
	if err := d.SetDefaultConfig(); err != nil {
		return Sample{}, err
	}
	if err := d.EnableMeasure(); err != nil {
		return Sample{}, err
	}
	time.Sleep(wakeUpTime)
	s, err := d.ReadSample()
	if err != nil {
		return Sample{}, err
	}
	return s, d.DisableMeasure()
}

// Clean disables interrupts and puts the device in standby.
func (d *Device) Clean() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.c.WriteByteData(RegIntEnable, 0); err != nil {
		return xerrors.Errorf("adxl345: disable interrupts: %w", err)
	}
	if err := d.c.WriteByteData(RegPowerCtl, 0); err != nil {
		return xerrors.Errorf("adxl345: standby: %w", err)
	}
	return nil
}

// Start enables measurement and waits for the device to wake up.
func (d *Device) Start() error {
	if err := d.EnableMeasure(); err != nil {
		return err
	}
	time.Sleep(wakeUpTime)
	return nil
}

// Read fills out with samples. It waits, polling, until data is ready
// and then reads while the device keeps reporting new data, up to
// len(out) samples. Samples rejected by f, if not nil, are skipped.
// It returns the number of samples stored.
func (d *Device) Read(ctx context.Context, out []Sample, f *Filter) (int, error) {
	if len(out) == 0 {
		return 0, unix.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		ready, err := d.dataReady()
		if err != nil {
			return 0, err
		}
		if ready {
			break
		}
		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	n := 0
	for i := 0; i < len(out); i++ {
		s, err := ReadSample(d.c)
		if err != nil {
			return n, err
		}
		if f == nil || f.Keep(s) {
			out[n] = s
			n++
		}
		ready, err := d.dataReady()
		if err != nil {
			return n, err
		}
		if !ready {
			break
		}
	}
	return n, nil
}

// DefaultThreshold is the movement, on any axis, below which a Filter
// drops a sample.
const DefaultThreshold = 50

// Filter drops samples that differ from the previous one by no more than
// Threshold on every axis.
type Filter struct {
	Threshold int16

	mu   sync.Mutex
	last Sample
}

// NewFilter returns a filter with DefaultThreshold.
func NewFilter() *Filter {
	return &Filter{Threshold: DefaultThreshold}
}

// Keep reports whether s moved enough to be kept. Either way s becomes
// the reference for the next call.
func (f *Filter) Keep(s Sample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := abs(s.X-f.last.X) > f.Threshold ||
		abs(s.Y-f.last.Y) > f.Threshold ||
		abs(s.Z-f.last.Z) > f.Threshold
	f.last = s
	return moved
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
