// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adxl345

import (
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c"
)

// Commands understood by the driver, see i2c core Host.Command.
const (
	CmdMeasure uint32 = 1 + iota // enable measurement
	CmdStandby                   // disable measurement
)

// Option configures the driver returned by NewDriver.
type Option func(*callbacks)

// WithProbeHook sets a function called with every device the driver
// binds to and the sample it read while probing.
func WithProbeHook(fn func(*Device, Sample)) Option {
	return func(cb *callbacks) { cb.onProbe = fn }
}

// WithIDCheck makes probe fail with ErrWrongDevice on devices whose ID
// register does not read DeviceID.
func WithIDCheck() Option {
	return func(cb *callbacks) { cb.checkID = true }
}

type callbacks struct {
	onProbe func(*Device, Sample)
	checkID bool
}

func (cb *callbacks) Probe(c *i2c.Client, id i2c.DeviceID) (*Device, error) {
	d := New(c)
	if cb.checkID {
		if err := d.Check(); err != nil {
			return nil, err
		}
	}
	s, err := d.Init()
	if err != nil {
		return nil, err
	}
	c.Logger().Info("adxl345 probed", "x", s.X, "y", s.Y, "z", s.Z)
	if cb.onProbe != nil {
		cb.onProbe(d, s)
	}
	return d, nil
}

func (cb *callbacks) Remove(d *Device) error {
	return d.Clean()
}

func (cb *callbacks) Shutdown(d *Device) error {
	return d.DisableMeasure()
}

func (cb *callbacks) Command(d *Device, cmd uint32, arg any) error {
	switch cmd {
	case CmdMeasure:
		return d.Start()
	case CmdStandby:
		return d.DisableMeasure()
	}
	return xerrors.Errorf("adxl345: command %#x: %w", cmd, unix.EOPNOTSUPP)
}

// NewDriver builds the ADXL345 driver descriptor, matching devices named
// Name. Probe configures the device and checks that it delivers a
// sample; Remove and Shutdown put it in standby.
func NewDriver(opts ...Option) (*i2c.Driver, error) {
	cb := &callbacks{}
	for _, opt := range opts {
		opt(cb)
	}
	return i2c.Begin[*Device]().
		SetName(Name).
		SetMatchTable(i2c.DeviceID{Name: Name, Data: 0}).
		SetCallbacks(cb).
		Build()
}
