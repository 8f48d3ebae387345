// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/core"
)

// Callbacks is implemented by drivers. P is the driver's per-device
// private data: whatever Probe returns is handed back, unchanged, to
// Remove and Shutdown for the same device.
//
// The bus core never calls two of these at once for the same device, but
// may call them concurrently for different devices.
type Callbacks[P any] interface {
	// Probe binds the driver to c, which matched id. The Client stays
	// valid until Remove returns for the device. An error leaves the
	// device unbound.
	Probe(c *Client, id DeviceID) (P, error)

	// Remove unbinds the device. An error is reported to whoever
	// triggered the removal; the device is unbound regardless.
	Remove(data P) error

	// Shutdown quiesces the device when the system goes down. Errors
	// are logged and otherwise ignored.
	Shutdown(data P) error
}

// AlertProtocol identifies the source of an alert.
type AlertProtocol = core.AlertProtocol

const (
	AlertSMBus      = core.AlertSMBus
	AlertHostNotify = core.AlertHostNotify
)

// Commander is implemented by drivers that accept commands broadcast to
// the devices of a bus.
type Commander[P any] interface {
	Command(data P, cmd uint32, arg any) error
}

// Alerter is implemented by drivers whose devices raise SMBus alerts.
type Alerter[P any] interface {
	Alert(data P, proto AlertProtocol, flag uint32)
}

// Funcs implements Callbacks with plain functions. ProbeFunc is
// required; nil RemoveFunc and ShutdownFunc do nothing.
type Funcs[P any] struct {
	ProbeFunc    func(c *Client, id DeviceID) (P, error)
	RemoveFunc   func(data P) error
	ShutdownFunc func(data P) error
}

func (f Funcs[P]) Probe(c *Client, id DeviceID) (P, error) { return f.ProbeFunc(c, id) }

func (f Funcs[P]) Remove(data P) error {
	if f.RemoveFunc == nil {
		return nil
	}
	return f.RemoveFunc(data)
}

func (f Funcs[P]) Shutdown(data P) error {
	if f.ShutdownFunc == nil {
		return nil
	}
	return f.ShutdownFunc(data)
}

func (f Funcs[P]) missingProbe() bool { return f.ProbeFunc == nil }

// privateData is what the vtable keeps in a device's data slot.
type privateData[P any] struct {
	value P
}

// vtable adapts one Callbacks implementation to the bus core's
// descriptor convention. Its methods are what the core calls.
type vtable[P any] struct {
	name      string
	cb        Callbacks[P]
	commander Commander[P]
	alerter   Alerter[P]
}

func (vt *vtable[P]) logger(c *core.Client) logr.Logger {
	return c.Host().Logger().WithName("i2c").WithValues("driver", vt.name, "device", c.String())
}

func (vt *vtable[P]) data(c *core.Client) (P, bool) {
	pd, ok := c.ClientData().(*privateData[P])
	if !ok {
		var zero P
		return zero, false
	}
	return pd.value, true
}

func (vt *vtable[P]) probe(c *core.Client, id *core.DeviceID) int {
	p, err := vt.cb.Probe(borrow(c), DeviceID{Name: id.Name, Data: id.DriverData})
	if err != nil {
		c.SetClientData(nil)
		perr := &ProbeError{Driver: vt.name, Device: c.String(), Err: err}
		vt.logger(c).Error(perr, "probe failed")
		return Errno(err)
	}
	c.SetClientData(&privateData[P]{value: p})
	return 0
}

func (vt *vtable[P]) remove(c *core.Client) int {
	p, ok := vt.data(c)
	c.SetClientData(nil)
	if !ok {
		vt.logger(c).Error(nil, "remove without driver data")
		return -int(unix.EINVAL)
	}
	if err := vt.cb.Remove(p); err != nil {
		vt.logger(c).Error(err, "remove failed")
		return Errno(err)
	}
	return 0
}

func (vt *vtable[P]) shutdown(c *core.Client) {
	p, ok := vt.data(c)
	if !ok {
		vt.logger(c).V(1).Info("shutdown without driver data")
		return
	}
	if err := vt.cb.Shutdown(p); err != nil {
		vt.logger(c).Error(err, "shutdown failed")
	}
}

func (vt *vtable[P]) command(c *core.Client, cmd uint32, arg any) int {
	p, ok := vt.data(c)
	if !ok {
		return -int(unix.ENODEV)
	}
	if err := vt.commander.Command(p, cmd, arg); err != nil {
		vt.logger(c).Error(err, "command failed", "cmd", cmd)
		return Errno(err)
	}
	return 0
}

func (vt *vtable[P]) alert(c *core.Client, proto AlertProtocol, flag uint32) {
	p, ok := vt.data(c)
	if !ok {
		vt.logger(c).V(1).Info("alert without driver data", "protocol", proto.String())
		return
	}
	vt.alerter.Alert(p, proto, flag)
}
