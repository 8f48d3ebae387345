// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// DeviceID is one entry of a driver's ID table.
type DeviceID struct {
	Name       string
	DriverData uint64
}

// AlertProtocol identifies the source of an Alert callback.
type AlertProtocol int

const (
	AlertSMBus      AlertProtocol = iota // SMBus alert (ARA)
	AlertHostNotify                      // SMBus host notify
)

func (p AlertProtocol) String() string {
	switch p {
	case AlertSMBus:
		return "smbus-alert"
	case AlertHostNotify:
		return "host-notify"
	}
	return fmt.Sprintf("AlertProtocol(%d)", int(p))
}

// Driver is the descriptor the core keeps for a registered driver.
//
// Callbacks return 0 on success and a negative errno on failure. Probe
// is required. The core never invokes two callbacks at once for the same
// device. A Driver must not be modified while it is registered.
type Driver struct {
	Name    string
	IDTable []DeviceID
	Class   uint32
	Flags   uint32

	Probe    func(c *Client, id *DeviceID) int
	Remove   func(c *Client) int
	Shutdown func(c *Client)
	Alert    func(c *Client, proto AlertProtocol, data uint32)
	Command  func(c *Client, cmd uint32, arg any) int
}

// match returns the first ID table entry for the device name, or nil.
func (d *Driver) match(name string) *DeviceID {
	for i := range d.IDTable {
		if d.IDTable[i].Name == name {
			return &d.IDTable[i]
		}
	}
	return nil
}

// registration is the core's bookkeeping for a registered Driver.
type registration struct {
	drv      *Driver
	inflight sync.WaitGroup // probes started for this driver

	// Guarded by Host.mu.
	closing bool
	clients map[*Client]struct{}
}

// RemoveError reports a Remove callback failure.
type RemoveError struct {
	Driver string
	Device string
	Errno  unix.Errno
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("i2c: %s: remove %s: %v", e.Driver, e.Device, e.Errno)
}

func (e *RemoveError) Unwrap() error { return e.Errno }

// AddDriver registers d and binds it to every unbound device it matches.
// Matching devices are probed concurrently; AddDriver returns when all of
// those probes have finished. A failed probe leaves that one device
// unbound and does not fail AddDriver.
//
// AddDriver fails with EINVAL if d has no name or Probe callback and with
// EBUSY if a driver of the same name is registered.
func (h *Host) AddDriver(d *Driver) error {
	if d == nil || d.Name == "" || d.Probe == nil {
		return unix.EINVAL
	}
	h.mu.Lock()
	for _, reg := range h.drivers {
		if reg.drv == d || reg.drv.Name == d.Name {
			h.mu.Unlock()
			return unix.EBUSY
		}
	}
	reg := &registration{drv: d, clients: make(map[*Client]struct{})}
	h.drivers = append(h.drivers, reg)
	var pending []*Client
	for _, c := range h.clients {
		if c.bound.Load() == nil && d.match(c.name) != nil {
			pending = append(pending, c)
		}
	}
	reg.inflight.Add(len(pending))
	h.mu.Unlock()

	h.log.V(1).Info("driver registered", "driver", d.Name, "candidates", len(pending))
	var g errgroup.Group
	g.SetLimit(h.probeLimit)
	for _, c := range pending {
		c := c
		g.Go(func() error {
			h.attach(c, reg)
			return nil
		})
	}
	g.Wait()
	return nil
}

// DelDriver unregisters d. No probe of d starts after DelDriver begins;
// probes already running are waited for, then every device still bound
// to d is removed. Remove failures are combined into the result, but d
// is unregistered regardless.
func (h *Host) DelDriver(d *Driver) error {
	h.mu.Lock()
	i := -1
	for j, reg := range h.drivers {
		if reg.drv == d {
			i = j
			break
		}
	}
	if i < 0 {
		h.mu.Unlock()
		return unix.ENOENT
	}
	reg := h.drivers[i]
	reg.closing = true
	h.drivers = append(h.drivers[:i:i], h.drivers[i+1:]...)
	h.mu.Unlock()

	reg.inflight.Wait()

	h.mu.Lock()
	bound := make([]*Client, 0, len(reg.clients))
	for c := range reg.clients {
		bound = append(bound, c)
	}
	h.mu.Unlock()
	sortClients(bound)

	var err error
	for _, c := range bound {
		err = multierr.Append(err, h.detach(c, reg))
	}
	h.log.V(1).Info("driver unregistered", "driver", d.Name, "removed", len(bound))
	return err
}

// Driver returns the registered driver with the given name, or nil.
func (h *Host) Driver(name string) *Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, reg := range h.drivers {
		if reg.drv.Name == name {
			return reg.drv
		}
	}
	return nil
}

// BoundClients returns the devices currently bound to d.
func (h *Host) BoundClients(d *Driver) []*Client {
	h.mu.Lock()
	var cs []*Client
	for _, reg := range h.drivers {
		if reg.drv == d {
			for c := range reg.clients {
				cs = append(cs, c)
			}
		}
	}
	h.mu.Unlock()
	sortClients(cs)
	return cs
}

// attach probes c with reg's driver unless c is already bound, c is going
// away or reg is being unregistered. It reports whether c ended up bound
// to reg. The caller must have counted the attempt in reg.inflight.
func (h *Host) attach(c *Client, reg *registration) bool {
	defer reg.inflight.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detaching || c.dead.Load() || c.bound.Load() != nil {
		return false
	}
	// No probe may start once DelDriver has begun, even for attempts
	// counted before it.
	h.mu.Lock()
	closing := reg.closing
	h.mu.Unlock()
	if closing {
		return false
	}
	id := reg.drv.match(c.name)
	if id == nil {
		return false
	}

	c.bound.Store(reg)
	c.gen.Add(1)
	ctx, span := h.startSpan("i2c.probe", reg.drv, c)
	ret := reg.drv.Probe(c, id)
	if ret < 0 {
		failSpan(span, ret)
		span.End()
		c.SetClientData(nil)
		c.bound.Store(nil)
		c.gen.Add(1)
		h.countProbe(ctx, reg.drv, false)
		h.log.Info("probe failed", "driver", reg.drv.Name, "device", c.String(), "errno", ret)
		return false
	}
	span.End()
	h.countProbe(ctx, reg.drv, true)

	h.mu.Lock()
	reg.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.V(1).Info("device bound", "driver", reg.drv.Name, "device", c.String())
	return true
}

// detach unbinds c if it is still bound to reg.
func (h *Host) detach(c *Client, reg *registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound.Load() != reg {
		return nil
	}
	return h.unbindLocked(c)
}

// unbindLocked runs the Remove callback of c's driver and clears the
// binding. c.mu must be held.
func (h *Host) unbindLocked(c *Client) error {
	reg := c.bound.Load()
	if reg == nil {
		return nil
	}
	ret := 0
	if reg.drv.Remove != nil {
		_, span := h.startSpan("i2c.remove", reg.drv, c)
		ret = reg.drv.Remove(c)
		if ret < 0 {
			failSpan(span, ret)
		}
		span.End()
	}
	c.SetClientData(nil)
	c.bound.Store(nil)
	c.gen.Add(1)

	h.mu.Lock()
	delete(reg.clients, c)
	h.mu.Unlock()
	h.log.V(1).Info("device unbound", "driver", reg.drv.Name, "device", c.String())

	if ret < 0 {
		return &RemoveError{Driver: reg.drv.Name, Device: c.String(), Errno: unix.Errno(-ret)}
	}
	return nil
}

// Alert delivers an alert for the 7-bit device at addr on a to its
// driver. Alert responses and host notifications carry 7-bit addresses,
// so a 10-bit device sharing the number is never chosen. It fails with
// ENODEV if there is no such device and EOPNOTSUPP if the device is
// unbound or its driver takes no alerts.
func (h *Host) Alert(a *Adapter, addr uint16, proto AlertProtocol, data uint32) error {
	var c *Client
	for _, other := range h.Clients() {
		if other.adapter == a && other.addr == addr && other.flags&driver.FlagTenBit == 0 {
			c = other
			break
		}
	}
	if c == nil {
		return unix.ENODEV
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	reg := c.bound.Load()
	if reg == nil || reg.drv.Alert == nil {
		return unix.EOPNOTSUPP
	}
	reg.drv.Alert(c, proto, data)
	return nil
}

// Command passes cmd and arg to the Command callback of every bound
// device on a. Failures are combined into the result.
func (h *Host) Command(a *Adapter, cmd uint32, arg any) error {
	var err error
	for _, c := range h.Clients() {
		if c.adapter != a {
			continue
		}
		c.mu.Lock()
		if reg := c.bound.Load(); reg != nil && reg.drv.Command != nil {
			if ret := reg.drv.Command(c, cmd, arg); ret < 0 {
				err = multierr.Append(err, xerrors.Errorf("i2c: %s: command %#x: %w", c, cmd, unix.Errno(-ret)))
			}
		}
		c.mu.Unlock()
	}
	return err
}
