// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// NameSize is the size of a device or ID table name including the
// terminating NUL of the wire layout, so names hold at most NameSize-1
// bytes.
const NameSize = 20

// BoardInfo describes a device to instantiate on an adapter.
type BoardInfo struct {
	Type  string // matched against driver ID tables
	Addr  uint16
	Flags uint16 // driver.FlagTenBit, driver.FlagPEC
}

// Client is a device instantiated on an adapter.
type Client struct {
	host    *Host
	adapter *Adapter
	addr    uint16
	flags   uint16
	name    string

	// mu serializes driver callbacks for this device. detaching is
	// guarded by mu.
	mu        sync.Mutex
	detaching bool

	bound atomic.Pointer[registration]
	gen   atomic.Uint64
	dead  atomic.Bool

	dataMu sync.Mutex
	data   any
}

// Addr returns the bus address.
func (c *Client) Addr() uint16 { return c.addr }

// Flags returns the client flags given at instantiation.
func (c *Client) Flags() uint16 { return c.flags }

// Name returns the device type name used for matching.
func (c *Client) Name() string { return c.name }

// Host returns the bus core the device is registered with.
func (c *Client) Host() *Host { return c.host }

// Adapter returns the bus the device sits on.
func (c *Client) Adapter() *Adapter { return c.adapter }

// String returns the device name in bus-address form, e.g. "1-0053".
func (c *Client) String() string {
	addr := c.addr
	if c.flags&driver.FlagTenBit != 0 {
		addr |= 0xa000
	}
	return fmt.Sprintf("%d-%04x", c.adapter.nr, addr)
}

// Dead reports whether the device has been unregistered.
func (c *Client) Dead() bool { return c.dead.Load() }

// Generation changes every time the device is bound to or unbound from
// a driver, and when it is unregistered.
func (c *Client) Generation() uint64 { return c.gen.Load() }

// Driver returns the name of the bound driver, or "".
func (c *Client) Driver() string {
	if reg := c.bound.Load(); reg != nil {
		return reg.drv.Name
	}
	return ""
}

// SetClientData stores v in the device's driver data slot. The core
// clears the slot when a probe fails and after Remove.
func (c *Client) SetClientData(v any) {
	c.dataMu.Lock()
	c.data = v
	c.dataMu.Unlock()
}

// ClientData returns the value stored by SetClientData.
func (c *Client) ClientData() any {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.data
}

// SMBusXfer performs one SMBus transaction with the device. The
// transaction holds the adapter lock, so it is atomic with respect to
// other users of the bus. Failures are returned as unix.Errno.
func (c *Client) SMBusXfer(rw driver.ReadWrite, cmd byte, size driver.Size, data *driver.Data) error {
	a := c.adapter
	if c.dead.Load() || a.dead.Load() {
		return unix.ENODEV
	}
	a.bus.Lock()
	err := a.algo.SMBusXfer(c.addr, c.flags, rw, cmd, size, data)
	a.bus.Unlock()
	c.host.countTransfer(a, err)
	if err != nil {
		errno := Errno(err)
		c.host.log.V(2).Info("smbus transfer failed", "device", c.String(), "rw", rw.String(),
			"cmd", cmd, "size", int(size), "errno", int(errno))
		return errno
	}
	return nil
}

// Transfer issues a plain I2C transfer to the device. The address and
// ten-bit flag of every message are taken from the client. It fails with
// EOPNOTSUPP if the controller cannot do plain transfers.
func (c *Client) Transfer(msgs []driver.Msg) (int, error) {
	a := c.adapter
	if c.dead.Load() || a.dead.Load() {
		return 0, unix.ENODEV
	}
	t, ok := a.algo.(driver.Transferer)
	if !ok {
		return 0, unix.EOPNOTSUPP
	}
	for i := range msgs {
		msgs[i].Addr = c.addr
		msgs[i].Flags = msgs[i].Flags&^driver.FlagTenBit | c.flags&driver.FlagTenBit
	}
	a.bus.Lock()
	n, err := t.Transfer(msgs)
	a.bus.Unlock()
	c.host.countTransfer(a, err)
	if err != nil {
		return n, Errno(err)
	}
	return n, nil
}

// NewClientDevice instantiates a device on a and tries to bind it to the
// registered drivers. Binding failures do not fail the instantiation.
func (h *Host) NewClientDevice(a *Adapter, info BoardInfo) (*Client, error) {
	if a == nil {
		return nil, unix.ENODEV
	}
	if info.Type == "" || len(info.Type) >= NameSize {
		return nil, unix.EINVAL
	}
	if err := checkAddr(info.Addr, info.Flags); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.adapters[a.nr] != a {
		h.mu.Unlock()
		return nil, unix.ENODEV
	}
	for _, other := range h.clients {
		if other.adapter == a && other.addr == info.Addr &&
			other.flags&driver.FlagTenBit == info.Flags&driver.FlagTenBit {
			h.mu.Unlock()
			return nil, unix.EBUSY
		}
	}
	c := &Client{host: h, adapter: a, addr: info.Addr, flags: info.Flags, name: info.Type}
	h.clients = append(h.clients, c)
	var candidates []*registration
	for _, reg := range h.drivers {
		if !reg.closing && reg.drv.match(c.name) != nil {
			reg.inflight.Add(1)
			candidates = append(candidates, reg)
		}
	}
	h.mu.Unlock()

	h.log.V(1).Info("device instantiated", "device", c.String(), "name", c.name)
	for i, reg := range candidates {
		if h.attach(c, reg) {
			for _, rest := range candidates[i+1:] {
				rest.inflight.Done()
			}
			break
		}
	}
	return c, nil
}

// UnregisterDevice unbinds c from its driver, if any, and removes it from
// the bus. The Remove callback still sees a live device; the device is
// dead once UnregisterDevice returns.
func (h *Host) UnregisterDevice(c *Client) error {
	h.mu.Lock()
	i := -1
	for j, other := range h.clients {
		if other == c {
			i = j
			break
		}
	}
	if i < 0 {
		h.mu.Unlock()
		return unix.ENODEV
	}
	h.clients = append(h.clients[:i:i], h.clients[i+1:]...)
	h.mu.Unlock()

	c.mu.Lock()
	c.detaching = true
	err := h.unbindLocked(c)
	c.dead.Store(true)
	c.gen.Add(1)
	c.mu.Unlock()
	h.log.V(1).Info("device unregistered", "device", c.String())
	return err
}

func checkAddr(addr, flags uint16) error {
	if flags&driver.FlagTenBit != 0 {
		if addr > 0x3ff {
			return unix.EINVAL
		}
		return nil
	}
	if addr == 0 || addr > 0x7f {
		return unix.EINVAL
	}
	return nil
}

// Errno returns the errno carried by err, or EIO if it carries none.
func Errno(err error) unix.Errno {
	var errno unix.Errno
	if xerrors.As(err, &errno) && errno != 0 {
		return errno
	}
	return unix.EIO
}

func errnoString(errno int) string {
	if errno < 0 {
		errno = -errno
	}
	return unix.Errno(errno).Error()
}
