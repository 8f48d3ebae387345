// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i2c lets drivers talk to I2C/SMBus devices registered with the
// bus core (package core) without handling the core's raw descriptors,
// callback convention or per-device data slot.
//
// A driver is assembled with Begin, registered with a Registry and then
// receives typed Probe, Remove and Shutdown calls:
//
//	drv, err := i2c.Begin[*sensor]().
//		SetName("adxl345").
//		SetMatchTable(i2c.DeviceID{Name: "adxl345"}).
//		SetCallbacks(sensorCallbacks{}).
//		Build()
//	...
//	rd, err := registry.Register(drv)
//	...
//	defer rd.Unregister()
//
// The Client passed to Probe is borrowed from the bus core: it stays
// valid until Remove for that device returns. Clients returned by
// Adapter.InstantiateClient are owned by the caller and must be released.
// Operations on a handle that is no longer valid fail with
// ErrStaleHandle.
//
// All bus transactions block until the controller completes them.
package i2c // import "github.com/i2ckit/i2ckit/io/i2c"

import (
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

const tenbitMask = 1 << 12

// TenBit marks an I2C address as a 10-bit address.
func TenBit(addr int) int {
	return addr | tenbitMask
}

// resolveAddr returns the address and whether it is a 10-bit address.
func resolveAddr(addr int) (unmasked int, tenbit bool) {
	return addr & (tenbitMask - 1), addr&tenbitMask == tenbitMask
}

// Client is a handle to a device on the bus. A Client is not safe for
// concurrent use when the callers' transactions must not interleave;
// each single transaction is atomic on its bus.
type Client struct {
	raw      *core.Client
	gen      uint64 // binding generation for borrowed handles
	owned    bool
	released atomic.Bool
}

// borrow wraps a device handed to a callback by the bus core. The handle
// is tied to the device's current binding.
func borrow(c *core.Client) *Client {
	return &Client{raw: c, gen: c.Generation()}
}

// Addr returns the device's bus address.
func (c *Client) Addr() uint16 { return c.raw.Addr() }

// Name returns the device type name.
func (c *Client) Name() string { return c.raw.Name() }

// Bus returns the number of the bus the device sits on.
func (c *Client) Bus() int { return c.raw.Adapter().Nr() }

// String returns the device name in bus-address form, e.g. "1-0053".
func (c *Client) String() string { return c.raw.String() }

// Logger returns the bus core's logger annotated with the device name.
func (c *Client) Logger() logr.Logger {
	return c.raw.Host().Logger().WithValues("device", c.raw.String())
}

// Owned reports whether the handle was instantiated by the caller.
func (c *Client) Owned() bool { return c.owned }

// Valid reports whether the handle still refers to a live device.
func (c *Client) Valid() bool { return c.check() == nil }

func (c *Client) check() error {
	if c == nil || c.raw == nil || c.raw.Dead() {
		return ErrStaleHandle
	}
	if c.owned {
		if c.released.Load() {
			return ErrStaleHandle
		}
		return nil
	}
	if c.raw.Generation() != c.gen {
		return ErrStaleHandle
	}
	return nil
}

// Release unregisters a device instantiated by the caller. If a driver
// is bound to it, its Remove callback runs first and a failure there is
// returned. Releasing a borrowed handle fails with ErrNotOwned; releasing
// an owned one twice is a no-op.
func (c *Client) Release() error {
	if c == nil || c.raw == nil {
		return ErrStaleHandle
	}
	if !c.owned {
		return ErrNotOwned
	}
	if c.released.Swap(true) || c.raw.Dead() {
		return nil
	}
	return c.raw.Host().UnregisterDevice(c.raw)
}

// Functionality reports what the device's bus controller supports.
func (c *Client) Functionality() driver.Func {
	return c.raw.Adapter().Functionality()
}

// CheckFunctionality reports whether the controller supports all of f.
func (c *Client) CheckFunctionality(f driver.Func) bool {
	return c.Functionality()&f == f
}
