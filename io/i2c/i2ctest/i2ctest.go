// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i2ctest provides an in-memory I2C bus controller and simple
// register-file devices for testing drivers without hardware.
package i2ctest // import "github.com/i2ckit/i2ckit/io/i2c/i2ctest"

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// Device is a target that can sit on a Bus.
type Device interface {
	SMBus(rw driver.ReadWrite, cmd byte, size driver.Size, data *driver.Data) error
	Transfer(msgs []driver.Msg) error
}

// Bus is an in-memory bus controller. It implements driver.Adapter,
// driver.Transferer and driver.Functionality. Transactions to an address
// with no device fail with ENXIO, as a missing ACK does on hardware.
type Bus struct {
	mu      sync.Mutex
	devices map[target]Device
	funcs   driver.Func
	fail    unix.Errno
	xfers   int
}

// target is a bus address; 7-bit and 10-bit devices may share a number.
type target struct {
	addr   uint16
	tenbit bool
}

var (
	_ driver.Adapter       = (*Bus)(nil)
	_ driver.Transferer    = (*Bus)(nil)
	_ driver.Functionality = (*Bus)(nil)
)

// NewBus returns an empty bus supporting plain I2C and every SMBus
// transaction.
func NewBus() *Bus {
	return &Bus{
		devices: make(map[target]Device),
		funcs:   driver.FuncI2C | driver.FuncTenBitAddr | driver.FuncSMBusEmul | driver.FuncSMBusReadBlockData,
	}
}

// Attach places d at the 7-bit address addr, replacing any device
// already there.
func (b *Bus) Attach(addr uint16, d Device) {
	b.mu.Lock()
	b.devices[target{addr: addr}] = d
	b.mu.Unlock()
}

// AttachTenBit places d at the 10-bit address addr.
func (b *Bus) AttachTenBit(addr uint16, d Device) {
	b.mu.Lock()
	b.devices[target{addr: addr, tenbit: true}] = d
	b.mu.Unlock()
}

// Detach removes the device at the 7-bit address addr.
func (b *Bus) Detach(addr uint16) {
	b.mu.Lock()
	delete(b.devices, target{addr: addr})
	b.mu.Unlock()
}

// SetFunctionality overrides what the bus reports as supported.
func (b *Bus) SetFunctionality(f driver.Func) {
	b.mu.Lock()
	b.funcs = f
	b.mu.Unlock()
}

// Fail makes every following transaction fail with errno until it is
// called again with 0.
func (b *Bus) Fail(errno unix.Errno) {
	b.mu.Lock()
	b.fail = errno
	b.mu.Unlock()
}

// Transactions returns the number of transactions attempted so far.
func (b *Bus) Transactions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.xfers
}

func (b *Bus) Functionality() driver.Func {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.funcs
}

func (b *Bus) lookup(addr, flags uint16) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.xfers++
	if b.fail != 0 {
		return nil, b.fail
	}
	d, ok := b.devices[target{addr: addr, tenbit: flags&driver.FlagTenBit != 0}]
	if !ok {
		return nil, unix.ENXIO
	}
	return d, nil
}

func (b *Bus) SMBusXfer(addr, flags uint16, rw driver.ReadWrite, cmd byte, size driver.Size, data *driver.Data) error {
	d, err := b.lookup(addr, flags)
	if err != nil {
		return err
	}
	return d.SMBus(rw, cmd, size, data)
}

func (b *Bus) Transfer(msgs []driver.Msg) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	first := msgs[0]
	d, err := b.lookup(first.Addr, first.Flags)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs[1:] {
		if m.Addr != first.Addr || m.Flags&driver.FlagTenBit != first.Flags&driver.FlagTenBit {
			return 0, unix.EINVAL
		}
	}
	if err := d.Transfer(msgs); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
