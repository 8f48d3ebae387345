// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// BoardInfo describes a device before it is instantiated.
type BoardInfo struct {
	Bus   int
	Addr  int // may be marked with TenBit
	Name  string
	Flags uint16 // extra client flags such as driver.FlagPEC
}

func (b BoardInfo) coreInfo() core.BoardInfo {
	addr, tenbit := resolveAddr(b.Addr)
	info := core.BoardInfo{Type: b.Name, Addr: uint16(addr), Flags: b.Flags}
	if tenbit {
		info.Flags |= driver.FlagTenBit
	}
	return info
}

// Adapter is a handle to a bus controller registered with the bus core.
// It is valid while the controller stays registered.
type Adapter struct {
	raw *core.Adapter
}

// GetAdapter returns the adapter registered as bus nr. It fails with an
// error matching ErrNotFound if there is none at the time of the call.
func GetAdapter(h *core.Host, nr int) (*Adapter, error) {
	a := h.Adapter(nr)
	if a == nil {
		return nil, &NotFoundError{Bus: nr}
	}
	return &Adapter{raw: a}, nil
}

// Nr returns the bus number.
func (a *Adapter) Nr() int { return a.raw.Nr() }

// Name returns the controller's display name.
func (a *Adapter) Name() string { return a.raw.Name() }

// Functionality reports what the controller supports.
func (a *Adapter) Functionality() driver.Func { return a.raw.Functionality() }

// InstantiateClient creates a device on the bus outside of declarative
// matching. info.Bus must name this adapter. The device is offered to the
// registered drivers like any other. The returned handle is owned by the
// caller, who must Release it.
func (a *Adapter) InstantiateClient(info BoardInfo) (*Client, error) {
	if !a.raw.Alive() {
		return nil, &NotFoundError{Bus: a.raw.Nr()}
	}
	if info.Bus != a.raw.Nr() {
		return nil, xerrors.Errorf("i2c: board %q is on bus %d, not %d: %w",
			info.Name, info.Bus, a.raw.Nr(), unix.EINVAL)
	}
	c, err := a.raw.Host().NewClientDevice(a.raw, info.coreInfo())
	if err != nil {
		return nil, xerrors.Errorf("i2c: instantiate %q on bus %d: %w", info.Name, info.Bus, err)
	}
	return &Client{raw: c, owned: true}, nil
}

// NewClient looks up the adapter for info.Bus and instantiates info on
// it.
func NewClient(h *core.Host, info BoardInfo) (*Client, error) {
	a, err := GetAdapter(h, info.Bus)
	if err != nil {
		return nil, err
	}
	return a.InstantiateClient(info)
}
