// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

// Module is a set of drivers, and the devices instantiated for them,
// loaded and unloaded together.
type Module struct {
	name string
	reg  *Registry
	regs []*RegisteredDriver

	mu       sync.Mutex
	clients  []*Client
	unloaded bool
}

// LoadModule registers drivers with r in order. If any registration
// fails, the drivers registered so far are unregistered again and the
// error is returned.
func LoadModule(r *Registry, name string, drivers ...*Driver) (*Module, error) {
	m := &Module{name: name, reg: r}
	for _, d := range drivers {
		rd, err := r.Register(d)
		if err != nil {
			err = xerrors.Errorf("i2c: load module %q: %w", name, err)
			return nil, multierr.Append(err, m.Unload())
		}
		m.regs = append(m.regs, rd)
	}
	r.host.Logger().WithName("i2c").Info("module loaded", "module", name, "drivers", len(m.regs))
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Drivers returns the module's registrations in load order.
func (m *Module) Drivers() []*RegisteredDriver {
	return append([]*RegisteredDriver(nil), m.regs...)
}

// NewClient instantiates info like the package-level NewClient, but the
// device belongs to the module: Unload releases it, and the returned
// handle is stale from then on. The caller may still Release it earlier.
func (m *Module) NewClient(info BoardInfo) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unloaded {
		return nil, xerrors.Errorf("i2c: module %q unloaded: %w", m.name, ErrStaleHandle)
	}
	c, err := NewClient(m.reg.host, info)
	if err != nil {
		return nil, err
	}
	m.clients = append(m.clients, c)
	return c, nil
}

// Unload unregisters the module's drivers in reverse load order, then
// releases the devices instantiated through the module. It returns the
// combined failures.
func (m *Module) Unload() error {
	var err error
	for i := len(m.regs) - 1; i >= 0; i-- {
		err = multierr.Append(err, m.regs[i].Unregister())
	}
	m.mu.Lock()
	clients := m.clients
	m.clients = nil
	m.unloaded = true
	m.mu.Unlock()
	for i := len(clients) - 1; i >= 0; i-- {
		err = multierr.Append(err, clients[i].Release())
	}
	return err
}
