// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// Adapter is a numbered bus as seen by the core.
type Adapter struct {
	host *Host
	nr   int
	name string
	algo driver.Adapter

	bus  sync.Mutex // held for the duration of one transaction
	dead atomic.Bool
}

// Nr returns the bus number.
func (a *Adapter) Nr() int { return a.nr }

// Name returns the display name given to AddAdapter.
func (a *Adapter) Name() string { return a.name }

// Host returns the bus core the adapter is registered with.
func (a *Adapter) Host() *Host { return a.host }

// Alive reports whether the adapter is still registered.
func (a *Adapter) Alive() bool { return !a.dead.Load() }

// Functionality reports what the controller supports.
func (a *Adapter) Functionality() driver.Func {
	if f, ok := a.algo.(driver.Functionality); ok {
		return f.Functionality()
	}
	return driver.FuncSMBusByteData | driver.FuncSMBusWordData | driver.FuncSMBusBlockData |
		driver.FuncSMBusI2CBlock | driver.FuncSMBusByte | driver.FuncSMBusQuick
}

// AddAdapter registers the controller algo as bus nr. It fails with
// EBUSY if the number is taken.
func (h *Host) AddAdapter(nr int, name string, algo driver.Adapter) (*Adapter, error) {
	if nr < 0 || algo == nil {
		return nil, unix.EINVAL
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.adapters[nr]; ok {
		return nil, unix.EBUSY
	}
	a := &Adapter{host: h, nr: nr, name: name, algo: algo}
	h.adapters[nr] = a
	h.log.V(1).Info("adapter registered", "bus", nr, "name", name)
	return a, nil
}

// Adapter returns the adapter registered as bus nr, or nil.
func (h *Host) Adapter(nr int) *Adapter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adapters[nr]
}

// Adapters returns the registered adapters ordered by bus number.
func (h *Host) Adapters() []*Adapter {
	h.mu.Lock()
	as := make([]*Adapter, 0, len(h.adapters))
	for _, a := range h.adapters {
		as = append(as, a)
	}
	h.mu.Unlock()
	sort.Slice(as, func(i, j int) bool { return as[i].nr < as[j].nr })
	return as
}

// DelAdapter unregisters every client on a, then a itself. Errors
// returned by driver Remove callbacks are combined into the result; the
// adapter is gone either way.
func (h *Host) DelAdapter(a *Adapter) error {
	h.mu.Lock()
	if a == nil || h.adapters[a.nr] != a {
		h.mu.Unlock()
		return unix.ENOENT
	}
	delete(h.adapters, a.nr)
	var doomed []*Client
	for _, c := range h.clients {
		if c.adapter == a {
			doomed = append(doomed, c)
		}
	}
	h.mu.Unlock()

	var err error
	for _, c := range doomed {
		err = multierr.Append(err, h.UnregisterDevice(c))
	}
	a.dead.Store(true)
	h.log.V(1).Info("adapter unregistered", "bus", a.nr, "clients", len(doomed))
	return err
}
