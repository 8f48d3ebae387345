// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/core"
)

// Registry registers drivers with one bus core. It is safe for concurrent
// use.
type Registry struct {
	host *core.Host

	mu      sync.Mutex
	drivers map[string]*RegisteredDriver
}

// NewRegistry returns a registry for drivers on host h.
func NewRegistry(h *core.Host) *Registry {
	return &Registry{host: h, drivers: make(map[string]*RegisteredDriver)}
}

// Host returns the bus core the registry registers with.
func (r *Registry) Host() *core.Host { return r.host }

// Register hands d to the bus core, which immediately probes every
// matching device already present. Probe failures only leave the device
// concerned unbound; they do not fail Register.
//
// A driver whose name is taken fails with a *RegistrationError wrapping
// ErrAlreadyRegistered, as does registering the same descriptor twice.
func (r *Registry) Register(d *Driver) (*RegisteredDriver, error) {
	if d == nil {
		return nil, &RegistrationError{Err: xerrors.New("nil driver")}
	}
	name := d.Name()
	r.mu.Lock()
	if _, ok := r.drivers[name]; ok {
		r.mu.Unlock()
		return nil, &RegistrationError{Name: name, Err: ErrAlreadyRegistered}
	}
	if !d.registered.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return nil, &RegistrationError{Name: name, Err: ErrAlreadyRegistered}
	}
	rd := &RegisteredDriver{reg: r, drv: d}
	r.drivers[name] = rd
	r.mu.Unlock()

	if err := r.host.AddDriver(&d.raw); err != nil {
		r.mu.Lock()
		delete(r.drivers, name)
		r.mu.Unlock()
		d.registered.Store(false)
		if core.Errno(err) == unix.EBUSY {
			err = xerrors.Errorf("%w: %v", ErrAlreadyRegistered, err)
		}
		return nil, &RegistrationError{Name: name, Err: err}
	}
	r.host.Logger().WithName("i2c").V(1).Info("driver registered", "driver", name)
	return rd, nil
}

// Lookup returns the registration for the named driver. It fails with
// ErrNotFound if no such driver is registered.
func (r *Registry) Lookup(name string) (*RegisteredDriver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.drivers[name]
	if !ok {
		return nil, xerrors.Errorf("i2c: driver %q: %w", name, ErrNotFound)
	}
	return rd, nil
}

// Drivers returns the names of the registered drivers in sorted order.
func (r *Registry) Drivers() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Close unregisters every driver, in reverse name order, and returns the
// combined Remove failures.
func (r *Registry) Close() error {
	names := r.Drivers()
	var err error
	for i := len(names) - 1; i >= 0; i-- {
		rd, lerr := r.Lookup(names[i])
		if lerr != nil {
			continue
		}
		err = multierr.Append(err, rd.Unregister())
	}
	return err
}

// RegisteredDriver is the token for a registered driver. Dropping it does
// not unregister the driver; call Unregister.
type RegisteredDriver struct {
	reg *Registry
	drv *Driver

	once sync.Once
	err  error
}

// Name returns the driver name.
func (rd *RegisteredDriver) Name() string { return rd.drv.Name() }

// Driver returns the registered descriptor.
func (rd *RegisteredDriver) Driver() *Driver { return rd.drv }

// Devices returns the names, in bus-address form, of the devices
// currently bound to the driver.
func (rd *RegisteredDriver) Devices() []string {
	cs := rd.reg.host.BoundClients(&rd.drv.raw)
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return names
}

// Unregister stops the driver from matching new devices, waits for probes
// already running, then calls Remove for every device bound to it. Handles
// passed to those probes are stale afterwards. Remove failures are
// returned combined, but the driver is unregistered regardless.
// Unregister is idempotent: later calls return the first call's result.
func (rd *RegisteredDriver) Unregister() error {
	rd.once.Do(func() {
		r := rd.reg
		err := r.host.DelDriver(&rd.drv.raw)
		r.mu.Lock()
		if r.drivers[rd.drv.Name()] == rd {
			delete(r.drivers, rd.drv.Name())
		}
		r.mu.Unlock()
		rd.drv.registered.Store(false)
		if err != nil {
			r.host.Logger().WithName("i2c").Error(err, "unregister", "driver", rd.drv.Name())
		}
		rd.err = err
	})
	return rd.err
}
