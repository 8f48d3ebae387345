// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"fmt"
	"sync/atomic"

	"github.com/i2ckit/i2ckit/io/i2c/core"
)

// NameSize bounds driver and device names: they hold at most NameSize-1
// bytes.
const NameSize = core.NameSize

// DeviceID is an entry of a driver's match table. Data is handed to
// Probe when a device matches the entry.
type DeviceID struct {
	Name string
	Data uint64
}

// Driver is a driver descriptor ready to be registered. It is created by
// Builder.Build and cannot be changed afterwards.
type Driver struct {
	raw        core.Driver
	ids        []DeviceID
	registered atomic.Bool
}

// Name returns the driver name.
func (d *Driver) Name() string { return d.raw.Name }

// MatchTable returns a copy of the driver's match table.
func (d *Driver) MatchTable() []DeviceID {
	return append([]DeviceID(nil), d.ids...)
}

// Builder assembles a Driver for callbacks with private data of type P.
type Builder[P any] struct {
	name  string
	ids   []DeviceID
	cb    Callbacks[P]
	class uint32
	flags uint32
}

// Begin returns an empty builder.
func Begin[P any]() *Builder[P] {
	return &Builder[P]{}
}

// SetName sets the driver name. It is required.
func (b *Builder[P]) SetName(name string) *Builder[P] {
	b.name = name
	return b
}

// SetMatchTable sets the device IDs the driver binds to, in match order.
// At least one entry is required.
func (b *Builder[P]) SetMatchTable(ids ...DeviceID) *Builder[P] {
	b.ids = append([]DeviceID(nil), ids...)
	return b
}

// SetCallbacks sets the driver implementation. It is required.
func (b *Builder[P]) SetCallbacks(cb Callbacks[P]) *Builder[P] {
	b.cb = cb
	return b
}

// SetClass sets the device class bits used for detection.
func (b *Builder[P]) SetClass(class uint32) *Builder[P] {
	b.class = class
	return b
}

// SetFlags sets driver flags passed through to the bus core.
func (b *Builder[P]) SetFlags(flags uint32) *Builder[P] {
	b.flags = flags
	return b
}

// Build returns the driver descriptor. It fails with a *BuildError if the
// name, match table or probe callback is missing or invalid. The builder
// can be reused; each Build returns a new descriptor.
func (b *Builder[P]) Build() (*Driver, error) {
	if b.name == "" {
		return nil, &BuildError{Field: "name"}
	}
	if reason := checkName(b.name); reason != "" {
		return nil, &BuildError{Field: "name", Reason: reason}
	}
	if len(b.ids) == 0 {
		return nil, &BuildError{Field: "match table"}
	}
	for i, id := range b.ids {
		if reason := checkName(id.Name); reason != "" {
			return nil, &BuildError{Field: "match table", Reason: fmt.Sprintf("entry %d: %s", i, reason)}
		}
	}
	if b.cb == nil {
		return nil, &BuildError{Field: "probe callback"}
	}
	if p, ok := b.cb.(interface{ missingProbe() bool }); ok && p.missingProbe() {
		return nil, &BuildError{Field: "probe callback"}
	}

	d := &Driver{ids: append([]DeviceID(nil), b.ids...)}
	table := make([]core.DeviceID, len(b.ids))
	for i, id := range b.ids {
		table[i] = core.DeviceID{Name: id.Name, DriverData: id.Data}
	}
	vt := &vtable[P]{name: b.name, cb: b.cb}
	d.raw = core.Driver{
		Name:     b.name,
		IDTable:  table,
		Class:    b.class,
		Flags:    b.flags,
		Probe:    vt.probe,
		Remove:   vt.remove,
		Shutdown: vt.shutdown,
	}
	if cm, ok := b.cb.(Commander[P]); ok {
		vt.commander = cm
		d.raw.Command = vt.command
	}
	if al, ok := b.cb.(Alerter[P]); ok {
		vt.alerter = al
		d.raw.Alert = vt.alert
	}
	return d, nil
}

func checkName(name string) string {
	switch {
	case name == "":
		return "empty name"
	case len(name) >= NameSize:
		return fmt.Sprintf("name %q longer than %d bytes", name, NameSize-1)
	}
	return ""
}
