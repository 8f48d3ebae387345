// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"fmt"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/core"
)

var (
	// ErrNotFound is matched by lookups of buses or drivers that are not
	// registered.
	ErrNotFound = xerrors.New("i2c: not found")

	// ErrStaleHandle is returned by operations on a Client whose device
	// binding has ended or which has been released.
	ErrStaleHandle = xerrors.New("i2c: stale client handle")

	// ErrAlreadyRegistered is wrapped by a RegistrationError for a
	// duplicate driver name.
	ErrAlreadyRegistered = xerrors.New("i2c: driver already registered")

	// ErrNotOwned is returned when releasing a Client the caller did
	// not instantiate.
	ErrNotOwned = xerrors.New("i2c: client handle not owned by caller")
)

// NotFoundError reports a bus number with no registered adapter.
type NotFoundError struct {
	Bus int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("i2c: bus %d: not found", e.Bus) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// BuildError reports a driver descriptor that could not be built.
type BuildError struct {
	Field  string // "name", "match table", "probe callback"
	Reason string // empty when the field is missing
}

func (e *BuildError) Error() string {
	if e.Reason == "" {
		return "i2c: build driver: missing " + e.Field
	}
	return "i2c: build driver: " + e.Field + ": " + e.Reason
}

// RegistrationError reports a driver the registry or the bus core refused.
type RegistrationError struct {
	Name string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("i2c: register %q: %v", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// ProbeError reports a failed probe. The device it names stays unbound;
// other devices and the registration itself are unaffected.
type ProbeError struct {
	Driver string
	Device string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("i2c: %s: probe %s: %v", e.Driver, e.Device, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// BusError reports a failed bus transaction. Code is the negative errno
// returned by the bus core.
type BusError struct {
	Op   string
	Addr uint16
	Reg  byte
	Code int
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c: %s addr %#02x reg %#02x: %v", e.Op, e.Addr, e.Reg, e.errno())
}

func (e *BusError) errno() unix.Errno { return unix.Errno(-e.Code) }

// Unwrap returns the errno, so errors.Is(err, unix.ENXIO) works.
func (e *BusError) Unwrap() error { return e.errno() }

// Errno converts err to the bus core's calling convention: 0 for nil and
// a negative errno otherwise.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	var be *BusError
	if xerrors.As(err, &be) {
		return be.Code
	}
	var errno unix.Errno
	if xerrors.As(err, &errno) && errno != 0 {
		return -int(errno)
	}
	switch {
	case xerrors.Is(err, ErrNotFound), xerrors.Is(err, ErrStaleHandle):
		return -int(unix.ENODEV)
	case xerrors.Is(err, ErrAlreadyRegistered):
		return -int(unix.EBUSY)
	}
	return -int(unix.EINVAL)
}

func busError(op string, c *core.Client, reg byte, err error) error {
	if err == nil {
		return nil
	}
	return &BusError{Op: op, Addr: c.Addr(), Reg: reg, Code: -int(core.Errno(err))}
}
