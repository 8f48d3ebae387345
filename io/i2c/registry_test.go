// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/i2ctest"
)

func simpleDriver(t *testing.T, name string, removeErr error) *Driver {
	return mustBuild(t, Begin[string]().
		SetName(name).
		SetMatchTable(DeviceID{Name: name}).
		SetCallbacks(Funcs[string]{
			ProbeFunc:  func(c *Client, id DeviceID) (string, error) { return c.String(), nil },
			RemoveFunc: func(string) error { return removeErr },
		}))
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	c := f.instantiate(t, "alpha", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()

	rd, err := f.reg.Register(simpleDriver(t, "alpha", nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1-0020"}, rd.Devices()); diff != "" {
		t.Errorf("devices mismatch (-want, +got):\n%s", diff)
	}
	if _, err := f.reg.Register(simpleDriver(t, "beta", nil)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, f.reg.Drivers()); diff != "" {
		t.Errorf("drivers mismatch (-want, +got):\n%s", diff)
	}
	got, err := f.reg.Lookup("alpha")
	if err != nil || got != rd {
		t.Errorf("Lookup(alpha) = %v, %v", got, err)
	}
	if _, err := f.reg.Lookup("gamma"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(gamma): got %v, want ErrNotFound", err)
	}
	if f.host.Driver("alpha") == nil {
		t.Error("bus core does not know the driver")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	c := f.instantiate(t, "alpha", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()
	d := simpleDriver(t, "alpha", nil)
	rd, err := f.reg.Register(d)
	if err != nil {
		t.Fatal(err)
	}
	for _, again := range []*Driver{d, simpleDriver(t, "alpha", nil)} {
		_, err := f.reg.Register(again)
		var re *RegistrationError
		if !errors.As(err, &re) || !errors.Is(err, ErrAlreadyRegistered) || re.Name != "alpha" {
			t.Errorf("duplicate Register: got %v, want RegistrationError wrapping ErrAlreadyRegistered", err)
		}
	}

	// A second registry on the same bus core collides in the core.
	other := NewRegistry(f.host)
	_, err = other.Register(simpleDriver(t, "alpha", nil))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Register in second registry: got %v, want ErrAlreadyRegistered", err)
	}
	if len(other.Drivers()) != 0 {
		t.Error("failed registration left an entry")
	}

	// The first registration is untouched by the failed ones.
	if got, err := f.reg.Lookup("alpha"); err != nil || got != rd {
		t.Errorf("Lookup(alpha) = %v, %v; want the first registration", got, err)
	}
	if diff := cmp.Diff([]string{"1-0020"}, rd.Devices()); diff != "" {
		t.Errorf("devices after duplicate Register (-want, +got):\n%s", diff)
	}
	if f.host.Driver("alpha") != &d.raw {
		t.Error("bus core lost the first descriptor")
	}

	if err := rd.Unregister(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Register(d); err != nil {
		t.Errorf("re-register after Unregister: %v", err)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	f := newFixture(t)
	rd, err := f.reg.Register(simpleDriver(t, "alpha", unix.EIO))
	if err != nil {
		t.Fatal(err)
	}
	c := f.instantiate(t, "alpha", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()

	first := rd.Unregister()
	if !errors.Is(first, unix.EIO) {
		t.Fatalf("Unregister: got %v, want EIO", first)
	}
	if second := rd.Unregister(); second != first {
		t.Errorf("second Unregister = %v, want %v", second, first)
	}
	if len(f.reg.Drivers()) != 0 || f.host.Driver("alpha") != nil {
		t.Error("driver still registered")
	}
	if len(rd.Devices()) != 0 {
		t.Errorf("devices after Unregister: %v", rd.Devices())
	}
}

func TestRegistryClose(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"alpha", "beta"} {
		if _, err := f.reg.Register(simpleDriver(t, name, nil)); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.reg.Close(); err != nil {
		t.Fatal(err)
	}
	if len(f.reg.Drivers()) != 0 {
		t.Errorf("drivers after Close: %v", f.reg.Drivers())
	}
}

func TestRegisterNil(t *testing.T) {
	f := newFixture(t)
	var re *RegistrationError
	if _, err := f.reg.Register(nil); !errors.As(err, &re) {
		t.Errorf("Register(nil): got %v, want RegistrationError", err)
	}
}

func TestLoadModule(t *testing.T) {
	f := newFixture(t)
	m, err := LoadModule(f.reg, "sensors", simpleDriver(t, "alpha", nil), simpleDriver(t, "beta", nil))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "sensors" || len(m.Drivers()) != 2 {
		t.Errorf("module %q with %d drivers", m.Name(), len(m.Drivers()))
	}
	if err := m.Unload(); err != nil {
		t.Fatal(err)
	}
	if len(f.reg.Drivers()) != 0 {
		t.Errorf("drivers after Unload: %v", f.reg.Drivers())
	}
}

func TestLoadModuleRollsBack(t *testing.T) {
	f := newFixture(t)
	if _, err := f.reg.Register(simpleDriver(t, "taken", nil)); err != nil {
		t.Fatal(err)
	}
	_, err := LoadModule(f.reg, "sensors", simpleDriver(t, "alpha", nil), simpleDriver(t, "taken", nil))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("LoadModule: got %v, want ErrAlreadyRegistered", err)
	}
	if diff := cmp.Diff([]string{"taken"}, f.reg.Drivers()); diff != "" {
		t.Errorf("drivers after failed load (-want, +got):\n%s", diff)
	}
}

func TestUnregisterManyDevices(t *testing.T) {
	f := newFixture(t)
	for addr := uint16(0x10); addr < 0x18; addr++ {
		f.bus.Attach(addr, i2ctest.NewRegisters(nil))
		if _, err := f.host.NewClientDevice(f.host.Adapter(1), core.BoardInfo{Type: "alpha", Addr: addr}); err != nil {
			t.Fatal(err)
		}
	}
	rd, err := f.reg.Register(simpleDriver(t, "alpha", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rd.Devices()); got != 8 {
		t.Fatalf("%d devices bound, want 8", got)
	}
	if err := rd.Unregister(); err != nil {
		t.Fatal(err)
	}
	for _, c := range f.host.Clients() {
		if c.Driver() != "" {
			t.Errorf("%v still bound", c)
		}
	}
}

func TestUnregisterStopsPendingProbe(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	first := mustBuild(t, Begin[int]().
		SetName("first").
		SetMatchTable(DeviceID{Name: "x"}).
		SetCallbacks(Funcs[int]{ProbeFunc: func(*Client, DeviceID) (int, error) {
			close(started)
			<-release
			return 0, ErrNotFound
		}}))
	var secondProbes atomic.Int32
	second := mustBuild(t, Begin[int]().
		SetName("second").
		SetMatchTable(DeviceID{Name: "x"}).
		SetCallbacks(Funcs[int]{ProbeFunc: func(*Client, DeviceID) (int, error) {
			secondProbes.Add(1)
			return 0, nil
		}}))
	rd1, err := f.reg.Register(first)
	if err != nil {
		t.Fatal(err)
	}
	defer rd1.Unregister()
	rd2, err := f.reg.Register(second)
	if err != nil {
		t.Fatal(err)
	}

	f.bus.Attach(0x30, i2ctest.NewRegisters(nil))
	created := make(chan *Client)
	go func() {
		c, err := NewClient(f.host, BoardInfo{Bus: 1, Addr: 0x30, Name: "x"})
		if err != nil {
			t.Error(err)
		}
		created <- c
	}()
	<-started

	unregistered := make(chan error)
	go func() { unregistered <- rd2.Unregister() }()
	deadline := time.Now().Add(5 * time.Second)
	for f.host.Driver("second") != nil {
		if time.Now().After(deadline) {
			t.Fatal("second driver still matching after Unregister started")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	if c := <-created; c != nil {
		defer c.Release()
	}
	if err := <-unregistered; err != nil {
		t.Fatal(err)
	}
	if n := secondProbes.Load(); n != 0 {
		t.Errorf("second driver probed %d times after Unregister started", n)
	}
}

func TestModuleReleasesClients(t *testing.T) {
	f := newFixture(t)
	m, err := LoadModule(f.reg, "sensors", simpleDriver(t, "alpha", nil))
	if err != nil {
		t.Fatal(err)
	}
	var cs []*Client
	for _, addr := range []uint16{0x20, 0x21} {
		f.bus.Attach(addr, i2ctest.NewRegisters(nil))
		c, err := m.NewClient(BoardInfo{Bus: 1, Addr: int(addr), Name: "alpha"})
		if err != nil {
			t.Fatal(err)
		}
		cs = append(cs, c)
	}
	// Releasing early is allowed; Unload then skips the device.
	if err := cs[0].Release(); err != nil {
		t.Fatal(err)
	}
	if err := m.Unload(); err != nil {
		t.Fatal(err)
	}
	for _, c := range cs {
		if c.Valid() {
			t.Errorf("%v valid after Unload", c)
		}
	}
	if len(f.host.Clients()) != 0 {
		t.Errorf("devices left after Unload: %v", f.host.Clients())
	}
}
