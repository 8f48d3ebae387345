// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/i2ckit/i2ckit/io/i2c"
	"github.com/i2ckit/i2ckit/io/i2c/adxl345"
	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/i2ctest"
)

// idReader reads the ID register of every device it probes and keeps
// the handle it was given.
type idReader struct {
	mu      sync.Mutex
	ids     []byte
	handles []*i2c.Client
}

func (r *idReader) Probe(c *i2c.Client, id i2c.DeviceID) (*i2c.Client, error) {
	v, err := c.ReadByteData(0x00)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.ids = append(r.ids, v)
	r.handles = append(r.handles, c)
	r.mu.Unlock()
	return c, nil
}

func (r *idReader) Remove(c *i2c.Client) error { return nil }
func (r *idReader) Shutdown(c *i2c.Client) error { return nil }

func TestEndToEnd(t *testing.T) {
	h := core.NewHost()
	bus := i2ctest.NewBus()
	bus.Attach(0x53, i2ctest.NewRegisters(map[byte]byte{0x00: 0xe5}))
	if _, err := h.AddAdapter(1, "sim-1", bus); err != nil {
		t.Fatal(err)
	}

	r := &idReader{}
	drv, err := i2c.Begin[*i2c.Client]().
		SetName("adxl345").
		SetMatchTable(i2c.DeviceID{Name: "adxl345", Data: 0}).
		SetCallbacks(r).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	m, err := i2c.LoadModule(i2c.NewRegistry(h), "adxl345", drv)
	if err != nil {
		t.Fatal(err)
	}
	c, err := m.NewClient(i2c.BoardInfo{Bus: 1, Addr: 0x53, Name: "adxl345"})
	if err != nil {
		t.Fatal(err)
	}

	if len(r.ids) != 1 || r.ids[0] != 0xe5 {
		t.Fatalf("probe read ids %#x, want [0xe5]", r.ids)
	}
	if v, err := c.ReadByteData(0x00); err != nil || v != 0xe5 {
		t.Errorf("ReadByteData(0) = %#x, %v; want 0xe5", v, err)
	}
	probed := r.handles[0]

	if err := m.Unload(); err != nil {
		t.Fatal(err)
	}
	for name, handle := range map[string]*i2c.Client{"instantiated": c, "probe callback": probed} {
		if _, err := handle.ReadByteData(0x00); !errors.Is(err, i2c.ErrStaleHandle) {
			t.Errorf("%s handle after unload: got %v, want ErrStaleHandle", name, err)
		}
	}
	if len(h.Clients()) != 0 {
		t.Errorf("devices left after unload: %v", h.Clients())
	}
	if _, err := m.NewClient(i2c.BoardInfo{Bus: 1, Addr: 0x53, Name: "adxl345"}); !errors.Is(err, i2c.ErrStaleHandle) {
		t.Errorf("NewClient on unloaded module: got %v, want ErrStaleHandle", err)
	}
}

func TestEndToEndAccelerometer(t *testing.T) {
	h := core.NewHost()
	bus := i2ctest.NewBus()
	sim := adxl345.NewSimulator()
	sim.SetRaw(10, -20, 64)
	bus.Attach(adxl345.AltAddr, sim)
	if _, err := h.AddAdapter(1, "sim-1", bus); err != nil {
		t.Fatal(err)
	}
	drv, err := adxl345.NewDriver(adxl345.WithIDCheck())
	if err != nil {
		t.Fatal(err)
	}
	reg := i2c.NewRegistry(h)
	m, err := i2c.LoadModule(reg, "accel", drv)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Unload()

	c, err := i2c.NewClient(h, i2c.BoardInfo{Bus: 1, Addr: adxl345.AltAddr, Name: adxl345.Name})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	s, err := adxl345.ReadSample(c)
	if err != nil {
		t.Fatal(err)
	}
	if want := (adxl345.Sample{X: 40, Y: -80, Z: 256}); s != want {
		t.Errorf("sample %v, want %v", s, want)
	}
}
