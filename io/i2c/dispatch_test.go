// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/i2ctest"
)

type sensor struct {
	addr  uint16
	token int
}

// sensorDriver records the private data each callback receives.
type sensorDriver struct {
	mu        sync.Mutex
	next      int
	probeErr  error
	removeErr error
	removed   []sensor
	shut      []sensor
	commands  []string
	alerts    []string
}

func (d *sensorDriver) Probe(c *Client, id DeviceID) (*sensor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probeErr != nil {
		return nil, d.probeErr
	}
	d.next++
	return &sensor{addr: c.Addr(), token: d.next}, nil
}

func (d *sensorDriver) Remove(s *sensor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, *s)
	return d.removeErr
}

func (d *sensorDriver) Shutdown(s *sensor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shut = append(d.shut, *s)
	return errors.New("ignored")
}

func (d *sensorDriver) Command(s *sensor, cmd uint32, arg any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, arg.(string))
	if cmd == 0 {
		return unix.EINVAL
	}
	return nil
}

func (d *sensorDriver) Alert(s *sensor, proto AlertProtocol, flag uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, proto.String())
}

func (d *sensorDriver) build(t *testing.T) *Driver {
	return mustBuild(t, Begin[*sensor]().
		SetName("sensor").
		SetMatchTable(DeviceID{Name: "sensor"}).
		SetCallbacks(d))
}

// logSink collects formatted log lines.
type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (l *logSink) write(prefix, args string) {
	l.mu.Lock()
	l.lines = append(l.lines, prefix+" "+args)
	l.mu.Unlock()
}

func (l *logSink) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func newLoggedFixture(t *testing.T) (*fixture, *logSink) {
	t.Helper()
	logs := &logSink{}
	f := &fixture{
		host: core.NewHost(core.WithLogger(funcr.New(logs.write, funcr.Options{}))),
		bus:  i2ctest.NewBus(),
	}
	if _, err := f.host.AddAdapter(1, "sim-1", f.bus); err != nil {
		t.Fatal(err)
	}
	f.reg = NewRegistry(f.host)
	return f, logs
}

func TestPrivateDataRoundTrip(t *testing.T) {
	f := newFixture(t)
	sd := &sensorDriver{}
	rd, err := f.reg.Register(sd.build(t))
	if err != nil {
		t.Fatal(err)
	}
	a := f.instantiate(t, "sensor", 0x20, i2ctest.NewRegisters(nil))
	b := f.instantiate(t, "sensor", 0x21, i2ctest.NewRegisters(nil))
	defer a.Release()
	defer b.Release()

	f.host.Shutdown()
	if err := rd.Unregister(); err != nil {
		t.Fatal(err)
	}
	want := []sensor{{0x20, 1}, {0x21, 2}}
	if diff := cmp.Diff(want, sd.shut, cmp.AllowUnexported(sensor{})); diff != "" {
		t.Errorf("shutdown data mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sd.removed, cmp.AllowUnexported(sensor{})); diff != "" {
		t.Errorf("remove data mismatch (-want, +got):\n%s", diff)
	}
	for _, c := range []*Client{a, b} {
		if c.raw.ClientData() != nil {
			t.Errorf("%v: slot not cleared after remove", c)
		}
	}
}

func TestProbeErrorLeavesDeviceUnbound(t *testing.T) {
	f, logs := newLoggedFixture(t)
	sd := &sensorDriver{probeErr: &BusError{Op: "read byte", Addr: 0x20, Code: -int(unix.ENXIO)}}
	if _, err := f.reg.Register(sd.build(t)); err != nil {
		t.Fatalf("Register failed on probe error: %v", err)
	}
	c := f.instantiate(t, "sensor", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()
	if c.raw.Driver() != "" {
		t.Errorf("device bound to %q after failed probe", c.raw.Driver())
	}
	if c.raw.ClientData() != nil {
		t.Error("slot set after failed probe")
	}
	if !logs.contains("probe failed") || !logs.contains("sensor: probe 1-0020") {
		t.Errorf("probe failure not logged: %q", logs.lines)
	}
}

func TestRemoveErrorReported(t *testing.T) {
	f, logs := newLoggedFixture(t)
	sd := &sensorDriver{removeErr: unix.EIO}
	rd, err := f.reg.Register(sd.build(t))
	if err != nil {
		t.Fatal(err)
	}
	c := f.instantiate(t, "sensor", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()
	err = rd.Unregister()
	if !errors.Is(err, unix.EIO) {
		t.Fatalf("Unregister: got %v, want EIO", err)
	}
	var rerr *core.RemoveError
	if !errors.As(err, &rerr) || rerr.Device != "1-0020" {
		t.Errorf("Unregister: got %v, want RemoveError for 1-0020", err)
	}
	if !logs.contains("remove failed") {
		t.Errorf("remove failure not logged: %q", logs.lines)
	}
	if len(sd.removed) != 1 {
		t.Errorf("Remove called %d times, want 1", len(sd.removed))
	}
	if c.raw.Driver() != "" {
		t.Error("device still bound after failed remove")
	}
}

func TestReleaseDrivesRemove(t *testing.T) {
	f := newFixture(t)
	sd := &sensorDriver{removeErr: unix.EBUSY}
	rd, err := f.reg.Register(sd.build(t))
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Unregister()
	c := f.instantiate(t, "sensor", 0x20, i2ctest.NewRegisters(nil))
	if err := c.Release(); !errors.Is(err, unix.EBUSY) {
		t.Errorf("Release: got %v, want EBUSY from Remove", err)
	}
	if len(sd.removed) != 1 {
		t.Errorf("Remove called %d times, want 1", len(sd.removed))
	}
	if got := rd.Devices(); len(got) != 0 {
		t.Errorf("devices after Release: %v", got)
	}
}

func TestCommandAndAlert(t *testing.T) {
	f := newFixture(t)
	sd := &sensorDriver{}
	rd, err := f.reg.Register(sd.build(t))
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Unregister()
	c := f.instantiate(t, "sensor", 0x20, i2ctest.NewRegisters(nil))
	defer c.Release()

	a := f.host.Adapter(1)
	if err := f.host.Command(a, 1, "wake"); err != nil {
		t.Fatal(err)
	}
	if err := f.host.Command(a, 0, "bad"); !errors.Is(err, unix.EINVAL) {
		t.Errorf("failing command: got %v, want EINVAL", err)
	}
	if err := f.host.Alert(a, 0x20, AlertSMBus, 1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"wake", "bad"}, sd.commands); diff != "" {
		t.Errorf("commands mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"smbus-alert"}, sd.alerts); diff != "" {
		t.Errorf("alerts mismatch (-want, +got):\n%s", diff)
	}
}

func TestShimsWithoutPrivateData(t *testing.T) {
	f, logs := newLoggedFixture(t)
	sd := &sensorDriver{}
	d := sd.build(t)
	a := f.host.Adapter(1)
	f.bus.Attach(0x20, i2ctest.NewRegisters(nil))
	c, err := f.host.NewClientDevice(a, core.BoardInfo{Type: "other", Addr: 0x20})
	if err != nil {
		t.Fatal(err)
	}
	// Called directly, as a misbehaving core would.
	if ret := d.raw.Remove(c); ret != -int(unix.EINVAL) {
		t.Errorf("remove without data = %d, want -EINVAL", ret)
	}
	d.raw.Shutdown(c)
	if ret := d.raw.Command(c, 1, "x"); ret != -int(unix.ENODEV) {
		t.Errorf("command without data = %d, want -ENODEV", ret)
	}
	if len(sd.removed)+len(sd.shut)+len(sd.commands) != 0 {
		t.Error("callbacks ran without private data")
	}
	if !logs.contains("remove without driver data") {
		t.Errorf("missing data not logged: %q", logs.lines)
	}
}
