// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package i2c

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// Devfs opens bus controllers through the Linux i2c-dev interface. You
// need to load the "i2c-dev" kernel module to use it.
type Devfs struct {
	// Dir holds the i2c-N device nodes. Empty means "/dev".
	Dir string
}

const (
	i2c_SLAVE  = 0x0703
	i2c_TENBIT = 0x0704
	i2c_FUNCS  = 0x0705
	i2c_RDWR   = 0x0707
	i2c_SMBUS  = 0x0720
)

type i2c_smbus_ioctl_data struct {
	readwrite uint8
	command   uint8
	size      uint32
	data      unsafe.Pointer
}

type i2c_msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   unsafe.Pointer
}

type i2c_rdwr_ioctl_data struct {
	msgs  unsafe.Pointer
	nmsgs uint32
}

func (d *Devfs) dir() string {
	if d.Dir == "" {
		return "/dev"
	}
	return d.Dir
}

// Open opens /dev/i2c-<bus>. The returned adapter also implements
// driver.Transferer, driver.Functionality and io.Closer.
func (d *Devfs) Open(bus int) (driver.Adapter, error) {
	path := filepath.Join(d.dir(), fmt.Sprintf("i2c-%d", bus))
	f, err := os.OpenFile(path, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, xerrors.Errorf("i2c: open bus %d: %w", bus, err)
	}
	a := &devfsAdapter{f: f, addr: -1}
	var funcs uint64
	if err := a.ioctl(i2c_FUNCS, uintptr(unsafe.Pointer(&funcs))); err != nil {
		// Not every node is a real controller; assume plain SMBus.
		funcs = uint64(driver.FuncSMBusEmul)
	}
	a.funcs = driver.Func(funcs)
	return a, nil
}

// Buses returns the numbers of the i2c-N nodes present in the device
// directory.
func (d *Devfs) Buses() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir(), "i2c-*"))
	if err != nil {
		return nil, err
	}
	var buses []int
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(m), "i2c-"))
		if err != nil {
			continue
		}
		buses = append(buses, n)
	}
	sort.Ints(buses)
	return buses, nil
}

// devfsAdapter is one open i2c-dev node. The bus core serializes
// transactions, so it keeps no lock of its own.
type devfsAdapter struct {
	f      *os.File
	funcs  driver.Func
	addr   int
	tenbit bool
}

func (a *devfsAdapter) Functionality() driver.Func { return a.funcs }

// target points the node at addr, skipping the ioctls when it already is.
func (a *devfsAdapter) target(addr, flags uint16) error {
	tenbit := flags&driver.FlagTenBit != 0
	if tenbit != a.tenbit || a.addr < 0 {
		var v uintptr
		if tenbit {
			v = 1
		}
		if err := a.ioctl(i2c_TENBIT, v); err != nil {
			return err
		}
		a.tenbit = tenbit
	}
	if int(addr) != a.addr {
		if err := a.ioctl(i2c_SLAVE, uintptr(addr)); err != nil {
			a.addr = -1
			return err
		}
		a.addr = int(addr)
	}
	return nil
}

func (a *devfsAdapter) SMBusXfer(addr, flags uint16, rw driver.ReadWrite, cmd byte, size driver.Size, data *driver.Data) error {
	if err := a.target(addr, flags); err != nil {
		return err
	}
	arg := i2c_smbus_ioctl_data{
		readwrite: uint8(rw),
		command:   cmd,
		size:      uint32(size),
		data:      unsafe.Pointer(data),
	}
	err := a.ioctl(i2c_SMBUS, uintptr(unsafe.Pointer(&arg)))
	runtime.KeepAlive(data)
	return err
}

func (a *devfsAdapter) Transfer(msgs []driver.Msg) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	raw := make([]i2c_msg, len(msgs))
	for i, m := range msgs {
		if len(m.Buf) > 1<<16-1 {
			return 0, unix.EINVAL
		}
		raw[i] = i2c_msg{addr: m.Addr, flags: m.Flags, len: uint16(len(m.Buf))}
		if len(m.Buf) > 0 {
			raw[i].buf = unsafe.Pointer(&m.Buf[0])
		}
	}
	arg := i2c_rdwr_ioctl_data{msgs: unsafe.Pointer(&raw[0]), nmsgs: uint32(len(raw))}
	err := a.ioctl(i2c_RDWR, uintptr(unsafe.Pointer(&arg)))
	runtime.KeepAlive(raw)
	runtime.KeepAlive(msgs)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func (a *devfsAdapter) Close() error {
	return a.f.Close()
}

func (a *devfsAdapter) ioctl(req, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, a.f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}
