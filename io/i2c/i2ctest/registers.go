// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2ctest

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// Registers is a device with 256 byte-wide registers and an internal
// register pointer that auto-increments on every byte transferred, the
// way most sensors behave. SMBus block transactions are kept per command
// instead, as block registers rarely overlap the byte map.
type Registers struct {
	mu       sync.Mutex
	regs     [256]byte
	ptr      byte
	blocks   map[byte][]byte
	readOnly map[byte]bool
	fail     unix.Errno
	writes   []Write
}

// Write records one register write seen by a Registers device.
type Write struct {
	Reg   byte
	Value byte
}

var _ Device = (*Registers)(nil)

// NewRegisters returns a device whose registers hold init and zero
// elsewhere.
func NewRegisters(init map[byte]byte) *Registers {
	r := &Registers{blocks: make(map[byte][]byte), readOnly: make(map[byte]bool)}
	for reg, v := range init {
		r.regs[reg] = v
	}
	return r
}

// Get returns the value of reg.
func (r *Registers) Get(reg byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg]
}

// Set stores v in reg without recording a write.
func (r *Registers) Set(reg, v byte) {
	r.mu.Lock()
	r.regs[reg] = v
	r.mu.Unlock()
}

// SetReadOnly makes writes to reg succeed without changing it.
func (r *Registers) SetReadOnly(reg byte) {
	r.mu.Lock()
	r.readOnly[reg] = true
	r.mu.Unlock()
}

// SetBlock sets what an SMBus block read of cmd returns.
func (r *Registers) SetBlock(cmd byte, b []byte) {
	r.mu.Lock()
	r.blocks[cmd] = append([]byte(nil), b...)
	r.mu.Unlock()
}

// Block returns the last SMBus block written to cmd.
func (r *Registers) Block(cmd byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.blocks[cmd]...)
}

// Writes returns the register writes seen so far, in order.
func (r *Registers) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// Fail makes every following transaction fail with errno until it is
// called again with 0.
func (r *Registers) Fail(errno unix.Errno) {
	r.mu.Lock()
	r.fail = errno
	r.mu.Unlock()
}

func (r *Registers) read() byte {
	v := r.regs[r.ptr]
	r.ptr++
	return v
}

func (r *Registers) write(v byte) {
	if !r.readOnly[r.ptr] {
		r.regs[r.ptr] = v
	}
	r.writes = append(r.writes, Write{Reg: r.ptr, Value: v})
	r.ptr++
}

func (r *Registers) SMBus(rw driver.ReadWrite, cmd byte, size driver.Size, data *driver.Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != 0 {
		return r.fail
	}
	switch size {
	case driver.Quick:
		return nil
	case driver.Byte:
		if rw == driver.Write {
			r.ptr = cmd
			return nil
		}
		data.SetByte(r.read())
	case driver.ByteData:
		r.ptr = cmd
		if rw == driver.Write {
			r.write(data.Byte())
			return nil
		}
		data.SetByte(r.read())
	case driver.WordData:
		r.ptr = cmd
		if rw == driver.Write {
			w := data.Word()
			r.write(byte(w))
			r.write(byte(w >> 8))
			return nil
		}
		lo := r.read()
		hi := r.read()
		data.SetWord(uint16(lo) | uint16(hi)<<8)
	case driver.BlockData:
		if rw == driver.Write {
			r.blocks[cmd] = append([]byte(nil), data.Block()...)
			return nil
		}
		data.SetBlock(r.blocks[cmd])
	case driver.I2CBlockData, driver.I2CBlockBroken:
		r.ptr = cmd
		n := int(data[0])
		if n > driver.BlockMax {
			return unix.EINVAL
		}
		if rw == driver.Write {
			for i := 0; i < n; i++ {
				r.write(data[1+i])
			}
			return nil
		}
		for i := 0; i < n; i++ {
			data[1+i] = r.read()
		}
	default:
		return unix.EOPNOTSUPP
	}
	return nil
}

// Transfer treats the first byte of a leading write message as the
// register pointer and the remaining bytes as data, and serves reads from
// the pointer onwards.
func (r *Registers) Transfer(msgs []driver.Msg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != 0 {
		return r.fail
	}
	for i, m := range msgs {
		if m.Flags&driver.MsgRead != 0 {
			for j := range m.Buf {
				m.Buf[j] = r.read()
			}
			continue
		}
		buf := m.Buf
		if i == 0 && len(buf) > 0 {
			r.ptr = buf[0]
			buf = buf[1:]
		}
		for _, v := range buf {
			r.write(v)
		}
	}
	return nil
}
