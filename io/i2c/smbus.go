// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2c

import (
	"golang.org/x/sys/unix"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

// maxTransfer is the longest plain I2C message a controller accepts.
const maxTransfer = 1<<16 - 1

func (c *Client) xfer(op string, rw driver.ReadWrite, reg byte, size driver.Size, data *driver.Data) error {
	if err := c.check(); err != nil {
		return err
	}
	return busError(op, c.raw, reg, c.raw.SMBusXfer(rw, reg, size, data))
}

func (c *Client) invalid(op string, reg byte) error {
	return &BusError{Op: op, Addr: c.raw.Addr(), Reg: reg, Code: -int(unix.EINVAL)}
}

// WriteQuick sends only the read/write bit, as used to probe for a
// device's presence.
func (c *Client) WriteQuick(bit driver.ReadWrite) error {
	var data driver.Data
	return c.xfer("write quick", bit, 0, driver.Quick, &data)
}

// ReceiveByte reads one byte without sending a register first.
func (c *Client) ReceiveByte() (byte, error) {
	var data driver.Data
	if err := c.xfer("receive byte", driver.Read, 0, driver.Byte, &data); err != nil {
		return 0, err
	}
	return data.Byte(), nil
}

// SendByte writes a single byte, usually a register pointer or command.
func (c *Client) SendByte(v byte) error {
	var data driver.Data
	return c.xfer("send byte", driver.Write, v, driver.Byte, &data)
}

// ReadByteData reads the byte register reg.
func (c *Client) ReadByteData(reg byte) (byte, error) {
	var data driver.Data
	if err := c.xfer("read byte", driver.Read, reg, driver.ByteData, &data); err != nil {
		return 0, err
	}
	return data.Byte(), nil
}

// WriteByteData writes v to the byte register reg.
func (c *Client) WriteByteData(reg, v byte) error {
	var data driver.Data
	data.SetByte(v)
	return c.xfer("write byte", driver.Write, reg, driver.ByteData, &data)
}

// ReadWordData reads the 16-bit register reg. SMBus words are sent low
// byte first.
func (c *Client) ReadWordData(reg byte) (uint16, error) {
	var data driver.Data
	if err := c.xfer("read word", driver.Read, reg, driver.WordData, &data); err != nil {
		return 0, err
	}
	return data.Word(), nil
}

// WriteWordData writes v to the 16-bit register reg.
func (c *Client) WriteWordData(reg byte, v uint16) error {
	var data driver.Data
	data.SetWord(v)
	return c.xfer("write word", driver.Write, reg, driver.WordData, &data)
}

// ReadBlockData performs an SMBus block read of reg, in which the device
// states the length. It returns the number of bytes read into buf, which
// should have room for driver.BlockMax bytes.
func (c *Client) ReadBlockData(reg byte, buf []byte) (int, error) {
	var data driver.Data
	if err := c.xfer("read block", driver.Read, reg, driver.BlockData, &data); err != nil {
		return 0, err
	}
	n := int(data[0])
	switch {
	case n > driver.BlockMax:
		return 0, &BusError{Op: "read block", Addr: c.raw.Addr(), Reg: reg, Code: -int(unix.EPROTO)}
	case n > len(buf):
		return 0, &BusError{Op: "read block", Addr: c.raw.Addr(), Reg: reg, Code: -int(unix.EMSGSIZE)}
	}
	return copy(buf, data[1:1+n]), nil
}

// WriteBlockData performs an SMBus block write of at most
// driver.BlockMax bytes to reg.
func (c *Client) WriteBlockData(reg byte, vals []byte) error {
	if len(vals) > driver.BlockMax {
		return c.invalid("write block", reg)
	}
	var data driver.Data
	data.SetBlock(vals)
	return c.xfer("write block", driver.Write, reg, driver.BlockData, &data)
}

// ReadI2CBlockData reads len(buf) consecutive bytes starting at reg,
// which must be at most driver.BlockMax. It returns the number of bytes
// read.
func (c *Client) ReadI2CBlockData(reg byte, buf []byte) (int, error) {
	if len(buf) > driver.BlockMax {
		return 0, c.invalid("read i2c block", reg)
	}
	var data driver.Data
	data[0] = byte(len(buf))
	if err := c.xfer("read i2c block", driver.Read, reg, driver.I2CBlockData, &data); err != nil {
		return 0, err
	}
	n := int(data[0])
	if n > len(buf) {
		n = len(buf)
	}
	return copy(buf, data[1:1+n]), nil
}

// WriteI2CBlockData writes vals to consecutive registers starting at reg.
func (c *Client) WriteI2CBlockData(reg byte, vals []byte) error {
	if len(vals) > driver.BlockMax {
		return c.invalid("write i2c block", reg)
	}
	var data driver.Data
	data.SetBlock(vals)
	return c.xfer("write i2c block", driver.Write, reg, driver.I2CBlockData, &data)
}

func (c *Client) transfer(op string, msgs []driver.Msg) error {
	if err := c.check(); err != nil {
		return err
	}
	for _, m := range msgs {
		if len(m.Buf) > maxTransfer {
			return c.invalid(op, 0)
		}
	}
	_, err := c.raw.Transfer(msgs)
	return busError(op, c.raw, 0, err)
}

// Send writes buf to the device as a single plain I2C message and
// returns the number of bytes written.
func (c *Client) Send(buf []byte) (int, error) {
	if err := c.transfer("send", []driver.Msg{{Buf: buf}}); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Recv reads len(buf) bytes from the device as a single plain I2C
// message and returns the number of bytes read.
func (c *Client) Recv(buf []byte) (int, error) {
	if err := c.transfer("recv", []driver.Msg{{Flags: driver.MsgRead, Buf: buf}}); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// WriteRead writes w and then reads into r with a repeated start in
// between, the usual way to read registers of devices that are not
// SMBus compatible.
func (c *Client) WriteRead(w, r []byte) error {
	return c.transfer("write-read", []driver.Msg{
		{Buf: w},
		{Flags: driver.MsgRead, Buf: r},
	})
}
