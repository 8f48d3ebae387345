// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver contains interfaces to be implemented by I2C bus
// controllers, and the SMBus transaction encoding they share with the
// bus core.
package driver // import "github.com/i2ckit/i2ckit/io/i2c/driver"

// BlockMax is the largest payload of an SMBus block transaction.
const BlockMax = 32

// ReadWrite is the direction of an SMBus transaction.
type ReadWrite uint8

const (
	Write ReadWrite = 0
	Read  ReadWrite = 1
)

func (rw ReadWrite) String() string {
	if rw == Read {
		return "read"
	}
	return "write"
}

// Size is the SMBus transaction type. The values match the Linux
// i2c-dev I2C_SMBUS_* sizes so they can be handed to the kernel as is.
type Size uint32

const (
	Quick          Size = 0
	Byte           Size = 1
	ByteData       Size = 2
	WordData       Size = 3
	ProcCall       Size = 4
	BlockData      Size = 5
	I2CBlockBroken Size = 6
	BlockProcCall  Size = 7
	I2CBlockData   Size = 8
)

// Flags carried with every transaction for a client.
const (
	FlagTenBit uint16 = 0x0010 // I2C_CLIENT_TEN
	FlagPEC    uint16 = 0x0004 // I2C_CLIENT_PEC
)

// Data is the payload of a single SMBus transaction. Depending on the
// transaction size it holds a byte (Data[0]), a little-endian word
// (Data[0:2]) or a block prefixed with its length (Data[0] is the count,
// Data[1:] the bytes).
type Data [BlockMax + 2]byte

func (d *Data) Byte() byte { return d[0] }

func (d *Data) SetByte(b byte) { d[0] = b }

func (d *Data) Word() uint16 { return uint16(d[0]) | uint16(d[1])<<8 }

func (d *Data) SetWord(w uint16) {
	d[0] = byte(w)
	d[1] = byte(w >> 8)
}

// Block returns the length-prefixed block held in d. A count larger than
// BlockMax is clamped.
func (d *Data) Block() []byte {
	n := int(d[0])
	if n > BlockMax {
		n = BlockMax
	}
	return d[1 : 1+n]
}

// SetBlock stores b as a length-prefixed block. It copies at most BlockMax
// bytes and reports how many it copied.
func (d *Data) SetBlock(b []byte) int {
	n := copy(d[1:1+BlockMax], b)
	d[0] = byte(n)
	return n
}

// Adapter is implemented by an I2C bus controller. SMBusXfer performs
// exactly one SMBus transaction addressed to addr. Errors should be
// syscall errno values (golang.org/x/sys/unix.Errno) where possible so the
// numeric code can be preserved for callers; anything else is reported
// as an I/O error.
type Adapter interface {
	SMBusXfer(addr, flags uint16, rw ReadWrite, cmd byte, size Size, data *Data) error
}

// Msg is one segment of a plain I2C transfer.
type Msg struct {
	Addr  uint16
	Flags uint16
	Buf   []byte
}

// MsgRead marks a Msg as a read from the device into Buf.
const MsgRead uint16 = 0x0001

// Transferer is implemented by adapters that can issue plain I2C
// transfers (combined messages separated by repeated starts).
type Transferer interface {
	Transfer(msgs []Msg) (int, error)
}

// Func is a bit set of controller capabilities. The values match the
// Linux I2C_FUNC_* constants.
type Func uint32

const (
	FuncI2C                 Func = 0x00000001
	FuncTenBitAddr          Func = 0x00000002
	FuncSMBusPEC            Func = 0x00000008
	FuncSMBusQuick          Func = 0x00010000
	FuncSMBusReadByte       Func = 0x00020000
	FuncSMBusWriteByte      Func = 0x00040000
	FuncSMBusReadByteData   Func = 0x00080000
	FuncSMBusWriteByteData  Func = 0x00100000
	FuncSMBusReadWordData   Func = 0x00200000
	FuncSMBusWriteWordData  Func = 0x00400000
	FuncSMBusProcCall       Func = 0x00800000
	FuncSMBusReadBlockData  Func = 0x01000000
	FuncSMBusWriteBlockData Func = 0x02000000
	FuncSMBusReadI2CBlock   Func = 0x04000000
	FuncSMBusWriteI2CBlock  Func = 0x08000000
)

const (
	FuncSMBusByte      = FuncSMBusReadByte | FuncSMBusWriteByte
	FuncSMBusByteData  = FuncSMBusReadByteData | FuncSMBusWriteByteData
	FuncSMBusWordData  = FuncSMBusReadWordData | FuncSMBusWriteWordData
	FuncSMBusBlockData = FuncSMBusReadBlockData | FuncSMBusWriteBlockData
	FuncSMBusI2CBlock  = FuncSMBusReadI2CBlock | FuncSMBusWriteI2CBlock
	FuncSMBusEmul      = FuncSMBusQuick | FuncSMBusByte | FuncSMBusByteData | FuncSMBusWordData |
		FuncSMBusProcCall | FuncSMBusWriteBlockData | FuncSMBusI2CBlock | FuncSMBusPEC
)

// Functionality is implemented by adapters that can report what they
// support. Adapters that do not implement it are assumed to support the
// SMBus byte, word and block transactions.
type Functionality interface {
	Functionality() Func
}

// Opener opens the controller of the numbered bus.
type Opener interface {
	Open(bus int) (Adapter, error)
}
