// Package ca packs and unpacks the 48-bit command-address word that opens
// every HyperBus transaction.
package ca

import "fmt"

// Bit layout of the packet, most significant bit first.
const (
	Bits = 48
	Mask = uint64(1)<<Bits - 1

	bitReadWrite = 47
	bitAddrSpace = 46
	bitBurstType = 45
	upperShift   = 16
	upperWidth   = 29
	lowerShift   = 1
	lowerWidth   = 2
	columnWidth  = 3

	// NumBytes is the number of bytes the packet takes on the DQ pins.
	NumBytes = Bits / 8
)

// DeviceAddrBits is the number of word address bits decoded inside one
// device. Word address bits above it select the chip.
const DeviceAddrBits = 21

// Packet is a command-address word. Only the low 48 bits are used.
type Packet uint64

// ForRead builds the packet of a linear-burst memory read starting at the
// 32-bit word with the given bus word address. Address bits that select the
// device are not part of the packet.
func ForRead(wordAddr uint32) Packet {
	inDevice := uint64(wordAddr) & (1<<DeviceAddrBits - 1)

	p := uint64(1)<<bitReadWrite | uint64(1)<<bitBurstType
	p |= (inDevice >> 2) << upperShift
	p |= (inDevice & 0x3) << lowerShift

	return Packet(p)
}

// Decode assembles a packet from the bytes seen on the DQ pins, first byte
// first.
func Decode(b [NumBytes]byte) Packet {
	var p uint64
	for _, v := range b {
		p = p<<8 | uint64(v)
	}

	return Packet(p)
}

// Byte returns the i-th byte put on the DQ pins, counting from 0.
func (p Packet) Byte(i int) byte {
	if i < 0 || i >= NumBytes {
		panic(fmt.Sprintf("CA byte %d out of range", i))
	}

	return byte(uint64(p) >> (8 * (NumBytes - 1 - i)))
}

// Bytes returns all the bytes in the order they are transmitted.
func (p Packet) Bytes() [NumBytes]byte {
	var b [NumBytes]byte
	for i := range b {
		b[i] = p.Byte(i)
	}

	return b
}

// IsRead tells if the packet describes a read.
func (p Packet) IsRead() bool {
	return p.bit(bitReadWrite)
}

// IsRegisterSpace tells if the packet addresses the register space instead
// of the memory space.
func (p Packet) IsRegisterSpace() bool {
	return p.bit(bitAddrSpace)
}

// IsLinearBurst tells if the packet requests a linear burst instead of a
// wrapped one.
func (p Packet) IsLinearBurst() bool {
	return p.bit(bitBurstType)
}

// UpperAddress returns the row and upper column address field.
func (p Packet) UpperAddress() uint32 {
	return uint32(uint64(p)>>upperShift) & (1<<upperWidth - 1)
}

// LowerAddress returns bits 2..1 of the packet, the 32-bit word inside the
// four-word column group.
func (p Packet) LowerAddress() uint8 {
	return uint8(uint64(p)>>lowerShift) & (1<<lowerWidth - 1)
}

// HalfWordSelect returns bit 0, which picks the upper or lower half-word. A
// 32-bit read always leaves it clear.
func (p Packet) HalfWordSelect() uint8 {
	return uint8(uint64(p) & 1)
}

// Reserved returns bits 15..3, which must be zero.
func (p Packet) Reserved() uint16 {
	return uint16(uint64(p)>>3) & (1<<13 - 1)
}

// HalfWordAddress returns the 16-bit word address inside the device.
func (p Packet) HalfWordAddress() uint64 {
	column := uint64(p.LowerAddress())<<lowerShift | uint64(p.HalfWordSelect())
	return uint64(p.UpperAddress())<<columnWidth | column
}

// ByteAddress returns the byte address inside the device.
func (p Packet) ByteAddress() uint64 {
	return p.HalfWordAddress() * 2
}

func (p Packet) bit(n uint) bool {
	return uint64(p)>>n&1 == 1
}

// String renders the packet in hexadecimal.
func (p Packet) String() string {
	return fmt.Sprintf("%012x", uint64(p)&Mask)
}
