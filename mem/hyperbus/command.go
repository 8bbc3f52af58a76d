package hyperbus

import (
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/seq"
)

// CommandInfo describes the command-address packet that opens the read of
// one word.
type CommandInfo struct {
	WordAddr        uint32
	Chip            int
	Packet          string
	Bytes           [ca.NumBytes]byte
	UpperAddress    uint32
	LowerAddress    uint8
	HalfWordSelect  uint8
	DeviceByteAddr  uint64
	IsLinearBurst   bool
	IsRegisterSpace bool
}

// DescribeRead returns the command the controller puts on the bus for a read
// of the word at the given byte address.
func DescribeRead(byteAddr uint32) CommandInfo {
	wordAddr := byteAddr >> 2
	p := ca.ForRead(wordAddr)

	return CommandInfo{
		WordAddr:        wordAddr,
		Chip:            seq.DeviceIndex(wordAddr),
		Packet:          p.String(),
		Bytes:           p.Bytes(),
		UpperAddress:    p.UpperAddress(),
		LowerAddress:    p.LowerAddress(),
		HalfWordSelect:  p.HalfWordSelect(),
		DeviceByteAddr:  p.ByteAddress(),
		IsLinearBurst:   p.IsLinearBurst(),
		IsRegisterSpace: p.IsRegisterSpace(),
	}
}
