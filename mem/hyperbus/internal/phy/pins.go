package phy

import "math/bits"

// Pins is the pin bundle between the controller and the memory devices. The
// controller writes the outputs, devices write DQIn and RWDSIn.
type Pins struct {
	CK, CKn bool

	// CSn holds the active-low chip selects, bit i for chip i.
	CSn uint32

	// ResetN is the active-low reset output.
	ResetN bool

	DQOut byte
	DQOE  bool
	DQIn  byte

	RWDSOut bool
	RWDSOE  bool
	RWDSIn  bool
}

// AllDeselected returns the chip-select vector with the n chips deselected.
func AllDeselected(n int) uint32 {
	return uint32(1)<<n - 1
}

// Select returns the chip-select vector with only chip i selected among n.
func Select(i, n int) uint32 {
	return AllDeselected(n) &^ (1 << i)
}

// Selected reports if chip i is selected.
func (p Pins) Selected(i int) bool {
	return p.CSn>>i&1 == 0
}

// SelectedChip returns the index of the selected chip among n, or -1 if
// none is selected. It panics if more than one is selected.
func (p Pins) SelectedChip(n int) int {
	active := ^p.CSn & AllDeselected(n)

	switch bits.OnesCount32(active) {
	case 0:
		return -1
	case 1:
		return bits.TrailingZeros32(active)
	default:
		panic("more than one chip selected")
	}
}
