// Package phy models the pin-level side of the HyperBus controller: the
// shared shift register, the derived clock and the pin bundle.
package phy

import (
	"fmt"

	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
)

// Phase tells what the content of the shift register currently means.
type Phase int

// Phases of the shift register.
const (
	PhaseIdle Phase = iota
	PhaseCommand
	PhaseLatency
	PhaseData
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCommand:
		return "command"
	case PhaseLatency:
		return "latency"
	case PhaseData:
		return "data"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ShiftRegister is the single 48-bit register used both to send the
// command-address word and to receive read data, one byte per active cycle.
type ShiftRegister struct {
	value uint64
	phase Phase
}

// Load puts a command-address word in the register.
func (r *ShiftRegister) Load(p ca.Packet) {
	r.value = uint64(p) & ca.Mask
	r.phase = PhaseCommand
}

// Clear zeroes the register and retags it.
func (r *ShiftRegister) Clear(phase Phase) {
	r.value = 0
	r.phase = phase
}

// SetPhase retags the register without touching its content.
func (r *ShiftRegister) SetPhase(phase Phase) {
	r.phase = phase
}

// Phase returns the current role of the register.
func (r *ShiftRegister) Phase() Phase {
	return r.phase
}

// Shift moves the register up by one byte, shifting in the byte sampled from
// the DQ pins.
func (r *ShiftRegister) Shift(in byte) {
	r.value = (r.value<<8 | uint64(in)) & ca.Mask
}

// Out returns the byte that is driven on the DQ pins.
func (r *ShiftRegister) Out() byte {
	return byte(r.value >> 40)
}

// Data returns the low 32 bits, which is the read data.
func (r *ShiftRegister) Data() uint32 {
	return uint32(r.value)
}

// Value returns the whole 48-bit content.
func (r *ShiftRegister) Value() uint64 {
	return r.value
}
