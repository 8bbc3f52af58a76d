package seq

import (
	"github.com/pkg/errors"
)

// Bounds of the initial latency, in clock cycles of the device.
const (
	MinLatency = 1
	MaxLatency = 31
)

// ErrLatencyOutOfRange is returned when a latency does not fit the 5-bit
// latency register or is zero.
var ErrLatencyOutOfRange = errors.New("latency out of range")

// LatencyRegister is the 5-bit control register holding the initial latency.
type LatencyRegister struct {
	value, initial uint8
}

// NewLatencyRegister creates a register that resets to the given value.
func NewLatencyRegister(initial uint8) (*LatencyRegister, error) {
	if err := latencyMustBeInRange(uint32(initial)); err != nil {
		return nil, err
	}

	return &LatencyRegister{value: initial, initial: initial}, nil
}

// Get returns the configured latency.
func (r *LatencyRegister) Get() uint8 {
	return r.value
}

// Set updates the latency.
func (r *LatencyRegister) Set(v uint32) error {
	if err := latencyMustBeInRange(v); err != nil {
		return err
	}

	r.value = uint8(v)

	return nil
}

// Default returns the value the register resets to.
func (r *LatencyRegister) Default() uint8 {
	return r.initial
}

// Reset restores the default latency.
func (r *LatencyRegister) Reset() {
	r.value = r.initial
}

func latencyMustBeInRange(v uint32) error {
	if v < MinLatency || v > MaxLatency {
		return errors.Wrapf(ErrLatencyOutOfRange,
			"latency %d, want [%d, %d]", v, MinLatency, MaxLatency)
	}

	return nil
}

// LatencyCount returns the number of clock edges of the latency phase, which
// is also the reload value of the cycle counter when the command-address
// word has been sent.
func LatencyCount(latency uint8) uint8 {
	return 2*latency - 2
}
