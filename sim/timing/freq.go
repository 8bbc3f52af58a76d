package timing

import (
	"log"
	"math"
)

// VTimeInSec is a point in simulated time, in seconds.
type VTimeInSec float64

// Freq is a clock frequency in Hz.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two rising edges.
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle returns the index of the rising edge closest to t.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	return uint64(math.Round(float64(t) * float64(f)))
}

// ThisTick returns the first rising edge at or after now.
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	return f.edge(math.Ceil(f.periods(now)))
}

// NextTick returns the first rising edge strictly after now.
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	return f.edge(math.Floor(f.periods(now)) + 1)
}

// HalfTick returns the falling edge that follows ThisTick(t).
func (f Freq) HalfTick(t VTimeInSec) VTimeInSec {
	return f.edge(math.Ceil(f.periods(t)) + 0.5)
}

// periods counts the periods from time 0 to t. It is rounded to a tenth of a
// period so that times computed by float division land back on their edge.
func (f Freq) periods(t VTimeInSec) float64 {
	if math.IsNaN(float64(t)) {
		log.Panic("invalid time")
	}

	return math.Round(float64(t)*float64(f)*10) / 10
}

func (f Freq) edge(periods float64) VTimeInSec {
	return VTimeInSec(periods / float64(f))
}
