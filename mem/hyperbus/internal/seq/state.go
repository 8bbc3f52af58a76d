package seq

import (
	"fmt"

	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
)

// State is the state of the command sequencer.
type State int

// States of the command sequencer.
const (
	Idle State = iota
	WaitCA
	WaitLat
	ShiftDat
	AckXfer
	WaitNext
)

var stateNames = [...]string{
	Idle:     "IDLE",
	WaitCA:   "WAIT_CA",
	WaitLat:  "WAIT_LAT",
	ShiftDat: "SHIFT_DAT",
	AckXfer:  "ACK_XFER",
	WaitNext: "WAIT_NEXT",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// Cycle counts of the sequence.
const (
	// CACount is the counter reload when the command-address word starts.
	CACount = 6

	// DataCount is the counter reload when a word starts to be received.
	DataCount = 4

	// NextWindow is the number of cycles after an acknowledge during which
	// the chip stays selected, waiting for a continuation.
	NextWindow = 9

	// PageBits is the width of the word address field inside which bursts
	// can be continued.
	PageBits = 6
)

// DeviceIndex returns which chip serves a bus word address.
func DeviceIndex(wordAddr uint32) int {
	return int(wordAddr >> ca.DeviceAddrBits)
}

// IsContinuation tells if a request for next can reuse the burst that has
// just delivered latched. It must be the following word inside the same
// 64-word page.
func IsContinuation(latched, next uint32) bool {
	const pageMask = 1<<PageBits - 1

	samePage := next>>PageBits == latched>>PageBits
	following := next&pageMask == latched&pageMask+1

	return samePage && following
}
