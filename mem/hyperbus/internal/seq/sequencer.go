// Package seq implements the command sequencer of the HyperBus controller:
// the state machine that selects the chip, counts the command, latency and
// data cycles and decides between burst continuation and full restart.
package seq

import (
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/phy"
)

// Request is what the bus presents to the sequencer in a cycle.
type Request struct {
	Valid bool
	Addr  uint32
}

// Event tells what happened in a sample.
type Event int

// Events reported by Sample.
const (
	EventNone Event = iota

	// EventFreshStart is a request accepted from IDLE.
	EventFreshStart

	// EventContinuation is a request accepted as the next word of the
	// current burst.
	EventContinuation

	// EventRestart is a request that cannot continue the burst. The chip is
	// released and the request is accepted from IDLE later.
	EventRestart

	// EventDataReady is a word fully received. The acknowledge is up for
	// the cycle that follows.
	EventDataReady

	// EventWindowClosed is the continuation window expiring.
	EventWindowClosed
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventFreshStart:
		return "fresh_start"
	case EventContinuation:
		return "continuation"
	case EventRestart:
		return "restart"
	case EventDataReady:
		return "data_ready"
	case EventWindowClosed:
		return "window_closed"
	default:
		return "unknown"
	}
}

// Sequencer is the protocol state machine. It owns the chip selects, the
// output enable of DQ, the cycle and wait counters and the latched address,
// and drives the shift register at the defined transition points.
type Sequencer struct {
	latency *LatencyRegister
	sr      *phy.ShiftRegister
	chips   int

	state   State
	counter uint8
	wait    uint8
	latched uint32
	csn     uint32
	dqOE    bool

	// activeLatency is the latency captured when the current burst started.
	activeLatency uint8
}

// NewSequencer creates a sequencer for the given number of chips.
func NewSequencer(
	latency *LatencyRegister,
	sr *phy.ShiftRegister,
	chips int,
) *Sequencer {
	if chips < 1 || chips > 32 {
		panic("chip count must be in [1, 32]")
	}

	s := &Sequencer{
		latency: latency,
		sr:      sr,
		chips:   chips,
	}
	s.Reset()

	return s
}

// Reset puts the sequencer back to IDLE with all chips deselected.
func (s *Sequencer) Reset() {
	s.state = Idle
	s.counter = 0
	s.wait = 0
	s.latched = 0
	s.csn = phy.AllDeselected(s.chips)
	s.dqOE = false
	s.activeLatency = 0
}

// CanAccept tells if a request for the address would be taken by the next
// sample.
func (s *Sequencer) CanAccept(addr uint32) bool {
	switch s.state {
	case Idle:
		return DeviceIndex(addr) < s.chips
	case WaitNext:
		return IsContinuation(s.latched, addr)
	default:
		return false
	}
}

// Sample advances the sequencer by one rising edge of the controller clock.
// The shift register must have been shifted for this edge already if the
// counter was active.
func (s *Sequencer) Sample(req Request) Event {
	pre := s.counter

	if s.ChipSelected() && pre != 0 {
		s.counter = pre - 1
	}

	switch s.state {
	case Idle:
		return s.sampleIdle(req)
	case WaitCA:
		if pre == 1 {
			s.finishCA()
		}
	case WaitLat:
		if pre == 1 {
			s.startData()
		}
	case ShiftDat:
		if pre == 1 {
			s.state = AckXfer
			s.wait = NextWindow
			return EventDataReady
		}
	case AckXfer:
		s.wait--
		s.state = WaitNext
	case WaitNext:
		return s.sampleWaitNext(req)
	}

	return EventNone
}

func (s *Sequencer) sampleIdle(req Request) Event {
	s.counter = 0
	s.csn = phy.AllDeselected(s.chips)

	if !req.Valid || DeviceIndex(req.Addr) >= s.chips {
		return EventNone
	}

	s.csn = phy.Select(DeviceIndex(req.Addr), s.chips)
	s.dqOE = true
	s.counter = CACount
	s.sr.Load(ca.ForRead(req.Addr))
	s.latched = req.Addr
	s.activeLatency = s.latency.Get()
	s.state = WaitCA

	return EventFreshStart
}

func (s *Sequencer) finishCA() {
	s.dqOE = false

	reload := LatencyCount(s.activeLatency)
	if reload == 0 {
		s.startData()
		return
	}

	s.counter = reload
	s.sr.SetPhase(phy.PhaseLatency)
	s.state = WaitLat
}

func (s *Sequencer) startData() {
	s.sr.Clear(phy.PhaseData)
	s.dqOE = false
	s.counter = DataCount
	s.state = ShiftDat
}

func (s *Sequencer) sampleWaitNext(req Request) Event {
	if s.wait > 0 {
		s.wait--
	}

	if req.Valid {
		if IsContinuation(s.latched, req.Addr) {
			s.startData()
			s.latched = req.Addr

			return EventContinuation
		}

		s.release()

		return EventRestart
	}

	if s.wait == 0 {
		s.release()
		return EventWindowClosed
	}

	return EventNone
}

func (s *Sequencer) release() {
	s.csn = phy.AllDeselected(s.chips)
	s.state = Idle
	s.sr.SetPhase(phy.PhaseIdle)
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// Ack tells if the bus acknowledge is up in the current cycle.
func (s *Sequencer) Ack() bool {
	return s.state == AckXfer
}

// Counter returns the cycle counter.
func (s *Sequencer) Counter() uint8 {
	return s.counter
}

// Wait returns the wait counter of the continuation window.
func (s *Sequencer) Wait() uint8 {
	return s.wait
}

// Latched returns the word address of the last accepted request.
func (s *Sequencer) Latched() uint32 {
	return s.latched
}

// ChipSelectN returns the active-low chip-select vector.
func (s *Sequencer) ChipSelectN() uint32 {
	return s.csn
}

// ChipSelected tells if any chip is selected.
func (s *Sequencer) ChipSelected() bool {
	return s.csn != phy.AllDeselected(s.chips)
}

// OutputEnable tells if the controller drives the DQ pins.
func (s *Sequencer) OutputEnable() bool {
	return s.dqOE
}

// Chips returns the number of chip selects.
func (s *Sequencer) Chips() int {
	return s.chips
}
