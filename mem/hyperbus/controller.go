// Package hyperbus models the read side of a HyperBus memory controller. It
// bridges a request/acknowledge bus to HyperFlash or HyperRAM devices over
// the 8-bit DQ bus and the derived differential clock.
//
// The Controller type is the cycle-level model, stepped explicitly by the
// caller. Comp wraps it into a ticking component that serves mem.ReadReq
// messages.
package hyperbus

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/phy"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/seq"
)

// Pins is the pin bundle between the controller and the devices.
type Pins = phy.Pins

// State is the state of the command sequencer.
type State = seq.State

// States of the command sequencer.
const (
	StateIdle     = seq.Idle
	StateWaitCA   = seq.WaitCA
	StateWaitLat  = seq.WaitLat
	StateShiftDat = seq.ShiftDat
	StateAckXfer  = seq.AckXfer
	StateWaitNext = seq.WaitNext
)

// Event tells what happened in a cycle.
type Event = seq.Event

// Events reported by Sample and Step.
const (
	EventNone         = seq.EventNone
	EventFreshStart   = seq.EventFreshStart
	EventContinuation = seq.EventContinuation
	EventRestart      = seq.EventRestart
	EventDataReady    = seq.EventDataReady
	EventWindowClosed = seq.EventWindowClosed
)

// RegLatency is the offset of the latency register.
const RegLatency = 0

// ErrNoSuchRegister is returned when a register offset is not decoded.
var ErrNoSuchRegister = errors.New("no such register")

// ErrLatencyOutOfRange is returned when a latency does not fit the latency
// register.
var ErrLatencyOutOfRange = seq.ErrLatencyOutOfRange

// WordsPerChip is the number of 32-bit words each chip select decodes.
const WordsPerChip = 1 << ca.DeviceAddrBits

// A Device reacts to the pins in the settle phase of every cycle. It may
// drive DQIn and RWDSIn.
type Device interface {
	Settle(p *Pins)
}

// LatencyConfigurable is a device whose initial latency can be configured.
type LatencyConfigurable interface {
	SetLatency(latency uint8)
}

// Bus holds the signals the bus master presents to the controller.
type Bus struct {
	Cyc, Stb bool

	// Adr is the word address.
	Adr uint32

	// Sel is the byte select. Reads always return the whole word.
	Sel uint8
}

// Requesting tells if a bus cycle is in progress.
func (b Bus) Requesting() bool {
	return b.Cyc && b.Stb
}

// Stats counts what the controller has done.
type Stats struct {
	Cycles        uint64
	FreshStarts   uint64
	Continuations uint64
	Restarts      uint64
	WindowsClosed uint64
	Acks          uint64
}

// Controller is a cycle-level HyperBus read controller. Each cycle has a
// sample phase, on the rising edge of the controller clock, and a settle
// phase, half a cycle later, where the derived clock moves and the devices
// react.
type Controller struct {
	// Bus is the request the master presents. It is sampled by Sample.
	Bus Bus

	variant Variant
	pins    Pins
	latency *seq.LatencyRegister
	sr      phy.ShiftRegister
	clk     phy.ClockGen
	seq     *seq.Sequencer
	devices []Device
	stats   Stats

	// deviceLatency waits for the next idle sample before it reaches the
	// devices, so that both sides capture the same value.
	deviceLatency        uint8
	deviceLatencyPending bool
}

// NewController creates a controller for a variant with a number of chip
// selects. A zero latency selects the default latency of the variant.
func NewController(
	variant Variant,
	chips int,
	latency uint8,
) (*Controller, error) {
	if chips < 1 || chips > 32 {
		return nil, errors.Errorf("%d chip selects, want [1, 32]", chips)
	}

	if latency == 0 {
		latency = variant.DefaultLatency
	}

	reg, err := seq.NewLatencyRegister(latency)
	if err != nil {
		return nil, errors.Wrapf(err, "configuring %s", variant.Name)
	}

	c := &Controller{
		variant: variant,
		latency: reg,
	}
	c.seq = seq.NewSequencer(reg, &c.sr, chips)
	c.Reset()

	return c, nil
}

// Attach connects devices to the pins.
func (c *Controller) Attach(devices ...Device) {
	c.devices = append(c.devices, devices...)
}

// Reset pulses RESET# and puts the controller back to IDLE. The latency
// register returns to its default value.
func (c *Controller) Reset() {
	c.seq.Reset()
	c.sr.Clear(phy.PhaseIdle)
	c.clk.Reset()
	c.latency.Reset()
	c.deviceLatencyPending = false

	c.pins = Pins{
		CKn: true,
		CSn: phy.AllDeselected(c.seq.Chips()),
	}
	c.settleDevices()

	c.pins.ResetN = true
}

// Sample runs the rising edge of a cycle: the shift register takes the byte
// on DQ and the sequencer moves.
func (c *Controller) Sample() Event {
	if c.seq.Counter() != 0 {
		c.sr.Shift(c.pins.DQIn)
	}

	if c.seq.State() == StateIdle {
		c.configureDevices()
	}

	ev := c.seq.Sample(seq.Request{
		Valid: c.Bus.Requesting(),
		Addr:  c.Bus.Adr,
	})

	c.drivePins()
	c.count(ev)

	return ev
}

// Settle runs the falling edge of a cycle: the derived clock moves and the
// devices react to the pins.
func (c *Controller) Settle() {
	c.clk.Settle(c.seq.ChipSelected(), c.seq.Counter() != 0)
	c.pins.CK = c.clk.CK()
	c.pins.CKn = c.clk.CKn()

	c.settleDevices()
}

// Step runs a whole cycle.
func (c *Controller) Step() Event {
	ev := c.Sample()
	c.Settle()

	return ev
}

func (c *Controller) drivePins() {
	c.pins.CSn = c.seq.ChipSelectN()
	c.pins.DQOut = c.sr.Out()
	c.pins.DQOE = c.seq.OutputEnable()
	c.pins.RWDSOut = false
	c.pins.RWDSOE = false

	c.pins.SelectedChip(c.seq.Chips())
}

func (c *Controller) settleDevices() {
	for _, d := range c.devices {
		d.Settle(&c.pins)
	}
}

func (c *Controller) count(ev Event) {
	c.stats.Cycles++

	switch ev {
	case EventFreshStart:
		c.stats.FreshStarts++
	case EventContinuation:
		c.stats.Continuations++
	case EventRestart:
		c.stats.Restarts++
	case EventDataReady:
		c.stats.Acks++
	case EventWindowClosed:
		c.stats.WindowsClosed++
	}
}

// Ack tells if the acknowledge is up in the current cycle.
func (c *Controller) Ack() bool {
	return c.seq.Ack()
}

// Data returns the read data. It is only meaningful while Ack is up.
func (c *Controller) Data() uint32 {
	return c.sr.Data()
}

// CanAccept tells if a request for the word address would be taken by the
// next sample.
func (c *Controller) CanAccept(wordAddr uint32) bool {
	return c.seq.CanAccept(wordAddr)
}

// State returns the state of the sequencer.
func (c *Controller) State() State {
	return c.seq.State()
}

// Pins returns a copy of the pins.
func (c *Controller) Pins() Pins {
	return c.pins
}

// Latched returns the word address of the last accepted request.
func (c *Controller) Latched() uint32 {
	return c.seq.Latched()
}

// Latency returns the configured initial latency.
func (c *Controller) Latency() uint8 {
	return c.latency.Get()
}

// Variant returns the device family the controller is configured for.
func (c *Controller) Variant() Variant {
	return c.variant
}

// Chips returns the number of chip selects.
func (c *Controller) Chips() int {
	return c.seq.Chips()
}

// Size returns the number of bytes the controller decodes.
func (c *Controller) Size() uint64 {
	return uint64(c.seq.Chips()) * WordsPerChip * 4
}

// Stats returns the counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// ReadRegister returns the value of a control register.
func (c *Controller) ReadRegister(offset uint64) (uint32, error) {
	if offset != RegLatency {
		return 0, errors.Wrapf(ErrNoSuchRegister, "offset %d", offset)
	}

	return uint32(c.latency.Get()), nil
}

// WriteRegister updates a control register. A new latency applies from the
// next transaction that starts from IDLE. Attached devices that can be
// configured get the new latency too, the way boot firmware programs both
// sides of the link. They receive it at the next sample that finds the
// sequencer idle, so a transaction already accepted keeps the old latency on
// both sides.
func (c *Controller) WriteRegister(offset uint64, value uint32) error {
	if offset != RegLatency {
		return errors.Wrapf(ErrNoSuchRegister, "offset %d", offset)
	}

	if err := c.latency.Set(value); err != nil {
		return err
	}

	c.deviceLatency = uint8(value)
	c.deviceLatencyPending = true

	return nil
}

func (c *Controller) configureDevices() {
	if !c.deviceLatencyPending {
		return
	}

	c.deviceLatencyPending = false

	for _, d := range c.devices {
		if lc, ok := d.(LatencyConfigurable); ok {
			lc.SetLatency(c.deviceLatency)
		}
	}
}
