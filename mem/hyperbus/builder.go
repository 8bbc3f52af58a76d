package hyperbus

import (
	"log"

	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// Builder can build HyperBus controller components.
type Builder struct {
	engine      timing.EventScheduler
	freq        timing.Freq
	variant     Variant
	latency     uint8
	chips       int
	devices     []Device
	topBufSize  int
	ctrlBufSize int
	stallLimit  int
}

// MakeBuilder returns a Builder for a single HyperFlash chip at 100 MHz.
func MakeBuilder() Builder {
	return Builder{
		freq:        100 * timing.MHz,
		variant:     HyperFlash,
		chips:       1,
		topBufSize:  4,
		ctrlBufSize: 2,
	}
}

// WithEngine sets the engine that the component runs on.
func (b Builder) WithEngine(engine timing.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the controller clock frequency.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithVariant sets the device family.
func (b Builder) WithVariant(variant Variant) Builder {
	b.variant = variant
	return b
}

// WithLatency sets the initial latency. Zero means the default of the
// variant.
func (b Builder) WithLatency(latency uint8) Builder {
	b.latency = latency
	return b
}

// WithChipSelects sets the number of chip selects.
func (b Builder) WithChipSelects(n int) Builder {
	b.chips = n
	return b
}

// WithDevices attaches devices to the pins.
func (b Builder) WithDevices(devices ...Device) Builder {
	b.devices = append([]Device(nil), devices...)
	return b
}

// WithTopBufSize sets the buffer size of the Top port.
func (b Builder) WithTopBufSize(n int) Builder {
	b.topBufSize = n
	return b
}

// WithCtrlBufSize sets the buffer size of the Control port.
func (b Builder) WithCtrlBufSize(n int) Builder {
	b.ctrlBufSize = n
	return b
}

// WithStallLimit makes the component report requests that wait for more than
// n cycles. Zero disables the report.
func (b Builder) WithStallLimit(n int) Builder {
	b.stallLimit = n
	return b
}

// Build creates a controller component.
func (b Builder) Build(name string) *Comp {
	ctrl, err := NewController(b.variant, b.chips, b.latency)
	if err != nil {
		log.Panic(err)
	}

	ctrl.Attach(b.devices...)

	c := &Comp{
		ctrl:       ctrl,
		stallLimit: b.stallLimit,
	}
	c.TickingComponent = modeling.NewTickingComponent(name, b.engine, b.freq, c)

	c.topPort = modeling.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.ctrlPort = modeling.NewPort(
		c, b.ctrlBufSize, b.ctrlBufSize, name+".CtrlPort")
	c.AddPort("Control", c.ctrlPort)

	return c
}
