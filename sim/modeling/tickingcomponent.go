package modeling

import (
	"log"
	"reflect"

	"github.com/sarchlab/hyperbus/sim/timing"
)

// TickingComponent is a component driven by a clock. Tick runs on the rising
// edge. If the ticker also implements timing.Settler, Settle runs on the
// falling edge of every cycle that called SettleLater.
type TickingComponent struct {
	*ComponentBase
	*timing.TickScheduler

	ticker timing.Ticker
}

// NewTickingComponent creates a ticking component whose ticks sample in the
// first phase of their time.
func NewTickingComponent(
	name string,
	engine timing.EventScheduler,
	freq timing.Freq,
	ticker timing.Ticker,
) *TickingComponent {
	tc := &TickingComponent{
		ComponentBase: NewComponentBase(name),
		ticker:        ticker,
	}
	tc.TickScheduler = timing.NewTickScheduler(tc, engine, freq)

	return tc
}

// NewDeliveryTickingComponent creates a ticking component whose ticks run
// after the components have sampled and settled.
func NewDeliveryTickingComponent(
	name string,
	engine timing.EventScheduler,
	freq timing.Freq,
	ticker timing.Ticker,
) *TickingComponent {
	tc := &TickingComponent{
		ComponentBase: NewComponentBase(name),
		ticker:        ticker,
	}
	tc.TickScheduler = timing.NewDeliveryTickScheduler(tc, engine, freq)

	return tc
}

// NotifyRecv wakes the component up on the next cycle.
func (c *TickingComponent) NotifyRecv(_ Port) {
	c.TickLater()
}

// NotifyPortFree wakes the component up on the next cycle.
func (c *TickingComponent) NotifyPortFree(_ Port) {
	c.TickLater()
}

// Handle runs the tick or the settle phase. A tick that made progress
// schedules the next one.
func (c *TickingComponent) Handle(e timing.Event) error {
	switch e.(type) {
	case timing.TickEvent:
		if c.ticker.Tick() {
			c.TickLater()
		}
	case timing.SettleEvent:
		s, ok := c.ticker.(timing.Settler)
		if !ok {
			log.Panicf("%s has no settle phase", c.Name())
		}

		s.Settle()
	default:
		log.Panicf("%s cannot handle %s", c.Name(), reflect.TypeOf(e))
	}

	return nil
}
