package timing

import "sync"

// TickEvent starts a cycle. The handler samples its inputs and moves its
// state.
type TickEvent struct {
	*EventBase
}

// SettleEvent finishes a cycle half a period after its TickEvent. The handler
// lets its outputs settle.
type SettleEvent struct {
	*EventBase
}

// A Ticker updates its state once per cycle. Tick returns false when there is
// nothing left to do until something wakes it up.
type Ticker interface {
	Tick() bool
}

// A Settler has work to do on the falling edge of its clock.
type Settler interface {
	Settle()
}

// TickScheduler schedules the tick and settle events of one clocked handler.
// It never schedules the same edge twice.
type TickScheduler struct {
	Freq   Freq
	Engine EventScheduler

	mu         sync.Mutex
	handler    Handler
	phase      Phase
	lastTick   VTimeInSec
	lastSettle VTimeInSec
}

// NewTickScheduler creates a scheduler whose ticks run in the sample phase.
func NewTickScheduler(
	handler Handler,
	engine EventScheduler,
	freq Freq,
) *TickScheduler {
	return newTickScheduler(handler, engine, freq, PhaseSample)
}

// NewDeliveryTickScheduler creates a scheduler whose ticks run after all the
// sample and settle events of the same time.
func NewDeliveryTickScheduler(
	handler Handler,
	engine EventScheduler,
	freq Freq,
) *TickScheduler {
	return newTickScheduler(handler, engine, freq, PhaseDeliver)
}

func newTickScheduler(
	handler Handler,
	engine EventScheduler,
	freq Freq,
	phase Phase,
) *TickScheduler {
	return &TickScheduler{
		Freq:       freq,
		Engine:     engine,
		handler:    handler,
		phase:      phase,
		lastTick:   -1,
		lastSettle: -1,
	}
}

// TickNow schedules a tick on the current edge, or the next one if now is
// between edges.
func (t *TickScheduler) TickNow() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.Now()
	if t.lastTick >= now {
		return
	}

	t.tickAt(t.Freq.ThisTick(now))
}

// TickLater schedules a tick on the edge after now.
func (t *TickScheduler) TickLater() {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.Freq.NextTick(t.Now())
	if t.lastTick >= next {
		return
	}

	t.tickAt(next)
}

// SettleLater schedules the settle event of the current cycle.
func (t *TickScheduler) SettleLater() {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.Freq.HalfTick(t.Now())
	if t.lastSettle >= at {
		return
	}

	t.lastSettle = at
	t.Engine.Schedule(SettleEvent{
		EventBase: NewPhasedEventBase(at, t.handler, PhaseSettle),
	})
}

func (t *TickScheduler) tickAt(at VTimeInSec) {
	t.lastTick = at
	t.Engine.Schedule(TickEvent{
		EventBase: NewPhasedEventBase(at, t.handler, t.phase),
	})
}

// Now returns the current time of the engine.
func (t *TickScheduler) Now() VTimeInSec {
	return t.Engine.Now()
}
