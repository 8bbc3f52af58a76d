package timing

import (
	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/id"
)

// Phase orders the events that fall on the same time. Components sample
// their inputs first, then settle their outputs, and connections deliver
// messages last.
type Phase int

// Phases of a point in time, in the order they run.
const (
	PhaseSample Phase = iota
	PhaseSettle
	PhaseDeliver
)

var phaseNames = [...]string{"sample", "settle", "deliver"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}

	return phaseNames[p]
}

// An Event is something going to happen in the future.
type Event interface {
	Time() VTimeInSec
	Handler() Handler
	Phase() Phase
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase carries the fields every event needs. Concrete events embed it.
type EventBase struct {
	ID string

	time    VTimeInSec
	handler Handler
	phase   Phase
}

// NewEventBase creates an EventBase in the sample phase.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return NewPhasedEventBase(t, handler, PhaseSample)
}

// NewPhasedEventBase creates an EventBase that runs in the given phase.
func NewPhasedEventBase(
	t VTimeInSec,
	handler Handler,
	phase Phase,
) *EventBase {
	return &EventBase{
		ID:      id.Generate(),
		time:    t,
		handler: handler,
		phase:   phase,
	}
}

// Time returns the time that the event is going to happen.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// Phase returns the phase the event runs in.
func (e EventBase) Phase() Phase {
	return e.phase
}

// A Handler owns the events scheduled for it. An event may only change the
// state of its handler.
type Handler interface {
	Handle(e Event) error
}
