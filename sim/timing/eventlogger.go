package timing

import (
	"log"
	"reflect"

	"github.com/sarchlab/hyperbus/sim/hooking"
)

type named interface {
	Name() string
}

// EventLogger is a hook that prints every event before it is handled. When a
// clock is given, the time is printed as a cycle index of that clock.
type EventLogger struct {
	logger *log.Logger
	clock  Freq
}

// NewEventLogger creates an EventLogger that prints times in seconds.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// WithClock makes the logger print cycle indices of the given clock.
func (h *EventLogger) WithClock(f Freq) *EventLogger {
	h.clock = f
	return h
}

// Func prints the event.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	target := reflect.TypeOf(evt.Handler()).String()
	if n, ok := evt.Handler().(named); ok {
		target = n.Name()
	}

	kind := reflect.TypeOf(evt).Name()

	if h.clock == 0 {
		h.logger.Printf("%.10f %-7s %s %s",
			evt.Time(), evt.Phase(), kind, target)
		return
	}

	t := evt.Time()
	if evt.Phase() == PhaseSettle {
		t -= h.clock.Period() / 2
	}

	h.logger.Printf("cycle %d %-7s %s %s",
		h.clock.Cycle(t), evt.Phase(), kind, target)
}
