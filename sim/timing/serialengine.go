package timing

import (
	"log"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/sim/hooking"
)

// A SerialEngine handles events one after another, ordered by time, then by
// phase, then by the order they were scheduled in.
type SerialEngine struct {
	hooking.HookableBase

	// mu guards now and queue. Handlers schedule while the engine runs.
	mu    sync.Mutex
	now   VTimeInSec
	queue eventQueue

	running sync.Mutex

	// gate is held by Pause and taken around every event by Run.
	pauseMu sync.Mutex
	paused  bool
	gate    sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{}
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Now returns the time of the event being handled, or of the last one.
func (e *SerialEngine) Now() VTimeInSec {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.now
}

// Schedule adds an event. It panics if the event is in the past.
func (e *SerialEngine) Schedule(evt Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.Time() < e.now {
		log.Panicf("%s at %.10f scheduled in the past, now is %.10f",
			reflect.TypeOf(evt), evt.Time(), e.now)
	}

	e.queue.push(evt)
}

// next takes the earliest event and moves the time to it.
func (e *SerialEngine) next() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.len() == 0 {
		return nil, false
	}

	evt := e.queue.pop()
	e.now = evt.Time()

	return evt, true
}

// Run handles events until the queue drains. It stops at the first handler
// that returns an error.
func (e *SerialEngine) Run() error {
	e.running.Lock()
	defer e.running.Unlock()

	for {
		e.gate.Lock()

		evt, ok := e.next()
		if !ok {
			e.gate.Unlock()
			return nil
		}

		err := e.handle(evt)

		e.gate.Unlock()

		if err != nil {
			return errors.Wrapf(err, "%s phase of %s at %.10f",
				evt.Phase(), reflect.TypeOf(evt), evt.Time())
		}
	}
}

func (e *SerialEngine) handle(evt Event) error {
	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

// Pause holds the engine before its next event. It returns once the event in
// progress, if any, has finished.
func (e *SerialEngine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if !e.paused {
		e.gate.Lock()
		e.paused = true
	}
}

// Continue releases a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if e.paused {
		e.paused = false
		e.gate.Unlock()
	}
}
