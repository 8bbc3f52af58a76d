package timing

import "github.com/sarchlab/hyperbus/sim/hooking"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine drives a discrete event simulation.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run handles events until none is left or a handler fails.
	Run() error

	// Pause holds the engine before its next event.
	Pause()

	// Continue releases a paused engine.
	Continue()
}
