package modeling

import (
	"log"

	"github.com/sarchlab/hyperbus/sim/timing"
)

// DirectConnection moves messages between its ports without delay. It ticks
// in the delivery phase, so a message sent on a rising edge reaches its
// destination on the same edge and is seen by the receiver one cycle later.
type DirectConnection struct {
	*TickingComponent

	endpoints map[RemotePort]Port
	order     []Port

	// first is the port served first in the next tick. It rotates so that no
	// port can starve the others.
	first int
}

// DirectConnectionBuilder can build DirectConnections.
type DirectConnectionBuilder struct {
	engine timing.EventScheduler
	freq   timing.Freq
}

// MakeDirectConnectionBuilder creates a builder with a 1 GHz delivery clock.
func MakeDirectConnectionBuilder() DirectConnectionBuilder {
	return DirectConnectionBuilder{freq: 1 * timing.GHz}
}

// WithEngine sets the engine that the connection schedules ticks on.
func (b DirectConnectionBuilder) WithEngine(
	e timing.EventScheduler,
) DirectConnectionBuilder {
	b.engine = e
	return b
}

// WithFreq sets the delivery clock. It should match the clock of the
// components it connects.
func (b DirectConnectionBuilder) WithFreq(
	f timing.Freq,
) DirectConnectionBuilder {
	b.freq = f
	return b
}

// Build creates a DirectConnection.
func (b DirectConnectionBuilder) Build(name string) *DirectConnection {
	c := &DirectConnection{endpoints: make(map[RemotePort]Port)}
	c.TickingComponent = NewDeliveryTickingComponent(name, b.engine, b.freq, c)

	return c
}

// PlugIn attaches a port to the connection.
func (c *DirectConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	if _, dup := c.endpoints[port.AsRemote()]; dup {
		log.Panicf("%s: port %s plugged in twice", c.Name(), port.Name())
	}

	c.endpoints[port.AsRemote()] = port
	c.order = append(c.order, port)

	port.SetConnection(c)
}

// NotifyAvailable is called when a port has room again. The senders blocked
// on it are told to retry.
func (c *DirectConnection) NotifyAvailable(freed Port) {
	for _, p := range c.order {
		if p != freed {
			p.NotifyAvailable()
		}
	}

	c.TickNow()
}

// NotifySend is called when a port has a message to forward.
func (c *DirectConnection) NotifySend() {
	c.TickNow()
}

// Tick forwards every message that its destination can take.
func (c *DirectConnection) Tick() bool {
	n := len(c.order)
	if n == 0 {
		return false
	}

	moved := false
	for i := range n {
		moved = c.drain(c.order[(c.first+i)%n]) || moved
	}

	c.first = (c.first + 1) % n

	return moved
}

// drain forwards messages from src until src is empty or a destination is
// full.
func (c *DirectConnection) drain(src Port) bool {
	moved := false

	for msg := src.PeekOutgoing(); msg != nil; msg = src.PeekOutgoing() {
		dst, ok := c.endpoints[msg.Meta().Dst]
		if !ok {
			log.Panicf("%s: no port %s plugged in", c.Name(), msg.Meta().Dst)
		}

		if dst.Deliver(msg) != nil {
			break
		}

		src.RetrieveOutgoing()
		moved = true
	}

	return moved
}
