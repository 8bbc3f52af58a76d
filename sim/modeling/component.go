package modeling

import (
	"log"
	"slices"
	"sync"

	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/naming"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// A Component is a simulated unit that talks to others through its ports.
type Component interface {
	naming.Named
	timing.Handler
	hooking.Hookable

	AddPort(name string, port Port)
	GetPortByName(name string) Port
	Ports() []Port

	NotifyRecv(port Port)
	NotifyPortFree(port Port)
}

// ComponentBase implements the naming and port bookkeeping of a Component.
// The embedded mutex guards the state of the component that embeds it.
type ComponentBase struct {
	sync.Mutex
	hooking.HookableBase

	name      string
	ports     map[string]Port
	portOrder []string
}

// NewComponentBase creates a ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	naming.NameMustBeValid(name)

	return &ComponentBase{
		name:  name,
		ports: make(map[string]Port),
	}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port under a short name, such as "Top".
func (c *ComponentBase) AddPort(name string, port Port) {
	if _, dup := c.ports[name]; dup {
		log.Panicf("%s already has a port named %s", c.name, name)
	}

	c.ports[name] = port

	at, _ := slices.BinarySearch(c.portOrder, name)
	c.portOrder = slices.Insert(c.portOrder, at, name)
}

// GetPortByName returns the port registered under a short name.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, ok := c.ports[name]
	if !ok {
		log.Panicf("%s has no port named %s, it has %v",
			c.name, name, c.portOrder)
	}

	return port
}

// Ports returns the ports of the component, ordered by their short names.
func (c *ComponentBase) Ports() []Port {
	ports := make([]Port, len(c.portOrder))
	for i, name := range c.portOrder {
		ports[i] = c.ports[name]
	}

	return ports
}
