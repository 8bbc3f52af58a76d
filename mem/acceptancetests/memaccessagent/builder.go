package memaccessagent

import (
	"log"
	"math/rand"

	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// Builder can build MemAccessAgents.
type Builder struct {
	engine     timing.EventScheduler
	freq       timing.Freq
	maxAddress uint64
	startAddr  uint64
	readLeft   int
	pattern    Pattern
	addresses  []uint64
	seed       int64
	reference  *mem.Storage
	lowModule  modeling.Port
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() *Builder {
	return &Builder{
		freq:       100 * timing.MHz,
		maxAddress: 1024 * 1024,
		readLeft:   1000,
		seed:       1,
	}
}

func (b *Builder) WithEngine(engine timing.EventScheduler) *Builder {
	b.engine = engine
	return b
}

func (b *Builder) WithFreq(freq timing.Freq) *Builder {
	b.freq = freq
	return b
}

func (b *Builder) WithMaxAddress(addr uint64) *Builder {
	b.maxAddress = addr
	return b
}

func (b *Builder) WithStartAddress(addr uint64) *Builder {
	b.startAddr = addr
	return b
}

func (b *Builder) WithReadLeft(read int) *Builder {
	b.readLeft = read
	return b
}

func (b *Builder) WithPattern(p Pattern) *Builder {
	b.pattern = p
	return b
}

// WithAddresses sets the addresses to read and selects the List pattern.
func (b *Builder) WithAddresses(addrs ...uint64) *Builder {
	b.addresses = append([]uint64(nil), addrs...)
	b.pattern = List

	return b
}

func (b *Builder) WithSeed(seed int64) *Builder {
	b.seed = seed
	return b
}

// WithReference sets the storage that holds the data the agent expects.
func (b *Builder) WithReference(s *mem.Storage) *Builder {
	b.reference = s
	return b
}

func (b *Builder) WithLowModule(port modeling.Port) *Builder {
	b.lowModule = port
	return b
}

func (b *Builder) Build(name string) *MemAccessAgent {
	if b.pattern == List && len(b.addresses) == 0 {
		log.Panic("list pattern without addresses")
	}

	if b.maxAddress < 4 {
		log.Panicf("max address 0x%x is below one word", b.maxAddress)
	}

	agent := NewMemAccessAgent(b.engine)

	agent.TickingComponent = modeling.NewTickingComponent(
		name, b.engine, b.freq, agent)
	agent.MaxAddress = b.maxAddress
	agent.StartAddr = b.startAddr
	agent.ReadLeft = b.readLeft
	agent.Pattern = b.pattern
	agent.Addresses = b.addresses
	agent.Reference = b.reference
	agent.rng = rand.New(rand.NewSource(b.seed))

	agent.memPort = modeling.NewPort(agent, 1, 1, name+".Mem")
	agent.AddPort("Mem", agent.memPort)

	if b.lowModule != nil {
		agent.LowModule = b.lowModule
	}

	return agent
}
