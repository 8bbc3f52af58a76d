package modeling

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyperbus/sim/timing"
)

// twoPhaseCounter ticks a fixed number of times and records the order of the
// phases it runs.
type twoPhaseCounter struct {
	*TickingComponent

	ticksLeft int
	trace     []string
}

func (c *twoPhaseCounter) Tick() bool {
	c.trace = append(c.trace, "tick")
	c.SettleLater()

	c.ticksLeft--

	return c.ticksLeft > 0
}

func (c *twoPhaseCounter) Settle() {
	c.trace = append(c.trace, "settle")
}

type tickOnly struct {
	*TickingComponent
}

func (c *tickOnly) Tick() bool {
	c.SettleLater()
	return false
}

var _ = Describe("TickingComponent", func() {
	var engine *timing.SerialEngine

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
	})

	It("should settle half a cycle after every tick", func() {
		c := &twoPhaseCounter{ticksLeft: 3}
		c.TickingComponent = NewTickingComponent(
			"Counter", engine, 100*timing.MHz, c)

		c.TickLater()
		Expect(engine.Run()).To(Succeed())

		Expect(c.trace).To(Equal([]string{
			"tick", "settle", "tick", "settle", "tick", "settle",
		}))
		Expect(engine.Now()).To(BeNumerically("~", 35e-9, 1e-15))
	})

	It("should panic when settling a ticker without a settle phase", func() {
		c := &tickOnly{}
		c.TickingComponent = NewTickingComponent(
			"TickOnly", engine, 100*timing.MHz, c)

		c.TickLater()

		Expect(func() { _ = engine.Run() }).To(Panic())
	})
})
