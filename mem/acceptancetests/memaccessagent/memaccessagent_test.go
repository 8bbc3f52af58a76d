package memaccessagent

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyperbus/mem/hyperbus"
	"github.com/sarchlab/hyperbus/mem/hyperbus/device"
	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
)

var _ = Describe("ParsePattern", func() {
	DescribeTable("names",
		func(name string, want Pattern) {
			p, err := ParsePattern(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want))
			Expect(p.String()).To(Equal(name))
		},
		Entry("sequential", "sequential", Sequential),
		Entry("page crossing", "page-crossing", PageCrossing),
		Entry("random", "random", Random),
		Entry("list", "list", List),
	)

	It("should reject unknown patterns", func() {
		_, err := ParsePattern("zigzag")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MemAccessAgent", func() {
	const freq = 100 * timing.MHz

	var (
		engine *timing.SerialEngine
		dev    *device.Device
		ctrl   *hyperbus.Comp
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()

		dev = device.MakeBuilder().
			WithLatency(12).
			WithCapacity(64 * 1024).
			Build("Ram")
		content := make([]byte, 64*1024)
		for i := range content {
			content[i] = byte(i>>8) ^ byte(i*13)
		}
		Expect(dev.Storage().Write(0, content)).To(Succeed())

		ctrl = hyperbus.MakeBuilder().
			WithEngine(engine).
			WithFreq(freq).
			WithVariant(hyperbus.HyperRAM).
			WithDevices(dev).
			Build("Ctrl")
	})

	run := func(b *Builder) *MemAccessAgent {
		if b.reference == nil {
			b.WithReference(dev.Storage())
		}

		agent := b.
			WithEngine(engine).
			WithFreq(freq).
			WithMaxAddress(64 * 1024).
			WithLowModule(ctrl.GetPortByName("Top")).
			Build("Agent")

		conn := modeling.MakeDirectConnectionBuilder().
			WithEngine(engine).
			WithFreq(freq).
			Build("Conn")
		conn.PlugIn(agent.GetPortByName("Mem"))
		conn.PlugIn(ctrl.GetPortByName("Top"))

		agent.TickLater()
		Expect(engine.Run()).To(Succeed())

		return agent
	}

	It("should read sequential words with one fresh start per page", func() {
		agent := run(MakeBuilder().
			WithPattern(Sequential).
			WithReadLeft(128))

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Completed).To(Equal(128))
		Expect(agent.Mismatches).To(BeZero())

		stats := ctrl.Stats()
		Expect(stats.FreshStarts).To(Equal(uint64(2)))
		Expect(stats.Continuations).To(Equal(uint64(126)))
	})

	It("should restart on every page crossing", func() {
		agent := run(MakeBuilder().
			WithPattern(PageCrossing).
			WithReadLeft(10))

		Expect(agent.Completed).To(Equal(10))
		Expect(agent.Mismatches).To(BeZero())
		Expect(ctrl.Stats().FreshStarts).To(Equal(uint64(10)))
		Expect(ctrl.Stats().Continuations).To(BeZero())
	})

	It("should read random words", func() {
		agent := run(MakeBuilder().
			WithPattern(Random).
			WithSeed(42).
			WithReadLeft(50))

		Expect(agent.Completed).To(Equal(50))
		Expect(agent.Mismatches).To(BeZero())
		Expect(agent.AverageLatency()).To(BeNumerically(">", 0))
	})

	It("should read a list of addresses", func() {
		agent := run(MakeBuilder().
			WithAddresses(0, 4, 8, 400).
			WithReadLeft(4))

		Expect(agent.Completed).To(Equal(4))
		Expect(agent.Mismatches).To(BeZero())
		Expect(ctrl.Stats().FreshStarts).To(Equal(uint64(2)))
		Expect(ctrl.Stats().Continuations).To(Equal(uint64(2)))
	})

	It("should count wrong data", func() {
		agent := run(MakeBuilder().
			WithReference(mem.NewStorage(64 * 1024)).
			WithAddresses(16, 20).
			WithReadLeft(2))

		Expect(agent.Completed).To(Equal(2))
		Expect(agent.Mismatches).To(Equal(2))
	})

	It("should refuse a list pattern without addresses", func() {
		Expect(func() {
			MakeBuilder().WithPattern(List).Build("Agent")
		}).To(Panic())
	})
})
