package modeling

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyperbus/sim/timing"
)

var _ = Describe("Port", func() {
	var (
		engine *timing.SerialEngine
		agent  *pingAgent
		port   Port
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		agent = newPingAgent("Agent", engine, 1)
		port = agent.out
	})

	It("should refuse a message whose src is another port", func() {
		msg := &sampleMsg{}
		msg.Src = "Other.Port"
		msg.Dst = "Agent.Out"

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should refuse a message sent back to itself", func() {
		msg := &sampleMsg{}
		msg.Src = port.AsRemote()
		msg.Dst = port.AsRemote()

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should reject deliveries when the incoming buffer is full", func() {
		msg := &sampleMsg{}
		msg.Src = "Other.Port"
		msg.Dst = port.AsRemote()

		Expect(port.Deliver(msg)).To(BeNil())
		Expect(port.Deliver(msg.Clone())).NotTo(BeNil())
		Expect(port.PeekIncoming()).To(BeIdenticalTo(msg))
	})

	It("should find ports by name", func() {
		Expect(agent.GetPortByName("Out")).To(BeIdenticalTo(port))
		Expect(agent.Ports()).To(ConsistOf(port))
		Expect(func() { agent.GetPortByName("In") }).To(Panic())
	})
})

var _ = Describe("Port buffers", func() {
	It("should expose its buffers to watchers", func() {
		engine := timing.NewSerialEngine()
		agent := newPingAgent("Agent", engine, 3)

		owner, ok := agent.out.(BufferOwner)
		Expect(ok).To(BeTrue())

		bufs := owner.Buffers()
		Expect(bufs).To(HaveLen(2))
		Expect(bufs[0].Name()).To(Equal("Agent.Out.In"))
		Expect(bufs[1].Name()).To(Equal("Agent.Out.Out"))
		Expect(bufs[0].Capacity()).To(Equal(3))
	})
})
