package hyperbus

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hyperbus/mem/hyperbus/device"
	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
	"github.com/sarchlab/hyperbus/tracing"
)

var _ = Describe("Comp", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEventScheduler
		topPort  *MockPort
		ctrlPort *MockPort
		comp     *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEventScheduler(mockCtrl)
		topPort = NewMockPort(mockCtrl)
		ctrlPort = NewMockPort(mockCtrl)

		comp = MakeBuilder().
			WithEngine(engine).
			WithFreq(100 * timing.MHz).
			Build("Ctrl")
		comp.topPort = topPort
		comp.ctrlPort = ctrlPort

		engine.EXPECT().Now().Return(timing.VTimeInSec(0)).AnyTimes()
		topPort.EXPECT().AsRemote().Return(modeling.RemotePort("Ctrl.TopPort")).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule a settle phase every cycle", func() {
		ctrlPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().RetrieveIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(nil)
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e timing.Event) {
			Expect(e).To(BeAssignableToTypeOf(timing.SettleEvent{}))
			Expect(e.Phase()).To(Equal(timing.PhaseSettle))
			Expect(e.Time()).To(BeNumerically("~", 5e-9, 1e-15))
			Expect(e.Handler()).To(BeIdenticalTo(comp.TickingComponent))
		})

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should accept a read and keep ticking", func() {
		req := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst("Ctrl.TopPort").
			WithAddress(0x40).
			WithByteSize(4).
			Build()

		ctrlPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().RetrieveIncoming().Return(req)
		engine.EXPECT().Schedule(gomock.Any())

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(comp.current).To(BeIdenticalTo(req))
		Expect(comp.ctrl.Bus.Adr).To(Equal(uint32(0x10)))
		Expect(comp.ctrl.State()).To(Equal(StateWaitCA))
	})

	It("should not take a new read while a respond is waiting", func() {
		comp.rspQueue = append(comp.rspQueue, &mem.DataReadyRsp{})

		ctrlPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().Send(gomock.Any()).Return(modeling.NewSendError())
		engine.EXPECT().Schedule(gomock.Any())

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(comp.current).To(BeNil())
		Expect(comp.rspQueue).To(HaveLen(1))
	})

	It("should panic on reads that are not words", func() {
		req := mem.ReadReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst("Ctrl.TopPort").
			WithAddress(0x42).
			WithByteSize(4).
			Build()

		ctrlPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().RetrieveIncoming().Return(req)

		Expect(func() { comp.Tick() }).To(Panic())
	})

	It("should panic on messages it does not serve", func() {
		ctrlPort.EXPECT().PeekIncoming().Return(nil)
		topPort.EXPECT().RetrieveIncoming().Return(&mem.RegReadReq{})

		Expect(func() { comp.Tick() }).To(Panic())
	})

	It("should write the latency register", func() {
		req := mem.RegReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst("Ctrl.CtrlPort").
			WithOffset(RegLatency).
			WithValue(9).
			BuildWrite()

		var rsp *mem.RegRsp

		ctrlPort.EXPECT().PeekIncoming().Return(req)
		ctrlPort.EXPECT().CanSend().Return(true)
		ctrlPort.EXPECT().RetrieveIncoming().Return(req)
		ctrlPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg modeling.Msg) *modeling.SendError {
				rsp = msg.(*mem.RegRsp)
				return nil
			})
		topPort.EXPECT().RetrieveIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(nil)
		engine.EXPECT().Schedule(gomock.Any())

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeTrue())
		Expect(comp.ctrl.Latency()).To(Equal(uint8(9)))
		Expect(rsp.RespondTo).To(Equal(req.ID))
		Expect(rsp.Dst).To(Equal(modeling.RemotePort("Agent.Port")))
		Expect(rsp.Value).To(Equal(uint32(9)))
		Expect(rsp.Err).NotTo(HaveOccurred())
	})

	It("should report a rejected register write", func() {
		req := mem.RegReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst("Ctrl.CtrlPort").
			WithOffset(RegLatency).
			WithValue(64).
			BuildWrite()

		var rsp *mem.RegRsp

		ctrlPort.EXPECT().PeekIncoming().Return(req)
		ctrlPort.EXPECT().CanSend().Return(true)
		ctrlPort.EXPECT().RetrieveIncoming().Return(req)
		ctrlPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg modeling.Msg) *modeling.SendError {
				rsp = msg.(*mem.RegRsp)
				return nil
			})
		topPort.EXPECT().RetrieveIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(nil)
		engine.EXPECT().Schedule(gomock.Any())

		comp.Tick()

		Expect(rsp.Err).To(HaveOccurred())
		Expect(rsp.Value).To(Equal(uint32(16)))
		Expect(comp.ctrl.Latency()).To(Equal(uint8(16)))
	})

	It("should wait for room before answering a register read", func() {
		req := mem.RegReqBuilder{}.
			WithSrc("Agent.Port").
			WithDst("Ctrl.CtrlPort").
			BuildRead()

		ctrlPort.EXPECT().PeekIncoming().Return(req)
		ctrlPort.EXPECT().CanSend().Return(false)
		topPort.EXPECT().RetrieveIncoming().Return(nil)
		topPort.EXPECT().PeekIncoming().Return(nil)
		engine.EXPECT().Schedule(gomock.Any())

		Expect(comp.Tick()).To(BeFalse())
	})
})

// readAgent issues reads one at a time and records the responds.
type readAgent struct {
	*modeling.TickingComponent

	port    modeling.Port
	memDst  modeling.RemotePort
	regDst  modeling.RemotePort
	waiting bool

	regWrites []uint32
	addrs     []uint64

	dataRsps []*mem.DataReadyRsp
	regRsps  []*mem.RegRsp
	rspTimes []timing.VTimeInSec
}

func newReadAgent(engine timing.EventScheduler, freq timing.Freq) *readAgent {
	a := &readAgent{}
	a.TickingComponent = modeling.NewTickingComponent("Agent", engine, freq, a)
	a.port = modeling.NewPort(a, 4, 4, "Agent.Port")
	a.AddPort("Port", a.port)

	return a
}

func (a *readAgent) Tick() bool {
	madeProgress := false

	if msg := a.port.RetrieveIncoming(); msg != nil {
		switch rsp := msg.(type) {
		case *mem.DataReadyRsp:
			a.dataRsps = append(a.dataRsps, rsp)
		case *mem.RegRsp:
			a.regRsps = append(a.regRsps, rsp)
		}

		a.rspTimes = append(a.rspTimes, a.Now())
		a.waiting = false
		madeProgress = true
	}

	if a.waiting {
		return madeProgress
	}

	var req modeling.Msg

	switch {
	case len(a.regWrites) > 0:
		req = mem.RegReqBuilder{}.
			WithSrc(a.port.AsRemote()).
			WithDst(a.regDst).
			WithOffset(RegLatency).
			WithValue(a.regWrites[0]).
			BuildWrite()
	case len(a.addrs) > 0:
		req = mem.ReadReqBuilder{}.
			WithSrc(a.port.AsRemote()).
			WithDst(a.memDst).
			WithAddress(a.addrs[0]).
			WithByteSize(4).
			Build()
	default:
		return madeProgress
	}

	if a.port.Send(req) != nil {
		return madeProgress
	}

	if len(a.regWrites) > 0 {
		a.regWrites = a.regWrites[1:]
	} else {
		a.addrs = a.addrs[1:]
	}

	a.waiting = true

	return true
}

var _ = Describe("Comp in a simulation", func() {
	const freq = 100 * timing.MHz

	var (
		engine *timing.SerialEngine
		dev    *device.Device
		comp   *Comp
		agent  *readAgent
		steps  *tracing.LatencyTracer
	)

	build := func(b Builder) {
		engine = timing.NewSerialEngine()

		dev = device.MakeBuilder().WithLatency(16).Build("Flash")
		content := make([]byte, 1024)
		for i := range content {
			content[i] = byte(i*7 + 3)
		}
		Expect(dev.Storage().Write(0, content)).To(Succeed())

		comp = b.WithEngine(engine).
			WithFreq(freq).
			WithDevices(dev).
			Build("Ctrl")

		agent = newReadAgent(engine, freq)
		agent.memDst = comp.GetPortByName("Top").AsRemote()
		agent.regDst = comp.GetPortByName("Control").AsRemote()

		conn := modeling.MakeDirectConnectionBuilder().
			WithEngine(engine).
			WithFreq(freq).
			Build("Conn")
		conn.PlugIn(agent.port)
		conn.PlugIn(comp.GetPortByName("Top"))
		conn.PlugIn(comp.GetPortByName("Control"))

		steps = tracing.NewLatencyTracer(engine, func(t tracing.Task) bool {
			return t.Kind == tracing.KindReqIn && t.What == "*mem.ReadReq"
		})
		tracing.CollectTrace(comp, steps)
	}

	run := func() {
		agent.TickLater()
		Expect(engine.Run()).To(Succeed())
	}

	expectData := func() {
		Expect(agent.dataRsps).To(HaveLen(len(agent.rspTimes) - len(agent.regRsps)))
		for _, rsp := range agent.dataRsps {
			Expect(rsp.Data).To(HaveLen(4))
		}
	}

	It("should serve sequential words with one fresh start", func() {
		build(MakeBuilder())
		agent.addrs = []uint64{0, 4, 8}

		run()

		Expect(agent.dataRsps).To(HaveLen(3))
		for i, rsp := range agent.dataRsps {
			want, err := dev.Storage().Read(uint64(4*i), 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.Data).To(Equal(want))
		}

		gap := agent.rspTimes[2] - agent.rspTimes[1]
		Expect(float64(gap)).To(BeNumerically("~", 6*freq.Period(), 1e-12))

		stats := comp.Stats()
		Expect(stats.FreshStarts).To(Equal(uint64(1)))
		Expect(stats.Continuations).To(Equal(uint64(2)))
		Expect(stats.WindowsClosed).To(Equal(uint64(1)))
		Expect(comp.Controller().State()).To(Equal(StateIdle))

		Expect(steps.StepHits("fast_path")).To(Equal(uint64(2)))
		Expect(steps.StepHits("full_restart")).To(Equal(uint64(1)))
		Expect(steps.Overall().Count).To(Equal(uint64(3)))
		Expect(steps.Step("fast_path").Max).
			To(BeNumerically("<", steps.Step("full_restart").Min))
	})

	It("should restart across a page boundary", func() {
		build(MakeBuilder())
		agent.addrs = []uint64{63 * 4, 64 * 4}

		run()

		expectData()
		Expect(agent.dataRsps).To(HaveLen(2))
		want, _ := dev.Storage().Read(256, 4)
		Expect(agent.dataRsps[1].Data).To(Equal(want))

		Expect(comp.Stats().FreshStarts).To(Equal(uint64(2)))
		Expect(steps.StepHits("fast_path")).To(BeZero())
		Expect(steps.Step("full_restart").Count).To(Equal(uint64(2)))
	})

	It("should configure the latency through the control port", func() {
		build(MakeBuilder())
		agent.regWrites = []uint32{7}
		agent.addrs = []uint64{40}

		run()

		Expect(agent.regRsps).To(HaveLen(1))
		Expect(agent.regRsps[0].Err).NotTo(HaveOccurred())
		Expect(agent.regRsps[0].Value).To(Equal(uint32(7)))
		Expect(dev.Latency()).To(Equal(uint8(7)))

		Expect(agent.dataRsps).To(HaveLen(1))
		want, _ := dev.Storage().Read(40, 4)
		Expect(agent.dataRsps[0].Data).To(Equal(want))
	})

	It("should report a read that no chip can serve", func() {
		build(MakeBuilder().WithStallLimit(50))
		agent.addrs = []uint64{WordsPerChip * 4}

		run()

		Expect(agent.dataRsps).To(BeEmpty())
		Expect(steps.StepHits("stalled")).To(Equal(uint64(1)))
		Expect(steps.InFlight()).To(Equal(1))
		Expect(comp.Controller().State()).To(Equal(StateIdle))
	})
})
