package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("TickScheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		engine    *MockEventScheduler
		handler   *MockHandler
		scheduler *TickScheduler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEventScheduler(mockCtrl)
		handler = NewMockHandler(mockCtrl)
		scheduler = NewTickScheduler(handler, engine, 1)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule a tick in the next cycle", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e Event) {
			Expect(e).To(BeAssignableToTypeOf(TickEvent{}))
			Expect(e.Time()).To(Equal(VTimeInSec(11)))
			Expect(e.Handler()).To(BeIdenticalTo(handler))
			Expect(e.Phase()).To(Equal(PhaseSample))
		})

		scheduler.TickLater()
	})

	It("should not schedule the same tick twice", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10)).Times(2)
		engine.EXPECT().Schedule(gomock.Any()).Times(1)

		scheduler.TickLater()
		scheduler.TickLater()
	})

	It("should schedule a tick now", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e Event) {
			Expect(e.Time()).To(Equal(VTimeInSec(10)))
		})

		scheduler.TickNow()
	})

	It("should schedule the settle phase half a cycle after the tick", func() {
		engine.EXPECT().Now().Return(VTimeInSec(10)).Times(2)
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e Event) {
			Expect(e).To(BeAssignableToTypeOf(SettleEvent{}))
			Expect(e.Time()).To(Equal(VTimeInSec(10.5)))
			Expect(e.Phase()).To(Equal(PhaseSettle))
		})

		scheduler.SettleLater()
		scheduler.SettleLater()
	})

	It("should schedule delivery ticks", func() {
		scheduler = NewDeliveryTickScheduler(handler, engine, 1)

		engine.EXPECT().Now().Return(VTimeInSec(10))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e Event) {
			Expect(e.Phase()).To(Equal(PhaseDeliver))
		})

		scheduler.TickLater()
	})
})
