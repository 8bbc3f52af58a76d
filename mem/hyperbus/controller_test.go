package hyperbus

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/mem/hyperbus/device"
)

// fillWords writes a distinct pattern into every word of the first n words.
func fillWords(dev *device.Device, n int) {
	buf := make([]byte, 4*n)
	for w := 0; w < n; w++ {
		binary.LittleEndian.PutUint32(buf[4*w:], 0xc0de0000|uint32(w)*0x11)
	}

	Expect(dev.Storage().Write(0, buf)).To(Succeed())
}

func expectedWord(dev *device.Device, wordAddr uint32) uint32 {
	b, err := dev.Storage().Read(uint64(wordAddr%WordsPerChip)*4, 4)
	Expect(err).NotTo(HaveOccurred())

	return binary.BigEndian.Uint32(b)
}

type readResult struct {
	latency int
	data    uint32
}

// read presents a request and steps until it is acknowledged. The latency is
// counted from the cycle that accepted the request to the acknowledge.
func read(c *Controller, wordAddr uint32) readResult {
	c.Bus = Bus{Cyc: true, Stb: true, Adr: wordAddr, Sel: 0xf}

	accepted := -1
	for n := 0; n < 1000; n++ {
		switch c.Step() {
		case EventFreshStart, EventContinuation:
			accepted = n
		}

		if c.Ack() {
			data := c.Data()
			c.Bus = Bus{}

			return readResult{latency: n - accepted, data: data}
		}
	}

	Fail("read was never acknowledged")

	return readResult{}
}

// idleUntilRelease steps without a request and returns after how many cycles
// the chip selects are all deasserted.
func idleUntilRelease(c *Controller) int {
	for n := 1; n < 100; n++ {
		c.Step()

		if c.Pins().SelectedChip(c.Chips()) < 0 {
			return n
		}
	}

	Fail("chip select never released")

	return 0
}

var _ = Describe("Controller", func() {
	var (
		dev  *device.Device
		ctrl *Controller
	)

	BeforeEach(func() {
		dev = device.MakeBuilder().WithLatency(16).Build("Flash")
		fillWords(dev, 256)

		var err error
		ctrl, err = NewController(HyperFlash, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		ctrl.Attach(dev)
	})

	It("should start idle with the clock stopped", func() {
		pins := ctrl.Pins()

		Expect(ctrl.State()).To(Equal(StateIdle))
		Expect(ctrl.Latency()).To(Equal(uint8(16)))
		Expect(pins.CSn).To(Equal(uint32(1)))
		Expect(pins.CK).To(BeFalse())
		Expect(pins.CKn).To(BeTrue())
		Expect(pins.ResetN).To(BeTrue())
		Expect(pins.RWDSOE).To(BeFalse())
	})

	It("should serve a sequential burst with continuations", func() {
		first := read(ctrl, 0)
		Expect(first.latency).To(Equal(2*16 + 8))
		Expect(first.data).To(Equal(expectedWord(dev, 0)))

		for w := uint32(1); w < 3; w++ {
			Expect(ctrl.Pins().Selected(0)).To(BeTrue())

			r := read(ctrl, w)

			Expect(r.latency).To(Equal(4))
			Expect(r.data).To(Equal(expectedWord(dev, w)))
		}

		Expect(idleUntilRelease(ctrl)).To(Equal(9))

		stats := ctrl.Stats()
		Expect(stats.FreshStarts).To(Equal(uint64(1)))
		Expect(stats.Continuations).To(Equal(uint64(2)))
		Expect(stats.Acks).To(Equal(uint64(3)))
		Expect(stats.WindowsClosed).To(Equal(uint64(1)))
		Expect(dev.Bursts()).To(Equal(uint64(1)))
	})

	It("should hold the chip select through the whole burst", func() {
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: 0}
		ctrl.Step()

		for _, w := range []uint32{0, 1, 2} {
			ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: w}
			for !ctrl.Ack() {
				ctrl.Step()
				Expect(ctrl.Pins().Selected(0)).To(BeTrue())
			}
			ctrl.Bus = Bus{}
			ctrl.Step()
			Expect(ctrl.Pins().Selected(0)).To(BeTrue())
		}
	})

	It("should raise the acknowledge for exactly one cycle per word", func() {
		acks := 0
		for _, w := range []uint32{10, 11, 12, 13} {
			ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: w}
			for !ctrl.Ack() {
				ctrl.Step()
			}

			acks++
			ctrl.Bus = Bus{}
			ctrl.Step()
			Expect(ctrl.Ack()).To(BeFalse())
		}

		Expect(acks).To(Equal(4))
		Expect(ctrl.Stats().Acks).To(Equal(uint64(4)))
	})

	It("should restart on a page crossing", func() {
		Expect(read(ctrl, 63).latency).To(Equal(40))

		r := read(ctrl, 64)

		Expect(r.latency).To(Equal(40))
		Expect(r.data).To(Equal(expectedWord(dev, 64)))
		Expect(ctrl.Stats().FreshStarts).To(Equal(uint64(2)))
		Expect(ctrl.Stats().Restarts).To(Equal(uint64(1)))
		Expect(dev.Bursts()).To(Equal(uint64(2)))
	})

	DescribeTable("non sequential reads",
		func(first, second uint32) {
			read(ctrl, first)
			r := read(ctrl, second)

			Expect(r.latency).To(Equal(40))
			Expect(r.data).To(Equal(expectedWord(dev, second)))
			Expect(ctrl.Stats().Continuations).To(BeZero())
		},
		Entry("backward", uint32(5), uint32(4)),
		Entry("jump", uint32(5), uint32(7)),
		Entry("same word", uint32(5), uint32(5)),
		Entry("other page", uint32(5), uint32(70)),
	)

	It("should continue within the window after idle cycles", func() {
		read(ctrl, 20)
		for i := 0; i < 6; i++ {
			ctrl.Step()
		}

		r := read(ctrl, 21)

		Expect(r.latency).To(Equal(4))
		Expect(r.data).To(Equal(expectedWord(dev, 21)))
	})

	It("should start over once the window is closed", func() {
		read(ctrl, 20)
		Expect(idleUntilRelease(ctrl)).To(Equal(9))

		r := read(ctrl, 21)

		Expect(r.latency).To(Equal(40))
		Expect(r.data).To(Equal(expectedWord(dev, 21)))
	})

	It("should stop the clock while no chip is selected", func() {
		read(ctrl, 0)
		idleUntilRelease(ctrl)

		for i := 0; i < 5; i++ {
			ctrl.Step()
			Expect(ctrl.Pins().CK).To(BeFalse())
		}
	})

	It("should drive DQ only for the command", func() {
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: 0}

		driven := 0
		for !ctrl.Ack() {
			ctrl.Step()
			if ctrl.Pins().DQOE {
				driven++
				Expect(ctrl.State()).To(Equal(StateWaitCA))
			}
		}

		Expect(driven).To(Equal(6))
	})

	It("should apply a new latency to the next fresh transaction", func() {
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: 0}
		ctrl.Step()
		Expect(ctrl.WriteRegister(RegLatency, 12)).To(Succeed())
		for !ctrl.Ack() {
			ctrl.Step()
		}
		Expect(ctrl.Data()).To(Equal(expectedWord(dev, 0)))
		ctrl.Bus = Bus{}

		Expect(read(ctrl, 1).latency).To(Equal(4))
		idleUntilRelease(ctrl)

		r := read(ctrl, 100)
		Expect(r.latency).To(Equal(2*12 + 8))
		Expect(r.data).To(Equal(expectedWord(dev, 100)))
		Expect(dev.Latency()).To(Equal(uint8(12)))
	})

	It("should keep both sides on the old latency when a write lands mid-cycle", func() {
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: 5}
		Expect(ctrl.Sample()).To(Equal(EventFreshStart))
		Expect(ctrl.WriteRegister(RegLatency, 12)).To(Succeed())
		ctrl.Settle()

		cycles := 0
		for !ctrl.Ack() {
			ctrl.Step()
			cycles++
		}

		Expect(cycles).To(Equal(2*16 + 8))
		Expect(ctrl.Data()).To(Equal(expectedWord(dev, 5)))
		Expect(dev.Latency()).To(Equal(uint8(16)))
		ctrl.Bus = Bus{}
		idleUntilRelease(ctrl)

		r := read(ctrl, 200)
		Expect(r.latency).To(Equal(2*12 + 8))
		Expect(r.data).To(Equal(expectedWord(dev, 200)))
		Expect(dev.Latency()).To(Equal(uint8(12)))
	})

	It("should serve the shortest latency", func() {
		Expect(ctrl.WriteRegister(RegLatency, 1)).To(Succeed())

		r := read(ctrl, 9)

		Expect(r.latency).To(Equal(6 + 4))
		Expect(r.data).To(Equal(expectedWord(dev, 9)))
	})

	It("should reject register accesses it does not decode", func() {
		_, err := ctrl.ReadRegister(4)
		Expect(errors.Cause(err)).To(Equal(ErrNoSuchRegister))

		err = ctrl.WriteRegister(8, 3)
		Expect(errors.Cause(err)).To(Equal(ErrNoSuchRegister))

		err = ctrl.WriteRegister(RegLatency, 0)
		Expect(errors.Cause(err)).To(Equal(ErrLatencyOutOfRange))

		v, err := ctrl.ReadRegister(RegLatency)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint32(16)))
	})

	It("should never serve an address beyond the chip selects", func() {
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: WordsPerChip}

		for i := 0; i < 200; i++ {
			Expect(ctrl.Step()).To(Equal(EventNone))
		}

		Expect(ctrl.State()).To(Equal(StateIdle))
		Expect(ctrl.Ack()).To(BeFalse())
	})

	It("should reset", func() {
		Expect(ctrl.WriteRegister(RegLatency, 3)).To(Succeed())
		ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: 0}
		ctrl.Step()

		ctrl.Reset()

		Expect(ctrl.State()).To(Equal(StateIdle))
		Expect(ctrl.Latency()).To(Equal(uint8(16)))
		Expect(dev.Latency()).To(Equal(uint8(16)))
		Expect(ctrl.Pins().ResetN).To(BeTrue())
		Expect(ctrl.Pins().CSn).To(Equal(uint32(1)))
	})
})

var _ = Describe("Controller with several chips", func() {
	var (
		devs []*device.Device
		ctrl *Controller
	)

	BeforeEach(func() {
		var err error
		ctrl, err = NewController(HyperRAM, 2, 0)
		Expect(err).NotTo(HaveOccurred())

		devs = nil
		for i := 0; i < 2; i++ {
			d := device.MakeBuilder().
				WithLatency(12).
				WithChipSelect(i).
				Build([]string{"Ram[0]", "Ram[1]"}[i])
			fillWords(d, 128)
			ctrl.Attach(d)
			devs = append(devs, d)
		}

		Expect(devs[1].Storage().Write(12, []byte{1, 2, 3, 4})).To(Succeed())
	})

	It("should decode the chip from the high address bits", func() {
		Expect(ctrl.Size()).To(Equal(uint64(16 << 20)))

		r := read(ctrl, WordsPerChip+3)

		Expect(r.latency).To(Equal(2*12 + 8))
		Expect(r.data).To(Equal(uint32(0x01020304)))
		Expect(devs[0].Bursts()).To(BeZero())
		Expect(devs[1].Bursts()).To(Equal(uint64(1)))
	})

	It("should select one chip at a time", func() {
		for _, w := range []uint32{0, WordsPerChip, 1, WordsPerChip + 1} {
			ctrl.Bus = Bus{Cyc: true, Stb: true, Adr: w}
			for !ctrl.Ack() {
				ctrl.Step()
				Expect(ctrl.Pins().SelectedChip(2)).To(BeNumerically("<", 2))
			}

			Expect(ctrl.Data()).To(Equal(expectedWord(devs[w/WordsPerChip], w)))
			ctrl.Bus = Bus{}
			ctrl.Step()
		}

		Expect(ctrl.Stats().FreshStarts).To(Equal(uint64(4)))
	})
})

var _ = Describe("NewController", func() {
	It("should refuse a bad chip count", func() {
		_, err := NewController(HyperFlash, 0, 0)
		Expect(err).To(HaveOccurred())

		_, err = NewController(HyperFlash, 33, 0)
		Expect(err).To(HaveOccurred())
	})

	It("should refuse a latency that does not fit", func() {
		_, err := NewController(HyperRAM, 1, 40)
		Expect(errors.Cause(err)).To(Equal(ErrLatencyOutOfRange))
	})

	It("should use the default latency of the variant", func() {
		c, err := NewController(HyperRAMLowLatency, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Latency()).To(Equal(uint8(7)))
		Expect(c.Variant()).To(Equal(HyperRAMLowLatency))
	})
})

var _ = Describe("Variant", func() {
	It("should parse names", func() {
		v, err := ParseVariant("HyperRAM")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(HyperRAM))
		Expect(v.String()).To(Equal("hyperram"))

		_, err = ParseVariant("sdram")
		Expect(err).To(HaveOccurred())
	})

	It("should reserve 16 MiB per chip select", func() {
		Expect(HyperFlash.MapSize()).To(Equal(uint64(16 << 20)))
	})
})

var _ = Describe("DescribeRead", func() {
	It("should describe a read in the first device", func() {
		info := DescribeRead(0x100)

		Expect(info.WordAddr).To(Equal(uint32(0x40)))
		Expect(info.Chip).To(Equal(0))
		Expect(info.Packet).To(Equal("a00000100000"))
		Expect(info.Bytes).To(Equal([6]byte{0xa0, 0, 0, 0x10, 0, 0}))
		Expect(info.DeviceByteAddr).To(Equal(uint64(0x100)))
		Expect(info.IsLinearBurst).To(BeTrue())
		Expect(info.IsRegisterSpace).To(BeFalse())
	})

	It("should strip the chip select bits", func() {
		info := DescribeRead(WordsPerChip*4 + 4)

		Expect(info.Chip).To(Equal(1))
		Expect(info.UpperAddress).To(Equal(uint32(0)))
		Expect(info.LowerAddress).To(Equal(uint8(1)))
		Expect(info.HalfWordSelect).To(Equal(uint8(0)))
		Expect(info.DeviceByteAddr).To(Equal(uint64(4)))
	})
})
