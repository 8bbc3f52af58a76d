// Command hyperbus streams random or patterned reads through a controller
// and one device of each requested variant, and fails if any word read back
// differs from what the device holds.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/hyperbus/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/hyperbus/mem/hyperbus"
	"github.com/sarchlab/hyperbus/mem/hyperbus/device"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
)

var (
	seedFlag      = flag.Int64("seed", 0, "Random seed, 0 for the current time")
	numAccessFlag = flag.Int("num-access", 100000, "Reads per variant")
	maxAddrFlag   = flag.Uint64("max-address", 1<<20, "Reads stay below this byte address")
	patternFlag   = flag.String("pattern", "random",
		"Access pattern: sequential, page-crossing or random")
	variantsFlag = flag.String("variants", "hyperflash,hyperram,hyperram-ll",
		"Comma separated device variants to test")
	verboseFlag = flag.Bool("verbose", false, "Print every event")
)

const freq = 100 * timing.MHz

type bench struct {
	engine *timing.SerialEngine
	agent  *memaccessagent.MemAccessAgent
	ctrl   *hyperbus.Comp
}

func newBench(
	variant hyperbus.Variant,
	pattern memaccessagent.Pattern,
	seed int64,
) bench {
	b := bench{engine: timing.NewSerialEngine()}
	if *verboseFlag {
		b.engine.AcceptHook(
			timing.NewEventLogger(log.New(os.Stdout, "", 0)).WithClock(freq))
	}

	dev := device.MakeBuilder().
		WithLatency(variant.DefaultLatency).
		WithCapacity(*maxAddrFlag).
		Build("Device")
	fillRandom(dev, seed)

	b.ctrl = hyperbus.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(freq).
		WithVariant(variant).
		WithDevices(dev).
		WithStallLimit(1000).
		Build("Ctrl")

	b.agent = memaccessagent.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(freq).
		WithMaxAddress(*maxAddrFlag).
		WithReadLeft(*numAccessFlag).
		WithPattern(pattern).
		WithSeed(seed).
		WithReference(dev.Storage()).
		WithLowModule(b.ctrl.GetPortByName("Top")).
		Build("Agent")

	conn := modeling.MakeDirectConnectionBuilder().
		WithEngine(b.engine).
		WithFreq(freq).
		Build("Conn")
	conn.PlugIn(b.agent.GetPortByName("Mem"))
	conn.PlugIn(b.ctrl.GetPortByName("Top"))

	return b
}

func fillRandom(dev *device.Device, seed int64) {
	data := make([]byte, dev.Storage().Capacity())
	rand.New(rand.NewSource(seed)).Read(data)

	if err := dev.Storage().Write(0, data); err != nil {
		log.Fatal(err)
	}
}

// run returns false if a read was lost or returned wrong data.
func (b bench) run(name string) bool {
	b.agent.TickLater()

	if err := b.engine.Run(); err != nil {
		log.Printf("%s: %v", name, err)
		return false
	}

	stats := b.ctrl.Stats()
	log.Printf("%s: %d reads, %d fresh starts, %d continuations, "+
		"avg latency %.2f ns",
		name, stats.Acks, stats.FreshStarts, stats.Continuations,
		float64(b.agent.AverageLatency())*1e9)

	switch {
	case !b.agent.Done():
		log.Printf("%s: %d reads not sent, %d not answered", name,
			b.agent.ReadLeft, len(b.agent.PendingReadReq))
	case b.agent.Mismatches > 0:
		log.Printf("%s: %d reads returned wrong data", name,
			b.agent.Mismatches)
	default:
		return true
	}

	return false
}

func main() {
	flag.Parse()

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Printf("seed %d", seed)

	pattern, err := memaccessagent.ParsePattern(*patternFlag)
	if err != nil {
		log.Fatal(err)
	}

	passed := true

	for _, name := range strings.Split(*variantsFlag, ",") {
		variant, err := hyperbus.ParseVariant(strings.TrimSpace(name))
		if err != nil {
			log.Fatal(err)
		}

		passed = newBench(variant, pattern, seed).run(variant.Name) && passed
	}

	if !passed {
		os.Exit(1)
	}
}
