// Package memaccessagent provides a component that drives reads into a memory
// controller and checks the data that comes back.
package memaccessagent

import (
	"bytes"
	"log"
	"math/rand"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/sim/timing"
	"github.com/sarchlab/hyperbus/tracing"
)

var dumpLog = false

// Pattern decides the order of the addresses that the agent reads.
type Pattern int

// Supported patterns.
const (
	// Sequential reads consecutive words from the start address.
	Sequential Pattern = iota

	// PageCrossing reads the last word of a 64-word page and then the first
	// word of the next page.
	PageCrossing

	// Random reads random words below the max address.
	Random

	// List reads the given addresses in order, repeating the list.
	List
)

var patternNames = map[string]Pattern{
	"sequential":    Sequential,
	"page-crossing": PageCrossing,
	"random":        Random,
	"list":          List,
}

// ParsePattern finds a pattern by name.
func ParsePattern(name string) (Pattern, error) {
	p, ok := patternNames[strings.ToLower(name)]
	if !ok {
		return 0, errors.Errorf("unknown access pattern %q", name)
	}

	return p, nil
}

func (p Pattern) String() string {
	for name, v := range patternNames {
		if v == p {
			return name
		}
	}

	return "unknown"
}

const wordsPerPage = 64

// A MemAccessAgent is a Component that tests memory controllers by reading
// words one at a time and comparing the data with a reference storage.
type MemAccessAgent struct {
	*modeling.TickingComponent

	LowModule  modeling.Port
	Reference  *mem.Storage
	Pattern    Pattern
	StartAddr  uint64
	MaxAddress uint64
	Addresses  []uint64

	ReadLeft       int
	PendingReadReq map[string]*mem.ReadReq

	Completed  int
	Mismatches int

	memPort  modeling.Port
	rng      *rand.Rand
	issued   int
	sendTime map[string]timing.VTimeInSec
	latency  timing.VTimeInSec
}

// Tick updates the states of the agent and issues new read requests.
func (a *MemAccessAgent) Tick() bool {
	madeProgress := false

	madeProgress = a.processMsgRsp() || madeProgress

	if a.ReadLeft == 0 || len(a.PendingReadReq) > 0 {
		return madeProgress
	}

	madeProgress = a.doRead() || madeProgress

	return madeProgress
}

func (a *MemAccessAgent) processMsgRsp() bool {
	msg := a.memPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(*mem.DataReadyRsp)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	req, found := a.PendingReadReq[rsp.RespondTo]
	if !found {
		log.Panicf("%s: respond to unknown request %s", a.Name(), rsp.RespondTo)
	}

	delete(a.PendingReadReq, rsp.RespondTo)
	tracing.TraceReqFinalize(req, a)

	a.latency += a.Now() - a.sendTime[req.ID]
	delete(a.sendTime, req.ID)
	a.Completed++

	if dumpLog {
		log.Printf("%.10f, agent, read complete, 0x%X, %v\n",
			a.Now(), req.Address, rsp.Data)
	}

	a.checkReadResult(req, rsp)

	return true
}

func (a *MemAccessAgent) checkReadResult(req *mem.ReadReq, rsp *mem.DataReadyRsp) {
	if a.Reference == nil {
		return
	}

	want, err := a.Reference.Read(req.Address, req.AccessByteSize)
	if err != nil {
		log.Panicf("%s: %v", a.Name(), err)
	}

	if !bytes.Equal(want, rsp.Data) {
		a.Mismatches++
		log.Printf("%s: mismatch at 0x%X, want %v, got %v",
			a.Name(), req.Address, want, rsp.Data)
	}
}

func (a *MemAccessAgent) doRead() bool {
	address := a.nextAddress()

	readReq := mem.ReadReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.LowModule.AsRemote()).
		WithAddress(address).
		WithByteSize(4).
		Build()

	err := a.memPort.Send(readReq)
	if err != nil {
		return false
	}

	tracing.TraceReqInitiate(readReq, a, "")

	a.PendingReadReq[readReq.ID] = readReq
	a.sendTime[readReq.ID] = a.Now()
	a.ReadLeft--
	a.issued++

	if dumpLog {
		log.Printf("%.10f, agent, read, 0x%X\n", a.Now(), address)
	}

	return true
}

func (a *MemAccessAgent) nextAddress() uint64 {
	i := uint64(a.issued)
	words := a.MaxAddress / 4

	var word uint64

	switch a.Pattern {
	case Sequential:
		word = a.StartAddr/4 + i
	case PageCrossing:
		word = a.StartAddr/4 + (i/2)*wordsPerPage + wordsPerPage - 1 + i%2
	case Random:
		word = a.rng.Uint64() % words
	case List:
		return a.Addresses[a.issued%len(a.Addresses)]
	default:
		log.Panicf("unknown pattern %d", a.Pattern)
	}

	return word % words * 4
}

// AverageLatency returns the average time between sending a read and
// receiving its data.
func (a *MemAccessAgent) AverageLatency() timing.VTimeInSec {
	if a.Completed == 0 {
		return 0
	}

	return a.latency / timing.VTimeInSec(a.Completed)
}

// Done tells if all the reads have been sent and answered.
func (a *MemAccessAgent) Done() bool {
	return a.ReadLeft == 0 && len(a.PendingReadReq) == 0
}

// NewMemAccessAgent creates a new MemAccessAgent.
func NewMemAccessAgent(engine timing.EventScheduler) *MemAccessAgent {
	agent := new(MemAccessAgent)
	agent.TickingComponent = modeling.NewTickingComponent(
		"Agent", engine, 1*timing.GHz, agent)

	agent.memPort = modeling.NewPort(agent, 1, 1, "Agent.MemPort")
	agent.AddPort("Mem", agent.memPort)

	agent.ReadLeft = 10000
	agent.MaxAddress = 1 << 20
	agent.PendingReadReq = make(map[string]*mem.ReadReq)
	agent.sendTime = make(map[string]timing.VTimeInSec)
	agent.rng = rand.New(rand.NewSource(1))

	return agent
}
