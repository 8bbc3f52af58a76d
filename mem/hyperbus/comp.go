package hyperbus

import (
	"log"
	"reflect"

	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/modeling"
	"github.com/sarchlab/hyperbus/tracing"
)

// Comp is a HyperBus controller that serves mem.ReadReq messages arriving at
// its Top port, one at a time, and exposes its control registers through the
// Control port.
type Comp struct {
	*modeling.TickingComponent

	topPort  modeling.Port
	ctrlPort modeling.Port

	ctrl *Controller

	current       *mem.ReadReq
	waitCycles    int
	stallLimit    int
	stallReported bool

	rspQueue []*mem.DataReadyRsp
}

// Controller returns the cycle-level model behind the component.
func (c *Comp) Controller() *Controller {
	return c.ctrl
}

// Settle runs the falling-edge half of the cycle that Tick sampled.
func (c *Comp) Settle() {
	c.Lock()
	defer c.Unlock()

	c.ctrl.Settle()
}

// Tick updates the state of the controller by one cycle.
func (c *Comp) Tick() bool {
	c.Lock()
	defer c.Unlock()

	madeProgress := false

	madeProgress = c.handleCtrlMsg() || madeProgress
	madeProgress = c.cycle() || madeProgress
	madeProgress = c.sendRsp() || madeProgress

	return madeProgress
}

func (c *Comp) handleCtrlMsg() bool {
	msg := c.ctrlPort.PeekIncoming()
	if msg == nil || !c.ctrlPort.CanSend() {
		return false
	}

	var rsp *mem.RegRsp

	switch req := msg.(type) {
	case *mem.RegReadReq:
		value, err := c.ctrl.ReadRegister(req.Offset)
		rsp = mem.MakeRegRsp(req, req.Offset, value, err)
	case *mem.RegWriteReq:
		err := c.ctrl.WriteRegister(req.Offset, req.Value)
		value, _ := c.ctrl.ReadRegister(req.Offset)
		rsp = mem.MakeRegRsp(req, req.Offset, value, err)
	default:
		log.Panicf("cannot handle control message of type %s",
			reflect.TypeOf(msg))
	}

	c.ctrlPort.RetrieveIncoming()
	tracing.TraceReqReceive(msg, c)

	if err := c.ctrlPort.Send(rsp); err != nil {
		log.Panicf("%s: control port refused a respond it could send", c.Name())
	}

	tracing.TraceReqComplete(msg, c)

	return true
}

func (c *Comp) cycle() bool {
	c.takeReq()

	ev := c.ctrl.Sample()
	c.SettleLater()

	c.traceEvent(ev)
	c.detectStall()

	if c.ctrl.Ack() {
		c.finishReq()
	}

	return c.busy()
}

func (c *Comp) takeReq() {
	if c.current != nil || len(c.rspQueue) > 0 {
		return
	}

	msg := c.topPort.RetrieveIncoming()
	if msg == nil {
		return
	}

	req, ok := msg.(*mem.ReadReq)
	if !ok {
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(msg))
	}

	if err := req.ValidateWord(); err != nil {
		log.Panicf("%s: %v", c.Name(), err)
	}

	tracing.TraceReqReceive(req, c)

	c.current = req
	c.waitCycles = 0
	c.stallReported = false
	c.ctrl.Bus = Bus{
		Cyc: true,
		Stb: true,
		Adr: req.WordAddress(),
		Sel: 0xf,
	}
}

func (c *Comp) traceEvent(ev Event) {
	if c.current == nil {
		return
	}

	switch ev {
	case EventContinuation:
		tracing.TraceReqStep(c.current, c, "fast_path")
	case EventFreshStart, EventRestart:
		tracing.TraceReqStep(c.current, c, "full_restart")
	}
}

func (c *Comp) detectStall() {
	if c.current == nil {
		return
	}

	c.waitCycles++

	if c.stallLimit <= 0 || c.stallReported || c.waitCycles <= c.stallLimit {
		return
	}

	c.stallReported = true

	log.Printf("%s: read of 0x%x has been waiting for %d cycles",
		c.Name(), c.current.Address, c.waitCycles)
	tracing.TraceReqStep(c.current, c, "stalled")
}

func (c *Comp) finishReq() {
	if c.current == nil {
		log.Panicf("%s: acknowledge without a request", c.Name())
	}

	c.rspQueue = append(c.rspQueue, c.current.Reply(c.ctrl.Data()))

	tracing.TraceReqComplete(c.current, c)

	c.current = nil
	c.ctrl.Bus = Bus{}
}

func (c *Comp) sendRsp() bool {
	if len(c.rspQueue) == 0 {
		return false
	}

	if err := c.topPort.Send(c.rspQueue[0]); err != nil {
		return false
	}

	c.rspQueue = c.rspQueue[1:]

	return true
}

// busy tells if the controller needs the next cycle. A request that no chip
// can take is only watched until the stall is reported.
func (c *Comp) busy() bool {
	if c.ctrl.State() != StateIdle || len(c.rspQueue) > 0 {
		return true
	}

	if c.current == nil {
		return c.topPort.PeekIncoming() != nil
	}

	if c.ctrl.CanAccept(c.ctrl.Bus.Adr) {
		return true
	}

	return c.stallLimit > 0 && !c.stallReported
}

// ReadRegister reads a control register from outside the simulation.
func (c *Comp) ReadRegister(offset uint64) (uint32, error) {
	c.Lock()
	defer c.Unlock()

	return c.ctrl.ReadRegister(offset)
}

// WriteRegister writes a control register from outside the simulation.
func (c *Comp) WriteRegister(offset uint64, value uint32) error {
	c.Lock()
	defer c.Unlock()

	return c.ctrl.WriteRegister(offset, value)
}

// Stats returns the counters of the controller.
func (c *Comp) Stats() Stats {
	c.Lock()
	defer c.Unlock()

	return c.ctrl.Stats()
}
