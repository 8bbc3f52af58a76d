package modeling

import (
	"log"
	"sync"

	"github.com/sarchlab/hyperbus/sim/hooking"
	"github.com/sarchlab/hyperbus/sim/naming"
)

// Hook positions of a port. The item of the hook context is the message.
var (
	// HookPosPortMsgSend is when the component puts a message into the
	// outgoing buffer.
	HookPosPortMsgSend = &hooking.HookPos{Name: "send"}

	// HookPosPortMsgRecvd is when the connection puts a message into the
	// incoming buffer.
	HookPosPortMsgRecvd = &hooking.HookPos{Name: "recv"}

	// HookPosPortMsgRetrieveIncoming is when the component takes a message
	// from the incoming buffer.
	HookPosPortMsgRetrieveIncoming = &hooking.HookPos{Name: "take"}

	// HookPosPortMsgRetrieveOutgoing is when the connection takes a message
	// from the outgoing buffer.
	HookPosPortMsgRetrieveOutgoing = &hooking.HookPos{Name: "forward"}
)

// A Port sits between a component and a connection. The component sends into
// the outgoing buffer and retrieves from the incoming one. The connection
// does the opposite.
type Port interface {
	naming.Named
	hooking.Hookable

	AsRemote() RemotePort

	SetConnection(conn Connection)
	Component() Component

	// Called by the connection.
	Deliver(msg Msg) *SendError
	NotifyAvailable()
	RetrieveOutgoing() Msg
	PeekOutgoing() Msg

	// Called by the component.
	CanSend() bool
	Send(msg Msg) *SendError
	RetrieveIncoming() Msg
	PeekIncoming() Msg
}

type defaultPort struct {
	hooking.HookableBase

	name string
	comp Component
	conn Connection

	mu  sync.Mutex
	in  Buffer
	out Buffer
}

// NewPort creates a port of comp with the given buffer capacities.
func NewPort(comp Component, inCap, outCap int, name string) Port {
	naming.NameMustBeValid(name)

	return &defaultPort{
		name: name,
		comp: comp,
		in:   NewBuffer(name+".In", inCap),
		out:  NewBuffer(name+".Out", outCap),
	}
}

func (p *defaultPort) Name() string {
	return p.name
}

func (p *defaultPort) AsRemote() RemotePort {
	return RemotePort(p.name)
}

func (p *defaultPort) Component() Component {
	return p.comp
}

// Buffers returns the incoming and the outgoing buffer.
func (p *defaultPort) Buffers() []Buffer {
	return []Buffer{p.in, p.out}
}

func (p *defaultPort) SetConnection(conn Connection) {
	if p.conn != nil {
		log.Panicf("port %s is already plugged into %s, cannot plug into %s",
			p.name, p.conn.Name(), conn.Name())
	}

	p.conn = conn
}

func (p *defaultPort) CanSend() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.out.CanPush()
}

func (p *defaultPort) Send(msg Msg) *SendError {
	p.mustBeSource(msg)

	wasEmpty, ok := p.put(p.out, msg)
	if !ok {
		return NewSendError()
	}

	p.invoke(HookPosPortMsgSend, msg)

	if wasEmpty {
		p.conn.NotifySend()
	}

	return nil
}

func (p *defaultPort) Deliver(msg Msg) *SendError {
	wasEmpty, ok := p.put(p.in, msg)
	if !ok {
		return NewSendError()
	}

	p.invoke(HookPosPortMsgRecvd, msg)

	if wasEmpty && p.comp != nil {
		p.comp.NotifyRecv(p)
	}

	return nil
}

func (p *defaultPort) RetrieveIncoming() Msg {
	msg, wasFull := p.take(p.in)
	if msg == nil {
		return nil
	}

	if wasFull && p.conn != nil {
		p.conn.NotifyAvailable(p)
	}

	p.invoke(HookPosPortMsgRetrieveIncoming, msg)

	return msg
}

func (p *defaultPort) RetrieveOutgoing() Msg {
	msg, wasFull := p.take(p.out)
	if msg == nil {
		return nil
	}

	if wasFull && p.comp != nil {
		p.comp.NotifyPortFree(p)
	}

	p.invoke(HookPosPortMsgRetrieveOutgoing, msg)

	return msg
}

func (p *defaultPort) PeekIncoming() Msg {
	return p.peek(p.in)
}

func (p *defaultPort) PeekOutgoing() Msg {
	return p.peek(p.out)
}

// NotifyAvailable tells the component that the connection can take messages
// again.
func (p *defaultPort) NotifyAvailable() {
	if p.comp != nil {
		p.comp.NotifyPortFree(p)
	}
}

// put appends msg to buf. It tells if buf was empty before.
func (p *defaultPort) put(buf Buffer, msg Msg) (wasEmpty, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !buf.CanPush() {
		return false, false
	}

	wasEmpty = buf.Size() == 0
	buf.Push(msg)

	return wasEmpty, true
}

// take removes the head of buf. It tells if buf was full before.
func (p *defaultPort) take(buf Buffer) (msg Msg, wasFull bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasFull = !buf.CanPush()

	item := buf.Pop()
	if item == nil {
		return nil, false
	}

	return item.(Msg), wasFull
}

func (p *defaultPort) peek(buf Buffer) Msg {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := buf.Peek()
	if item == nil {
		return nil
	}

	return item.(Msg)
}

func (p *defaultPort) invoke(pos *hooking.HookPos, msg Msg) {
	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(hooking.HookCtx{Domain: p, Pos: pos, Item: msg})
}

func (p *defaultPort) mustBeSource(msg Msg) {
	meta := msg.Meta()

	switch {
	case meta.Src != p.AsRemote():
		log.Panicf("port %s cannot send a message from %s", p.name, meta.Src)
	case meta.Dst == "":
		log.Panicf("port %s: message %s has no destination", p.name, meta.ID)
	case meta.Dst == meta.Src:
		log.Panicf("port %s: message %s is sent to itself", p.name, meta.ID)
	}
}
