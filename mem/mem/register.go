package mem

import "github.com/sarchlab/hyperbus/sim/modeling"

// RegReadReq asks a component to report the value of one of its control
// registers.
type RegReadReq struct {
	modeling.MsgMeta

	Offset uint64
}

// Meta returns the meta data of the message.
func (r *RegReadReq) Meta() *modeling.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *RegReadReq) Clone() modeling.Msg {
	c := *r
	c.MsgMeta = renewed(r.MsgMeta)

	return &c
}

// RegWriteReq asks a component to update one of its control registers.
type RegWriteReq struct {
	modeling.MsgMeta

	Offset uint64
	Value  uint32
}

// Meta returns the meta data of the message.
func (r *RegWriteReq) Meta() *modeling.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *RegWriteReq) Clone() modeling.Msg {
	c := *r
	c.MsgMeta = renewed(r.MsgMeta)

	return &c
}

// RegRsp replies to a RegReadReq or a RegWriteReq. Value holds the register
// content after the access. Err is set if the register does not exist or the
// value is not accepted.
type RegRsp struct {
	modeling.MsgMeta

	RespondTo string
	Offset    uint64
	Value     uint32
	Err       error
}

// Meta returns the meta data of the message.
func (r *RegRsp) Meta() *modeling.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the respond with a new ID.
func (r *RegRsp) Clone() modeling.Msg {
	c := *r
	c.MsgMeta = renewed(r.MsgMeta)

	return &c
}

// GetRspTo returns the ID of the request that the respond is responding to.
func (r *RegRsp) GetRspTo() string {
	return r.RespondTo
}

// RegReqBuilder builds register access requests.
type RegReqBuilder struct {
	src, dst modeling.RemotePort
	offset   uint64
	value    uint32
}

// WithSrc sets the source of the request to build.
func (b RegReqBuilder) WithSrc(src modeling.RemotePort) RegReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b RegReqBuilder) WithDst(dst modeling.RemotePort) RegReqBuilder {
	b.dst = dst
	return b
}

// WithOffset sets the register offset.
func (b RegReqBuilder) WithOffset(offset uint64) RegReqBuilder {
	b.offset = offset
	return b
}

// WithValue sets the value to write. It is ignored by BuildRead.
func (b RegReqBuilder) WithValue(value uint32) RegReqBuilder {
	b.value = value
	return b
}

// BuildRead creates a RegReadReq.
func (b RegReqBuilder) BuildRead() *RegReadReq {
	return &RegReadReq{
		MsgMeta: newMeta(b.src, b.dst, "mem.RegReadReq", controlMsgBytes),
		Offset:  b.offset,
	}
}

// BuildWrite creates a RegWriteReq.
func (b RegReqBuilder) BuildWrite() *RegWriteReq {
	return &RegWriteReq{
		MsgMeta: newMeta(b.src, b.dst, "mem.RegWriteReq",
			controlMsgBytes+WordSize),
		Offset: b.offset,
		Value:  b.value,
	}
}

// MakeRegRsp creates the respond to a register access request.
func MakeRegRsp(req modeling.Msg, offset uint64, value uint32, err error) *RegRsp {
	meta := req.Meta()

	return &RegRsp{
		MsgMeta: newMeta(meta.Dst, meta.Src, "mem.RegRsp",
			controlMsgBytes+WordSize),
		RespondTo: meta.ID,
		Offset:    offset,
		Value:     value,
		Err:       err,
	}
}
