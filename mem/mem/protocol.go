// Package mem defines the messages that memory components exchange and the
// storage that backs simulated memory devices.
package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sarchlab/hyperbus/sim/id"
	"github.com/sarchlab/hyperbus/sim/modeling"
)

// WordSize is the number of bytes in a word of the 32-bit system bus.
const WordSize = 4

// Bytes a message would occupy on an interconnect besides its payload.
const (
	readReqBytes    = 12
	dataRspBytes    = 4
	controlMsgBytes = 4
)

// ErrNotWordRead is returned for reads the 32-bit system bus cannot carry.
var ErrNotWordRead = errors.New("not an aligned 32-bit word read")

// newMeta gives a message a fresh ID.
func newMeta(
	src, dst modeling.RemotePort,
	class string,
	bytes int,
) modeling.MsgMeta {
	return modeling.MsgMeta{
		ID:           id.Generate(),
		Src:          src,
		Dst:          dst,
		TrafficClass: class,
		TrafficBytes: bytes,
	}
}

func renewed(m modeling.MsgMeta) modeling.MsgMeta {
	m.ID = id.Generate()
	return m
}

// A ReadReq asks a memory controller for AccessByteSize bytes at Address.
type ReadReq struct {
	modeling.MsgMeta

	Address        uint64
	AccessByteSize uint64
}

// Meta returns the message meta.
func (r *ReadReq) Meta() *modeling.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *ReadReq) Clone() modeling.Msg {
	c := *r
	c.MsgMeta = renewed(r.MsgMeta)

	return &c
}

// ValidateWord checks that the request reads one aligned word below 4 GiB.
func (r *ReadReq) ValidateWord() error {
	switch {
	case r.AccessByteSize != WordSize:
		return errors.Wrapf(ErrNotWordRead, "read of %d bytes",
			r.AccessByteSize)
	case r.Address%WordSize != 0:
		return errors.Wrapf(ErrNotWordRead, "read at 0x%x", r.Address)
	case r.Address>>32 != 0:
		return errors.Wrapf(ErrNotWordRead, "read at 0x%x beyond 4 GiB",
			r.Address)
	}

	return nil
}

// WordAddress returns the index of the word the request reads.
func (r *ReadReq) WordAddress() uint32 {
	return uint32(r.Address / WordSize)
}

// Reply creates the response that carries word back to the requester. The
// word is sent most significant byte first.
func (r *ReadReq) Reply(word uint32) *DataReadyRsp {
	data := make([]byte, WordSize)
	binary.BigEndian.PutUint32(data, word)

	return DataReadyRspBuilder{}.
		WithSrc(r.Dst).
		WithDst(r.Src).
		WithRspTo(r.ID).
		WithData(data).
		Build()
}

// ReadReqBuilder builds read requests.
type ReadReqBuilder struct {
	src, dst          modeling.RemotePort
	address, byteSize uint64
}

// WithSrc sets the port the request comes from.
func (b ReadReqBuilder) WithSrc(src modeling.RemotePort) ReadReqBuilder {
	b.src = src
	return b
}

// WithDst sets the port of the memory controller.
func (b ReadReqBuilder) WithDst(dst modeling.RemotePort) ReadReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the byte address to read.
func (b ReadReqBuilder) WithAddress(address uint64) ReadReqBuilder {
	b.address = address
	return b
}

// WithByteSize sets the number of bytes to read.
func (b ReadReqBuilder) WithByteSize(byteSize uint64) ReadReqBuilder {
	b.byteSize = byteSize
	return b
}

// Build creates the ReadReq.
func (b ReadReqBuilder) Build() *ReadReq {
	return &ReadReq{
		MsgMeta:        newMeta(b.src, b.dst, "mem.ReadReq", readReqBytes),
		Address:        b.address,
		AccessByteSize: b.byteSize,
	}
}

// A DataReadyRsp carries the data of a ReadReq back to its sender.
type DataReadyRsp struct {
	modeling.MsgMeta

	RespondTo string
	Data      []byte
}

// Meta returns the message meta.
func (r *DataReadyRsp) Meta() *modeling.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the response with a new ID.
func (r *DataReadyRsp) Clone() modeling.Msg {
	c := *r
	c.MsgMeta = renewed(r.MsgMeta)
	c.Data = append([]byte(nil), r.Data...)

	return &c
}

// GetRspTo returns the ID of the request the response answers.
func (r *DataReadyRsp) GetRspTo() string {
	return r.RespondTo
}

// DataReadyRspBuilder builds data responses.
type DataReadyRspBuilder struct {
	src, dst modeling.RemotePort
	rspTo    string
	data     []byte
}

// WithSrc sets the port the response comes from.
func (b DataReadyRspBuilder) WithSrc(
	src modeling.RemotePort,
) DataReadyRspBuilder {
	b.src = src
	return b
}

// WithDst sets the port the response goes to.
func (b DataReadyRspBuilder) WithDst(
	dst modeling.RemotePort,
) DataReadyRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request the response answers.
func (b DataReadyRspBuilder) WithRspTo(reqID string) DataReadyRspBuilder {
	b.rspTo = reqID
	return b
}

// WithData sets the bytes read.
func (b DataReadyRspBuilder) WithData(data []byte) DataReadyRspBuilder {
	b.data = data
	return b
}

// Build creates the DataReadyRsp.
func (b DataReadyRspBuilder) Build() *DataReadyRsp {
	return &DataReadyRsp{
		MsgMeta: newMeta(b.src, b.dst, "mem.DataReadyRsp",
			len(b.data)+dataRspBytes),
		RespondTo: b.rspTo,
		Data:      b.data,
	}
}
