// Package device provides a behavioral HyperBus memory device that can be
// attached to the pins of the hyperbus controller.
package device

import (
	"log"

	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/phy"
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/seq"
	"github.com/sarchlab/hyperbus/mem/mem"
)

// Device is a HyperFlash or HyperRAM chip that answers linear-burst memory
// reads. It watches its chip select and the clock edges. The first six edges
// of a transaction carry the command-address word, then come the latency
// edges, and every following edge puts the next byte of the burst on DQ.
type Device struct {
	name    string
	chip    int
	storage *mem.Storage

	latency        uint8
	defaultLatency uint8

	lastCK        bool
	edges         int
	activeLatency uint8
	caBytes       [ca.NumBytes]byte
	next          uint64

	bursts      uint64
	bytesSent   uint64
	lastAddress uint64
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// ChipSelect returns the index of the chip select the device answers to.
func (d *Device) ChipSelect() int {
	return d.chip
}

// Storage returns the memory content of the device.
func (d *Device) Storage() *mem.Storage {
	return d.storage
}

// Latency returns the configured initial latency.
func (d *Device) Latency() uint8 {
	return d.latency
}

// SetLatency configures the initial latency. It applies from the next
// transaction.
func (d *Device) SetLatency(latency uint8) {
	if latency < seq.MinLatency || latency > seq.MaxLatency {
		log.Panicf("%s: latency %d out of range", d.name, latency)
	}

	d.latency = latency
}

// Bursts returns how many transactions the device has decoded.
func (d *Device) Bursts() uint64 {
	return d.bursts
}

// BytesSent returns how many data bytes the device has driven.
func (d *Device) BytesSent() uint64 {
	return d.bytesSent
}

// LastAddress returns the start byte address of the last decoded
// transaction.
func (d *Device) LastAddress() uint64 {
	return d.lastAddress
}

// Settle lets the device react to the pins.
func (d *Device) Settle(p *phy.Pins) {
	switch {
	case !p.ResetN:
		d.endTransaction(p)
		d.latency = d.defaultLatency
	case !p.Selected(d.chip):
		d.endTransaction(p)
	case p.CK != d.lastCK:
		d.lastCK = p.CK
		d.edge(p)
	}
}

func (d *Device) endTransaction(p *phy.Pins) {
	d.edges = 0
	d.lastCK = p.CK
}

func (d *Device) edge(p *phy.Pins) {
	d.edges++

	switch {
	case d.edges <= ca.NumBytes:
		d.receiveCA(p)
	case d.edges <= ca.NumBytes+int(seq.LatencyCount(d.activeLatency)):
		p.RWDSIn = false
	default:
		d.drive(p)
	}
}

func (d *Device) receiveCA(p *phy.Pins) {
	if !p.DQOE {
		log.Panicf("%s: DQ not driven on command edge %d", d.name, d.edges)
	}

	if d.edges == 1 {
		d.activeLatency = d.latency
	}

	d.caBytes[d.edges-1] = p.DQOut
	if d.edges < ca.NumBytes {
		return
	}

	cmd := ca.Decode(d.caBytes)
	if !cmd.IsRead() || cmd.IsRegisterSpace() || !cmd.IsLinearBurst() {
		log.Panicf("%s: unsupported command %s", d.name, cmd)
	}

	d.next = cmd.ByteAddress()
	d.lastAddress = d.next
	d.bursts++
}

func (d *Device) drive(p *phy.Pins) {
	data, err := d.storage.Read(d.next, 1)
	if err != nil {
		log.Panicf("%s: %v", d.name, err)
	}

	p.DQIn = data[0]
	p.RWDSIn = p.CK
	d.next++
	d.bytesSent++
}
