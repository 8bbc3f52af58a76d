package device

import (
	"github.com/sarchlab/hyperbus/mem/hyperbus/internal/ca"
	"github.com/sarchlab/hyperbus/mem/mem"
	"github.com/sarchlab/hyperbus/sim/naming"
)

// Builder can build devices.
type Builder struct {
	latency  uint8
	chip     int
	capacity uint64
	storage  *mem.Storage
}

// MakeBuilder returns a Builder with the HyperFlash defaults.
func MakeBuilder() Builder {
	return Builder{
		latency:  16,
		capacity: 4 << ca.DeviceAddrBits,
	}
}

// WithLatency sets the initial latency of the device.
func (b Builder) WithLatency(latency uint8) Builder {
	b.latency = latency
	return b
}

// WithChipSelect sets the chip select the device answers to.
func (b Builder) WithChipSelect(chip int) Builder {
	b.chip = chip
	return b
}

// WithCapacity sets the size of a new storage.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage lets the device serve an existing storage.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Build creates a device.
func (b Builder) Build(name string) *Device {
	naming.NameMustBeValid(name)

	d := &Device{
		name:           name,
		chip:           b.chip,
		storage:        b.storage,
		defaultLatency: b.latency,
	}

	if d.storage == nil {
		d.storage = mem.NewStorage(b.capacity)
	}

	d.SetLatency(b.latency)

	return d
}
