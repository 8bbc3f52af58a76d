package mem

import (
	"github.com/pkg/errors"
)

// ErrAddressOutOfRange is returned when an access touches bytes beyond the
// capacity of a Storage.
var ErrAddressOutOfRange = errors.New(
	"accessing physical address beyond the storage capacity")

// pageSize is the allocation unit of a Storage.
const pageSize = 4096

// A Storage holds the bytes of a memory device. Pages are allocated on the
// first write, so a large device that is mostly untouched stays small.
type Storage struct {
	capacity uint64
	pages    map[uint64]*[pageSize]byte
}

// NewStorage creates a storage of capacity bytes, all zero.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		capacity: capacity,
		pages:    make(map[uint64]*[pageSize]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) checkRange(address, length uint64) error {
	if address >= s.capacity || length > s.capacity-address {
		return errors.Wrapf(ErrAddressOutOfRange,
			"access [0x%x, 0x%x), capacity 0x%x",
			address, address+length, s.capacity)
	}

	return nil
}

// span calls f for every page touched by [address, address+length), with the
// offset in the page and the part of the buffer that maps onto it.
func span(address, length uint64, f func(page, offset, done, n uint64)) {
	for done := uint64(0); done < length; {
		addr := address + done
		offset := addr % pageSize
		n := min(pageSize-offset, length-done)

		f(addr/pageSize, offset, done, n)
		done += n
	}
}

// Read returns length bytes starting from the address. Bytes never written
// read as zero.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	if err := s.checkRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)

	span(address, length, func(page, offset, done, n uint64) {
		if p, ok := s.pages[page]; ok {
			copy(res[done:done+n], p[offset:offset+n])
		}
	})

	return res, nil
}

// Write copies data into the storage starting from the address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.checkRange(address, length); err != nil {
		return err
	}

	span(address, length, func(page, offset, done, n uint64) {
		p, ok := s.pages[page]
		if !ok {
			p = new([pageSize]byte)
			s.pages[page] = p
		}

		copy(p[offset:offset+n], data[done:done+n])
	})

	return nil
}
