package mem

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// LoadImage copies everything readable from r into the storage, starting at
// offset. It returns the number of bytes loaded.
func LoadImage(s *Storage, r io.Reader, offset uint64) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(err, "reading image")
	}

	if err := s.Write(offset, data); err != nil {
		return 0, errors.Wrapf(err, "loading %d-byte image at 0x%x",
			len(data), offset)
	}

	return len(data), nil
}

// LoadImageFile loads a binary file, such as a boot ROM image, into the
// storage at offset.
func LoadImageFile(s *Storage, path string, offset uint64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	n, err := LoadImage(s, f, offset)
	if err != nil {
		return 0, errors.Wrap(err, path)
	}

	return n, nil
}

// ImageWords interprets an image as a list of little-endian 32-bit words, the
// way firmware images are laid out for a 32-bit little-endian processor. A
// trailing partial word is zero-padded.
func ImageWords(data []byte) []uint32 {
	words := make([]uint32, 0, (len(data)+3)/4)

	for i := 0; i < len(data); i += 4 {
		var buf [4]byte
		copy(buf[:], data[i:])
		words = append(words, binary.LittleEndian.Uint32(buf[:]))
	}

	return words
}
