package hyperbus

import (
	"strings"

	"github.com/pkg/errors"
)

// A Variant describes a device family that can sit behind the controller.
type Variant struct {
	Name           string
	DefaultLatency uint8
}

// The supported device families.
var (
	HyperFlash         = Variant{Name: "hyperflash", DefaultLatency: 16}
	HyperRAM           = Variant{Name: "hyperram", DefaultLatency: 12}
	HyperRAMLowLatency = Variant{Name: "hyperram-ll", DefaultLatency: 7}
)

var variants = []Variant{HyperFlash, HyperRAM, HyperRAMLowLatency}

// MapSize returns the number of bytes that the system memory map reserves
// for each chip select.
func (v Variant) MapSize() uint64 {
	return 1 << 24
}

func (v Variant) String() string {
	return v.Name
}

// ParseVariant finds a variant by name. Names are case-insensitive.
func ParseVariant(name string) (Variant, error) {
	for _, v := range variants {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}

	return Variant{}, errors.Errorf("unknown device variant %q", name)
}
