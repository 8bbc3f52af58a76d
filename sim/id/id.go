// Package id provides the ID generators used by messages, events, and tasks.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/xid"
)

// Generator can generate IDs.
type Generator interface {
	Generate() string
}

// ErrGeneratorFixed is returned when the generator kind is changed after the
// first ID has been generated.
var ErrGeneratorFixed = errors.New("id generator already in use")

var (
	generatorMu    sync.Mutex
	generatorFixed bool
	generator      Generator
)

// UseSequentialGenerator makes Generate return increasing decimal numbers, so
// that traces of two runs can be compared. It is the default.
func UseSequentialGenerator() error {
	return use(&sequentialGenerator{})
}

// UseParallelGenerator makes Generate return xid strings. The IDs stay unique
// when traces of several runs share one database, but are not deterministic.
func UseParallelGenerator() error {
	return use(parallelGenerator{})
}

// use selects the generator. Selecting the kind already in use is allowed.
func use(g Generator) error {
	generatorMu.Lock()
	defer generatorMu.Unlock()

	if generatorFixed {
		if sameKind(generator, g) {
			return nil
		}

		return errors.Wrapf(ErrGeneratorFixed, "switching to %T", g)
	}

	generator = g
	generatorFixed = true

	return nil
}

func sameKind(a, b Generator) bool {
	switch a.(type) {
	case *sequentialGenerator:
		_, ok := b.(*sequentialGenerator)
		return ok
	case parallelGenerator:
		_, ok := b.(parallelGenerator)
		return ok
	}

	return false
}

// Generate returns a new ID from the process-wide generator. The sequential
// generator is used unless another one was selected before.
func Generate() string {
	generatorMu.Lock()
	if !generatorFixed {
		generator = &sequentialGenerator{}
		generatorFixed = true
	}
	g := generator
	generatorMu.Unlock()

	return g.Generate()
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	return strconv.FormatUint(idNumber, 10)
}

type parallelGenerator struct{}

func (g parallelGenerator) Generate() string {
	return xid.New().String()
}
