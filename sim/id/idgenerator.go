// Package id generates the ids of the requests and tasks in a simulation.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate unique ids.
type IDGenerator interface {
	Generate() string
}

var (
	defaultOnce sync.Once
	defaultGen  IDGenerator
)

// GetIDGenerator returns the generator shared by every component that is
// not given one, so that their ids never collide.
func GetIDGenerator() IDGenerator {
	defaultOnce.Do(func() {
		defaultGen = NewIDGenerator()
	})

	return defaultGen
}

// NewIDGenerator returns a fresh sequential generator. Sequential ids are
// reproducible from run to run.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewParallelIDGenerator returns a generator that does not serialize the
// callers on a shared counter. The ids are not reproducible.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

type parallelIDGenerator struct {
}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}
