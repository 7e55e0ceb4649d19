package idealmemory

import (
	"log/slog"

	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/id"
)

// Builder can build ideal memories.
type Builder struct {
	latency  uint64
	capacity uint64
	storage  *mem.Storage
	idGen    id.IDGenerator
	logger   *slog.Logger
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency:  100,
		capacity: 4 * mem.GB,
	}
}

// WithLatency sets the latency of the memory
func (b Builder) WithLatency(latency uint64) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of a storage that the memory creates
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage sets the storage of the memory
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithIDGenerator sets the generator of the task ids
func (b Builder) WithIDGenerator(g id.IDGenerator) Builder {
	b.idGen = g
	return b
}

// WithLogger sets the logger of the memory
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		name:    name,
		latency: b.latency,
		storage: b.storage,
		idGen:   b.idGen,
		logger:  b.logger,
	}

	if c.storage == nil {
		c.storage = mem.NewStorage(b.capacity)
	}

	if c.idGen == nil {
		c.idGen = id.GetIDGenerator()
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}
