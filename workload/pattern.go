package workload

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/compcache/mem/mem"
)

// The access patterns.
const (
	PatternUniform = "uniform"
	PatternStream  = "stream"
	PatternHotSet  = "hotset"
)

// Config describes the accesses that each core issues.
type Config struct {
	Pattern       string
	NumAccesses   uint64
	FootprintLine uint64
	WriteFraction float64
	HotFraction   float64
	HotProb       float64
	Seed          uint64
}

// DefaultConfig returns a uniform read-mostly workload over 256K lines.
func DefaultConfig() Config {
	return Config{
		Pattern:       PatternUniform,
		NumAccesses:   100000,
		FootprintLine: 1 << 18,
		WriteFraction: 0.1,
		HotFraction:   0.05,
		HotProb:       0.9,
		Seed:          4242,
	}
}

// An Access is one access of a core.
type Access struct {
	LineAddr uint64
	Write    bool
	PC       uint64
}

// A Generator produces the access stream of a core.
type Generator struct {
	cfg  Config
	core int
	rng  *rand.Rand
	next uint64
}

// NewGenerator creates the generator of a core. Generators of the same core
// and seed produce the same stream.
func NewGenerator(cfg Config, core int) (*Generator, error) {
	switch cfg.Pattern {
	case PatternUniform, PatternStream, PatternHotSet:
	default:
		return nil, fmt.Errorf("unknown access pattern %q", cfg.Pattern)
	}

	if cfg.FootprintLine == 0 {
		return nil, fmt.Errorf("the footprint must not be empty")
	}

	g := &Generator{
		cfg:  cfg,
		core: core,
		rng:  rand.New(rand.NewPCG(cfg.Seed, uint64(core))),
	}

	if cfg.Pattern == PatternStream {
		g.next = uint64(core) * cfg.FootprintLine / 16 % cfg.FootprintLine
	}

	return g, nil
}

// Next returns the next access.
func (g *Generator) Next() Access {
	var lineAddr, pc uint64

	switch g.cfg.Pattern {
	case PatternUniform:
		lineAddr = g.rng.Uint64N(g.cfg.FootprintLine)
		pc = 0x1000
	case PatternStream:
		lineAddr = g.next
		g.next = (g.next + 1) % g.cfg.FootprintLine
		pc = 0x2000
	case PatternHotSet:
		hotLines := max(uint64(float64(g.cfg.FootprintLine)*g.cfg.HotFraction), 1)
		if g.rng.Float64() < g.cfg.HotProb {
			lineAddr = g.rng.Uint64N(hotLines)
			pc = 0x3000
		} else {
			lineAddr = g.rng.Uint64N(g.cfg.FootprintLine)
			pc = 0x3100
		}
	}

	return Access{
		LineAddr: lineAddr,
		Write:    g.rng.Float64() < g.cfg.WriteFraction,
		PC:       pc + uint64(g.core)*0x10,
	}
}

// StoreData fills line with the data of a store. The data has a random
// shape, so a store usually changes the compressed size of the line.
func (g *Generator) StoreData(line []byte) {
	shapeLine(g.rng, line, g.rng.Uint64N(4))
}

// shapeLine writes zeros, narrow values, a repeated word or noise into line,
// depending on kind.
func shapeLine(rng *rand.Rand, line []byte, kind uint64) {
	lineSize := len(line)

	switch kind {
	case 0:
		clear(line)
	case 1:
		base := rng.Uint64()
		for i := 0; i+8 <= lineSize; i += 8 {
			binary.LittleEndian.PutUint64(line[i:], base+rng.Uint64N(64))
		}
	case 2:
		word := rng.Uint32()
		for i := 0; i+4 <= lineSize; i += 4 {
			binary.LittleEndian.PutUint32(line[i:], word)
		}
	case 3:
		for i := 0; i+8 <= lineSize; i += 8 {
			binary.LittleEndian.PutUint64(line[i:], rng.Uint64())
		}
	}
}

// FillStorage writes lines of varied compressibility into the storage so
// that the compression oracle sees realistic data. A quarter of the lines
// stay zero, the others hold narrow values, repeated words or noise.
func FillStorage(
	storage *mem.Storage,
	lineSize int,
	numLines uint64,
	seed uint64,
) error {
	rng := rand.New(rand.NewPCG(seed, 0))
	line := make([]byte, lineSize)

	for lineAddr := uint64(0); lineAddr < numLines; lineAddr++ {
		kind := lineAddr % 4
		if kind == 0 {
			continue
		}

		shapeLine(rng, line, kind)

		err := storage.WriteLine(lineAddr, line)
		if err != nil {
			return fmt.Errorf("cannot fill line 0x%x: %w", lineAddr, err)
		}
	}

	return nil
}
