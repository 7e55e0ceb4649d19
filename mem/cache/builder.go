package cache

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/compcache/mem/cache/coherence"
	"github.com/sarchlab/compcache/mem/cache/internal/tagging"
	"github.com/sarchlab/compcache/mem/cache/replacement"
	"github.com/sarchlab/compcache/mem/compression"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/id"
)

// The kinds of coherence controllers.
const (
	ControllerMESI      = "mesi"
	ControllerTerminal  = "terminal"
	ControllerDirectory = "directory"
)

// The kinds of tag arrays.
const (
	ArraySetAssoc   = "setassoc"
	ArrayCompressed = "compressed"
)

// Builder can build caches.
type Builder struct {
	registry mem.Registry
	idGen    id.IDGenerator
	logger   *slog.Logger
	oracle   compression.Oracle

	numLines      int
	numWays       int
	lineSize      int
	arrayKind     string
	extraTagRatio int
	hashSeed      uint64
	hashIndex     bool

	policy         string
	rripBits       uint
	samplingFactor int
	shipSigBits    uint
	shipSigType    replacement.SignatureType

	controller   string
	nonInclusive bool
	parentMapper mem.ParentMapper

	accLat    uint64
	tagLat    uint64
	invLat    uint64
	parentRTT uint64
	childRTT  uint64
}

// MakeBuilder creates a new builder with the defaults of a 32KB, 8-way
// mid-level cache.
func MakeBuilder() Builder {
	return Builder{
		numLines:       512,
		numWays:        8,
		lineSize:       64,
		arrayKind:      ArraySetAssoc,
		extraTagRatio:  2,
		policy:         "lru",
		rripBits:       3,
		samplingFactor: 64,
		shipSigBits:    14,
		controller:     ControllerMESI,
		accLat:         10,
		tagLat:         5,
		invLat:         5,
	}
}

// WithRegistry sets the registry that resolves the neighbors of the level.
func (b Builder) WithRegistry(r mem.Registry) Builder {
	b.registry = r
	return b
}

// WithIDGenerator sets the generator of the task ids.
func (b Builder) WithIDGenerator(g id.IDGenerator) Builder {
	b.idGen = g
	return b
}

// WithLogger sets the logger of the cache.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// WithOracle sets the oracle that reports the compressed size of the lines.
// Only the compressed array needs it.
func (b Builder) WithOracle(o compression.Oracle) Builder {
	b.oracle = o
	return b
}

// WithNumLines sets the data capacity of the cache, in uncompressed lines.
func (b Builder) WithNumLines(n int) Builder {
	b.numLines = n
	return b
}

// WithByteSize sets the data capacity of the cache in bytes. Call it after
// WithLineSize.
func (b Builder) WithByteSize(size uint64) Builder {
	b.numLines = int(size / uint64(b.lineSize))
	return b
}

// WithNumWays sets the way associativity.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithLineSize sets the line size in bytes.
func (b Builder) WithLineSize(n int) Builder {
	b.lineSize = n
	return b
}

// WithArray selects the tag array, either "setassoc" or "compressed".
func (b Builder) WithArray(kind string) Builder {
	b.arrayKind = kind
	return b
}

// WithExtraTagRatio sets how many tags per way the compressed array has.
func (b Builder) WithExtraTagRatio(r int) Builder {
	b.extraTagRatio = r
	return b
}

// WithHashedIndex spreads the lines over the sets with a seeded hash
// instead of the low address bits.
func (b Builder) WithHashedIndex(seed uint64) Builder {
	b.hashIndex = true
	b.hashSeed = seed

	return b
}

// WithReplacementPolicy selects the replacement policy. The names are lru,
// srrip, brrip, drrip, drrip-sets, ship-mem, ship-pc and camp.
func (b Builder) WithReplacementPolicy(name string) Builder {
	b.policy = name
	return b
}

// WithRRIPBits sets the width of the RRIP priorities.
func (b Builder) WithRRIPBits(m uint) Builder {
	b.rripBits = m
	return b
}

// WithSamplingFactor sets how sparsely the dueling policies sample the lines.
func (b Builder) WithSamplingFactor(f int) Builder {
	b.samplingFactor = f
	return b
}

// WithSHiPSignatureBits sets the width of the SHiP signatures.
func (b Builder) WithSHiPSignatureBits(bits uint) Builder {
	b.shipSigBits = bits
	return b
}

// WithController selects the coherence controller, one of "mesi",
// "terminal" and "directory".
func (b Builder) WithController(kind string) Builder {
	b.controller = kind
	return b
}

// WithNonInclusive lets writebacks of lines that the level does not hold
// bypass it.
func (b Builder) WithNonInclusive(nonInclusive bool) Builder {
	b.nonInclusive = nonInclusive
	return b
}

// WithParentMapper sets how lines map to the parents of the level.
func (b Builder) WithParentMapper(m mem.ParentMapper) Builder {
	b.parentMapper = m
	return b
}

// WithAccessLatency sets the latency of a hit.
func (b Builder) WithAccessLatency(lat uint64) Builder {
	b.accLat = lat
	return b
}

// WithTagLatency sets the latency of a miss before the parent is asked.
func (b Builder) WithTagLatency(lat uint64) Builder {
	b.tagLat = lat
	return b
}

// WithInvalidationLatency sets the latency of an invalidation that hits.
func (b Builder) WithInvalidationLatency(lat uint64) Builder {
	b.invLat = lat
	return b
}

// WithParentRTT sets the network round trip to the parents.
func (b Builder) WithParentRTT(rtt uint64) Builder {
	b.parentRTT = rtt
	return b
}

// WithChildRTT sets the network round trip to the children.
func (b Builder) WithChildRTT(rtt uint64) Builder {
	b.childRTT = rtt
	return b
}

// Build creates a cache level with the given name.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid(name)

	c := &Comp{
		name:   name,
		accLat: b.accLat,
		tagLat: b.tagLat,
		invLat: b.invLat,
		idGen:  b.idGen,
		logger: b.logger,
	}

	if c.idGen == nil {
		c.idGen = id.GetIDGenerator()
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	policy := b.buildPolicy(b.numTags())
	c.array = b.buildArray(c, policy)
	c.cc = b.buildController(name, c.array.NumLines())

	if vs, ok := policy.(replacement.ValidatorSetter); ok {
		vs.SetValidator(c.cc)
	}

	c.logger.Info("cache built",
		"level", name,
		"lines", b.numLines,
		"ways", b.numWays,
		"array", b.arrayKind,
		"policy", b.policy,
		"controller", b.controller)

	return c
}

func (b Builder) mustBeValid(name string) {
	if b.registry == nil {
		panic(fmt.Sprintf("%s: a cache needs a registry", name))
	}

	if b.lineSize <= 0 || b.lineSize&(b.lineSize-1) != 0 {
		panic(fmt.Sprintf("%s: line size %d is not a power of 2",
			name, b.lineSize))
	}

	if b.arrayKind == ArrayCompressed && b.oracle == nil {
		panic(fmt.Sprintf("%s: a compressed array needs an oracle", name))
	}

	if b.policy == "camp" && b.arrayKind != ArrayCompressed {
		panic(fmt.Sprintf("%s: camp needs a compressed array", name))
	}
}

// numTags returns the number of line ids of the array, which is also the
// size of the replacement state.
func (b Builder) numTags() int {
	if b.arrayKind != ArrayCompressed {
		return b.numLines
	}

	numSets := b.numLines / b.numWays
	setBytes := b.lineSize * b.numWays

	return numSets * min(setBytes, b.numWays*b.extraTagRatio)
}

func (b Builder) buildPolicy(numTags int) tagging.Policy {
	switch b.policy {
	case "lru":
		return replacement.NewLRU(numTags)
	case "srrip":
		return replacement.NewSRRIP(numTags, b.rripBits)
	case "brrip":
		return replacement.NewBRRIP(numTags, b.rripBits)
	case "drrip":
		return replacement.NewDRRIP(numTags, b.rripBits, b.samplingFactor)
	case "drrip-sets":
		return replacement.NewDRRIPSetSampling(
			numTags, b.rripBits, b.samplingFactor)
	case "ship-mem":
		return replacement.NewSHiP(numTags, b.rripBits, b.samplingFactor,
			b.shipSigBits, replacement.SignatureMem, b.lineSize)
	case "ship-pc":
		return replacement.NewSHiP(numTags, b.rripBits, b.samplingFactor,
			b.shipSigBits, replacement.SignaturePC, b.lineSize)
	case "camp":
		return replacement.NewCAMP(numTags, b.rripBits, b.samplingFactor,
			b.lineSize, nil)
	}

	panic(fmt.Sprintf("unknown replacement policy %q", b.policy))
}

func (b Builder) indexer() tagging.SetIndexer {
	if b.hashIndex {
		return tagging.HashIndexer{Seed: b.hashSeed}
	}

	return tagging.ModuloIndexer{}
}

func (b Builder) buildArray(c *Comp, policy tagging.Policy) tagging.Array {
	switch b.arrayKind {
	case ArraySetAssoc:
		return tagging.NewSetAssocArray(
			b.numLines, b.numWays, policy, b.indexer())
	case ArrayCompressed:
		a := tagging.NewCompressedArray(b.numLines, b.numWays, b.lineSize,
			b.extraTagRatio, policy, b.oracle, b.indexer())
		a.SetEvictor(c)
		a.SetLogger(c.logger)

		if camp, ok := policy.(*replacement.CAMP); ok {
			camp.SetSizer(a)
		}

		return a
	}

	panic(fmt.Sprintf("unknown array %q", b.arrayKind))
}

func (b Builder) buildController(
	name string,
	numLines int,
) coherence.Controller {
	switch b.controller {
	case ControllerMESI:
		cc := coherence.NewMESICC(name, numLines, b.registry, b.nonInclusive)
		cc.Bottom().SetParentRTT(b.parentRTT)
		cc.Bottom().SetParentMapper(b.parentMapper)
		cc.Top().SetChildRTT(b.childRTT)

		return cc
	case ControllerTerminal:
		cc := coherence.NewTerminalCC(name, numLines, b.registry)
		cc.Bottom().SetParentRTT(b.parentRTT)
		cc.Bottom().SetParentMapper(b.parentMapper)

		return cc
	case ControllerDirectory:
		cc := coherence.NewDirCC(name, numLines, b.registry)
		cc.SetParentRTT(b.parentRTT)
		cc.SetParentMapper(b.parentMapper)
		cc.SetChildRTT(b.childRTT)

		return cc
	}

	panic(fmt.Sprintf("unknown coherence controller %q", b.controller))
}
