// Package workload builds a multi-core cache hierarchy and drives it with
// synthetic access streams.
package workload

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/cache"
	"github.com/sarchlab/compcache/mem/compression"
	"github.com/sarchlab/compcache/mem/idealmemory"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/simulation"
)

// LevelConfig describes one level of caches. An empty Controller picks the
// terminal controller for the L1s and MESI for the other levels.
type LevelConfig struct {
	ByteSize   uint64
	Ways       int
	Array      string
	Policy     string
	Controller string
	AccLat     uint64
	TagLat     uint64
}

// Enabled returns false for a level with no capacity.
func (c LevelConfig) Enabled() bool {
	return c.ByteSize > 0
}

// HierarchyConfig describes the caches between the cores and the memory.
// Every core has a private L1. With an L3, the L2s are private and the L3 is
// shared. Without one, a single L2 is shared by all the cores.
type HierarchyConfig struct {
	NumCores   int
	LineSize   int
	L1         LevelConfig
	L2         LevelConfig
	L3         LevelConfig
	MemLatency uint64
	Compressor string
	RTT        uint64
}

// DefaultHierarchyConfig returns a 4-core hierarchy with 32KB L1s, 256KB
// private L2s and a 2MB compressed L3.
func DefaultHierarchyConfig() HierarchyConfig {
	return HierarchyConfig{
		NumCores: 4,
		LineSize: 64,
		L1: LevelConfig{
			ByteSize: 32 * mem.KB, Ways: 8, Array: cache.ArraySetAssoc,
			Policy: "lru", AccLat: 4, TagLat: 1,
		},
		L2: LevelConfig{
			ByteSize: 256 * mem.KB, Ways: 8, Array: cache.ArraySetAssoc,
			Policy: "lru", AccLat: 7, TagLat: 3,
		},
		L3: LevelConfig{
			ByteSize: 2 * mem.MB, Ways: 16, Array: cache.ArrayCompressed,
			Policy: "camp", AccLat: 27, TagLat: 10,
		},
		MemLatency: 200,
		Compressor: "bdifpc",
	}
}

// Hierarchy is a built hierarchy. The levels are registered in the
// simulation from the memory up.
type Hierarchy struct {
	Sim      *simulation.Simulation
	LineSize int
	Memory   *idealmemory.Comp
	L1s      []*cache.Comp
	L2s      []*cache.Comp
	L3       *cache.Comp
}

// Caches returns all the cache levels, from the L1s down.
func (h *Hierarchy) Caches() []*cache.Comp {
	caches := make([]*cache.Comp, 0, len(h.L1s)+len(h.L2s)+1)
	caches = append(caches, h.L1s...)
	caches = append(caches, h.L2s...)

	if h.L3 != nil {
		caches = append(caches, h.L3)
	}

	return caches
}

// BuildHierarchy creates the levels in the simulation and connects them.
func BuildHierarchy(
	s *simulation.Simulation,
	cfg HierarchyConfig,
) (*Hierarchy, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	compressor, err := compression.ByName(cfg.Compressor)
	if err != nil {
		return nil, fmt.Errorf("cannot build hierarchy: %w", err)
	}

	storage := mem.NewStorage(4 * mem.GB)
	s.SetStorage(storage, compressor, cfg.LineSize)

	h := &Hierarchy{Sim: s, LineSize: cfg.LineSize}

	h.Memory = idealmemory.MakeBuilder().
		WithLatency(cfg.MemLatency).
		WithStorage(storage).
		WithIDGenerator(s.IDGenerator()).
		WithLogger(s.Logger()).
		Build("Memory")
	memID := s.RegisterLevel(h.Memory)

	if cfg.L3.Enabled() {
		h.buildThreeLevels(cfg, memID)
	} else {
		h.buildTwoLevels(cfg, memID)
	}

	return h, nil
}

func (c HierarchyConfig) validate() error {
	if c.NumCores <= 0 {
		return fmt.Errorf("invalid number of cores %d", c.NumCores)
	}

	if !c.L1.Enabled() || !c.L2.Enabled() {
		return fmt.Errorf("the hierarchy needs an L1 and an L2")
	}

	if !c.L3.Enabled() && c.NumCores > 256 {
		return fmt.Errorf("a shared L2 cannot serve %d cores", c.NumCores)
	}

	if c.L1.Controller != "" && c.L1.Controller != cache.ControllerTerminal {
		return fmt.Errorf("the L1s are served by cores and need the %s "+
			"controller, not %s", cache.ControllerTerminal, c.L1.Controller)
	}

	last, inner := c.L3, c.L2
	if !c.L3.Enabled() {
		last, inner = c.L2, LevelConfig{}
	}

	if inner.Controller != "" && inner.Controller != cache.ControllerMESI {
		return fmt.Errorf("the private L2s need the %s controller, not %s",
			cache.ControllerMESI, inner.Controller)
	}

	return last.validateShared()
}

func (c LevelConfig) validateShared() error {
	switch c.Controller {
	case "", cache.ControllerMESI:
	case cache.ControllerDirectory:
		if c.Array == cache.ArrayCompressed {
			return fmt.Errorf("a directory holds no data to compress")
		}
	default:
		return fmt.Errorf("invalid controller %q for a shared level",
			c.Controller)
	}

	return nil
}

func (h *Hierarchy) buildTwoLevels(cfg HierarchyConfig, memID mem.LevelID) {
	l2 := h.level(cfg, cfg.L2, cache.ControllerMESI).Build("L2")
	l2ID := h.Sim.RegisterLevel(l2)
	h.L2s = append(h.L2s, l2)

	l2.SetParents(0, []mem.LevelID{memID})

	l1IDs := make([]mem.LevelID, 0, cfg.NumCores)
	for i := 0; i < cfg.NumCores; i++ {
		l1 := h.level(cfg, cfg.L1, cache.ControllerTerminal).
			Build(fmt.Sprintf("L1[%d]", i))
		l1IDs = append(l1IDs, h.Sim.RegisterLevel(l1))
		l1.SetParents(i, []mem.LevelID{l2ID})
		h.L1s = append(h.L1s, l1)
	}

	l2.SetChildren(l1IDs)
}

func (h *Hierarchy) buildThreeLevels(cfg HierarchyConfig, memID mem.LevelID) {
	h.L3 = h.level(cfg, cfg.L3, cache.ControllerMESI).Build("L3")
	l3ID := h.Sim.RegisterLevel(h.L3)
	h.L3.SetParents(0, []mem.LevelID{memID})

	l2IDs := make([]mem.LevelID, 0, cfg.NumCores)
	for i := 0; i < cfg.NumCores; i++ {
		l2 := h.level(cfg, cfg.L2, cache.ControllerMESI).
			Build(fmt.Sprintf("L2[%d]", i))
		l2ID := h.Sim.RegisterLevel(l2)
		l2IDs = append(l2IDs, l2ID)
		l2.SetParents(i, []mem.LevelID{l3ID})
		h.L2s = append(h.L2s, l2)

		l1 := h.level(cfg, cfg.L1, cache.ControllerTerminal).
			Build(fmt.Sprintf("L1[%d]", i))
		l1ID := h.Sim.RegisterLevel(l1)
		l1.SetParents(0, []mem.LevelID{l2ID})
		l2.SetChildren([]mem.LevelID{l1ID})
		h.L1s = append(h.L1s, l1)
	}

	h.L3.SetChildren(l2IDs)
}

func (h *Hierarchy) level(
	cfg HierarchyConfig,
	lc LevelConfig,
	controller string,
) cache.Builder {
	if lc.Controller != "" {
		controller = lc.Controller
	}

	return cache.MakeBuilder().
		WithRegistry(h.Sim).
		WithIDGenerator(h.Sim.IDGenerator()).
		WithLogger(h.Sim.Logger()).
		WithOracle(h.Sim.Oracle()).
		WithLineSize(cfg.LineSize).
		WithByteSize(lc.ByteSize).
		WithNumWays(lc.Ways).
		WithArray(lc.Array).
		WithReplacementPolicy(lc.Policy).
		WithController(controller).
		WithAccessLatency(lc.AccLat).
		WithTagLatency(lc.TagLat).
		WithParentRTT(cfg.RTT).
		WithChildRTT(cfg.RTT)
}
