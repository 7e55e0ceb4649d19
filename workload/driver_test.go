package workload

import (
	"context"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/datarecording"
	"github.com/sarchlab/compcache/mem/cache"
	"github.com/sarchlab/compcache/mem/cache/coherence"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/simulation"
)

type progressLog struct {
	sync.Mutex
	finished map[int]uint64
}

func (p *progressLog) Report(core int, finished uint64) {
	p.Lock()
	defer p.Unlock()

	p.finished[core] = finished
}

// expectCoherent checks a quiescent hierarchy: the sharer records of every
// level are consistent and a line owned by one core is held by no other.
func expectCoherent(h *Hierarchy, footprint uint64) {
	for _, c := range h.Caches()[len(h.L1s):] {
		for lineID := 0; lineID < c.NumLines(); lineID++ {
			switch cc := c.Controller().(type) {
			case *coherence.MESICC:
				Expect(func() { cc.Top().Check(lineID) }).NotTo(Panic())
			case *coherence.DirCC:
				Expect(cc.Check(lineID)).To(Succeed())
			}
		}
	}

	for lineAddr := uint64(0); lineAddr < footprint; lineAddr++ {
		owners, holders := 0, 0

		for _, l1 := range h.L1s {
			lineID := l1.LineOf(lineAddr)
			if lineID == -1 {
				continue
			}

			state := l1.Controller().State(lineID)
			if state != mem.I {
				holders++
			}

			if state.IsExclusive() {
				owners++
			}
		}

		Expect(owners).To(BeNumerically("<=", 1),
			"line 0x%x has %d owners", lineAddr, owners)

		if owners == 1 {
			Expect(holders).To(Equal(1),
				"line 0x%x is owned and shared", lineAddr)
		}
	}
}

var _ = Describe("Run", func() {
	var (
		h     *Hierarchy
		stats *StatsCollector
		cfg   Config
	)

	BeforeEach(func() {
		var err error

		h, err = BuildHierarchy(simulation.NewSimulation(), smallConfig(2, true))
		Expect(err).NotTo(HaveOccurred())

		stats = NewStatsCollector(h)

		cfg = DefaultConfig()
		cfg.NumAccesses = 3000
		cfg.FootprintLine = 512
		cfg.WriteFraction = 0.2
	})

	It("should let every core finish its accesses", func() {
		progress := &progressLog{finished: map[int]uint64{}}

		results, err := Run(context.Background(), h, cfg, progress)

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		for core, r := range results {
			Expect(r.Core).To(Equal(core))
			Expect(r.NumAccesses).To(Equal(uint64(3000)))
			Expect(r.NumWrites).To(BeNumerically(">", 0))
			Expect(r.LastCycle).To(BeNumerically(">=", 3000*2))
			Expect(r.AvgLatency()).To(BeNumerically(">=", 2))
			Expect(progress.finished[core]).To(Equal(uint64(3000)))
		}
	})

	It("should count every lookup of the first level", func() {
		_, err := Run(context.Background(), h, cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		all := stats.Stats()
		Expect(all).To(HaveLen(6))

		for _, s := range all[:2] {
			Expect(s.Accesses).To(Equal(uint64(3000)))
			Expect(s.Hits + s.Misses).To(Equal(uint64(3000)))
			Expect(s.MissRate()).To(BeNumerically(">", 0))
			Expect(s.Evictions).To(BeNumerically(">", 0))
		}

		memory := all[5]
		Expect(memory.Level).To(Equal("Memory"))
		Expect(memory.Accesses).To(BeNumerically(">", 0))
	})

	It("should keep lines that the cores fight over coherent", func() {
		cfg.Pattern = PatternHotSet
		cfg.NumAccesses = 20000
		cfg.FootprintLine = 256
		cfg.HotFraction = 0.05
		cfg.HotProb = 0.8
		cfg.WriteFraction = 0.4

		h, err := BuildHierarchy(simulation.NewSimulation(), smallConfig(4, true))
		Expect(err).NotTo(HaveOccurred())
		Expect(FillStorage(h.Sim.Storage(), 64, cfg.FootprintLine, 1)).
			To(Succeed())

		results, err := Run(context.Background(), h, cfg, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		expectCoherent(h, cfg.FootprintLine)
	})

	It("should grow compressed lines that the cores rewrite", func() {
		hc := smallConfig(2, true)
		hc.L3.Ways = 2

		h, err := BuildHierarchy(simulation.NewSimulation(), hc)
		Expect(err).NotTo(HaveOccurred())
		Expect(FillStorage(h.Sim.Storage(), 64, 2048, 1)).To(Succeed())

		stats := NewStatsCollector(h)

		cfg.FootprintLine = 2048
		cfg.WriteFraction = 0.5
		cfg.NumAccesses = 5000

		_, err = Run(context.Background(), h, cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		l3 := stats.Stats()[4]
		Expect(l3.Level).To(Equal("L3"))
		Expect(l3.Resizes).To(BeNumerically(">", 0))
		Expect(l3.Evictions).To(BeNumerically(">=", l3.Resizes))
		expectCoherent(h, cfg.FootprintLine)
	})

	It("should run with a directory above the memory", func() {
		hc := smallConfig(4, true)
		hc.L3.Controller = cache.ControllerDirectory
		hc.L3.Array = cache.ArraySetAssoc
		hc.L3.Policy = "lru"

		h, err := BuildHierarchy(simulation.NewSimulation(), hc)
		Expect(err).NotTo(HaveOccurred())

		cfg.Pattern = PatternHotSet
		cfg.NumAccesses = 10000
		cfg.FootprintLine = 1024
		cfg.WriteFraction = 0.4

		_, err = Run(context.Background(), h, cfg, nil)

		Expect(err).NotTo(HaveOccurred())
		expectCoherent(h, cfg.FootprintLine)
	})

	It("should stop when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, h, cfg, nil)

		Expect(err).To(MatchError(context.Canceled))
	})

	It("should record the stats of the levels", func() {
		_, err := Run(context.Background(), h, cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(GinkgoT().TempDir(), "run")
		recorder, err := datarecording.NewDataRecorder(path)
		Expect(err).NotTo(HaveOccurred())

		Record(recorder, stats.Stats())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(LevelStatsTable, LevelStats{})
		rows, total, err := reader.Query(context.Background(), LevelStatsTable,
			datarecording.QueryParams{Where: "Level = ?", Args: []any{"L3"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(rows[0].(*LevelStats).Hits).To(Equal(stats.Stats()[4].Hits))
	})
})
