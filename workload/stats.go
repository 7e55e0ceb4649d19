package workload

import (
	"github.com/sarchlab/compcache/datarecording"
	"github.com/sarchlab/compcache/sim/hooking"
)

// LevelStats are the counters of one level after a run.
type LevelStats struct {
	Level         string
	Accesses      uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Resizes       uint64
	Writebacks    uint64
	Invalidations uint64
	AvgLatency    float64
}

// MissRate returns the fraction of the lookups that missed.
func (s LevelStats) MissRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Hits+s.Misses)
}

type levelCounters struct {
	name          string
	tags          *hooking.TagCountTracer
	accessTime    *hooking.TotalAvgTimeTracer
	invalidations *hooking.TotalAvgTimeTracer
}

// StatsCollector counts what happens in every level of a hierarchy.
type StatsCollector struct {
	levels []levelCounters
}

// NewStatsCollector hooks counters to the memory and the caches of h. It
// must be called before the run starts.
func NewStatsCollector(h *Hierarchy) *StatsCollector {
	c := &StatsCollector{}

	for _, l := range h.Caches() {
		c.add(l.Name(), l)
	}

	c.add(h.Memory.Name(), h.Memory)

	return c
}

func (c *StatsCollector) add(name string, l hooking.Hookable) {
	lc := levelCounters{
		name:          name,
		tags:          hooking.NewTagCountTracer(nil),
		accessTime:    hooking.NewAverageTimeTracer(hooking.KindIs("access")),
		invalidations: hooking.NewAverageTimeTracer(hooking.KindIs("invalidation")),
	}

	l.AcceptHook(lc.tags)
	l.AcceptHook(lc.accessTime)
	l.AcceptHook(lc.invalidations)

	c.levels = append(c.levels, lc)
}

// Stats returns the counters of each level, from the L1s down.
func (c *StatsCollector) Stats() []LevelStats {
	stats := make([]LevelStats, 0, len(c.levels))

	for _, lc := range c.levels {
		stats = append(stats, LevelStats{
			Level:         lc.name,
			Accesses:      lc.accessTime.TotalCount(),
			Hits:          lc.tags.GetTagCount("hit"),
			Misses:        lc.tags.GetTagCount("miss"),
			Evictions:     lc.tags.GetTagCount("eviction"),
			Resizes:       lc.tags.GetTagCount("resize"),
			Writebacks:    lc.tags.GetTagCount("writeback"),
			Invalidations: lc.invalidations.TotalCount(),
			AvgLatency:    lc.accessTime.AverageTime(),
		})
	}

	return stats
}

// LevelStatsTable is the table that Record writes to.
const LevelStatsTable = "level_stats"

// Record writes the stats into a recorder.
func Record(recorder datarecording.DataRecorder, stats []LevelStats) {
	recorder.CreateTable(LevelStatsTable, LevelStats{})

	for _, s := range stats {
		recorder.InsertData(LevelStatsTable, s)
	}

	recorder.Flush()
}
