package tagging

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/compcache/mem/compression"
	"github.com/sarchlab/compcache/mem/mem"
)

type compressedEntry struct {
	lineAddr uint64
	size     int
	valid    bool
}

// CompressedArray stores lines at their compressed size. Each set has
// lineSize*ways bytes of data and up to ways*extraTagRatio tags, so a set
// holds more lines than ways when the lines compress well.
//
// For every set, the sizes of the occupied tags never add up to more than
// the capacity of the set.
type CompressedArray struct {
	lineSize     int
	numWays      int
	numSets      int
	setBytes     int
	tagsPerSet   int
	entries      []compressedEntry
	availability []int

	// The size that Preinsert made room for. Postinsert commits it even if
	// the line was written in between.
	pendingAddr uint64
	pendingSize int
	pending     bool

	policy  Policy
	oracle  compression.Oracle
	evictor Evictor
	indexer SetIndexer
	logger  *slog.Logger
}

// NewCompressedArray creates a compressed array with the data capacity of
// numLines uncompressed lines.
func NewCompressedArray(
	numLines, numWays, lineSize, extraTagRatio int,
	policy Policy,
	oracle compression.Oracle,
	indexer SetIndexer,
) *CompressedArray {
	if numWays <= 0 || numLines%numWays != 0 {
		panic(fmt.Sprintf(
			"%d lines cannot be split into %d ways", numLines, numWays))
	}

	if extraTagRatio <= 0 {
		panic("extra tag ratio must be positive")
	}

	if indexer == nil {
		indexer = ModuloIndexer{}
	}

	a := &CompressedArray{
		lineSize: lineSize,
		numWays:  numWays,
		numSets:  numLines / numWays,
		setBytes: lineSize * numWays,
		policy:   policy,
		oracle:   oracle,
		indexer:  indexer,
		logger:   slog.Default(),
	}

	a.tagsPerSet = min(a.setBytes, numWays*extraTagRatio)
	a.entries = make([]compressedEntry, a.numSets*a.tagsPerSet)

	a.availability = make([]int, a.numSets)
	for s := range a.availability {
		a.availability[s] = a.setBytes
	}

	return a
}

// SetEvictor sets the controller that processes the evictions that the array
// triggers by itself when a line grows or a new line needs space.
func (a *CompressedArray) SetEvictor(e Evictor) {
	a.evictor = e
}

// SetLogger sets the logger that traces the evictions.
func (a *CompressedArray) SetLogger(l *slog.Logger) {
	a.logger = l
}

// NumLines returns the number of tags. Line ids are set*tagsPerSet+tag.
func (a *CompressedArray) NumLines() int {
	return len(a.entries)
}

// TagsPerSet returns the number of tags of each set.
func (a *CompressedArray) TagsPerSet() int {
	return a.tagsPerSet
}

// SetBytes returns the data capacity of a set.
func (a *CompressedArray) SetBytes() int {
	return a.setBytes
}

// AvailableSpace returns the free bytes of a set.
func (a *CompressedArray) AvailableSpace(set int) int {
	return a.availability[set]
}

// SetOf returns the set of a line id.
func (a *CompressedArray) SetOf(lineID int) int {
	return lineID / a.tagsPerSet
}

// SetIndex returns the set that a line maps to.
func (a *CompressedArray) SetIndex(lineAddr uint64) int {
	return a.indexer.SetIndex(lineAddr, a.numSets)
}

// CurrentSize returns the compressed size of the line in a slot, 0 if the
// slot is empty.
func (a *CompressedArray) CurrentSize(lineID int) int {
	e := a.entries[lineID]
	if !e.valid {
		return 0
	}

	return e.size
}

// OccupiedBytes adds up the sizes of the occupied tags of a set.
func (a *CompressedArray) OccupiedBytes(set int) int {
	total := 0

	for id := set * a.tagsPerSet; id < (set+1)*a.tagsPerSet; id++ {
		if a.entries[id].valid {
			total += a.entries[id].size
		}
	}

	return total
}

func (a *CompressedArray) compressedSize(lineAddr uint64) int {
	size := a.oracle.CompressedSize(lineAddr)
	if size <= 0 || size > a.lineSize {
		panic(fmt.Sprintf(
			"line 0x%x compresses to %d bytes, line size is %d",
			lineAddr, size, a.lineSize))
	}

	return size
}

// Lookup finds the slot of the line. A write that changes the compressed
// size of a resident line resizes it in place, evicting other lines of the
// set if it grows.
func (a *CompressedArray) Lookup(
	lineAddr uint64,
	req *mem.AccessReq,
	updateReplacement, forceCompare bool,
) int {
	set := a.SetIndex(lineAddr)

	for id := set * a.tagsPerSet; id < (set+1)*a.tagsPerSet; id++ {
		e := &a.entries[id]
		if !e.valid || e.lineAddr != lineAddr {
			continue
		}

		if forceCompare {
			return id
		}

		if !req.Type.IsGet() {
			a.resize(set, id, req)
		}

		if updateReplacement {
			a.policy.Update(id, req)
		}

		return id
	}

	return -1
}

func (a *CompressedArray) resize(set, id int, req *mem.AccessReq) {
	e := &a.entries[id]
	newSize := a.compressedSize(e.lineAddr)

	switch {
	case newSize > e.size:
		// Release the line so that it cannot be picked as its own victim.
		e.valid = false
		a.availability[set] += e.size

		a.makeSpace(set, newSize, req, false)

		e.valid = true
		e.size = newSize
		a.availability[set] -= newSize
	case newSize < e.size:
		a.availability[set] += e.size - newSize
		e.size = newSize
	}
}

func (a *CompressedArray) hasFreeTag(set int) bool {
	for id := set * a.tagsPerSet; id < (set+1)*a.tagsPerSet; id++ {
		if !a.entries[id].valid {
			return true
		}
	}

	return false
}

// makeSpace evicts policy-ranked lines of the set until required bytes are
// free. With needTag set, it also makes sure that a tag is free.
func (a *CompressedArray) makeSpace(
	set, required int,
	req *mem.AccessReq,
	needTag bool,
) {
	forceEviction := needTag && !a.hasFreeTag(set)

	for a.availability[set] < required || forceEviction {
		cands := make([]int, 0, a.tagsPerSet)

		for id := set * a.tagsPerSet; id < (set+1)*a.tagsPerSet; id++ {
			if a.entries[id].valid {
				cands = append(cands, id)
			}
		}

		if len(cands) == 0 {
			panic(fmt.Sprintf(
				"set %d cannot free %d bytes, %d available and no line to evict",
				set, required, a.availability[set]))
		}

		victim := a.policy.Rank(req, cands)
		a.evict(victim, req)

		forceEviction = false
	}
}

func (a *CompressedArray) evict(victim int, req *mem.AccessReq) {
	e := &a.entries[victim]
	set := a.SetOf(victim)

	a.logger.Debug("evicting",
		"line", fmt.Sprintf("0x%x", e.lineAddr),
		"size", e.size,
		"set", set)

	a.policy.Replaced(victim)

	if a.evictor != nil {
		a.evictor.ProcessEviction(req, e.lineAddr, victim, req.Cycle)
	}

	e.valid = false
	a.availability[set] += e.size
}

// Preinsert frees enough space for the line and returns a free tag. The
// evictions have already happened, so the returned address is always 0.
func (a *CompressedArray) Preinsert(
	lineAddr uint64,
	req *mem.AccessReq,
) (lineID int, wbLineAddr uint64) {
	set := a.SetIndex(lineAddr)
	size := a.compressedSize(lineAddr)

	a.makeSpace(set, size, req, true)

	a.pendingAddr = lineAddr
	a.pendingSize = size
	a.pending = true

	for id := set * a.tagsPerSet; id < (set+1)*a.tagsPerSet; id++ {
		if !a.entries[id].valid {
			return id, 0
		}
	}

	panic(fmt.Sprintf("set %d has no free tag after making space", set))
}

// Postinsert commits the line into the slot that Preinsert returned.
func (a *CompressedArray) Postinsert(
	lineAddr uint64,
	req *mem.AccessReq,
	lineID int,
) {
	set := a.SetOf(lineID)

	size := a.pendingSize
	if !a.pending || a.pendingAddr != lineAddr {
		size = a.compressedSize(lineAddr)
	}

	a.pending = false

	if a.entries[lineID].valid {
		panic(fmt.Sprintf("inserting 0x%x into occupied line %d",
			lineAddr, lineID))
	}

	if size > a.availability[set] {
		panic(fmt.Sprintf(
			"inserting %d bytes into set %d with %d bytes available",
			size, set, a.availability[set]))
	}

	a.entries[lineID] = compressedEntry{
		lineAddr: lineAddr,
		size:     size,
		valid:    true,
	}
	a.availability[set] -= size
	a.policy.Update(lineID, req)
}

// Invalidate empties a slot and returns its space to the set.
func (a *CompressedArray) Invalidate(lineID int) {
	e := &a.entries[lineID]
	if !e.valid {
		return
	}

	a.policy.Replaced(lineID)
	a.availability[a.SetOf(lineID)] += e.size
	*e = compressedEntry{}
}
