// Package tagging implements the tag arrays of a cache level.
package tagging

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/compcache/mem/mem"
)

// A Policy decides which line to replace. The arrays call Update on every
// hit and insertion, Replaced when a slot is vacated and Rank to pick a
// victim among the candidates.
type Policy interface {
	Update(id int, req *mem.AccessReq)
	Replaced(id int)
	Rank(req *mem.AccessReq, cands []int) int
}

// An Evictor processes the eviction of a line, writing it back to the parent
// and invalidating the children. The coherence controller of the level is the
// evictor of its array.
type Evictor interface {
	ProcessEviction(
		triggerReq *mem.AccessReq,
		wbLineAddr uint64,
		lineID int,
		cycle uint64,
	) uint64
}

// Array is the tag array of a cache level. Lookup returns -1 on a miss.
//
// Preinsert picks the slot for a new line and returns the address of the
// line the slot holds. The caller evicts that line and then calls
// Postinsert to commit the new line.
//
// A lookup with forceCompare set only compares tags. It never changes the
// size of a line, which is what the invalidation paths need.
type Array interface {
	Lookup(
		lineAddr uint64,
		req *mem.AccessReq,
		updateReplacement, forceCompare bool,
	) int
	Preinsert(lineAddr uint64, req *mem.AccessReq) (lineID int, wbLineAddr uint64)
	Postinsert(lineAddr uint64, req *mem.AccessReq, lineID int)
	Invalidate(lineID int)
	NumLines() int
}

// SetIndexer maps a line address to a set.
type SetIndexer interface {
	SetIndex(lineAddr uint64, numSets int) int
}

// ModuloIndexer uses the low bits of the line address.
type ModuloIndexer struct{}

// SetIndex returns the line address modulo the number of sets.
func (ModuloIndexer) SetIndex(lineAddr uint64, numSets int) int {
	return int(lineAddr % uint64(numSets))
}

// HashIndexer spreads the lines with a seeded xxhash, so that strided
// accesses do not pile up in a few sets.
type HashIndexer struct {
	Seed uint64
}

// SetIndex returns the hash of the line address modulo the number of sets.
func (h HashIndexer) SetIndex(lineAddr uint64, numSets int) int {
	var buf [16]byte

	binary.LittleEndian.PutUint64(buf[:8], h.Seed)
	binary.LittleEndian.PutUint64(buf[8:], lineAddr)

	return int(xxhash.Sum64(buf[:]) % uint64(numSets))
}
