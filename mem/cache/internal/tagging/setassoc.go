package tagging

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// A Block is a slot of the set-associative array.
type Block struct {
	LineAddr uint64
	IsValid  bool
}

// SetAssocArray is a classic set-associative array. One line always takes
// one slot. Line ids are set*ways+way.
type SetAssocArray struct {
	numSets int
	numWays int
	blocks  []Block
	policy  Policy
	indexer SetIndexer
	cands   []int
}

// NewSetAssocArray creates a set-associative array with numLines slots.
func NewSetAssocArray(
	numLines, numWays int,
	policy Policy,
	indexer SetIndexer,
) *SetAssocArray {
	if numWays <= 0 || numLines%numWays != 0 {
		panic(fmt.Sprintf(
			"%d lines cannot be split into %d ways", numLines, numWays))
	}

	if indexer == nil {
		indexer = ModuloIndexer{}
	}

	a := &SetAssocArray{
		numSets: numLines / numWays,
		numWays: numWays,
		blocks:  make([]Block, numLines),
		policy:  policy,
		indexer: indexer,
		cands:   make([]int, numWays),
	}

	return a
}

// NumLines returns the number of slots.
func (a *SetAssocArray) NumLines() int {
	return len(a.blocks)
}

// NumSets returns the number of sets.
func (a *SetAssocArray) NumSets() int {
	return a.numSets
}

// Block returns the content of a slot.
func (a *SetAssocArray) Block(lineID int) Block {
	return a.blocks[lineID]
}

func (a *SetAssocArray) firstID(lineAddr uint64) int {
	return a.indexer.SetIndex(lineAddr, a.numSets) * a.numWays
}

// Lookup finds the slot that holds the line.
func (a *SetAssocArray) Lookup(
	lineAddr uint64,
	req *mem.AccessReq,
	updateReplacement, forceCompare bool,
) int {
	first := a.firstID(lineAddr)

	for id := first; id < first+a.numWays; id++ {
		b := a.blocks[id]
		if b.IsValid && b.LineAddr == lineAddr {
			if updateReplacement && !forceCompare {
				a.policy.Update(id, req)
			}

			return id
		}
	}

	return -1
}

// Preinsert ranks all the ways of the set and returns the victim.
func (a *SetAssocArray) Preinsert(
	lineAddr uint64,
	req *mem.AccessReq,
) (lineID int, wbLineAddr uint64) {
	first := a.firstID(lineAddr)
	for i := range a.cands {
		a.cands[i] = first + i
	}

	lineID = a.policy.Rank(req, a.cands)
	wbLineAddr = a.blocks[lineID].LineAddr

	return lineID, wbLineAddr
}

// Postinsert replaces the victim with the new line.
func (a *SetAssocArray) Postinsert(
	lineAddr uint64,
	req *mem.AccessReq,
	lineID int,
) {
	a.policy.Replaced(lineID)
	a.blocks[lineID] = Block{LineAddr: lineAddr, IsValid: true}
	a.policy.Update(lineID, req)
}

// Invalidate empties a slot.
func (a *SetAssocArray) Invalidate(lineID int) {
	a.policy.Replaced(lineID)
	a.blocks[lineID] = Block{}
}
