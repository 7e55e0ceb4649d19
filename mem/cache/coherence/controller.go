// Package coherence provides the MESI coherence controllers of the cache
// levels.
//
// A BottomCC tracks the state of the lines of a level as seen by its parent.
// A TopCC tracks which children share each line. A MESICC combines both for
// an inclusive level, a TerminalCC serves a level whose requesters are cores
// and a DirCC tracks sharers of lines whose data it does not hold.
package coherence

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// MaxChildren is the largest number of children a level can keep coherent.
const MaxChildren = 256

// A Controller decides how the lines of a level change state. The cache
// orchestrator calls the methods in a fixed order: StartAccess, optionally
// ProcessEviction, ProcessAccess and finally EndAccess.
type Controller interface {
	// StartAccess locks the level and returns true if the access lost a race
	// and must be skipped.
	StartAccess(req *mem.AccessReq) bool
	ShouldAllocate(req *mem.AccessReq) bool
	ProcessEviction(
		triggerReq *mem.AccessReq,
		wbLineAddr uint64,
		lineID int,
		cycle uint64,
	) uint64
	ProcessAccess(req *mem.AccessReq, lineID int, cycle uint64) uint64
	EndAccess(req *mem.AccessReq)

	StartInv()
	// ProcessInv applies the invalidation and unlocks the level. The line id
	// is -1 when a scrub invalidation misses.
	ProcessInv(req *mem.InvReq, lineID int, cycle uint64) uint64

	IsValid(lineID int) bool
	State(lineID int) mem.MESIState
	NumLines() int

	PassScrubToParent(req *mem.AccessReq) uint64
	PassZeroAllocToParent(req *mem.AccessReq) uint64

	SetParents(childID int, parents []mem.LevelID)
	SetChildren(children []mem.LevelID)
}

// upLink is the connection of a level to its parents.
type upLink struct {
	name     string
	registry mem.Registry
	mapper   mem.ParentMapper
	selfID   int
	parents  []mem.LevelID
	rtt      uint64
}

func (u *upLink) setParents(childID int, parents []mem.LevelID) {
	if len(parents) == 0 {
		panic(fmt.Sprintf("%s: no parent", u.name))
	}

	u.selfID = childID
	u.parents = parents
}

func (u *upLink) parentIndex(lineAddr uint64) int {
	if u.mapper != nil {
		return u.mapper.Find(lineAddr)
	}

	return mem.ParentIndex(lineAddr, len(u.parents))
}

func (u *upLink) parent(lineAddr uint64) mem.MemObject {
	if u.registry == nil || len(u.parents) == 0 {
		panic(fmt.Sprintf("%s: parents are not connected", u.name))
	}

	return u.registry.MemObject(u.parents[u.parentIndex(lineAddr)])
}

func (u *upLink) parentCache(lineAddr uint64) mem.Cache {
	if u.registry == nil || len(u.parents) == 0 {
		panic(fmt.Sprintf("%s: parents are not connected", u.name))
	}

	c := u.registry.Cache(u.parents[u.parentIndex(lineAddr)])
	if c == nil {
		panic(fmt.Sprintf(
			"%s: parent of line 0x%x is not a cache, the request "+
				"targets a level beyond the last cache", u.name, lineAddr))
	}

	return c
}

// access sends the request to the parent of the line and returns the cycle
// the response arrives back, with the round trip included.
func (u *upLink) access(req *mem.AccessReq) uint64 {
	return u.parent(req.LineAddr).Access(req) + u.rtt
}

func (u *upLink) scrub(req *mem.AccessReq) uint64 {
	return u.parentCache(req.LineAddr).ScrubInvalidate(req)
}

func (u *upLink) zeroAlloc(req *mem.AccessReq) uint64 {
	return u.parentCache(req.LineAddr).ZeroAlloc(req)
}

// downLink is the connection of a level to its children.
type downLink struct {
	name     string
	registry mem.Registry
	children []mem.LevelID
	rtt      uint64
}

func (d *downLink) setChildren(children []mem.LevelID) {
	if len(children) > MaxChildren {
		panic(fmt.Sprintf("%s: %d children, at most %d are supported",
			d.name, len(children), MaxChildren))
	}

	d.children = children
}

func (d *downLink) numChildren() int {
	return len(d.children)
}

// invalidate sends the invalidation to a child and returns the cycle the
// acknowledgement arrives back.
func (d *downLink) invalidate(child int, req *mem.InvReq) uint64 {
	c := d.registry.Cache(d.children[child])
	if c == nil {
		panic(fmt.Sprintf("%s: child %d is not a cache", d.name, child))
	}

	return c.Invalidate(req) + d.rtt
}
