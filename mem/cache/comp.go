// Package cache provides the cache level that ties a tag array to a
// coherence controller.
package cache

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/compcache/mem/cache/coherence"
	"github.com/sarchlab/compcache/mem/cache/internal/tagging"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/hooking"
	"github.com/sarchlab/compcache/sim/id"
)

// Comp is a cache level. It serves accesses from its children and
// invalidations from its parents, calling back and forth with the
// neighboring levels. All the calls are synchronous and return the cycle at
// which the request completes.
type Comp struct {
	hooking.HookableBase

	name   string
	accLat uint64
	tagLat uint64
	invLat uint64

	array  tagging.Array
	cc     coherence.Controller
	idGen  id.IDGenerator
	logger *slog.Logger

	// The task that holds the level lock. Evictions only happen under the
	// lock, so they belong to this task.
	lockedTaskID string
}

// Name returns the name of the level.
func (c *Comp) Name() string {
	return c.name
}

// Controller returns the coherence controller of the level.
func (c *Comp) Controller() coherence.Controller {
	return c.cc
}

// NumLines returns the number of lines of the tag array.
func (c *Comp) NumLines() int {
	return c.array.NumLines()
}

// LineOf returns the line id that holds the line, or -1. It does not lock
// the level and is meant for inspecting a quiescent hierarchy.
func (c *Comp) LineOf(lineAddr uint64) int {
	return c.array.Lookup(lineAddr, nil, false, true)
}

// SetParents connects the level to its parents. childID is the id of this
// level among the children of each parent.
func (c *Comp) SetParents(childID int, parents []mem.LevelID) {
	c.cc.SetParents(childID, parents)
}

// SetChildren connects the level to its children.
func (c *Comp) SetChildren(children []mem.LevelID) {
	c.cc.SetChildren(children)
}

// Access serves a GET or PUT from a child.
func (c *Comp) Access(req *mem.AccessReq) uint64 {
	if req.Is(mem.FlagZeroAlloc2) || req.Is(mem.FlagZeroAlloc3) {
		panic(fmt.Sprintf("%s: zero allocation %s did not reach its level",
			c.name, req))
	}

	taskID := c.startTask(req.Type.String(), "access", req.Cycle)
	respCycle := req.Cycle

	skip := c.cc.StartAccess(req)
	if !skip {
		c.lockedTaskID = taskID
		respCycle = c.serve(req, taskID)
	}

	c.cc.EndAccess(req)

	if respCycle < req.Cycle {
		panic(fmt.Sprintf("%s: %s completes at %d, before it arrives",
			c.name, req, respCycle))
	}

	c.endTask(taskID, respCycle)

	return respCycle
}

func (c *Comp) serve(req *mem.AccessReq, taskID string) uint64 {
	respCycle := req.Cycle
	updateReplacement := req.Type.IsGet()

	lineID := c.array.Lookup(req.LineAddr, req, updateReplacement, false)

	if req.Is(mem.FlagCacheScrub1) && (lineID == -1 || req.Type != mem.PUTS) {
		panic(fmt.Sprintf("%s: scrub writeback %s must hit", c.name, req))
	}

	if req.Type == mem.PUTX {
		c.tagTask(taskID, "writeback", "")
	}

	if lineID == -1 {
		c.tagTask(taskID, "miss", "")
		respCycle += c.tagLat

		if c.cc.ShouldAllocate(req) {
			lineID = c.allocate(req, respCycle)
		}
	} else {
		c.tagTask(taskID, "hit", "")
		respCycle += c.accLat
	}

	return c.cc.ProcessAccess(req, lineID, respCycle)
}

func (c *Comp) allocate(req *mem.AccessReq, cycle uint64) int {
	lineID, wbLineAddr := c.array.Preinsert(req.LineAddr, req)

	c.ProcessEviction(req, wbLineAddr, lineID, cycle)
	c.array.Postinsert(req.LineAddr, req, lineID)

	return lineID
}

// ProcessEviction evicts the line in a slot through the coherence
// controller. The arrays call it for the victims they pick by themselves.
// The completion cycle of the eviction is off the critical path of the
// access and is not charged to it.
func (c *Comp) ProcessEviction(
	triggerReq *mem.AccessReq,
	wbLineAddr uint64,
	lineID int,
	cycle uint64,
) uint64 {
	if !c.cc.IsValid(lineID) {
		return cycle
	}

	c.tagTask(c.lockedTaskID, "eviction", fmt.Sprintf("0x%x", wbLineAddr))

	// A writeback that evicts another line has grown its compressed size.
	if triggerReq.Type.IsPut() && wbLineAddr != triggerReq.LineAddr {
		c.tagTask(c.lockedTaskID, "resize", fmt.Sprintf("0x%x", wbLineAddr))
	}

	c.logger.Debug("evicting",
		"level", c.name,
		"line", fmt.Sprintf("0x%x", wbLineAddr),
		"state", c.cc.State(lineID).String())

	return c.cc.ProcessEviction(triggerReq, wbLineAddr, lineID, cycle)
}

// Invalidate serves an invalidation from a parent.
func (c *Comp) Invalidate(req *mem.InvReq) uint64 {
	taskID := c.startTask(req.Type.String(), "invalidation", req.Cycle)

	c.cc.StartInv()

	respCycle := req.Cycle

	lineID := c.array.Lookup(req.LineAddr, nil, false, true)
	if lineID == -1 {
		if req.Type != mem.CLINV {
			panic(fmt.Sprintf("%s: %s of a line the level does not hold",
				c.name, req))
		}
	} else {
		respCycle += c.invLat
	}

	respCycle = c.cc.ProcessInv(req, lineID, respCycle)

	c.endTask(taskID, respCycle)

	return respCycle
}

// ScrubInvalidate drops a line from the level that the scrub flags target,
// writing dirty data back as clean. Levels above the target pass the
// request on to their parent.
func (c *Comp) ScrubInvalidate(req *mem.AccessReq) uint64 {
	if !req.Is(mem.FlagCacheScrub1) {
		req.Flags = mem.DowngradeScrubFlag(req.Flags)
		return c.cc.PassScrubToParent(req)
	}

	taskID := c.startTask(req.Type.String(), "scrub", req.Cycle)
	respCycle := req.Cycle

	if c.cc.StartAccess(req) {
		panic(fmt.Sprintf("%s: scrub %s raced", c.name, req))
	}

	c.lockedTaskID = taskID

	lineID := c.array.Lookup(req.LineAddr, req, false, true)
	if lineID != -1 {
		respCycle += c.invLat

		c.ProcessEviction(req, req.LineAddr, lineID, respCycle)
		c.array.Invalidate(lineID)

		if c.cc.IsValid(lineID) {
			panic(fmt.Sprintf("%s: line 0x%x survives a scrub",
				c.name, req.LineAddr))
		}
	}

	c.cc.EndAccess(req)
	c.endTask(taskID, respCycle)

	return respCycle
}

// ZeroAlloc allocates a line in the level that the zero-allocation flags
// target without fetching its data. Levels above the target pass the
// request on to their parent.
func (c *Comp) ZeroAlloc(req *mem.AccessReq) uint64 {
	if req.State == nil {
		var state mem.MESIState
		req.State = &state
		req.InitialState = state
	}

	if req.Is(mem.FlagZeroAlloc1) {
		return c.Access(req)
	}

	req.Flags = mem.DowngradeZeroAllocFlag(req.Flags)

	return c.cc.PassZeroAllocToParent(req)
}
