package coherence

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// MESICC is the controller of an inclusive level that has caches as
// children. The top half keeps the children coherent and the bottom half
// keeps the level coherent with its parents.
type MESICC struct {
	name string
	lock LevelLock
	bcc  *BottomCC
	tcc  *TopCC

	nonInclusive bool
}

// NewMESICC creates a MESICC for numLines lines.
func NewMESICC(
	name string,
	numLines int,
	registry mem.Registry,
	nonInclusive bool,
) *MESICC {
	cc := &MESICC{
		name:         name,
		nonInclusive: nonInclusive,
	}

	cc.bcc = NewBottomCC(name, numLines, registry, cc.lock.Down(),
		nonInclusive)
	cc.tcc = NewTopCC(name, numLines, registry, nonInclusive)

	return cc
}

// Bottom returns the half that faces the parents.
func (cc *MESICC) Bottom() *BottomCC {
	return cc.bcc
}

// Top returns the half that faces the children.
func (cc *MESICC) Top() *TopCC {
	return cc.tcc
}

// SetParents connects the level to its parents.
func (cc *MESICC) SetParents(childID int, parents []mem.LevelID) {
	cc.bcc.SetParents(childID, parents)
}

// SetChildren connects the level to its children.
func (cc *MESICC) SetChildren(children []mem.LevelID) {
	cc.tcc.SetChildren(children)
}

// StartAccess locks the level.
func (cc *MESICC) StartAccess(req *mem.AccessReq) bool {
	mustBeAccessType(cc.name, req)

	cc.lock.Enter(req.ChildLock)

	return CheckForRace(req)
}

// ShouldAllocate returns true for GETs. A writeback that misses an inclusive
// level means inclusion was lost.
func (cc *MESICC) ShouldAllocate(req *mem.AccessReq) bool {
	if req.Type.IsGet() {
		return true
	}

	if !cc.nonInclusive {
		panic(fmt.Sprintf("%s: inclusion lost on line 0x%x, %s from "+
			"child %d in %s", cc.name, req.LineAddr, req.Type,
			req.ChildID, *req.State))
	}

	return false
}

// ProcessEviction invalidates the children that hold the victim and writes it
// back to the parent.
func (cc *MESICC) ProcessEviction(
	triggerReq *mem.AccessReq,
	wbLineAddr uint64,
	lineID int,
	cycle uint64,
) uint64 {
	lowerLevelWriteback := false
	scrub := triggerReq.Is(mem.FlagCacheScrub1)

	evCycle := cc.tcc.ProcessEviction(wbLineAddr, lineID,
		&lowerLevelWriteback, cycle, triggerReq.SrcID, scrub)

	return cc.bcc.ProcessEviction(wbLineAddr, lineID, lowerLevelWriteback,
		evCycle, triggerReq.SrcID, triggerReq.Flags)
}

// ProcessAccess serves the access. Prefetches do not change the sharers.
func (cc *MESICC) ProcessAccess(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	if lineID == -1 {
		if !req.Type.IsPut() {
			panic(fmt.Sprintf("%s: %s of line 0x%x without a line",
				cc.name, req.Type, req.LineAddr))
		}

		return cc.bcc.ProcessNonInclusiveWriteback(req, cycle)
	}

	respCycle := cc.bcc.ProcessAccess(req.LineAddr, lineID, req.Type,
		cycle, req.SrcID, req.Flags)

	if req.Is(mem.FlagPrefetch) {
		return respCycle
	}

	lowerLevelWriteback := false
	respCycle = cc.tcc.ProcessAccess(req, lineID,
		cc.bcc.IsExclusive(lineID), &lowerLevelWriteback, respCycle)

	if lowerLevelWriteback {
		cc.bcc.ProcessWritebackOnAccess(lineID)
	}

	return respCycle
}

// EndAccess unlocks the level.
func (cc *MESICC) EndAccess(req *mem.AccessReq) {
	cc.lock.Exit(req.ChildLock)
}

// StartInv locks the level for an invalidation.
func (cc *MESICC) StartInv() {
	cc.lock.EnterInv()
}

// ProcessInv invalidates the children and then the level itself.
func (cc *MESICC) ProcessInv(req *mem.InvReq, lineID int, cycle uint64) uint64 {
	defer cc.lock.ExitInv()

	if lineID == -1 {
		if req.Type != mem.CLINV {
			panic(fmt.Sprintf("%s: %s of line 0x%x that is not present",
				cc.name, req.Type, req.LineAddr))
		}

		return cycle
	}

	respCycle := cc.tcc.ProcessInval(req.LineAddr, lineID, req.Type,
		req.Writeback, cycle, req.SrcID)
	cc.bcc.ProcessInval(req.LineAddr, lineID, req.Type, req.Writeback)

	return respCycle
}

// IsValid returns true if the line is not in I.
func (cc *MESICC) IsValid(lineID int) bool {
	return cc.bcc.IsValid(lineID)
}

// State returns the state of a line.
func (cc *MESICC) State(lineID int) mem.MESIState {
	return cc.bcc.State(lineID)
}

// NumLines returns the number of lines.
func (cc *MESICC) NumLines() int {
	return cc.bcc.NumLines()
}

// PassScrubToParent sends a scrub that targets a higher level up.
func (cc *MESICC) PassScrubToParent(req *mem.AccessReq) uint64 {
	return cc.bcc.scrub(req)
}

// PassZeroAllocToParent sends a zero allocation that targets a higher level
// up.
func (cc *MESICC) PassZeroAllocToParent(req *mem.AccessReq) uint64 {
	return cc.bcc.zeroAlloc(req)
}

// TerminalCC is the controller of a level whose requesters are cores, so
// there are no children to keep coherent.
type TerminalCC struct {
	name string
	lock LevelLock
	bcc  *BottomCC
}

// NewTerminalCC creates a TerminalCC for numLines lines.
func NewTerminalCC(
	name string,
	numLines int,
	registry mem.Registry,
) *TerminalCC {
	cc := &TerminalCC{name: name}
	cc.bcc = NewBottomCC(name, numLines, registry, cc.lock.Down(), false)

	return cc
}

// Bottom returns the half that faces the parents.
func (cc *TerminalCC) Bottom() *BottomCC {
	return cc.bcc
}

// SetParents connects the level to its parents.
func (cc *TerminalCC) SetParents(childID int, parents []mem.LevelID) {
	cc.bcc.SetParents(childID, parents)
}

// SetChildren panics, a terminal level has no children.
func (cc *TerminalCC) SetChildren(children []mem.LevelID) {
	if len(children) > 0 {
		panic(fmt.Sprintf("%s: a terminal level cannot have children",
			cc.name))
	}
}

// StartAccess locks the level.
func (cc *TerminalCC) StartAccess(req *mem.AccessReq) bool {
	mustBeAccessType(cc.name, req)

	cc.lock.Enter(req.ChildLock)

	return CheckForRace(req)
}

// ShouldAllocate returns true. Cores only send GETs.
func (cc *TerminalCC) ShouldAllocate(req *mem.AccessReq) bool {
	if !req.Type.IsGet() {
		panic(fmt.Sprintf("%s: %s of line 0x%x from a core",
			cc.name, req.Type, req.LineAddr))
	}

	return true
}

// ProcessEviction writes the victim back to the parent.
func (cc *TerminalCC) ProcessEviction(
	triggerReq *mem.AccessReq,
	wbLineAddr uint64,
	lineID int,
	cycle uint64,
) uint64 {
	return cc.bcc.ProcessEviction(wbLineAddr, lineID, false, cycle,
		triggerReq.SrcID, triggerReq.Flags)
}

// ProcessAccess serves the access. The requester, if it tracks a state,
// ends up with the state of the line.
func (cc *TerminalCC) ProcessAccess(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	if lineID == -1 {
		panic(fmt.Sprintf("%s: %s of line 0x%x without a line",
			cc.name, req.Type, req.LineAddr))
	}

	respCycle := cc.bcc.ProcessAccess(req.LineAddr, lineID, req.Type,
		cycle, req.SrcID, req.Flags)

	if req.State != nil {
		*req.State = cc.bcc.State(lineID)
	}

	return respCycle
}

// EndAccess unlocks the level.
func (cc *TerminalCC) EndAccess(req *mem.AccessReq) {
	cc.lock.Exit(req.ChildLock)
}

// StartInv locks the level for an invalidation.
func (cc *TerminalCC) StartInv() {
	cc.lock.EnterInv()
}

// ProcessInv invalidates the line. It adds no latency.
func (cc *TerminalCC) ProcessInv(
	req *mem.InvReq,
	lineID int,
	cycle uint64,
) uint64 {
	defer cc.lock.ExitInv()

	cc.bcc.ProcessInval(req.LineAddr, lineID, req.Type, req.Writeback)

	return cycle
}

// IsValid returns true if the line is not in I.
func (cc *TerminalCC) IsValid(lineID int) bool {
	return cc.bcc.IsValid(lineID)
}

// State returns the state of a line.
func (cc *TerminalCC) State(lineID int) mem.MESIState {
	return cc.bcc.State(lineID)
}

// NumLines returns the number of lines.
func (cc *TerminalCC) NumLines() int {
	return cc.bcc.NumLines()
}

// PassScrubToParent sends a scrub that targets a higher level up.
func (cc *TerminalCC) PassScrubToParent(req *mem.AccessReq) uint64 {
	return cc.bcc.scrub(req)
}

// PassZeroAllocToParent sends a zero allocation that targets a higher level
// up.
func (cc *TerminalCC) PassZeroAllocToParent(req *mem.AccessReq) uint64 {
	return cc.bcc.zeroAlloc(req)
}

func mustBeAccessType(name string, req *mem.AccessReq) {
	switch req.Type {
	case mem.GETS, mem.GETX, mem.PUTS, mem.PUTX:
	default:
		panic(fmt.Sprintf("%s: unknown access type %s", name, req.Type))
	}
}
