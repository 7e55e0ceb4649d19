package coherence

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// dirTag is what a directory knows about a line. The directory never holds
// dirty data, so a line is never in M once an access completes.
type dirTag struct {
	state      mem.MESIState
	sharers    sharerSet
	numSharers int
	exclSharer int
}

func (t *dirTag) isSharer(c int) bool {
	return t.sharers.has(c)
}

func (t *dirTag) hasExclSharer() bool {
	return t.exclSharer != -1
}

func (t *dirTag) addSharer(c int, exclusive bool) {
	if t.sharers.has(c) {
		panic(fmt.Sprintf("child %d already shares the line", c))
	}

	if t.hasExclSharer() {
		panic(fmt.Sprintf("adding child %d next to exclusive sharer %d",
			c, t.exclSharer))
	}

	if exclusive && t.numSharers != 0 {
		panic(fmt.Sprintf("child %d cannot be exclusive among %d sharers",
			c, t.numSharers))
	}

	t.sharers.add(c)
	t.numSharers++

	if exclusive {
		t.exclSharer = c
	}
}

func (t *dirTag) removeSharer(c int) {
	if !t.sharers.has(c) {
		panic(fmt.Sprintf("child %d does not share the line", c))
	}

	t.sharers.remove(c)
	t.numSharers--

	if t.exclSharer == c {
		t.exclSharer = -1
	}
}

// check reports a tag that is not stable. Call it only after all the changes
// of an operation are done.
func (t *dirTag) check() error {
	ok := true

	switch t.state {
	case mem.I:
		ok = t.numSharers == 0 && t.exclSharer == -1
	case mem.S:
		ok = t.numSharers > 0 && t.exclSharer == -1
	case mem.E:
		ok = t.numSharers > 0 && (t.numSharers == 1 || t.exclSharer == -1)
	default:
		ok = false
	}

	if t.sharers.count() != t.numSharers {
		ok = false
	}

	if ok {
		return nil
	}

	return fmt.Errorf("inconsistent line state %s, exclusive sharer %d, "+
		"%d sharers", t.state, t.exclSharer, t.numSharers)
}

// DirCC is the controller of a directory level. It keeps the sharers of the
// lines coherent, while the data lives in the children or in the parent.
type DirCC struct {
	upLink
	downLink

	name string
	lock LevelLock
	tags []dirTag
}

// NewDirCC creates a DirCC for numLines lines.
func NewDirCC(name string, numLines int, registry mem.Registry) *DirCC {
	cc := &DirCC{
		upLink: upLink{
			name:     name,
			registry: registry,
		},
		downLink: downLink{
			name:     name,
			registry: registry,
		},
		name: name,
		tags: make([]dirTag, numLines),
	}

	for i := range cc.tags {
		cc.tags[i].exclSharer = -1
	}

	return cc
}

// SetParentRTT sets the round trip latency to the parents.
func (cc *DirCC) SetParentRTT(rtt uint64) {
	cc.upLink.rtt = rtt
}

// SetChildRTT sets the round trip latency to the children.
func (cc *DirCC) SetChildRTT(rtt uint64) {
	cc.downLink.rtt = rtt
}

// SetParentMapper replaces the default XOR-folding bank selection.
func (cc *DirCC) SetParentMapper(m mem.ParentMapper) {
	cc.mapper = m
}

// SetParents connects the directory to its parents.
func (cc *DirCC) SetParents(childID int, parents []mem.LevelID) {
	cc.setParents(childID, parents)
}

// SetChildren connects the directory to its children.
func (cc *DirCC) SetChildren(children []mem.LevelID) {
	cc.setChildren(children)
}

// NumSharers returns the number of children that hold the line.
func (cc *DirCC) NumSharers(lineID int) int {
	return cc.tags[lineID].numSharers
}

// IsSharer returns true if the child holds the line.
func (cc *DirCC) IsSharer(lineID, child int) bool {
	return cc.tags[lineID].isSharer(child)
}

// ExclusiveSharer returns the child that holds the line exclusively, or -1.
func (cc *DirCC) ExclusiveSharer(lineID int) int {
	return cc.tags[lineID].exclSharer
}

// Check returns an error if the line breaks the sharer invariants.
func (cc *DirCC) Check(lineID int) error {
	return cc.tags[lineID].check()
}

func (cc *DirCC) mustBeConsistent(lineID int, lineAddr uint64) {
	if err := cc.tags[lineID].check(); err != nil {
		panic(fmt.Sprintf("%s: line 0x%x: %v", cc.name, lineAddr, err))
	}
}

// StartAccess locks the directory, up before down.
func (cc *DirCC) StartAccess(req *mem.AccessReq) bool {
	mustBeAccessType(cc.name, req)

	cc.lock.Enter(req.ChildLock)

	return CheckForRace(req)
}

// ShouldAllocate returns true. The directory is inclusive, so writebacks
// always hit.
func (cc *DirCC) ShouldAllocate(req *mem.AccessReq) bool {
	if !req.Type.IsGet() {
		panic(fmt.Sprintf("%s: %s of line 0x%x missed the directory",
			cc.name, req.Type, req.LineAddr))
	}

	return true
}

// ProcessEviction invalidates the sharers of the victim and writes it back.
// The writeback is off the critical path.
func (cc *DirCC) ProcessEviction(
	triggerReq *mem.AccessReq,
	wbLineAddr uint64,
	lineID int,
	cycle uint64,
) uint64 {
	tag := &cc.tags[lineID]
	if tag.state == mem.I {
		return cycle
	}

	writeback := false
	respCycle := cc.sendInvalidates(wbLineAddr, lineID, mem.INV, &writeback,
		cycle, triggerReq.SrcID)

	if writeback {
		if tag.state != mem.E {
			panic(fmt.Sprintf("%s: dirty writeback of line 0x%x in %s",
				cc.name, wbLineAddr, tag.state))
		}

		cc.issueParentAccess(wbLineAddr, lineID, mem.PUTX, respCycle,
			triggerReq.SrcID, 0)
	} else {
		cc.issueParentAccess(wbLineAddr, lineID, mem.PUTS, respCycle,
			triggerReq.SrcID, 0)
	}

	if tag.state != mem.I {
		panic(fmt.Sprintf("%s: line 0x%x in %s after eviction",
			cc.name, wbLineAddr, tag.state))
	}

	return respCycle
}

// ProcessAccess serves an access from a child.
func (cc *DirCC) ProcessAccess(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	if lineID == -1 {
		panic(fmt.Sprintf("%s: %s of line 0x%x without a line",
			cc.name, req.Type, req.LineAddr))
	}

	var respCycle uint64

	switch req.Type {
	case mem.GETS:
		respCycle = cc.processGETS(req, lineID, cycle)
	case mem.GETX:
		respCycle = cc.processGETX(req, lineID, cycle)
	case mem.PUTS, mem.PUTX:
		respCycle = cc.processPUT(req, lineID, cycle)
	default:
		panic(fmt.Sprintf("%s: unknown access type %s", cc.name, req.Type))
	}

	cc.mustBeConsistent(lineID, req.LineAddr)

	return respCycle
}

func (cc *DirCC) processGETS(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	tag := &cc.tags[lineID]
	respCycle := cycle
	giveExcl := false

	switch {
	case tag.state == mem.I:
		respCycle = cc.issueParentAccess(req.LineAddr, lineID, mem.GETS,
			cycle, req.SrcID, req.Flags)
		giveExcl = tag.state == mem.E
	case tag.hasExclSharer():
		writeback := false
		respCycle = cc.sendInvalidates(req.LineAddr, lineID, mem.INVX,
			&writeback, cycle, req.SrcID)

		if writeback {
			tag.state = mem.M
			respCycle = cc.issueParentAccess(req.LineAddr, lineID, mem.PUTX,
				respCycle, req.SrcID, mem.FlagPutXKeepExcl)

			// An invalidation raced with the writeback and took the line
			// away. It happened before this access, so start over from I.
			if tag.state != mem.E {
				if tag.state != mem.I || tag.numSharers != 0 {
					panic(fmt.Sprintf("%s: line 0x%x in %s with %d sharers "+
						"after a racing writeback", cc.name, req.LineAddr,
						tag.state, tag.numSharers))
				}

				return cc.processGETS(req, lineID, cycle)
			}
		}
	default:
		// Other children share the line. Forwarding from one of them is
		// reserved, so the data comes from the parent, which must be a level
		// that does not track the directory as a sharer.
		respCycle = cc.issueParentAccess(req.LineAddr, lineID, mem.GETS,
			cycle, req.SrcID, req.Flags)
	}

	if tag.state != mem.S && tag.state != mem.E {
		panic(fmt.Sprintf("%s: GETS of line 0x%x left it in %s",
			cc.name, req.LineAddr, tag.state))
	}

	if req.Is(mem.FlagNoExcl) {
		giveExcl = false
	}

	tag.addSharer(req.ChildID, giveExcl)

	if giveExcl {
		*req.State = mem.E
	} else {
		*req.State = mem.S
	}

	return respCycle
}

func (cc *DirCC) processGETX(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	tag := &cc.tags[lineID]
	upperRespCycle := cycle

	if tag.state != mem.E {
		upperRespCycle = cc.issueParentAccess(req.LineAddr, lineID, mem.GETX,
			cycle, req.SrcID, req.Flags)

		if tag.state != mem.M {
			panic(fmt.Sprintf("%s: GETX of line 0x%x granted %s",
				cc.name, req.LineAddr, tag.state))
		}

		// The data goes to the child, the directory only keeps the
		// permission.
		tag.state = mem.E
	}

	if tag.isSharer(req.ChildID) {
		tag.removeSharer(req.ChildID)
	}

	// A dirty writeback pulled by the invalidations goes straight to the
	// requester, which gets the line in M.
	writeback := false
	lowerRespCycle := cc.sendInvalidates(req.LineAddr, lineID, mem.INV,
		&writeback, cycle, req.SrcID)

	if req.Is(mem.FlagNoExcl) {
		panic(fmt.Sprintf("%s: GETX of line 0x%x forbids exclusivity",
			cc.name, req.LineAddr))
	}

	tag.addSharer(req.ChildID, true)
	*req.State = mem.M

	return max(upperRespCycle, lowerRespCycle)
}

func (cc *DirCC) processPUT(
	req *mem.AccessReq,
	lineID int,
	cycle uint64,
) uint64 {
	tag := &cc.tags[lineID]
	respCycle := cycle

	if req.Type == mem.PUTX && req.Is(mem.FlagPutXKeepExcl) {
		if *req.State != mem.M {
			panic(fmt.Sprintf("%s: keep-exclusive PUTX from a child in %s",
				cc.name, *req.State))
		}

		tag.state = mem.M
		respCycle = cc.issueParentAccess(req.LineAddr, lineID, mem.PUTX,
			respCycle, req.SrcID, mem.FlagPutXKeepExcl)

		if tag.state == mem.E {
			*req.State = mem.E
			return respCycle
		}

		// The parent invalidated the directory while the writeback was in
		// flight. The child got I from an INV or S from an INVX.
		if tag.state != mem.I {
			panic(fmt.Sprintf("%s: line 0x%x in %s after a racing writeback",
				cc.name, req.LineAddr, tag.state))
		}

		if *req.State == mem.S {
			tag.removeSharer(req.ChildID)
			*req.State = mem.I
		}

		return respCycle
	}

	if tag.numSharers == 1 {
		respCycle = cc.issueParentAccess(req.LineAddr, lineID, req.Type,
			respCycle, req.SrcID, 0)

		if tag.state != mem.I {
			panic(fmt.Sprintf("%s: line 0x%x in %s after the last writeback",
				cc.name, req.LineAddr, tag.state))
		}
	}

	// A racing invalidation may have already turned the child to I.
	if *req.State != mem.I {
		tag.removeSharer(req.ChildID)
		*req.State = mem.I
	}

	return respCycle
}

// EndAccess hands the lock back to the caller, then unlocks the directory.
func (cc *DirCC) EndAccess(req *mem.AccessReq) {
	cc.lock.Exit(req.ChildLock)
}

// StartInv locks the directory for an invalidation.
func (cc *DirCC) StartInv() {
	cc.lock.EnterInv()
}

// ProcessInv invalidates the children and adjusts the state of the line.
func (cc *DirCC) ProcessInv(req *mem.InvReq, lineID int, cycle uint64) uint64 {
	defer cc.lock.ExitInv()

	if lineID == -1 {
		if req.Type != mem.CLINV {
			panic(fmt.Sprintf("%s: %s of line 0x%x that is not present",
				cc.name, req.Type, req.LineAddr))
		}

		return cycle
	}

	tag := &cc.tags[lineID]

	var respCycle uint64

	switch req.Type {
	case mem.INVX:
		respCycle = cc.sendInvalidates(req.LineAddr, lineID, mem.INVX,
			req.Writeback, cycle, req.SrcID)

		// M shows up when the invalidation races with a dirty writeback.
		if !tag.state.IsExclusive() || tag.hasExclSharer() {
			panic(fmt.Sprintf("%s: INVX of line 0x%x in %s", cc.name,
				req.LineAddr, tag.state))
		}

		tag.state = mem.S
	case mem.INV, mem.CLINV:
		respCycle = cc.sendInvalidates(req.LineAddr, lineID, mem.INV,
			req.Writeback, cycle, req.SrcID)

		if tag.state == mem.I || tag.numSharers != 0 {
			panic(fmt.Sprintf("%s: %s of line 0x%x in %s with %d sharers",
				cc.name, req.Type, req.LineAddr, tag.state, tag.numSharers))
		}

		tag.state = mem.I
		cc.mustBeConsistent(lineID, req.LineAddr)
	case mem.FWD:
		panic(fmt.Sprintf("%s: FWD of line 0x%x, forwarding is reserved",
			cc.name, req.LineAddr))
	default:
		panic(fmt.Sprintf("%s: unknown invalidation %s", cc.name, req.Type))
	}

	return respCycle
}

// IsValid returns true if the line is not in I.
func (cc *DirCC) IsValid(lineID int) bool {
	return cc.tags[lineID].state != mem.I
}

// State returns the state of a line.
func (cc *DirCC) State(lineID int) mem.MESIState {
	return cc.tags[lineID].state
}

// NumLines returns the number of lines.
func (cc *DirCC) NumLines() int {
	return len(cc.tags)
}

// PassScrubToParent sends a scrub that targets a higher level up.
func (cc *DirCC) PassScrubToParent(req *mem.AccessReq) uint64 {
	return cc.scrub(req)
}

// PassZeroAllocToParent sends a zero allocation that targets a higher level
// up.
func (cc *DirCC) PassZeroAllocToParent(req *mem.AccessReq) uint64 {
	return cc.zeroAlloc(req)
}

func (cc *DirCC) sendInvalidates(
	lineAddr uint64,
	lineID int,
	invType mem.InvType,
	writeback *bool,
	cycle uint64,
	srcID int,
) uint64 {
	tag := &cc.tags[lineID]
	respCycle := cycle

	switch invType {
	case mem.INVX:
		if !tag.hasExclSharer() {
			return respCycle
		}

		c := tag.exclSharer
		req := &mem.InvReq{
			LineAddr:  lineAddr,
			Type:      mem.INVX,
			Writeback: writeback,
			Cycle:     cycle,
			SrcID:     srcID,
		}
		respCycle = cc.invalidate(c, req)

		tag.removeSharer(c)
		tag.addSharer(c, false)
	case mem.INV:
		tag.sharers.each(func(c int) {
			req := &mem.InvReq{
				LineAddr:  lineAddr,
				Type:      mem.INV,
				Writeback: writeback,
				Cycle:     cycle,
				SrcID:     srcID,
			}
			respCycle = max(respCycle, cc.invalidate(c, req))
			tag.removeSharer(c)
		})
	default:
		panic(fmt.Sprintf("%s: cannot send %s", cc.name, invType))
	}

	return respCycle
}

// issueParentAccess sends an access for the line to its parent, lending the
// down lock of the directory.
func (cc *DirCC) issueParentAccess(
	lineAddr uint64,
	lineID int,
	t mem.AccessType,
	cycle uint64,
	srcID int,
	flags mem.Flag,
) uint64 {
	state := &cc.tags[lineID].state
	req := &mem.AccessReq{
		LineAddr:     lineAddr,
		Type:         t,
		ChildID:      cc.selfID,
		State:        state,
		InitialState: *state,
		Cycle:        cycle,
		ChildLock:    cc.lock.Down(),
		SrcID:        srcID,
		Flags:        flags,
	}

	return cc.access(req)
}
