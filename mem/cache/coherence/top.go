package coherence

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// TopCC tracks which children share each line of a level and keeps them
// coherent.
type TopCC struct {
	downLink

	entries      []sharerEntry
	nonInclusive bool
}

// NewTopCC creates a TopCC for numLines lines.
func NewTopCC(
	name string,
	numLines int,
	registry mem.Registry,
	nonInclusive bool,
) *TopCC {
	return &TopCC{
		downLink: downLink{
			name:     name,
			registry: registry,
		},
		entries:      make([]sharerEntry, numLines),
		nonInclusive: nonInclusive,
	}
}

// SetChildRTT sets the round trip latency to the children.
func (t *TopCC) SetChildRTT(rtt uint64) {
	t.rtt = rtt
}

// SetChildren connects the controller to its children.
func (t *TopCC) SetChildren(children []mem.LevelID) {
	t.setChildren(children)
}

// NumSharers returns the number of children that hold the line.
func (t *TopCC) NumSharers(lineID int) int {
	return t.entries[lineID].numSharers
}

// IsSharer returns true if the child holds the line.
func (t *TopCC) IsSharer(lineID, child int) bool {
	return t.entries[lineID].sharers.has(child)
}

// IsExclusive returns true if a single child holds the line in E or M.
func (t *TopCC) IsExclusive(lineID int) bool {
	return t.entries[lineID].isExclusive()
}

// SendInvalidates invalidates or downgrades the sharers of a line. The
// invalidations are sent in parallel, so the response arrives with the
// slowest child.
func (t *TopCC) SendInvalidates(
	lineAddr uint64,
	lineID int,
	invType mem.InvType,
	writeback *bool,
	cycle uint64,
	srcID int,
) uint64 {
	e := &t.entries[lineID]

	if invType == mem.INVX && !e.isExclusive() {
		return cycle
	}

	if e.isEmpty() {
		return cycle
	}

	maxCycle := cycle
	sent := 0

	e.sharers.each(func(c int) {
		req := &mem.InvReq{
			LineAddr:  lineAddr,
			Type:      invType,
			Writeback: writeback,
			Cycle:     cycle,
			SrcID:     srcID,
		}
		maxCycle = max(maxCycle, t.invalidate(c, req))

		if invType == mem.INV || invType == mem.CLINV {
			e.sharers.remove(c)
		}

		sent++
	})

	if sent != e.numSharers {
		panic(fmt.Sprintf("%s: sent %d invalidations of line 0x%x, "+
			"but it has %d sharers", t.name, sent, lineAddr, e.numSharers))
	}

	switch invType {
	case mem.INV:
		e.numSharers = 0
	case mem.CLINV:
		if *writeback {
			panic(fmt.Sprintf("%s: scrub of line 0x%x pulled dirty data",
				t.name, lineAddr))
		}

		e.numSharers = 0
	case mem.INVX:
		if e.numSharers != 1 {
			panic(fmt.Sprintf("%s: downgrading line 0x%x with %d sharers",
				t.name, lineAddr, e.numSharers))
		}

		e.exclusive = false
	default:
		panic(fmt.Sprintf("%s: cannot send %s", t.name, invType))
	}

	return maxCycle
}

// ProcessEviction invalidates all the children that hold the victim. A
// non-inclusive level forgets the sharers instead. Scrub evictions never pull
// dirty data.
func (t *TopCC) ProcessEviction(
	wbLineAddr uint64,
	lineID int,
	writeback *bool,
	cycle uint64,
	srcID int,
	scrub bool,
) uint64 {
	if t.nonInclusive {
		t.entries[lineID].clear()
		return cycle
	}

	invType := mem.INV
	if scrub {
		invType = mem.CLINV
	}

	return t.SendInvalidates(wbLineAddr, lineID, invType, writeback, cycle, srcID)
}

// ProcessAccess updates the sharers of the line for an access from a child
// and sets the state the child ends up in.
func (t *TopCC) ProcessAccess(
	req *mem.AccessReq,
	lineID int,
	haveExclusive bool,
	inducedWriteback *bool,
	cycle uint64,
) uint64 {
	e := &t.entries[lineID]

	switch req.Type {
	case mem.PUTX:
		if !e.isExclusive() {
			panic(fmt.Sprintf("%s: PUTX of line 0x%x that is not exclusive",
				t.name, req.LineAddr))
		}

		if req.Is(mem.FlagPutXKeepExcl) {
			t.keepExclusive(req, e)
			return cycle
		}

		t.removeSharer(req, e)
	case mem.PUTS:
		t.removeSharer(req, e)
	case mem.GETS:
		return t.processGETS(req, lineID, haveExclusive, inducedWriteback, cycle)
	case mem.GETX:
		return t.processGETX(req, lineID, haveExclusive, inducedWriteback, cycle)
	default:
		panic(fmt.Sprintf("%s: unknown access type %s", t.name, req.Type))
	}

	return cycle
}

func (t *TopCC) keepExclusive(req *mem.AccessReq, e *sharerEntry) {
	if !e.sharers.has(req.ChildID) || *req.State != mem.M {
		panic(fmt.Sprintf("%s: keep-exclusive PUTX from child %d in %s",
			t.name, req.ChildID, *req.State))
	}

	*req.State = mem.E
}

func (t *TopCC) removeSharer(req *mem.AccessReq, e *sharerEntry) {
	if !e.sharers.has(req.ChildID) {
		panic(fmt.Sprintf("%s: %s of line 0x%x from child %d that "+
			"does not share it", t.name, req.Type, req.LineAddr, req.ChildID))
	}

	e.sharers.remove(req.ChildID)
	e.numSharers--
	*req.State = mem.I
}

func (t *TopCC) processGETS(
	req *mem.AccessReq,
	lineID int,
	haveExclusive bool,
	inducedWriteback *bool,
	cycle uint64,
) uint64 {
	e := &t.entries[lineID]
	child := req.ChildID
	respCycle := cycle

	if e.isEmpty() && haveExclusive && !req.Is(mem.FlagNoExcl) {
		e.exclusive = true
		e.sharers.add(child)
		e.numSharers = 1
		*req.State = mem.E

		return respCycle
	}

	if e.sharers.has(child) {
		panic(fmt.Sprintf("%s: GETS of line 0x%x from child %d that "+
			"already shares it", t.name, req.LineAddr, child))
	}

	if e.isExclusive() {
		respCycle = t.SendInvalidates(req.LineAddr, lineID, mem.INVX,
			inducedWriteback, cycle, req.SrcID)
	}

	if e.isExclusive() {
		panic(fmt.Sprintf("%s: line 0x%x still exclusive after a downgrade",
			t.name, req.LineAddr))
	}

	e.sharers.add(child)
	e.numSharers++
	e.exclusive = false
	*req.State = mem.S

	return respCycle
}

func (t *TopCC) processGETX(
	req *mem.AccessReq,
	lineID int,
	haveExclusive bool,
	inducedWriteback *bool,
	cycle uint64,
) uint64 {
	e := &t.entries[lineID]
	child := req.ChildID
	respCycle := cycle

	if !haveExclusive {
		panic(fmt.Sprintf("%s: GETX of line 0x%x without exclusive "+
			"permission", t.name, req.LineAddr))
	}

	if req.Is(mem.FlagZeroAlloc1) {
		e.exclusive = true
		if e.numSharers > 1 {
			panic(fmt.Sprintf("%s: zero allocation of shared line 0x%x",
				t.name, req.LineAddr))
		}

		*req.State = mem.M

		return respCycle
	}

	if e.sharers.has(child) {
		if e.isExclusive() {
			panic(fmt.Sprintf("%s: GETX of line 0x%x from child %d that "+
				"already owns it", t.name, req.LineAddr, child))
		}

		e.sharers.remove(child)
		e.numSharers--
	}

	respCycle = t.SendInvalidates(req.LineAddr, lineID, mem.INV,
		inducedWriteback, cycle, req.SrcID)

	e.sharers.add(child)
	e.numSharers++
	e.exclusive = true

	if e.numSharers != 1 {
		panic(fmt.Sprintf("%s: line 0x%x has %d sharers after GETX",
			t.name, req.LineAddr, e.numSharers))
	}

	*req.State = mem.M

	return respCycle
}

// ProcessInval passes an invalidation from the parent down to the sharers.
func (t *TopCC) ProcessInval(
	lineAddr uint64,
	lineID int,
	invType mem.InvType,
	writeback *bool,
	cycle uint64,
	srcID int,
) uint64 {
	if invType == mem.FWD {
		panic(fmt.Sprintf("%s: FWD of line 0x%x, forwarding is reserved",
			t.name, lineAddr))
	}

	return t.SendInvalidates(lineAddr, lineID, invType, writeback, cycle, srcID)
}

// Check panics if the entry of a line breaks the sharer invariants.
func (t *TopCC) Check(lineID int) {
	e := &t.entries[lineID]

	if e.sharers.count() != e.numSharers {
		panic(fmt.Sprintf("%s: line %d counts %d sharers, bitmap has %d",
			t.name, lineID, e.numSharers, e.sharers.count()))
	}

	if e.isExclusive() && e.numSharers != 1 {
		panic(fmt.Sprintf("%s: exclusive line %d has %d sharers",
			t.name, lineID, e.numSharers))
	}
}
