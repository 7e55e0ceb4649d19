package coherence

import (
	"fmt"
	"sync"

	"github.com/sarchlab/compcache/mem/mem"
)

// BottomCC keeps the MESI state of each line of a level and talks to the
// parents of the level.
type BottomCC struct {
	upLink

	states       []mem.MESIState
	lock         sync.Locker
	nonInclusive bool
}

// NewBottomCC creates a BottomCC for numLines lines. The lock is lent to the
// parents with every request the controller sends up.
func NewBottomCC(
	name string,
	numLines int,
	registry mem.Registry,
	lock sync.Locker,
	nonInclusive bool,
) *BottomCC {
	return &BottomCC{
		upLink: upLink{
			name:     name,
			registry: registry,
		},
		states:       make([]mem.MESIState, numLines),
		lock:         lock,
		nonInclusive: nonInclusive,
	}
}

// SetParentRTT sets the round trip latency to the parents.
func (b *BottomCC) SetParentRTT(rtt uint64) {
	b.rtt = rtt
}

// SetParentMapper replaces the default XOR-folding bank selection.
func (b *BottomCC) SetParentMapper(m mem.ParentMapper) {
	b.mapper = m
}

// SetParents connects the controller to its parents.
func (b *BottomCC) SetParents(childID int, parents []mem.LevelID) {
	b.setParents(childID, parents)
}

// State returns the state of a line.
func (b *BottomCC) State(lineID int) mem.MESIState {
	return b.states[lineID]
}

// IsValid returns true if the line is not in I.
func (b *BottomCC) IsValid(lineID int) bool {
	return b.states[lineID] != mem.I
}

// IsExclusive returns true if the line is in E or M.
func (b *BottomCC) IsExclusive(lineID int) bool {
	return b.states[lineID].IsExclusive()
}

// NumLines returns the number of lines the controller tracks.
func (b *BottomCC) NumLines() int {
	return len(b.states)
}

func (b *BottomCC) newParentReq(
	lineAddr uint64,
	lineID int,
	t mem.AccessType,
	cycle uint64,
	srcID int,
	flags mem.Flag,
) *mem.AccessReq {
	state := &b.states[lineID]

	return &mem.AccessReq{
		LineAddr:     lineAddr,
		Type:         t,
		ChildID:      b.selfID,
		State:        state,
		InitialState: *state,
		Cycle:        cycle,
		ChildLock:    b.lock,
		SrcID:        srcID,
		Flags:        flags,
	}
}

// ProcessEviction writes the victim back to the parent and leaves it in I.
// The lower levels may have handed over dirty data while they were being
// invalidated, which turns the writeback into a PUTX.
func (b *BottomCC) ProcessEviction(
	wbLineAddr uint64,
	lineID int,
	lowerLevelWriteback bool,
	cycle uint64,
	srcID int,
	triggerFlags mem.Flag,
) uint64 {
	state := &b.states[lineID]
	flags := mem.Flag(0)

	if lowerLevelWriteback {
		if !state.IsExclusive() {
			panic(fmt.Sprintf(
				"%s: lower level wrote back line 0x%x held in %s",
				b.name, wbLineAddr, *state))
		}

		*state = mem.M
	}

	if triggerFlags.Has(mem.FlagCacheScrub1) {
		if *state == mem.M {
			*state = mem.E
		}

		flags |= mem.FlagCacheScrub1
	}

	respCycle := cycle

	switch *state {
	case mem.I:
	case mem.S, mem.E:
		req := b.newParentReq(wbLineAddr, lineID, mem.PUTS, cycle, srcID, flags)
		respCycle = b.parent(wbLineAddr).Access(req)
	case mem.M:
		req := b.newParentReq(wbLineAddr, lineID, mem.PUTX, cycle, srcID, 0)
		respCycle = b.parent(wbLineAddr).Access(req)
	default:
		panic(fmt.Sprintf("%s: unknown state %s", b.name, *state))
	}

	if *state != mem.I {
		panic(fmt.Sprintf("%s: line 0x%x in %s after eviction",
			b.name, wbLineAddr, *state))
	}

	return respCycle
}

// ProcessAccess applies an access from a child to the state of the line,
// fetching the line from the parent when the level does not have enough
// permission.
func (b *BottomCC) ProcessAccess(
	lineAddr uint64,
	lineID int,
	t mem.AccessType,
	cycle uint64,
	srcID int,
	flags mem.Flag,
) uint64 {
	respCycle := cycle
	state := &b.states[lineID]

	if flags.Has(mem.FlagCacheScrub1) && t != mem.PUTS {
		panic(fmt.Sprintf("%s: scrub carried by a %s", b.name, t))
	}

	if flags.Has(mem.FlagZeroAlloc1) {
		flags = mem.DowngradeZeroAllocFlag(flags)
	}

	switch t {
	case mem.PUTS:
		if *state == mem.I {
			panic(fmt.Sprintf("%s: PUTS on line 0x%x in I", b.name, lineAddr))
		}
	case mem.PUTX:
		if !state.IsExclusive() {
			panic(fmt.Sprintf("%s: PUTX on line 0x%x in %s",
				b.name, lineAddr, *state))
		}

		*state = mem.M
	case mem.GETS:
		if *state == mem.I {
			req := b.newParentReq(lineAddr, lineID, mem.GETS, cycle, srcID, flags)
			respCycle = b.access(req)

			if *state != mem.S && *state != mem.E {
				panic(fmt.Sprintf("%s: GETS of line 0x%x granted %s",
					b.name, lineAddr, *state))
			}
		}
	case mem.GETX:
		respCycle = b.processGETX(lineAddr, lineID, cycle, srcID, flags)
	default:
		panic(fmt.Sprintf("%s: unknown access type %s", b.name, t))
	}

	return respCycle
}

func (b *BottomCC) processGETX(
	lineAddr uint64,
	lineID int,
	cycle uint64,
	srcID int,
	flags mem.Flag,
) uint64 {
	respCycle := cycle
	state := &b.states[lineID]

	switch *state {
	case mem.I, mem.S:
		req := b.newParentReq(lineAddr, lineID, mem.GETX, cycle, srcID, flags)
		parentCycle := b.access(req)

		// A zero allocation is charged at the first level only.
		if !flags.Has(mem.FlagZeroAlloc) {
			respCycle = parentCycle
		}
	case mem.E:
		*state = mem.M
	}

	if *state != mem.M {
		panic(fmt.Sprintf("%s: GETX of line 0x%x ended in %s",
			b.name, lineAddr, *state))
	}

	return respCycle
}

// ProcessWritebackOnAccess records the dirty data a child handed over while
// it was downgraded.
func (b *BottomCC) ProcessWritebackOnAccess(lineID int) {
	state := &b.states[lineID]
	if !state.IsExclusive() {
		panic(fmt.Sprintf("%s: writeback on a line in %s", b.name, *state))
	}

	*state = mem.M
}

// ProcessInval applies an invalidation from the parent to the line. The
// bottom controller never calls up on an invalidation.
func (b *BottomCC) ProcessInval(
	lineAddr uint64,
	lineID int,
	t mem.InvType,
	writeback *bool,
) {
	if t == mem.CLINV && lineID == -1 {
		return
	}

	state := &b.states[lineID]
	if *state == mem.I {
		panic(fmt.Sprintf("%s: %s on line 0x%x in I", b.name, t, lineAddr))
	}

	switch t {
	case mem.INVX:
		if !state.IsExclusive() {
			panic(fmt.Sprintf("%s: INVX on line 0x%x in %s",
				b.name, lineAddr, *state))
		}

		if *state == mem.M {
			*writeback = true
		}

		*state = mem.S
	case mem.INV:
		if *state == mem.M {
			*writeback = true
		}

		*state = mem.I
	case mem.CLINV:
		*state = mem.I
	case mem.FWD:
		panic(fmt.Sprintf("%s: FWD of line 0x%x, forwarding is reserved",
			b.name, lineAddr))
	default:
		panic(fmt.Sprintf("%s: unknown invalidation %s", b.name, t))
	}
}

// ProcessNonInclusiveWriteback passes a writeback of a line the level does
// not hold straight to the parent.
func (b *BottomCC) ProcessNonInclusiveWriteback(
	req *mem.AccessReq,
	cycle uint64,
) uint64 {
	if !b.nonInclusive {
		panic(fmt.Sprintf("%s: non-inclusive %s of line 0x%x on an "+
			"inclusive level", b.name, req.Type, req.LineAddr))
	}

	parentReq := &mem.AccessReq{
		LineAddr:     req.LineAddr,
		Type:         req.Type,
		ChildID:      b.selfID,
		State:        req.State,
		InitialState: *req.State,
		Cycle:        cycle,
		ChildLock:    b.lock,
		SrcID:        req.SrcID,
		Flags:        req.Flags | mem.FlagNonInclWB,
	}

	return b.parent(req.LineAddr).Access(parentReq)
}
