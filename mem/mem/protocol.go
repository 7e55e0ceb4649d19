// Package mem defines the requests that flow between the levels of a
// coherent cache hierarchy and the interfaces the levels expose to each
// other.
package mem

import (
	"fmt"
	"sync"
)

// For capacity
const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30
)

// AccessType is the kind of an access that a child sends to its parent.
type AccessType int

// The supported access types.
const (
	GETS AccessType = iota // Read, may be granted E if nobody else shares.
	GETX                   // Read for ownership, always ends in M.
	PUTS                   // Clean writeback.
	PUTX                   // Dirty writeback.
)

func (t AccessType) String() string {
	switch t {
	case GETS:
		return "GETS"
	case GETX:
		return "GETX"
	case PUTS:
		return "PUTS"
	case PUTX:
		return "PUTX"
	}

	return fmt.Sprintf("AccessType(%d)", int(t))
}

// IsGet returns true for GETS and GETX.
func (t AccessType) IsGet() bool {
	return t == GETS || t == GETX
}

// IsPut returns true for PUTS and PUTX.
func (t AccessType) IsPut() bool {
	return t == PUTS || t == PUTX
}

// InvType is the kind of an invalidation that a parent sends to its
// children.
type InvType int

// The supported invalidation types.
const (
	INV   InvType = iota // Full invalidation.
	INVX                 // Downgrade an exclusive copy to shared.
	FWD                  // Forward, reserved and never issued.
	CLINV                // Scrub invalidation, allowed to miss.
)

func (t InvType) String() string {
	switch t {
	case INV:
		return "INV"
	case INVX:
		return "INVX"
	case FWD:
		return "FWD"
	case CLINV:
		return "CLINV"
	}

	return fmt.Sprintf("InvType(%d)", int(t))
}

// MESIState is the coherence state of a line in a level.
type MESIState int

// The MESI states.
const (
	I MESIState = iota
	S
	E
	M
)

func (s MESIState) String() string {
	switch s {
	case I:
		return "I"
	case S:
		return "S"
	case E:
		return "E"
	case M:
		return "M"
	}

	return fmt.Sprintf("MESIState(%d)", int(s))
}

// IsValid returns true if the line holds data.
func (s MESIState) IsValid() bool {
	return s != I
}

// IsExclusive returns true for E and M.
func (s MESIState) IsExclusive() bool {
	return s == E || s == M
}

// Flag is a bit in the flag set carried by an AccessReq.
type Flag uint32

// Request flags.
const (
	FlagIFetch       Flag = 1 << iota // Instruction fetch.
	FlagNoExcl                        // Never grant E, even with no sharers.
	FlagNonInclWB                     // Writeback of a line the sender does not track.
	FlagPutXKeepExcl                  // Dirty writeback where the child keeps E.
	FlagPrefetch                      // Prefetch, does not update the top controller.
	FlagCacheScrub1
	FlagCacheScrub2
	FlagCacheScrub3
	FlagZeroAlloc1
	FlagZeroAlloc2
	FlagZeroAlloc3
	FlagZeroAlloc // Marks a zero-allocation request after it reached its level.
)

// Has returns true if every bit of f is set.
func (fl Flag) Has(f Flag) bool {
	return fl&f == f
}

// DowngradeScrubFlag moves the scrub level flag one level closer to the
// target. The request is at its target when FlagCacheScrub1 is set.
func DowngradeScrubFlag(fl Flag) Flag {
	switch {
	case fl.Has(FlagCacheScrub3):
		return fl&^FlagCacheScrub3 | FlagCacheScrub2
	case fl.Has(FlagCacheScrub2):
		return fl&^FlagCacheScrub2 | FlagCacheScrub1
	}

	return fl
}

// DowngradeZeroAllocFlag moves the zero-alloc level flag one level closer to
// the target. At the target, FlagZeroAlloc1 turns into FlagZeroAlloc.
func DowngradeZeroAllocFlag(fl Flag) Flag {
	switch {
	case fl.Has(FlagZeroAlloc1):
		return fl&^FlagZeroAlloc1 | FlagZeroAlloc
	case fl.Has(FlagZeroAlloc3):
		return fl&^FlagZeroAlloc3 | FlagZeroAlloc2
	case fl.Has(FlagZeroAlloc2):
		return fl&^FlagZeroAlloc2 | FlagZeroAlloc1
	}

	return fl
}

// LevelID identifies a memory object in the hierarchy registry.
type LevelID int

// AccessReq is an access that travels from a child toward the memory. The
// requester owns State and lends it to the callee for the duration of the
// call. The callee writes the state the requester ends up in.
type AccessReq struct {
	ID           string
	LineAddr     uint64
	Type         AccessType
	ChildID      int
	State        *MESIState
	InitialState MESIState
	Cycle        uint64
	ChildLock    sync.Locker
	SrcID        int
	PC           uint64
	Flags        Flag
}

// Is returns true if all the bits of f are set on the request.
func (r *AccessReq) Is(f Flag) bool {
	return r.Flags.Has(f)
}

// Set sets the bits of f on the request.
func (r *AccessReq) Set(f Flag) {
	r.Flags |= f
}

// Clear clears the bits of f on the request.
func (r *AccessReq) Clear(f Flag) {
	r.Flags &^= f
}

func (r *AccessReq) String() string {
	state := "nil"
	if r.State != nil {
		state = r.State.String()
	}

	return fmt.Sprintf("%s 0x%x child %d state %s/%s cycle %d src %d",
		r.Type, r.LineAddr, r.ChildID, state, r.InitialState,
		r.Cycle, r.SrcID)
}

// InvReq is an invalidation that travels from a parent toward its children.
// Writeback starts false and is set by a child that held dirty data.
type InvReq struct {
	LineAddr  uint64
	Type      InvType
	Writeback *bool
	Cycle     uint64
	SrcID     int
}

func (r *InvReq) String() string {
	return fmt.Sprintf("%s 0x%x cycle %d src %d",
		r.Type, r.LineAddr, r.Cycle, r.SrcID)
}

// MemObject is anything that can serve an access and report when the access
// completes.
type MemObject interface {
	Name() string
	Access(req *AccessReq) uint64
}

// Cache is a MemObject that also has children to keep coherent.
type Cache interface {
	MemObject

	Invalidate(req *InvReq) uint64
	ScrubInvalidate(req *AccessReq) uint64
	ZeroAlloc(req *AccessReq) uint64

	SetParents(childID int, parents []LevelID)
	SetChildren(children []LevelID)
}

// Registry resolves level ids to the levels. Levels keep ids, not pointers,
// of their neighbors.
type Registry interface {
	MemObject(id LevelID) MemObject
	Cache(id LevelID) Cache
}
