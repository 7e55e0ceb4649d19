package coherence

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// CheckForRace compares the state the requester had when it issued the
// request with the state it has now. An invalidation from above may have hit
// the requester after it released its lock and before this level locked
// itself.
//
// It returns true if the access must be skipped, which only happens to a
// writeback of a line that was invalidated. A writeback of a line that was
// downgraded to S is served as a PUTS. A GETS restarts from the current
// state.
func CheckForRace(req *mem.AccessReq) (skip bool) {
	if req.State == nil || *req.State == req.InitialState {
		return false
	}

	current := *req.State

	switch req.Type {
	case mem.PUTS, mem.PUTX:
		if current == mem.I {
			return true
		}

		if current != mem.S {
			panic(fmt.Sprintf("writeback raced into state %s: %s",
				current, req))
		}

		req.Type = mem.PUTS
	case mem.GETX:
		if req.InitialState != mem.S || current != mem.I {
			panic(fmt.Sprintf("GETX raced from %s to %s: %s",
				req.InitialState, current, req))
		}
	case mem.GETS:
	default:
		panic(fmt.Sprintf("unknown access type %s", req.Type))
	}

	req.InitialState = current

	return false
}
