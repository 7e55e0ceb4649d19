// Package replacement provides the replacement policies that the tag arrays
// consult to pick victims.
//
// All the policies implement Rank, Update and Replaced. The RRIP family keeps
// a priority per line in [0, vmax], where a higher value means the line is
// expected to be reused sooner and 0 marks an unused slot.
package replacement

import (
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/compcache/mem/mem"
)

// rngSeed keeps the tie breaking reproducible from run to run.
const rngSeed = 4242

// A Policy ranks candidate lines for eviction.
type Policy interface {
	Update(id int, req *mem.AccessReq)
	Replaced(id int)
	Rank(req *mem.AccessReq, cands []int) int
}

// SizeAware can tell the current compressed size of a line.
type SizeAware interface {
	CurrentSize(id int) int
}

// A Validator tells if a line holds valid data. A line whose coherence state
// is I ranks as an unused slot even if its tag is still in the array.
type Validator interface {
	IsValid(id int) bool
}

// ValidatorSetter is implemented by the policies that consult a Validator.
type ValidatorSetter interface {
	SetValidator(v Validator)
}

func mustHaveCandidates(cands []int) {
	if len(cands) == 0 {
		panic("ranking an empty candidate set")
	}
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(rngSeed, rngSeed))
}

// rrip is the priority table shared by the RRIP family.
type rrip struct {
	prio      []uint32
	vmax      uint32
	rng       *rand.Rand
	validator Validator
	best      []int
}

func newRRIP(numLines int, m uint) *rrip {
	if m == 0 {
		panic("RRIP needs at least one bit of priority")
	}

	return &rrip{
		prio: make([]uint32, numLines),
		vmax: 1 << m,
		rng:  newRNG(),
	}
}

func (r *rrip) SetValidator(v Validator) {
	r.validator = v
}

// Priority returns the priority of a line. It is mostly useful for tests
// and for dumping the state of a cache.
func (r *rrip) Priority(id int) uint32 {
	return r.prio[id]
}

func (r *rrip) isInsertion(id int) bool {
	return r.prio[id] == 0
}

func (r *rrip) promote(id int) {
	r.prio[id] = r.vmax
}

func (r *rrip) Replaced(id int) {
	r.prio[id] = 0
}

// updateSRRIP predicts a long re-reference on insertion.
func (r *rrip) updateSRRIP(id int) {
	if r.isInsertion(id) {
		r.prio[id] = 2
		return
	}

	r.promote(id)
}

// updateBRRIP inserts most lines at the lowest occupied priority, so that a
// streaming workload cannot flush the reused lines out.
func (r *rrip) updateBRRIP(id int) {
	if r.isInsertion(id) {
		if r.rng.IntN(32) == 0 {
			r.prio[id] = 2
		} else {
			r.prio[id] = 1
		}

		return
	}

	r.promote(id)
}

func (r *rrip) effectivePrio(id int) uint32 {
	if r.validator != nil && !r.validator.IsValid(id) {
		return 0
	}

	return r.prio[id]
}

// rankBy picks the candidate with the lowest rank, breaking ties randomly.
// If no candidate is at priority 0 or 1, all the candidates are aged so that
// a later eviction finds a line at priority 1.
func (r *rrip) rankBy(cands []int, rankOf func(id int, prio uint32) uint32) int {
	mustHaveCandidates(cands)

	r.best = r.best[:0]
	bestRank := ^uint32(0)
	minPrio := ^uint32(0)

	for _, c := range cands {
		prio := r.effectivePrio(c)
		minPrio = min(minPrio, prio)

		rank := prio
		if rankOf != nil {
			rank = rankOf(c, prio)
		}

		switch {
		case rank == bestRank:
			r.best = append(r.best, c)
		case rank < bestRank:
			bestRank = rank
			r.best = append(r.best[:0], c)
		}
	}

	if minPrio > 1 {
		aging := minPrio - 1

		for _, c := range cands {
			if r.prio[c] > aging {
				r.prio[c] -= aging
			}
		}
	}

	return r.best[r.rng.IntN(len(r.best))]
}

// SRRIP is static re-reference interval prediction.
type SRRIP struct {
	*rrip
}

// NewSRRIP creates an SRRIP policy with m bits of priority.
func NewSRRIP(numLines int, m uint) *SRRIP {
	return &SRRIP{rrip: newRRIP(numLines, m)}
}

// Update inserts at priority 2 and promotes hits to vmax.
func (p *SRRIP) Update(id int, req *mem.AccessReq) {
	p.updateSRRIP(id)
}

// Rank returns the lowest priority candidate.
func (p *SRRIP) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, nil)
}

// BRRIP is bimodal RRIP. It inserts at priority 2 only once in 32
// insertions.
type BRRIP struct {
	*rrip
}

// NewBRRIP creates a BRRIP policy with m bits of priority.
func NewBRRIP(numLines int, m uint) *BRRIP {
	return &BRRIP{rrip: newRRIP(numLines, m)}
}

// Update inserts at priority 1, or 2 with probability 1/32.
func (p *BRRIP) Update(id int, req *mem.AccessReq) {
	p.updateBRRIP(id)
}

// Rank returns the lowest priority candidate.
func (p *BRRIP) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, nil)
}

// pselMin and pselMax bound the policy selection counters.
const (
	pselMin = -1024
	pselMax = 1023
)

func saturate(v int32) int32 {
	return min(max(v, pselMin), pselMax)
}

func mustBePowerOfTwo(name string, v int) {
	if v <= 0 || v&(v-1) != 0 {
		panic(fmt.Sprintf("%s must be a power of two, got %d", name, v))
	}
}
