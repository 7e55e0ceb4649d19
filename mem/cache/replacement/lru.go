package replacement

import "github.com/sarchlab/compcache/mem/mem"

// LRU evicts the least recently used line. Unused and invalid slots go
// first.
type LRU struct {
	timestamps []uint64
	clock      uint64
	validator  Validator
}

// NewLRU creates an LRU policy.
func NewLRU(numLines int) *LRU {
	return &LRU{timestamps: make([]uint64, numLines)}
}

// SetValidator sets the validator.
func (p *LRU) SetValidator(v Validator) {
	p.validator = v
}

// Update marks the line as the most recently used.
func (p *LRU) Update(id int, req *mem.AccessReq) {
	p.clock++
	p.timestamps[id] = p.clock
}

// Replaced forgets the line.
func (p *LRU) Replaced(id int) {
	p.timestamps[id] = 0
}

// Rank returns the least recently used candidate.
func (p *LRU) Rank(req *mem.AccessReq, cands []int) int {
	mustHaveCandidates(cands)

	victim := cands[0]
	oldest := ^uint64(0)

	for _, c := range cands {
		ts := p.timestamps[c]
		if p.validator != nil && !p.validator.IsValid(c) {
			ts = 0
		}

		if ts < oldest {
			oldest = ts
			victim = c
		}
	}

	return victim
}
