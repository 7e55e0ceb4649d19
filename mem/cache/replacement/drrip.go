package replacement

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/compcache/mem/cache/internal/tagging"
	"github.com/sarchlab/compcache/mem/mem"
)

const (
	atdWays      = 16
	atdIndexSeed = 0x100A7D00
	samplingSeed = 0x200A7D00
)

// AuxTagDir is a tag-only array that replays the sampled accesses under a
// candidate policy.
type AuxTagDir struct {
	array *tagging.SetAssocArray
}

// NewAuxTagDir creates an auxiliary tag directory that runs the policy.
func NewAuxTagDir(numLines int, policy tagging.Policy) *AuxTagDir {
	ways := min(atdWays, numLines)

	return &AuxTagDir{
		array: tagging.NewSetAssocArray(numLines, ways, policy,
			tagging.HashIndexer{Seed: atdIndexSeed}),
	}
}

// Access replays an access and reports whether it hits.
func (d *AuxTagDir) Access(req *mem.AccessReq) bool {
	if d.array.Lookup(req.LineAddr, req, true, false) >= 0 {
		return true
	}

	id, _ := d.array.Preinsert(req.LineAddr, req)
	d.array.Postinsert(req.LineAddr, req, id)

	return false
}

// PolicyDueler runs two policies on auxiliary tag directories fed with a
// sample of the accesses and keeps a saturating counter of which one hits
// more.
type PolicyDueler struct {
	samplingFactor int
	atd1, atd2     *AuxTagDir
	psel           atomic.Int32
}

// NewPolicyDueler creates a dueler for a cache of cacheLines lines. One in
// samplingFactor addresses is replayed on the two directories.
func NewPolicyDueler(
	rp1, rp2 tagging.Policy,
	cacheLines, samplingFactor int,
) *PolicyDueler {
	mustBePowerOfTwo("sampling factor", samplingFactor)

	if cacheLines%samplingFactor != 0 {
		panic(fmt.Sprintf("%d lines cannot be sampled 1 in %d",
			cacheLines, samplingFactor))
	}

	atdLines := cacheLines / samplingFactor

	return &PolicyDueler{
		samplingFactor: samplingFactor,
		atd1:           NewAuxTagDir(atdLines, rp1),
		atd2:           NewAuxTagDir(atdLines, rp2),
	}
}

func (d *PolicyDueler) sampled(lineAddr uint64) bool {
	var buf [16]byte

	binary.LittleEndian.PutUint64(buf[:8], samplingSeed)
	binary.LittleEndian.PutUint64(buf[8:], lineAddr)

	return xxhash.Sum64(buf[:])&uint64(d.samplingFactor-1) == 0
}

// Access replays the access on both directories if the address is sampled.
func (d *PolicyDueler) Access(req *mem.AccessReq) {
	if !d.sampled(req.LineAddr) {
		return
	}

	var delta int32

	if d.atd1.Access(req) {
		delta++
	}

	if d.atd2.Access(req) {
		delta--
	}

	d.psel.Store(saturate(d.psel.Load() + delta))
}

// PSEL returns the selection counter.
func (d *PolicyDueler) PSEL() int32 {
	return d.psel.Load()
}

// UseRP1 returns true while the first policy is winning.
func (d *PolicyDueler) UseRP1() bool {
	return d.psel.Load() >= 0
}

// DRRIP picks between SRRIP and BRRIP insertion by dueling them on auxiliary
// tag directories.
type DRRIP struct {
	*rrip
	dueler *PolicyDueler
}

// NewDRRIP creates a DRRIP policy. A sampling factor of 128 is typical.
func NewDRRIP(numLines int, m uint, samplingFactor int) *DRRIP {
	atdLines := numLines / samplingFactor

	return &DRRIP{
		rrip: newRRIP(numLines, m),
		dueler: NewPolicyDueler(
			NewSRRIP(atdLines, m), NewBRRIP(atdLines, m),
			numLines, samplingFactor),
	}
}

// Dueler returns the dueler that selects the insertion policy.
func (p *DRRIP) Dueler() *PolicyDueler {
	return p.dueler
}

// Update replays the access on the dueler and then inserts or promotes the
// line with the winning policy.
func (p *DRRIP) Update(id int, req *mem.AccessReq) {
	p.dueler.Access(req)

	if p.dueler.UseRP1() {
		p.updateSRRIP(id)
	} else {
		p.updateBRRIP(id)
	}
}

// Rank returns the lowest priority candidate.
func (p *DRRIP) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, nil)
}

// DRRIPSetSampling duels SRRIP and BRRIP on two fixed regions of the cache
// itself. Lines [0, n) always run SRRIP, lines [n, 2n) always run BRRIP and
// the rest follow the winner, where n is numLines/samplingFactor. This only
// makes sense when line ids group sets, as the set-associative and
// compressed arrays do.
type DRRIPSetSampling struct {
	*rrip
	sampledLines int
	psel         int32
}

// NewDRRIPSetSampling creates a set-sampling DRRIP policy.
func NewDRRIPSetSampling(numLines int, m uint, samplingFactor int) *DRRIPSetSampling {
	sampled := numLines / samplingFactor
	if sampled <= 0 {
		panic(fmt.Sprintf("%d lines are too few to sample 1 in %d",
			numLines, samplingFactor))
	}

	return &DRRIPSetSampling{
		rrip:         newRRIP(numLines, m),
		sampledLines: sampled,
	}
}

// PSEL returns the selection counter. Non-negative means SRRIP wins.
func (p *DRRIPSetSampling) PSEL() int32 {
	return p.psel
}

// Update trains the counter on the sampled regions and updates the line.
func (p *DRRIPSetSampling) Update(id int, req *mem.AccessReq) {
	miss := p.isInsertion(id)

	switch {
	case id < p.sampledLines:
		if miss {
			p.psel = saturate(p.psel - 1)
		} else {
			p.psel = saturate(p.psel + 1)
		}

		p.updateSRRIP(id)
	case id < 2*p.sampledLines:
		if miss {
			p.psel = saturate(p.psel + 1)
		} else {
			p.psel = saturate(p.psel - 1)
		}

		p.updateBRRIP(id)
	case p.psel >= 0:
		p.updateSRRIP(id)
	default:
		p.updateBRRIP(id)
	}
}

// Rank returns the lowest priority candidate.
func (p *DRRIPSetSampling) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, nil)
}
