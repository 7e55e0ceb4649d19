package replacement

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/compcache/mem/mem"
)

// SignatureType selects what the SHiP predictor hashes.
type SignatureType int

// The signature types.
const (
	SignatureMem SignatureType = iota // 16KB memory regions
	SignaturePC                       // program counter of the requester
)

const (
	shipCounterMax = 7
	shipSigSeed    = 0x7AD07ADD
	regionShift    = 14
)

type shipLineInfo struct {
	signature uint32
	reused    bool
}

type shipPredInfo struct {
	used       bool
	predReused bool
	reused     bool
}

// PredictionStats counts how the reuse predictions turned out. The first
// letter is the prediction, the second the outcome, R for reused and N for
// not reused.
type PredictionStats struct {
	NN, NR, RN, RR uint64
}

// SHiP is SRRIP with signature-based hit prediction. Lines whose signature
// rarely sees reuse are inserted at the lowest occupied priority.
type SHiP struct {
	*rrip

	lineInfo []shipLineInfo
	predInfo []shipPredInfo
	shct     []uint32
	sigMask  uint32
	sigType  SignatureType
	lineBits uint
	stats    PredictionStats
}

// NewSHiP creates a SHiP policy. The first numLines/samplingFactor lines
// train the counters. lineSize is used to find the memory region of a line.
func NewSHiP(
	numLines int,
	m uint,
	samplingFactor int,
	sigBits uint,
	sigType SignatureType,
	lineSize int,
) *SHiP {
	if numLines%samplingFactor != 0 {
		panic("the sampling factor must divide the number of lines")
	}

	p := &SHiP{
		rrip:     newRRIP(numLines, m),
		lineInfo: make([]shipLineInfo, numLines/samplingFactor),
		predInfo: make([]shipPredInfo, numLines),
		shct:     make([]uint32, 1<<sigBits),
		sigMask:  1<<sigBits - 1,
		sigType:  sigType,
	}

	for lineSize > 1 {
		p.lineBits++
		lineSize >>= 1
	}

	for i := range p.shct {
		p.shct[i] = (shipCounterMax + 1) / 2
	}

	return p
}

// Stats returns the prediction accuracy so far.
func (p *SHiP) Stats() PredictionStats {
	return p.stats
}

// Counter returns the reuse counter of a signature.
func (p *SHiP) Counter(sig uint32) uint32 {
	return p.shct[sig&p.sigMask]
}

// Signature returns the signature of a request.
func (p *SHiP) Signature(req *mem.AccessReq) uint32 {
	var val uint64

	switch p.sigType {
	case SignatureMem:
		val = req.LineAddr >> (regionShift - p.lineBits)
	case SignaturePC:
		val = req.PC
	}

	var buf [16]byte

	binary.LittleEndian.PutUint64(buf[:8], shipSigSeed)
	binary.LittleEndian.PutUint64(buf[8:], val)

	return uint32(xxhash.Sum64(buf[:])+val) & p.sigMask
}

// Update trains the predictor on the sampled lines and inserts or promotes
// the line.
func (p *SHiP) Update(id int, req *mem.AccessReq) {
	sig := p.Signature(req)
	insertion := p.isInsertion(id)

	if id < len(p.lineInfo) {
		p.train(id, sig, insertion)
	}

	if !insertion {
		p.promote(id)
		p.predInfo[id].reused = true

		return
	}

	p.countPrediction(id)

	predReused := p.shct[sig] != 0
	if predReused {
		p.prio[id] = 2
	} else {
		p.prio[id] = 1
	}

	p.predInfo[id] = shipPredInfo{used: true, predReused: predReused}
}

func (p *SHiP) train(id int, sig uint32, insertion bool) {
	info := &p.lineInfo[id]

	if !insertion {
		// The insertion signature gets the credit.
		if p.shct[info.signature] < shipCounterMax {
			p.shct[info.signature]++
		}

		info.reused = true

		return
	}

	if !info.reused && p.shct[info.signature] > 0 {
		p.shct[info.signature]--
	}

	info.signature = sig
	info.reused = false
}

func (p *SHiP) countPrediction(id int) {
	pi := p.predInfo[id]
	if !pi.used {
		return
	}

	switch {
	case pi.predReused && pi.reused:
		p.stats.RR++
	case !pi.predReused && pi.reused:
		p.stats.NR++
	case pi.predReused && !pi.reused:
		p.stats.RN++
	default:
		p.stats.NN++
	}
}

// Rank returns the lowest priority candidate.
func (p *SHiP) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, nil)
}
