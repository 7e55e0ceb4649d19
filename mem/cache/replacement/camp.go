package replacement

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/compcache/mem/mem"
)

// CAMP is compression-aware management. Lines are bucketed by the log2 of
// their compressed size. Each bucket duels SRRIP against BRRIP insertion on
// its own sampled range of lines. The victim is the line with the lowest
// priority per byte, so a small line survives a large one of equal priority.
type CAMP struct {
	*BRRIP

	sizer        SizeAware
	sampledLines int
	logLineSize  uint
	psel         []int32
}

// NewCAMP creates a CAMP policy. The sizer is usually the compressed array
// and can be set later with SetSizer.
func NewCAMP(
	numLines int,
	m uint,
	samplingFactor int,
	lineSize int,
	sizer SizeAware,
) *CAMP {
	mustBePowerOfTwo("line size", lineSize)

	logLineSize := uint(bits.TrailingZeros(uint(lineSize)))

	p := &CAMP{
		BRRIP:        NewBRRIP(numLines, m),
		sizer:        sizer,
		sampledLines: numLines / samplingFactor,
		logLineSize:  logLineSize,
		psel:         make([]int32, logLineSize+1),
	}

	if 2*int(logLineSize+1)*p.sampledLines > numLines {
		panic(fmt.Sprintf(
			"sampling 1 in %d lines needs more than the %d lines of the cache",
			samplingFactor, numLines))
	}

	return p
}

// SetSizer sets where the compressed sizes come from.
func (p *CAMP) SetSizer(s SizeAware) {
	p.sizer = s
}

// PSEL returns the selection counter of a size bucket.
func (p *CAMP) PSEL(bucket int) int32 {
	return p.psel[bucket]
}

// Bucket returns the size bucket of a compressed size, ceil(log2(size)).
func (p *CAMP) Bucket(size int) int {
	if size <= 1 {
		return 0
	}

	b := bits.Len(uint(size - 1))
	if b > int(p.logLineSize) {
		panic(fmt.Sprintf("size %d is larger than a line", size))
	}

	return b
}

// Update trains the counter of the size bucket of the line and inserts or
// promotes the line.
func (p *CAMP) Update(id int, req *mem.AccessReq) {
	bucket := p.Bucket(p.sizer.CurrentSize(id))
	miss := p.isInsertion(id)

	srripStart := p.sampledLines * 2 * bucket
	brripStart := srripStart + p.sampledLines
	brripEnd := brripStart + p.sampledLines

	switch {
	case srripStart <= id && id < brripStart:
		if miss {
			p.psel[bucket] = saturate(p.psel[bucket] - 1)
		} else {
			p.psel[bucket] = saturate(p.psel[bucket] + 1)
		}

		p.updateSRRIP(id)
	case brripStart <= id && id < brripEnd:
		if miss {
			p.psel[bucket] = saturate(p.psel[bucket] + 1)
		} else {
			p.psel[bucket] = saturate(p.psel[bucket] - 1)
		}

		p.updateBRRIP(id)
	case p.psel[bucket] >= 0:
		p.updateSRRIP(id)
	default:
		p.updateBRRIP(id)
	}
}

// Rank returns the candidate with the lowest priority per byte.
func (p *CAMP) Rank(req *mem.AccessReq, cands []int) int {
	return p.rankBy(cands, p.prioToRank)
}

func (p *CAMP) prioToRank(id int, prio uint32) uint32 {
	if prio == 0 {
		return 0
	}

	size := p.sizer.CurrentSize(id)
	if size <= 0 {
		return 0
	}

	return (prio << p.logLineSize) / uint32(size)
}
