package compression

import "encoding/binary"

// BDI is base-delta-immediate compression. A line compresses if every word
// is close to either zero or the first word of the line.
type BDI struct{}

// Name returns "bdi".
func (BDI) Name() string {
	return "bdi"
}

// Compress returns the smallest size over all the base and delta widths.
func (BDI) Compress(line []byte) int {
	size := len(line)
	best := size

	words8 := toWords(line, 8)
	if allZero(words8) {
		best = 1
	}

	if allSame(words8) {
		best = min(best, 8)
	}

	for _, delta := range []int{1, 2, 4} {
		best = min(best, baseDeltaSize(words8, delta, 8))
	}

	words4 := toWords(line, 4)
	if allSame(words4) {
		best = min(best, 4)
	}

	for _, delta := range []int{1, 2} {
		best = min(best, baseDeltaSize(words4, delta, 4))
	}

	words2 := toWords(line, 2)
	best = min(best, baseDeltaSize(words2, 1, 2))

	return best
}

// toWords splits a line into little-endian words of width bytes.
func toWords(line []byte, width int) []uint64 {
	words := make([]uint64, len(line)/width)

	for i := range words {
		chunk := line[i*width : (i+1)*width]

		switch width {
		case 8:
			words[i] = binary.LittleEndian.Uint64(chunk)
		case 4:
			words[i] = uint64(binary.LittleEndian.Uint32(chunk))
		case 2:
			words[i] = uint64(binary.LittleEndian.Uint16(chunk))
		}
	}

	return words
}

func allZero(words []uint64) bool {
	for _, w := range words {
		if w != 0 {
			return false
		}
	}

	return true
}

func allSame(words []uint64) bool {
	for _, w := range words {
		if w != words[0] {
			return false
		}
	}

	return true
}

// fitsDelta returns true if w-base, taken as a signed word of width bytes,
// fits a signed delta of delta bytes.
func fitsDelta(w, base uint64, delta, width int) bool {
	shift := 64 - 8*width
	d := int64((w-base)<<shift) >> shift
	limit := int64(1) << (8*delta - 1)

	return d >= -limit && d < limit
}

// baseDeltaSize encodes every word as a delta from the zero base or from
// the first word. If any word is too far from both, the line stays
// uncompressed.
func baseDeltaSize(words []uint64, delta, width int) int {
	for _, w := range words {
		if fitsDelta(w, 0, delta, width) {
			continue
		}

		if fitsDelta(w, words[0], delta, width) {
			continue
		}

		return len(words) * width
	}

	return delta*len(words) + width
}
