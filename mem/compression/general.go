package compression

import (
	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// S2 estimates the size with the s2 block format. It is much more
// pessimistic than the hardware schemes on 64-byte lines, which makes it a
// useful upper bound.
type S2 struct{}

// Name returns "s2".
func (S2) Name() string {
	return "s2"
}

// Compress returns the encoded block size, capped at the line size.
func (S2) Compress(line []byte) int {
	encoded := s2.Encode(nil, line)

	return min(len(encoded), len(line))
}

// LZ4 estimates the size with the lz4 block format.
type LZ4 struct{}

// Name returns "lz4".
func (LZ4) Name() string {
	return "lz4"
}

// Compress returns the encoded block size, capped at the line size. Lines
// that lz4 cannot shrink are stored uncompressed.
func (LZ4) Compress(line []byte) int {
	dst := make([]byte, lz4.CompressBlockBound(len(line)))

	n, err := lz4.CompressBlock(line, dst, nil)
	if err != nil || n == 0 {
		return len(line)
	}

	return min(n, len(line))
}
