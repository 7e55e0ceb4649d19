package compression

// FPC is frequent pattern compression over 4-byte words. Every word costs a
// 3-bit prefix plus the bytes its pattern needs.
type FPC struct{}

// Name returns "fpc".
func (FPC) Name() string {
	return "fpc"
}

// Compress returns the encoded size, capped at the line size.
func (FPC) Compress(line []byte) int {
	words := toWords(line, 4)
	payload := 0

	for _, w := range words {
		payload += fpcWordBytes(uint32(w))
	}

	size := payload + len(words)*3/8
	if size < len(line) {
		return size
	}

	return len(line)
}

func abs32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}

	return uint32(v)
}

func fpcWordBytes(w uint32) int {
	switch {
	case w == 0:
		return 1
	case abs32(int32(w)) <= 0xff:
		return 1
	case abs32(int32(w)) <= 0xffff:
		return 2
	case w&0xffff == 0:
		return 2
	case abs32(int32(w&0xffff)) <= 0xff &&
		abs32(int32(w>>16&0xffff)) <= 0xff:
		return 2
	}

	b0 := w & 0xff
	if b0 == w>>8&0xff && b0 == w>>16&0xff && b0 == w>>24 {
		return 1
	}

	return 4
}
