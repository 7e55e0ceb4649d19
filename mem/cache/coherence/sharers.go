package coherence

import "math/bits"

// sharerSet is a bitmap of child ids.
type sharerSet [MaxChildren / 64]uint64

func (s *sharerSet) has(c int) bool {
	return s[c/64]&(1<<(c%64)) != 0
}

func (s *sharerSet) add(c int) {
	s[c/64] |= 1 << (c % 64)
}

func (s *sharerSet) remove(c int) {
	s[c/64] &^= 1 << (c % 64)
}

func (s *sharerSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}

	return n
}

// each calls f for every sharer in increasing id order.
func (s *sharerSet) each(f func(c int)) {
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			f(i*64 + b)
			w &^= 1 << b
		}
	}
}

// sharerEntry is what a TopCC knows about a line.
type sharerEntry struct {
	sharers    sharerSet
	numSharers int
	exclusive  bool
}

func (e *sharerEntry) isEmpty() bool {
	return e.numSharers == 0
}

func (e *sharerEntry) isExclusive() bool {
	return e.numSharers == 1 && e.exclusive
}

func (e *sharerEntry) clear() {
	*e = sharerEntry{}
}
