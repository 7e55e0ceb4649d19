package mem

// ParentMapper helps a cache level find which of its parents holds the bank
// for a certain line.
type ParentMapper interface {
	Find(lineAddr uint64) int
}

// SingleParentMapper is used when a level is connected with only one
// parent.
type SingleParentMapper struct{}

// Find always returns the solo parent.
func (SingleParentMapper) Find(lineAddr uint64) int {
	return 0
}

// XORFoldParentMapper spreads lines over the parents by XOR-folding the
// four 16-bit chunks of the line address.
type XORFoldParentMapper struct {
	NumParents int
}

// Find returns the bank of the line.
func (f XORFoldParentMapper) Find(lineAddr uint64) int {
	return ParentIndex(lineAddr, f.NumParents)
}

// ParentIndex XOR-folds the four 16-bit chunks of the line address and
// takes the result modulo the number of parents.
func ParentIndex(lineAddr uint64, numParents int) int {
	if numParents <= 0 {
		panic("no parent to map to")
	}

	res := uint64(0)
	tmp := lineAddr

	for i := 0; i < 4; i++ {
		res ^= tmp & 0xffff
		tmp >>= 16
	}

	return int(res % uint64(numParents))
}

// InterleavedParentMapper finds the parent when the parents hold
// interleaved chunks of the line address space.
type InterleavedParentMapper struct {
	InterleavingLines uint64
	NumParents        int
}

// Find returns the parent that holds the line.
func (f InterleavedParentMapper) Find(lineAddr uint64) int {
	return int(lineAddr / f.InterleavingLines % uint64(f.NumParents))
}
