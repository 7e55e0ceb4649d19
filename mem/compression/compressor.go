// Package compression provides the oracles that tell the compressed cache
// array how many bytes a line occupies.
package compression

import (
	"fmt"

	"github.com/sarchlab/compcache/mem/mem"
)

// A Compressor returns the compressed size of a line. It must be
// deterministic, so that unchanged bytes always report the same size.
type Compressor interface {
	Name() string
	Compress(line []byte) int
}

// An Oracle reports the current compressed size of a line.
type Oracle interface {
	CompressedSize(lineAddr uint64) int
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(lineAddr uint64) int

// CompressedSize calls f.
func (f OracleFunc) CompressedSize(lineAddr uint64) int {
	return f(lineAddr)
}

// StorageOracle compresses the bytes that the storage holds for a line.
type StorageOracle struct {
	storage    *mem.Storage
	compressor Compressor
	lineSize   int
}

// NewStorageOracle creates an oracle that reads lines from storage.
func NewStorageOracle(
	storage *mem.Storage,
	compressor Compressor,
	lineSize int,
) *StorageOracle {
	return &StorageOracle{
		storage:    storage,
		compressor: compressor,
		lineSize:   lineSize,
	}
}

// CompressedSize returns the compressed size of the line. A size that does
// not fit the line is a broken compressor and aborts the simulation.
func (o *StorageOracle) CompressedSize(lineAddr uint64) int {
	data, err := o.storage.ReadLine(lineAddr, o.lineSize)
	if err != nil {
		panic(fmt.Sprintf("cannot read line 0x%x: %v", lineAddr, err))
	}

	size := o.compressor.Compress(data)
	if size <= 0 || size > o.lineSize {
		panic(fmt.Sprintf(
			"compressor %s reports size %d for line 0x%x, line size %d",
			o.compressor.Name(), size, lineAddr, o.lineSize))
	}

	return size
}

// ByName returns the compressor with the given name. The names are none,
// bdi, fpc, bdifpc, s2 and lz4.
func ByName(name string) (Compressor, error) {
	switch name {
	case "none":
		return None{}, nil
	case "bdi":
		return BDI{}, nil
	case "fpc":
		return FPC{}, nil
	case "bdifpc":
		return Hybrid{BDI{}, FPC{}}, nil
	case "s2":
		return S2{}, nil
	case "lz4":
		return LZ4{}, nil
	}

	return nil, fmt.Errorf("unknown compressor %q", name)
}

// None never compresses.
type None struct{}

// Name returns "none".
func (None) Name() string {
	return "none"
}

// Compress returns the line size.
func (None) Compress(line []byte) int {
	return len(line)
}

// Hybrid reports the smallest size among several compressors, as a cache
// that stores a per-line encoding tag would achieve.
type Hybrid []Compressor

// Name joins the names of the compressors.
func (h Hybrid) Name() string {
	name := ""
	for _, c := range h {
		name += c.Name()
	}

	return name
}

// Compress returns the smallest size.
func (h Hybrid) Compress(line []byte) int {
	best := len(line)
	for _, c := range h {
		best = min(best, c.Compress(line))
	}

	return best
}
