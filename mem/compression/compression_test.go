package compression

import (
	"encoding/binary"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/compcache/mem/mem"
)

func smallWordsLine() []byte {
	line := make([]byte, 64)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(line[i*4:], uint32(i%15+1))
	}

	return line
}

func randomLine() []byte {
	rng := rand.New(rand.NewPCG(1, 2))
	line := make([]byte, 64)

	for i := range line {
		line[i] = byte(rng.UintN(256))
	}

	return line
}

var _ = Describe("BDI", func() {
	It("should pack a zero line into one byte", func() {
		Expect(BDI{}.Compress(make([]byte, 64))).To(Equal(1))
	})

	It("should pack a repeated word", func() {
		line := make([]byte, 64)
		for i := 0; i < 8; i++ {
			binary.LittleEndian.PutUint64(line[i*8:], 0xdead_beef_0000_1234)
		}

		Expect(BDI{}.Compress(line)).To(Equal(8))
	})

	It("should use one-byte deltas on small 4-byte words", func() {
		Expect(BDI{}.Compress(smallWordsLine())).To(Equal(20))
	})

	It("should use deltas from the first word", func() {
		line := make([]byte, 64)
		for i := 0; i < 8; i++ {
			binary.LittleEndian.PutUint64(line[i*8:],
				0x7fff_0000_0000_0000+uint64(i))
		}

		Expect(BDI{}.Compress(line)).To(Equal(16))
	})

	It("should not compress random data", func() {
		Expect(BDI{}.Compress(randomLine())).To(Equal(64))
	})

	deltaLine := func(delta int64) []byte {
		base := uint64(0x1234_5678_0000_1000)
		line := make([]byte, 64)

		for i := 0; i < 8; i++ {
			w := base
			if i%2 == 1 {
				w = uint64(int64(base) + delta)
			}

			binary.LittleEndian.PutUint64(line[i*8:], w)
		}

		return line
	}

	It("should fit a negative delta at the edge of the signed range", func() {
		Expect(BDI{}.Compress(deltaLine(-128))).To(Equal(16))
	})

	It("should widen a delta beyond the signed range", func() {
		Expect(BDI{}.Compress(deltaLine(128))).To(Equal(24))
		Expect(BDI{}.Compress(deltaLine(-129))).To(Equal(24))
	})

	It("should read 4-byte words as signed", func() {
		line := make([]byte, 64)
		for i := 0; i < 16; i++ {
			binary.LittleEndian.PutUint32(line[i*4:], uint32(int32(-i)))
		}

		Expect(BDI{}.Compress(line)).To(Equal(20))
	})
})

var _ = Describe("FPC", func() {
	It("should encode small words with one byte each", func() {
		Expect(FPC{}.Compress(smallWordsLine())).To(Equal(22))
	})

	It("should encode repeated bytes with one byte", func() {
		line := make([]byte, 64)
		for i := range line {
			line[i] = 0xab
		}

		Expect(FPC{}.Compress(line)).To(Equal(22))
	})

	It("should cap at the line size", func() {
		Expect(FPC{}.Compress(randomLine())).To(Equal(64))
	})
})

var _ = Describe("Hybrid", func() {
	It("should pick the smallest size", func() {
		h := Hybrid{BDI{}, FPC{}}

		Expect(h.Compress(smallWordsLine())).To(Equal(20))
		Expect(h.Name()).To(Equal("bdifpc"))
	})
})

var _ = Describe("General purpose compressors", func() {
	It("should shrink zero lines", func() {
		Expect(S2{}.Compress(make([]byte, 64))).To(BeNumerically("<", 64))
		Expect(LZ4{}.Compress(make([]byte, 64))).To(BeNumerically("<", 64))
	})

	It("should never exceed the line size", func() {
		Expect(S2{}.Compress(randomLine())).To(Equal(64))
		Expect(LZ4{}.Compress(randomLine())).To(Equal(64))
	})
})

var _ = Describe("ByName", func() {
	It("should find all the compressors", func() {
		for _, name := range []string{"none", "bdi", "fpc", "bdifpc", "s2", "lz4"} {
			c, err := ByName(name)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Name()).To(Equal(name))
		}
	})

	It("should reject unknown names", func() {
		_, err := ByName("zip")
		Expect(err).To(MatchError(ContainSubstring("zip")))
	})
})

var _ = Describe("StorageOracle", func() {
	var (
		mockCtrl   *gomock.Controller
		compressor *MockCompressor
		storage    *mem.Storage
		oracle     *StorageOracle
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		compressor = NewMockCompressor(mockCtrl)
		storage = mem.NewStorage(4 * mem.KB)
		oracle = NewStorageOracle(storage, compressor, 64)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should compress the bytes of the line", func() {
		line := smallWordsLine()
		Expect(storage.WriteLine(2, line)).To(Succeed())

		compressor.EXPECT().Compress(line).Return(20)

		Expect(oracle.CompressedSize(2)).To(Equal(20))
	})

	It("should report the same size for unchanged bytes", func() {
		oracle = NewStorageOracle(storage, BDI{}, 64)
		Expect(storage.WriteLine(1, smallWordsLine())).To(Succeed())

		Expect(oracle.CompressedSize(1)).To(Equal(oracle.CompressedSize(1)))
	})

	It("should panic if the size does not fit the line", func() {
		compressor.EXPECT().Compress(gomock.Any()).Return(65)
		compressor.EXPECT().Name().Return("broken")

		Expect(func() { oracle.CompressedSize(0) }).To(Panic())
	})

	It("should panic if the line is beyond the storage", func() {
		Expect(func() { oracle.CompressedSize(1 << 20) }).To(Panic())
	})
})
