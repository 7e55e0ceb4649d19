package tagging_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/cache/internal/tagging"
	"github.com/sarchlab/compcache/mem/cache/replacement"
	"github.com/sarchlab/compcache/mem/mem"
)

func gets(lineAddr uint64) *mem.AccessReq {
	return &mem.AccessReq{LineAddr: lineAddr, Type: mem.GETS}
}

func insert(a tagging.Array, lineAddr uint64) (int, uint64) {
	req := gets(lineAddr)
	id, wb := a.Preinsert(lineAddr, req)
	a.Postinsert(lineAddr, req, id)

	return id, wb
}

var _ = Describe("SetAssocArray", func() {
	var (
		lru   *replacement.LRU
		array *tagging.SetAssocArray
	)

	BeforeEach(func() {
		lru = replacement.NewLRU(8)
		array = tagging.NewSetAssocArray(8, 2, lru, nil)
	})

	It("should miss on an empty array", func() {
		Expect(array.Lookup(0x10, gets(0x10), true, false)).To(Equal(-1))
	})

	It("should place lines in their set", func() {
		id, _ := insert(array, 5)

		Expect(id / 2).To(Equal(1))
		Expect(array.Lookup(5, gets(5), true, false)).To(Equal(id))
		Expect(array.Block(id)).To(Equal(tagging.Block{LineAddr: 5, IsValid: true}))
	})

	It("should return the victim address", func() {
		insert(array, 0)
		insert(array, 4)
		array.Lookup(0, gets(0), true, false)

		id, wb := array.Preinsert(8, gets(8))

		Expect(wb).To(Equal(uint64(4)))
		Expect(array.Block(id).LineAddr).To(Equal(uint64(4)))
	})

	It("should empty a slot on invalidate", func() {
		id, _ := insert(array, 3)

		array.Invalidate(id)

		Expect(array.Lookup(3, gets(3), false, true)).To(Equal(-1))
	})

	It("should spread lines with the hash indexer", func() {
		hashed := tagging.NewSetAssocArray(64, 4, replacement.NewLRU(64),
			tagging.HashIndexer{Seed: 1})
		sets := map[int]bool{}

		for addr := uint64(0); addr < 64; addr += 16 {
			id, _ := insert(hashed, addr)
			sets[id/4] = true
		}

		Expect(len(sets)).To(BeNumerically(">", 1))
	})

	It("should reject a bad geometry", func() {
		Expect(func() {
			tagging.NewSetAssocArray(10, 4, lru, nil)
		}).To(Panic())
	})
})
