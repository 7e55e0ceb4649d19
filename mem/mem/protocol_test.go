package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/mem"
)

var _ = Describe("Flags", func() {
	It("should downgrade scrub levels one hop at a time", func() {
		fl := mem.FlagCacheScrub3 | mem.FlagNoExcl

		fl = mem.DowngradeScrubFlag(fl)
		Expect(fl.Has(mem.FlagCacheScrub2)).To(BeTrue())
		Expect(fl.Has(mem.FlagCacheScrub3)).To(BeFalse())

		fl = mem.DowngradeScrubFlag(fl)
		Expect(fl.Has(mem.FlagCacheScrub1)).To(BeTrue())
		Expect(fl.Has(mem.FlagNoExcl)).To(BeTrue())

		Expect(mem.DowngradeScrubFlag(fl)).To(Equal(fl))
	})

	It("should downgrade zero-alloc levels one hop at a time", func() {
		fl := mem.DowngradeZeroAllocFlag(mem.FlagZeroAlloc2)

		Expect(fl).To(Equal(mem.FlagZeroAlloc1))
		Expect(mem.DowngradeZeroAllocFlag(fl)).To(Equal(mem.FlagZeroAlloc))
	})

	It("should set and clear flags on a request", func() {
		req := &mem.AccessReq{}

		req.Set(mem.FlagPrefetch | mem.FlagIFetch)
		req.Clear(mem.FlagIFetch)

		Expect(req.Is(mem.FlagPrefetch)).To(BeTrue())
		Expect(req.Is(mem.FlagIFetch)).To(BeFalse())
	})
})

var _ = Describe("ParentMapper", func() {
	It("should xor-fold the 16-bit chunks", func() {
		addr := uint64(0x0001_0002_0004_0008)

		Expect(mem.ParentIndex(addr, 16)).To(Equal(0xf))
		Expect(mem.XORFoldParentMapper{NumParents: 4}.Find(addr)).
			To(Equal(0xf % 4))
	})

	It("should always return the solo parent", func() {
		Expect(mem.SingleParentMapper{}.Find(1234)).To(Equal(0))
	})

	It("should interleave lines", func() {
		f := mem.InterleavedParentMapper{InterleavingLines: 4, NumParents: 2}

		Expect(f.Find(3)).To(Equal(0))
		Expect(f.Find(4)).To(Equal(1))
		Expect(f.Find(8)).To(Equal(0))
	})

	It("should panic without parents", func() {
		Expect(func() { mem.ParentIndex(1, 0) }).To(Panic())
	})
})
