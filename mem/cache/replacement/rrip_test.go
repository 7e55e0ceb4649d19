package replacement

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/mem"
)

type stubValidator map[int]bool

func (v stubValidator) IsValid(id int) bool {
	return !v[id]
}

type stubSizer map[int]int

func (s stubSizer) CurrentSize(id int) int {
	return s[id]
}

func gets(lineAddr uint64) *mem.AccessReq {
	return &mem.AccessReq{LineAddr: lineAddr, Type: mem.GETS}
}

var _ = Describe("SRRIP", func() {
	var p *SRRIP

	BeforeEach(func() {
		p = NewSRRIP(8, 2)
	})

	It("should insert at 2 and promote hits to vmax", func() {
		p.Update(0, gets(1))
		Expect(p.Priority(0)).To(Equal(uint32(2)))

		p.Update(0, gets(1))
		Expect(p.Priority(0)).To(Equal(uint32(4)))

		p.Replaced(0)
		Expect(p.Priority(0)).To(Equal(uint32(0)))
	})

	It("should pick an unused slot first", func() {
		p.Update(0, gets(1))
		p.Update(1, gets(2))

		Expect(p.Rank(nil, []int{0, 1, 2})).To(Equal(2))
	})

	It("should evict the lowest priority and age the others", func() {
		for id := 0; id < 3; id++ {
			p.Update(id, gets(uint64(id)))
		}

		p.Update(1, gets(1))
		p.Update(2, gets(2))

		Expect(p.Rank(nil, []int{0, 1, 2})).To(Equal(0))
		Expect(p.Priority(0)).To(Equal(uint32(1)))
		Expect(p.Priority(1)).To(Equal(uint32(3)))
		Expect(p.Priority(2)).To(Equal(uint32(3)))
	})

	It("should not age when a line is at priority 1", func() {
		b := NewBRRIP(4, 2)
		b.prio[0] = 1
		b.prio[1] = 4

		Expect(b.Rank(nil, []int{0, 1})).To(Equal(0))
		Expect(b.Priority(1)).To(Equal(uint32(4)))
	})

	It("should treat invalid lines as unused", func() {
		p.Update(0, gets(1))
		p.Update(1, gets(2))
		p.Update(1, gets(2))
		p.SetValidator(stubValidator{1: true})

		Expect(p.Rank(nil, []int{0, 1})).To(Equal(1))
	})

	It("should panic on an empty candidate set", func() {
		Expect(func() { p.Rank(nil, nil) }).To(Panic())
	})
})

var _ = Describe("BRRIP", func() {
	It("should mostly insert at priority 1", func() {
		p := NewBRRIP(1, 2)
		high := 0

		for i := 0; i < 3200; i++ {
			p.Replaced(0)
			p.Update(0, gets(uint64(i)))

			if p.Priority(0) == 2 {
				high++
			} else {
				Expect(p.Priority(0)).To(Equal(uint32(1)))
			}
		}

		Expect(high).To(BeNumerically(">", 40))
		Expect(high).To(BeNumerically("<", 200))
	})

	It("should promote hits to vmax", func() {
		p := NewBRRIP(1, 3)

		p.Update(0, gets(1))
		p.Update(0, gets(1))

		Expect(p.Priority(0)).To(Equal(uint32(8)))
	})
})

var _ = Describe("LRU", func() {
	It("should evict the least recently used line", func() {
		p := NewLRU(4)

		p.Update(0, nil)
		p.Update(1, nil)
		p.Update(2, nil)
		p.Update(0, nil)

		Expect(p.Rank(nil, []int{0, 1, 2})).To(Equal(1))
	})

	It("should evict unused and invalid lines first", func() {
		p := NewLRU(4)

		p.Update(0, nil)
		p.Update(1, nil)
		Expect(p.Rank(nil, []int{0, 1, 2})).To(Equal(2))

		p.Update(2, nil)
		p.SetValidator(stubValidator{1: true})
		Expect(p.Rank(nil, []int{0, 1, 2})).To(Equal(1))
	})
})
