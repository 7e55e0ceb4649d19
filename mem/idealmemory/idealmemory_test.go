package idealmemory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/hooking"
)

var _ = Describe("Ideal Memory", func() {
	var (
		memory *Comp
		state  mem.MESIState
	)

	BeforeEach(func() {
		memory = MakeBuilder().
			WithLatency(10).
			WithNewStorage(1 * mem.MB).
			Build("Memory")
		state = mem.I
	})

	access := func(t mem.AccessType, flags mem.Flag) uint64 {
		return memory.Access(&mem.AccessReq{
			LineAddr: 0x40,
			Type:     t,
			State:    &state,
			Cycle:    100,
			Flags:    flags,
		})
	}

	It("should grant E to a read", func() {
		Expect(access(mem.GETS, 0)).To(Equal(uint64(110)))
		Expect(state).To(Equal(mem.E))
	})

	It("should grant S when exclusivity is forbidden", func() {
		access(mem.GETS, mem.FlagNoExcl)

		Expect(state).To(Equal(mem.S))
	})

	It("should grant M to a read for ownership", func() {
		access(mem.GETX, 0)

		Expect(state).To(Equal(mem.M))
	})

	It("should take writebacks", func() {
		state = mem.M

		access(mem.PUTX, 0)

		Expect(state).To(Equal(mem.I))
	})

	It("should let a keep-exclusive writeback keep the line", func() {
		state = mem.M

		access(mem.PUTX, mem.FlagPutXKeepExcl)

		Expect(state).To(Equal(mem.E))
	})

	It("should tag the dirty writebacks", func() {
		tracer := hooking.NewTagCountTracer(nil)
		memory.AcceptHook(tracer)

		state = mem.M
		access(mem.PUTX, 0)
		access(mem.GETS, 0)
		access(mem.PUTS, 0)

		Expect(tracer.GetTagCount("writeback")).To(Equal(uint64(1)))
	})

	It("should panic on a request without a state", func() {
		Expect(func() {
			memory.Access(&mem.AccessReq{Type: mem.GETS})
		}).To(Panic())
	})

	It("should create its own storage", func() {
		Expect(memory.Storage().Capacity()).To(Equal(uint64(1 * mem.MB)))
	})
})
