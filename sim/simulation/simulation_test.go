package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/compression"
	"github.com/sarchlab/compcache/mem/idealmemory"
	"github.com/sarchlab/compcache/mem/mem"
)

var _ = Describe("Simulation", func() {
	var sim *Simulation

	BeforeEach(func() {
		sim = NewSimulation()
	})

	It("should register levels", func() {
		memory := idealmemory.MakeBuilder().Build("Memory")

		levelID := sim.RegisterLevel(memory)

		Expect(sim.MemObject(levelID)).To(BeIdenticalTo(memory))
		Expect(sim.GetLevelByName("Memory")).To(BeIdenticalTo(memory))
		Expect(sim.Levels()).To(HaveLen(1))

		found, ok := sim.LevelID("Memory")
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(levelID))
	})

	It("should refuse duplicated names", func() {
		sim.RegisterLevel(idealmemory.MakeBuilder().Build("Memory"))

		Expect(func() {
			sim.RegisterLevel(idealmemory.MakeBuilder().Build("Memory"))
		}).To(Panic())
	})

	It("should panic if a memory is used as a cache", func() {
		levelID := sim.RegisterLevel(idealmemory.MakeBuilder().Build("Memory"))

		Expect(func() { sim.Cache(levelID) }).To(Panic())
		Expect(func() { sim.MemObject(5) }).To(Panic())
	})

	It("should bind the oracle to the storage", func() {
		storage := mem.NewStorage(1 * mem.MB)
		sim.SetStorage(storage, compression.BDI{}, 64)

		Expect(sim.Storage()).To(BeIdenticalTo(storage))
		Expect(sim.Oracle().CompressedSize(0)).To(BeNumerically("<=", 64))
	})

	It("should run the terminators once in reverse order", func() {
		order := []int{}
		sim.RegisterTerminator(func() { order = append(order, 1) })
		sim.RegisterTerminator(func() { order = append(order, 2) })

		sim.Terminate()
		sim.Terminate()

		Expect(order).To(Equal([]int{2, 1}))
	})
})
