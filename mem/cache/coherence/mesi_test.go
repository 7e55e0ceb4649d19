package coherence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/compcache/mem/mem"
)

// serve runs an access through a controller the way the cache orchestrator
// does, for a line that is already in the array.
func serve(cc Controller, req *mem.AccessReq, lineID int) uint64 {
	cycle := req.Cycle

	if !cc.StartAccess(req) {
		cycle = cc.ProcessAccess(req, lineID, cycle)
	}

	cc.EndAccess(req)

	return cycle
}

func invalidate(cc Controller, req *mem.InvReq, lineID int) uint64 {
	cc.StartInv()
	return cc.ProcessInv(req, lineID, req.Cycle)
}

var _ = Describe("MESICC", func() {
	var (
		mockCtrl *gomock.Controller
		parent   *MockCache
		child    *MockCache
		cc       *MESICC
		state    mem.MESIState
		puts     int
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		parent = NewMockCache(mockCtrl)
		child = NewMockCache(mockCtrl)
		registry := testRegistry{1: parent, 2: child}

		cc = NewMESICC("L2", 8, registry, false)
		cc.SetParents(0, []mem.LevelID{1})
		cc.SetChildren([]mem.LevelID{2})
		state = mem.I
		puts = 0

		parent.EXPECT().
			Access(gomock.Any()).
			DoAndReturn(func(req *mem.AccessReq) uint64 {
				switch req.Type {
				case mem.GETS:
					*req.State = mem.E
				case mem.GETX:
					*req.State = mem.M
				case mem.PUTS, mem.PUTX:
					puts++
					*req.State = mem.I
				}

				return req.Cycle + 20
			}).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	childReq := func(t mem.AccessType) *mem.AccessReq {
		return &mem.AccessReq{
			LineAddr:     0x40,
			Type:         t,
			ChildID:      0,
			State:        &state,
			InitialState: state,
			Cycle:        100,
		}
	}

	It("should fetch on a miss and grant E", func() {
		cycle := serve(cc, childReq(mem.GETS), 3)

		Expect(cycle).To(Equal(uint64(120)))
		Expect(state).To(Equal(mem.E))
		Expect(cc.State(3)).To(Equal(mem.E))
		Expect(cc.Top().NumSharers(3)).To(Equal(1))
	})

	It("should keep the dirty data of a GETX then PUTX round trip", func() {
		serve(cc, childReq(mem.GETX), 3)
		Expect(state).To(Equal(mem.M))

		serve(cc, childReq(mem.PUTX), 3)

		Expect(state).To(Equal(mem.I))
		Expect(cc.State(3)).To(Equal(mem.M))
		Expect(cc.Top().NumSharers(3)).To(Equal(0))
		Expect(puts).To(Equal(0))

		cc.ProcessEviction(childReq(mem.GETS), 0x40, 3, 200)

		Expect(puts).To(Equal(1))
		Expect(cc.State(3)).To(Equal(mem.I))
	})

	It("should skip a writeback that lost a race", func() {
		serve(cc, childReq(mem.GETX), 3)
		req := childReq(mem.PUTX)
		state = mem.I

		Expect(serve(cc, req, 3)).To(Equal(uint64(100)))
		Expect(cc.Top().NumSharers(3)).To(Equal(1))
	})

	It("should record the dirty data pulled by a downgrade", func() {
		serve(cc, childReq(mem.GETS), 3)

		var other mem.MESIState
		req := childReq(mem.GETS)
		req.ChildID = 1
		req.State = &other
		req.InitialState = mem.I

		cc.SetChildren([]mem.LevelID{2, 2})
		child.EXPECT().
			Invalidate(gomock.Any()).
			DoAndReturn(func(inv *mem.InvReq) uint64 {
				*inv.Writeback = true
				state = mem.S
				return inv.Cycle
			})

		serve(cc, req, 3)

		Expect(other).To(Equal(mem.S))
		Expect(cc.State(3)).To(Equal(mem.M))
	})

	It("should serve a clean writeback downgraded on its way up", func() {
		serve(cc, childReq(mem.GETS), 3)
		Expect(state).To(Equal(mem.E))

		evict := childReq(mem.PUTS)

		var other mem.MESIState
		req := childReq(mem.GETS)
		req.ChildID = 1
		req.State = &other
		req.InitialState = mem.I

		cc.SetChildren([]mem.LevelID{2, 2})
		child.EXPECT().
			Invalidate(gomock.Any()).
			DoAndReturn(func(inv *mem.InvReq) uint64 {
				Expect(inv.Type).To(Equal(mem.INVX))
				state = mem.S
				return inv.Cycle
			})

		serve(cc, req, 3)
		Expect(state).To(Equal(mem.S))

		Expect(func() { serve(cc, evict, 3) }).NotTo(Panic())
		Expect(state).To(Equal(mem.I))
		Expect(cc.Top().NumSharers(3)).To(Equal(1))
		Expect(cc.Top().IsSharer(3, 0)).To(BeFalse())
		Expect(cc.Top().IsSharer(3, 1)).To(BeTrue())
		Expect(cc.State(3)).To(Equal(mem.E))
		cc.Top().Check(3)
	})

	It("should invalidate the children before itself", func() {
		serve(cc, childReq(mem.GETX), 3)
		child.EXPECT().
			Invalidate(gomock.Any()).
			DoAndReturn(func(inv *mem.InvReq) uint64 {
				*inv.Writeback = true
				state = mem.I
				return inv.Cycle + 5
			})

		wb := false
		cycle := invalidate(cc,
			&mem.InvReq{LineAddr: 0x40, Type: mem.INV, Writeback: &wb,
				Cycle: 300}, 3)

		Expect(cycle).To(Equal(uint64(305)))
		Expect(wb).To(BeTrue())
		Expect(cc.State(3)).To(Equal(mem.I))
	})

	It("should let the parent invalidate it while a GETX is in flight", func() {
		serve(cc, childReq(mem.GETS), 3)
		serve(cc, childReq(mem.PUTS), 3)
		cc.Bottom().states[3] = mem.S

		racing := NewMockCache(mockCtrl)
		cc.SetParents(0, []mem.LevelID{9})
		cc.bcc.registry = testRegistry{9: racing, 2: child}
		racing.EXPECT().
			Access(gomock.Any()).
			DoAndReturn(func(req *mem.AccessReq) uint64 {
				req.ChildLock.Unlock()

				wb := false
				invalidate(cc, &mem.InvReq{LineAddr: 0x40, Type: mem.INV,
					Writeback: &wb, Cycle: req.Cycle}, 3)

				req.ChildLock.Lock()

				Expect(CheckForRace(req)).To(BeFalse())
				*req.State = mem.M

				return req.Cycle + 30
			})

		state = mem.I
		cycle := serve(cc, childReq(mem.GETX), 3)

		Expect(cycle).To(Equal(uint64(130)))
		Expect(cc.State(3)).To(Equal(mem.M))
		Expect(state).To(Equal(mem.M))
	})

	It("should not track prefetches in the sharers", func() {
		req := childReq(mem.GETS)
		req.Flags = mem.FlagPrefetch

		serve(cc, req, 3)

		Expect(cc.State(3)).To(Equal(mem.E))
		Expect(cc.Top().NumSharers(3)).To(Equal(0))
	})

	It("should panic when a writeback misses an inclusive level", func() {
		state = mem.M

		Expect(func() { cc.ShouldAllocate(childReq(mem.PUTX)) }).To(Panic())
	})

	It("should bypass a non-inclusive level on a writeback miss", func() {
		cc = NewMESICC("L2", 8, testRegistry{1: parent}, true)
		cc.SetParents(4, []mem.LevelID{1})
		state = mem.M
		req := childReq(mem.PUTX)

		Expect(cc.ShouldAllocate(req)).To(BeFalse())
		serve(cc, req, -1)

		Expect(puts).To(Equal(1))
		Expect(state).To(Equal(mem.I))
	})

	It("should pass scrubs and zero allocations up", func() {
		parent.EXPECT().ScrubInvalidate(gomock.Any()).Return(uint64(7))
		parent.EXPECT().ZeroAlloc(gomock.Any()).Return(uint64(8))

		Expect(cc.PassScrubToParent(childReq(mem.PUTS))).To(Equal(uint64(7)))
		Expect(cc.PassZeroAllocToParent(childReq(mem.GETX))).
			To(Equal(uint64(8)))
	})
})

var _ = Describe("TerminalCC", func() {
	var (
		mockCtrl *gomock.Controller
		parent   *MockMemObject
		cc       *TerminalCC
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		parent = NewMockMemObject(mockCtrl)
		cc = NewTerminalCC("L1", 4, testRegistry{1: parent})
		cc.SetParents(0, []mem.LevelID{1})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should serve a core read", func() {
		parent.EXPECT().
			Access(gomock.Any()).
			DoAndReturn(func(req *mem.AccessReq) uint64 {
				*req.State = mem.S
				return req.Cycle + 10
			})

		cycle := serve(cc, &mem.AccessReq{LineAddr: 1, Type: mem.GETS}, 0)

		Expect(cycle).To(Equal(uint64(10)))
		Expect(cc.IsValid(0)).To(BeTrue())
	})

	It("should refuse writebacks from cores", func() {
		Expect(func() {
			cc.ShouldAllocate(&mem.AccessReq{Type: mem.PUTS})
		}).To(Panic())
	})

	It("should refuse children", func() {
		Expect(func() { cc.SetChildren([]mem.LevelID{3}) }).To(Panic())
	})

	It("should invalidate without latency", func() {
		cc.Bottom().states[0] = mem.M
		wb := false

		cycle := invalidate(cc,
			&mem.InvReq{Type: mem.INV, Writeback: &wb, Cycle: 40}, 0)

		Expect(cycle).To(Equal(uint64(40)))
		Expect(wb).To(BeTrue())
		Expect(cc.IsValid(0)).To(BeFalse())
	})
})
