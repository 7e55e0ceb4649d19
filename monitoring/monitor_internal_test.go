package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/idealmemory"
	"github.com/sarchlab/compcache/mem/mem"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		memory *idealmemory.Comp
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		memory = idealmemory.MakeBuilder().WithLatency(10).Build("Memory")
		m.RegisterLevel(memory)
	})

	It("should hook a counter to the registered levels", func() {
		Expect(m.levels).To(HaveLen(1))
		Expect(memory.NumHooks()).To(Equal(1))
	})

	It("should list the levels", func() {
		rec := get("/api/list_levels")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`["Memory"]`))
	})

	It("should report the tag counts of a level", func() {
		state := mem.M
		memory.Access(&mem.AccessReq{
			LineAddr: 0x40, Type: mem.PUTX, State: &state})

		rec := get("/api/counts/Memory")

		counts := map[string]uint64{}
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &counts)).To(Succeed())
		Expect(counts).To(HaveKeyWithValue("writeback", uint64(1)))
	})

	It("should answer 404 for an unknown level", func() {
		Expect(get("/api/counts/L9").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/level/L9").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject a malformed field request", func() {
		Expect(get("/api/field/notjson").Code).To(Equal(http.StatusBadRequest))
	})

	It("should track the progress bars", func() {
		bar := m.CreateProgressBar("core-0", 100)
		bar.IncrementInProgress(10)
		bar.MoveInProgressToFinished(4)

		var bars []progressBarRsp
		rec := get("/api/progress")
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("core-0"))
		Expect(bars[0].Finished).To(Equal(uint64(4)))
		Expect(bars[0].InProgress).To(Equal(uint64(6)))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
