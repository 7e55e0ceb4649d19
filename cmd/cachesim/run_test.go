package main

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/compcache/mem/cache"
	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/workload"
)

var _ = Describe("cachesim", func() {
	var opts runOptions

	BeforeEach(func() {
		opts = runOptions{
			hierarchy: workload.DefaultHierarchyConfig(),
			workload:  workload.DefaultConfig(),
			logLevel:  "error",
		}
		opts.hierarchy.NumCores = 2
		opts.hierarchy.L1.ByteSize = 2 * mem.KB
		opts.hierarchy.L2.ByteSize = 8 * mem.KB
		opts.hierarchy.L3.ByteSize = 32 * mem.KB
		opts.workload.NumAccesses = 2000
		opts.workload.FootprintLine = 1024
	})

	It("should print the counters of every level", func() {
		out := &bytes.Buffer{}

		Expect(runSimulation(context.Background(), out, opts)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("L1[0]"))
		Expect(out.String()).To(ContainSubstring("L3"))
		Expect(out.String()).To(ContainSubstring("Memory"))
		Expect(out.String()).To(ContainSubstring("cycles/access"))
		Expect(out.String()).To(ContainSubstring("resizes"))
	})

	It("should run with a directory as the last level", func() {
		opts.hierarchy.L3.Controller = cache.ControllerDirectory
		opts.hierarchy.L3.Array = cache.ArraySetAssoc
		opts.hierarchy.L3.Policy = "lru"
		opts.workload.Pattern = workload.PatternHotSet
		opts.workload.WriteFraction = 0.3

		out := &bytes.Buffer{}

		Expect(runSimulation(context.Background(), out, opts)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("L3"))
	})

	It("should reject a compressed directory", func() {
		opts.hierarchy.L3.Controller = cache.ControllerDirectory

		Expect(runSimulation(context.Background(), &bytes.Buffer{}, opts)).
			To(MatchError(ContainSubstring("directory")))
	})

	It("should run with the in-flight tracker attached", func() {
		opts.backtrace = true
		opts.workload.Pattern = workload.PatternHotSet

		Expect(runSimulation(context.Background(), &bytes.Buffer{}, opts)).
			To(Succeed())
	})

	It("should reject an unknown log level", func() {
		opts.logLevel = "chatty"

		Expect(runSimulation(context.Background(), &bytes.Buffer{}, opts)).
			NotTo(Succeed())
	})

	It("should refuse to trace without a database", func() {
		opts.trace = true

		Expect(runSimulation(context.Background(), &bytes.Buffer{}, opts)).
			To(MatchError(ContainSubstring("--record")))
	})

	It("should report a recorded run", func() {
		opts.record = filepath.Join(GinkgoT().TempDir(), "run")
		opts.trace = true
		opts.traceEnd = 500

		Expect(runSimulation(context.Background(), &bytes.Buffer{}, opts)).
			To(Succeed())

		out := &bytes.Buffer{}
		reportCmd.SetOut(out)
		reportCmd.SetContext(context.Background())

		Expect(report(reportCmd, opts.record+".sqlite3", "L3")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("L3"))
		Expect(out.String()).NotTo(ContainSubstring("L1[0]"))
	})
})
