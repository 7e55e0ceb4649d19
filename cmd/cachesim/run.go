package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/compcache/datarecording"
	"github.com/sarchlab/compcache/mem/cache"
	"github.com/sarchlab/compcache/mem/trace"
	"github.com/sarchlab/compcache/monitoring"
	"github.com/sarchlab/compcache/sim/hooking"
	"github.com/sarchlab/compcache/sim/simulation"
	"github.com/sarchlab/compcache/workload"
)

type runOptions struct {
	hierarchy workload.HierarchyConfig
	workload  workload.Config

	record      string
	trace       bool
	traceStart  uint64
	traceEnd    uint64
	backtrace   bool
	monitor     bool
	monitorPort int
	openMonitor bool
	logLevel    string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload over a cache hierarchy.",
	Long: `run builds the hierarchy, lets every core issue its accesses ` +
		`concurrently and prints the counters of each level.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSimulation(cmd.Context(), cmd.OutOrStdout(), runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	h := workload.DefaultHierarchyConfig()
	w := workload.DefaultConfig()
	f := runCmd.Flags()

	f.IntVar(&runOpts.hierarchy.NumCores, "cores",
		int(envUint("CORES", uint64(h.NumCores))), "number of cores")
	f.IntVar(&runOpts.hierarchy.LineSize, "line-size",
		int(envUint("LINE_SIZE", uint64(h.LineSize))), "line size in bytes")
	f.Uint64Var(&runOpts.hierarchy.MemLatency, "mem-latency",
		envUint("MEM_LATENCY", h.MemLatency), "memory latency in cycles")
	f.Uint64Var(&runOpts.hierarchy.RTT, "rtt",
		envUint("RTT", h.RTT), "round trip between two levels in cycles")
	f.StringVar(&runOpts.hierarchy.Compressor, "compressor",
		envString("COMPRESSOR", h.Compressor),
		"none, bdi, fpc, bdifpc, s2 or lz4")

	levelFlags(f, "l1", &runOpts.hierarchy.L1, h.L1)
	levelFlags(f, "l2", &runOpts.hierarchy.L2, h.L2)
	levelFlags(f, "l3", &runOpts.hierarchy.L3, h.L3)

	f.StringVar(&runOpts.workload.Pattern, "pattern",
		envString("PATTERN", w.Pattern), "uniform, stream or hotset")
	f.Uint64Var(&runOpts.workload.NumAccesses, "accesses",
		envUint("ACCESSES", w.NumAccesses), "accesses per core")
	f.Uint64Var(&runOpts.workload.FootprintLine, "footprint",
		envUint("FOOTPRINT", w.FootprintLine), "footprint in lines")
	f.Float64Var(&runOpts.workload.WriteFraction, "write-fraction",
		envFloat("WRITE_FRACTION", w.WriteFraction), "fraction of writes")
	f.Float64Var(&runOpts.workload.HotFraction, "hot-fraction",
		envFloat("HOT_FRACTION", w.HotFraction),
		"fraction of the footprint that is hot")
	f.Float64Var(&runOpts.workload.HotProb, "hot-prob",
		envFloat("HOT_PROB", w.HotProb),
		"probability that an access goes to the hot set")
	f.Uint64Var(&runOpts.workload.Seed, "seed",
		envUint("SEED", w.Seed), "seed of the access streams and the data")

	f.StringVar(&runOpts.record, "record", envString("RECORD", ""),
		"record the level counters to this sqlite file, without extension")
	f.BoolVar(&runOpts.trace, "trace", envBool("TRACE", false),
		"also trace every task into the recorded database")
	f.Uint64Var(&runOpts.traceStart, "trace-start",
		envUint("TRACE_START", 0), "first cycle to trace")
	f.Uint64Var(&runOpts.traceEnd, "trace-end",
		envUint("TRACE_END", 0), "last cycle to trace, 0 traces to the end")
	f.BoolVar(&runOpts.backtrace, "backtrace", envBool("BACKTRACE", false),
		"print the accesses in flight when the run is interrupted")
	f.BoolVar(&runOpts.monitor, "monitor", envBool("MONITOR", false),
		"serve the progress and the counters over HTTP")
	f.IntVar(&runOpts.monitorPort, "monitor-port",
		int(envUint("MONITOR_PORT", 0)), "port of the monitor, 0 picks one")
	f.BoolVar(&runOpts.openMonitor, "open-monitor",
		envBool("OPEN_MONITOR", false), "open the monitor in a browser")
	f.StringVar(&runOpts.logLevel, "log-level",
		envString("LOG_LEVEL", "warn"), "debug, info, warn or error")
}

type flagSet interface {
	Uint64Var(p *uint64, name string, value uint64, usage string)
	IntVar(p *int, name string, value int, usage string)
	StringVar(p *string, name string, value string, usage string)
}

func levelFlags(
	f flagSet,
	level string,
	lc *workload.LevelConfig,
	def workload.LevelConfig,
) {
	env := func(name string) string {
		return strings.ToUpper(level) + "_" + name
	}

	f.Uint64Var(&lc.ByteSize, level+"-size",
		envUint(env("SIZE"), def.ByteSize),
		"capacity of each "+level+" in bytes, 0 disables the level")
	f.IntVar(&lc.Ways, level+"-ways",
		int(envUint(env("WAYS"), uint64(def.Ways))),
		"associativity of the "+level)
	f.StringVar(&lc.Array, level+"-array",
		envString(env("ARRAY"), def.Array),
		cache.ArraySetAssoc+" or "+cache.ArrayCompressed)
	f.StringVar(&lc.Policy, level+"-policy",
		envString(env("POLICY"), def.Policy),
		"replacement policy of the "+level)
	f.StringVar(&lc.Controller, level+"-controller",
		envString(env("CONTROLLER"), def.Controller),
		"coherence controller of the "+level+", "+cache.ControllerMESI+
			" or "+cache.ControllerDirectory+" for the last level, "+
			"empty for the default")
	f.Uint64Var(&lc.AccLat, level+"-latency",
		envUint(env("LATENCY"), def.AccLat),
		"hit latency of the "+level)
	f.Uint64Var(&lc.TagLat, level+"-tag-latency",
		envUint(env("TAG_LATENCY"), def.TagLat),
		"miss latency of the "+level)
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level

	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: l})), nil
}

func runSimulation(ctx context.Context, out io.Writer, opts runOptions) error {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	s := simulation.NewSimulation()
	s.SetLogger(logger)
	defer s.Terminate()

	h, err := workload.BuildHierarchy(s, opts.hierarchy)
	if err != nil {
		return err
	}

	err = workload.FillStorage(s.Storage(), opts.hierarchy.LineSize,
		opts.workload.FootprintLine, opts.workload.Seed)
	if err != nil {
		return err
	}

	stats := workload.NewStatsCollector(h)

	recorder, err := setupRecorder(s, h, opts)
	if err != nil {
		return err
	}

	var progress workload.ProgressReporter
	if opts.monitor {
		progress = startMonitor(s, h, opts)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if opts.backtrace {
		done := make(chan struct{})
		defer close(done)

		dumpOnInterrupt(ctx, done, h)
	}

	results, err := workload.Run(ctx, h, opts.workload, progress)
	if err != nil {
		return err
	}

	levelStats := stats.Stats()

	if recorder != nil {
		workload.Record(recorder, levelStats)
	}

	return printResults(out, levelStats, results)
}

func setupRecorder(
	s *simulation.Simulation,
	h *workload.Hierarchy,
	opts runOptions,
) (datarecording.DataRecorder, error) {
	if opts.record == "" {
		if opts.trace {
			return nil, fmt.Errorf("--trace needs --record")
		}

		return nil, nil
	}

	recorder, err := datarecording.NewDataRecorder(opts.record)
	if err != nil {
		return nil, err
	}

	s.RegisterTerminator(func() {
		err := recorder.Close()
		if err != nil {
			s.Logger().Error("cannot close recorder", "error", err)
		}
	})

	if opts.trace {
		tracer := trace.NewDBTracer(recorder)
		tracer.SetCycleRange(opts.traceStart, opts.traceEnd)

		for _, l := range h.Caches() {
			l.AcceptHook(tracer)
		}

		h.Memory.AcceptHook(tracer)
		s.RegisterTerminator(tracer.Terminate)
	}

	return recorder, nil
}

func dumpOnInterrupt(
	ctx context.Context,
	done <-chan struct{},
	h *workload.Hierarchy,
) {
	bt := hooking.NewBackTraceTracer(nil)

	for _, l := range h.Caches() {
		l.AcceptHook(bt)
	}

	h.Memory.AcceptHook(bt)

	go func() {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "Interrupted with %d tasks in flight\n",
				bt.NumInflight())
			bt.DumpAll()
		case <-done:
		}
	}()
}

type monitorProgress struct {
	bars     []*monitoring.ProgressBar
	reported []uint64
}

func (p *monitorProgress) Report(core int, finished uint64) {
	p.bars[core].IncrementFinished(finished - p.reported[core])
	p.reported[core] = finished
}

func startMonitor(
	s *simulation.Simulation,
	h *workload.Hierarchy,
	opts runOptions,
) workload.ProgressReporter {
	m := monitoring.NewMonitor().WithIDGenerator(s.IDGenerator())
	if opts.monitorPort != 0 {
		m.WithPortNumber(opts.monitorPort)
	}

	for _, l := range h.Caches() {
		m.RegisterLevel(l)
	}

	m.RegisterLevel(h.Memory)

	url := m.StartServer()
	s.RegisterTerminator(m.StopServer)

	if opts.openMonitor {
		err := browser.OpenURL(url)
		if err != nil {
			s.Logger().Warn("cannot open browser", "error", err)
		}
	}

	p := &monitorProgress{reported: make([]uint64, len(h.L1s))}
	for i := range h.L1s {
		p.bars = append(p.bars, m.CreateProgressBar(
			fmt.Sprintf("core %d", i), opts.workload.NumAccesses))
	}

	return p
}

func printResults(
	out io.Writer,
	levelStats []workload.LevelStats,
	results []workload.CoreResult,
) error {
	err := printLevelStats(out, levelStats)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "core\taccesses\twrites\tcycles\tcycles/access\t")

	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.2f\t\n",
			r.Core, r.NumAccesses, r.NumWrites, r.LastCycle, r.AvgLatency())
	}

	return w.Flush()
}
