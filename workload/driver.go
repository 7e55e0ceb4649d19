package workload

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/compcache/mem/mem"
)

// A ProgressReporter learns how many accesses a core has completed.
type ProgressReporter interface {
	Report(core int, finished uint64)
}

// CoreResult is what a core observed during a run.
type CoreResult struct {
	Core        int
	NumAccesses uint64
	NumWrites   uint64
	LastCycle   uint64
}

// AvgLatency returns the average number of cycles per access.
func (r CoreResult) AvgLatency() float64 {
	if r.NumAccesses == 0 {
		return 0
	}

	return float64(r.LastCycle) / float64(r.NumAccesses)
}

const reportInterval = 1024

// Run lets every core issue its accesses to its L1 concurrently. Each core
// issues an access when its previous one completes. A store writes new data
// into the line once the core owns it. Run stops early when ctx is canceled.
func Run(
	ctx context.Context,
	h *Hierarchy,
	cfg Config,
	progress ProgressReporter,
) ([]CoreResult, error) {
	results := make([]CoreResult, len(h.L1s))
	g, ctx := errgroup.WithContext(ctx)

	for core, l1 := range h.L1s {
		gen, err := NewGenerator(cfg, core)
		if err != nil {
			return nil, err
		}

		g.Go(func() error {
			res, err := runCore(ctx, core, h, gen, cfg.NumAccesses, progress)
			results[core] = res

			return err
		})
	}

	err := g.Wait()
	if err != nil {
		return results, err
	}

	return results, nil
}

func runCore(
	ctx context.Context,
	core int,
	h *Hierarchy,
	gen *Generator,
	numAccesses uint64,
	progress ProgressReporter,
) (CoreResult, error) {
	res := CoreResult{Core: core}
	cycle := uint64(0)
	l1 := h.L1s[core]
	storage := h.Sim.Storage()
	data := make([]byte, h.LineSize)

	for i := uint64(0); i < numAccesses; i++ {
		if i%reportInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, fmt.Errorf("core %d stopped: %w", core, err)
			}

			if progress != nil && i > 0 {
				progress.Report(core, i)
			}
		}

		a := gen.Next()

		req := &mem.AccessReq{
			LineAddr: a.LineAddr,
			Type:     mem.GETS,
			Cycle:    cycle,
			SrcID:    core,
			PC:       a.PC,
		}

		if a.Write {
			req.Type = mem.GETX
			res.NumWrites++
		}

		cycle = l1.Access(req)
		res.NumAccesses++

		if a.Write {
			gen.StoreData(data)

			err := storage.WriteLine(a.LineAddr, data)
			if err != nil {
				return res, fmt.Errorf("core %d cannot store: %w", core, err)
			}
		}
	}

	res.LastCycle = cycle

	if progress != nil {
		progress.Report(core, numAccesses)
	}

	return res, nil
}
