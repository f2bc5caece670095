package soak

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xcontainer/lib/kv"
	"github.com/benz9527/xcontainer/lib/tree"
	"github.com/benz9527/xcontainer/xlog"
)

// Report sums up one Run.
type Report struct {
	Kind     ContainerKind
	Trees    int
	Failed   int
	Ops      int64
	Inserts  int64
	Removes  int64
	Lookups  int64
	Scans    int64
	Checks   int64
	Elements int64
	Duration time.Duration
	// RSS is the resident set size after the run, zero if unavailable.
	RSS uint64
}

type taskResult struct {
	ops, inserts, removes, lookups, scans, checks int64
	elements                                      int64
	err                                           error
}

// Runner soaks a number of containers concurrently, each one against
// its own model.
type Runner struct {
	cfg     *runnerCfg
	logger  xlog.XLogger
	results kv.ThreadSafeStorer[int, *taskResult]
}

func NewRunner(opts ...Option) (*Runner, error) {
	cfg := defaultRunnerCfg()
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger
	if logger == nil {
		logger = xlog.NewXLogger(xlog.WithXLoggerLevel(xlog.LogLevelInfo))
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("soak"),
	}, nil
}

// Run blocks until every task finishes or observes ctx is done. The
// returned error combines the failures of all tasks. The report is set
// whenever the tasks were submitted.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	pool := r.cfg.pool
	if pool == nil {
		var err error
		pool, err = ants.NewPool(r.cfg.workers, ants.WithLogger(xlog.NewAntsXLogger(r.logger)))
		if err != nil {
			return nil, err
		}
		defer pool.Release()
	}

	r.results = kv.NewThreadSafeMap[int, *taskResult]()
	r.logger.InfoContext(ctx, "soak started",
		zap.String("kind", string(r.cfg.kind)),
		zap.Int("trees", r.cfg.trees),
		zap.Int64("ops", r.cfg.ops),
		zap.Uint64("keys", r.cfg.keys),
		zap.Int("workers", pool.Cap()),
		zap.Uint64("seed", r.cfg.seed),
	)

	start := time.Now()
	wg := sync.WaitGroup{}
	for idx := 0; idx < r.cfg.trees; idx++ {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			res := r.runTask(ctx, idx)
			r.results.AddOrUpdate(idx, res)
		}); err != nil {
			wg.Done()
			r.results.AddOrUpdate(idx, &taskResult{err: fmt.Errorf("tree %d: %w", idx, err)})
		}
	}
	wg.Wait()

	report, err := r.report(time.Since(start))
	if err != nil {
		r.logger.ErrorMulti(err, "soak failed", zap.Int("failed", report.Failed))
	}
	r.logger.InfoContext(ctx, "soak finished",
		zap.Int64("ops", report.Ops),
		zap.Int64("checks", report.Checks),
		zap.Int64("elements", report.Elements),
		zap.Duration("duration", report.Duration),
		zap.Uint64("rss", report.RSS),
	)
	return report, err
}

func (r *Runner) report(elapsed time.Duration) (*Report, error) {
	report := &Report{
		Kind:     r.cfg.kind,
		Trees:    r.cfg.trees,
		Duration: elapsed,
	}
	var err error
	for _, res := range r.results.ListValues() {
		report.Ops += res.ops
		report.Inserts += res.inserts
		report.Removes += res.removes
		report.Lookups += res.lookups
		report.Scans += res.scans
		report.Checks += res.checks
		report.Elements += res.elements
		if res.err != nil {
			report.Failed++
			err = multierr.Append(err, res.err)
		}
	}
	if p, pErr := process.NewProcess(int32(os.Getpid())); pErr == nil {
		if mem, memErr := p.MemoryInfo(); memErr == nil && mem != nil {
			report.RSS = mem.RSS
		}
	}
	return report, err
}

func (r *Runner) newWorkload(idx int) (workload, error) {
	name := string(r.cfg.kind)
	if r.cfg.statsName != "" {
		name = r.cfg.statsName + "/" + name
	}
	switch r.cfg.kind {
	case MapKind:
		opts := make([]tree.RBTreeOpt[uint64, uint64], 0, 1)
		if r.cfg.statsEnabled {
			opts = append(opts, tree.WithRBTreeStats[uint64, uint64](name, r.cfg.statsProvider))
		}
		return newMapWorkload(opts...)
	case SetKind, MultiSetKind:
		opts := make([]tree.RBTreeOpt[uint64, struct{}], 0, 2)
		if r.cfg.statsEnabled {
			opts = append(opts, tree.WithRBTreeStats[uint64, struct{}](name, r.cfg.statsProvider))
		}
		// Odd trees borrow the successor on two-child removal.
		if idx%2 == 1 {
			opts = append(opts, tree.WithRBTreeRemoveBorrowSucc[uint64, struct{}]())
		}
		if r.cfg.kind == SetKind {
			return newSetWorkload(opts...), nil
		}
		return newMultiSetWorkload(opts...), nil
	default:
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownContainerKind, r.cfg.kind)
}

func (r *Runner) runTask(ctx context.Context, idx int) *taskResult {
	res := &taskResult{}
	if err := ctx.Err(); err != nil {
		res.err = fmt.Errorf("tree %d: %w", idx, err)
		return res
	}
	w, err := r.newWorkload(idx)
	if err != nil {
		res.err = fmt.Errorf("tree %d: %w", idx, err)
		return res
	}
	defer func() {
		res.elements = w.size()
	}()

	rnd := rand.New(rand.NewPCG(r.cfg.seed, uint64(idx)))
	for op := int64(1); op <= r.cfg.ops; op++ {
		key := rnd.Uint64N(r.cfg.keys) + 1
		var opErr error
		switch n := rnd.IntN(20); {
		case n < 8:
			res.inserts++
			opErr = w.insert(key, n%2 == 0)
		case n < 14:
			res.removes++
			opErr = w.remove(key, n == 13)
		case n < 19:
			res.lookups++
			opErr = w.lookup(key)
		default:
			res.scans++
			opErr = w.scan(key, r.cfg.scanSteps)
		}
		res.ops++
		if opErr != nil {
			res.err = fmt.Errorf("tree %d op %d: %w", idx, op, opErr)
			return res
		}
		if r.cfg.checkEvery > 0 && op%r.cfg.checkEvery == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.err = fmt.Errorf("tree %d op %d: %w", idx, op, ctxErr)
				return res
			}
			res.checks++
			if checkErr := w.check(); checkErr != nil {
				res.err = fmt.Errorf("tree %d op %d: %w", idx, op, checkErr)
				return res
			}
		}
	}
	res.checks++
	if checkErr := w.check(); checkErr != nil {
		res.err = fmt.Errorf("tree %d final check: %w", idx, checkErr)
		return res
	}
	r.logger.Debug("soak tree done",
		zap.Int("tree", idx),
		zap.Int64("ops", res.ops),
		zap.Int64("elements", w.size()),
	)
	return res
}
