package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xcontainer/observability"
	"github.com/benz9527/xcontainer/soak"
	"github.com/benz9527/xcontainer/xlog"
)

type rbsoakBanner struct{}

func (rbsoakBanner) JSON() string {
	return `{"app":"rbsoak","about":"red-black tree container soak"}`
}

func (rbsoakBanner) PlainText() string {
	return "rbsoak: red-black tree container soak"
}

func newApp(flags *runFlags, logger xlog.XLogger, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(flags),
		fx.Provide(func() xlog.XLogger { return logger }),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Provide(
			provideMeterProvider,
			providePool,
			provideRunner,
		),
		fx.Invoke(registerSoak),
		fx.Options(opts...),
	)
}

func provideMeterProvider(lc fx.Lifecycle, flags *runFlags, logger xlog.XLogger) (*observability.MeterProvider, error) {
	typ, err := observability.ParseMetricsExporterType(flags.metrics)
	if err != nil {
		return nil, err
	}
	mp, err := observability.NewMeterProvider(typ,
		observability.WithExportInterval(flags.interval),
		observability.WithGlobalMeterProvider(),
	)
	if err != nil {
		return nil, err
	}
	if typ != observability.NoopMetrics {
		if err = observability.StartAppStats("rbsoak", mp); err != nil {
			return nil, err
		}
	}

	var srv *http.Server
	if handler := mp.Handler(); handler != nil && flags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		srv = &http.Server{Addr: flags.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if srv == nil {
				return nil
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "metrics server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var err error
			if srv != nil {
				err = multierr.Append(err, srv.Shutdown(ctx))
			}
			return multierr.Combine(err, mp.ForceFlush(ctx), mp.Shutdown(ctx))
		},
	})
	return mp, nil
}

func providePool(lc fx.Lifecycle, flags *runFlags, logger xlog.XLogger) (*ants.Pool, error) {
	pool, err := ants.NewPool(flags.workers, ants.WithLogger(xlog.NewAntsXLogger(logger)))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		return pool.ReleaseTimeout(time.Until(deadlineOr(ctx, 5*time.Second)))
	}))
	return pool, nil
}

func deadlineOr(ctx context.Context, fallback time.Duration) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(fallback)
}

func provideRunner(
	flags *runFlags,
	logger xlog.XLogger,
	pool *ants.Pool,
	mp *observability.MeterProvider,
) (*soak.Runner, error) {
	kind, err := soak.ParseContainerKind(flags.kind)
	if err != nil {
		return nil, err
	}
	opts := []soak.Option{
		soak.WithKind(kind),
		soak.WithTrees(flags.trees),
		soak.WithOps(flags.ops),
		soak.WithKeys(flags.keys),
		soak.WithCheckEvery(flags.check),
		soak.WithSeed(flags.seed),
		soak.WithLogger(logger),
		soak.WithPool(pool),
	}
	if mp.Type() != observability.NoopMetrics {
		opts = append(opts, soak.WithStats("rbsoak", mp))
	}
	return soak.NewRunner(opts...)
}

// registerSoak runs the workload once the app started and shuts the
// app down with exit code 1 if the soak failed.
func registerSoak(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *soak.Runner, logger xlog.XLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Banner(rbsoakBanner{})
			go func() {
				defer close(done)
				code := 0
				report, err := runner.Run(ctx)
				if err != nil {
					code = 1
				}
				if report != nil {
					logger.Info("soak report", reportFields(report)...)
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error(err, "shutdown failed")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func reportFields(report *soak.Report) []zap.Field {
	return []zap.Field{
		zap.String("kind", string(report.Kind)),
		zap.Int("trees", report.Trees),
		zap.Int("failed", report.Failed),
		zap.Int64("ops", report.Ops),
		zap.Int64("inserts", report.Inserts),
		zap.Int64("removes", report.Removes),
		zap.Int64("lookups", report.Lookups),
		zap.Int64("scans", report.Scans),
		zap.Int64("checks", report.Checks),
		zap.Int64("elements", report.Elements),
		zap.Duration("duration", report.Duration),
		zap.Uint64("rss", report.RSS),
	}
}
