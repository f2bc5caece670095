package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xcontainer/xlog"
)

type runFlags struct {
	kind        string
	trees       int
	ops         int64
	keys        uint64
	workers     int
	check       int64
	seed        uint64
	metrics     string
	metricsAddr string
	interval    time.Duration
	logLevel    string
	plainText   bool
}

// exitCodeError carries a non-zero exit code of a finished soak.
type exitCodeError int

func (e exitCodeError) Error() string {
	return fmt.Sprintf("soak exited with code %d", int(e))
}

var flags = &runFlags{}

var commandRun = &cobra.Command{
	Use:   "run",
	Short: "Run a soak workload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), flags)
	},
}

func init() {
	fs := commandRun.Flags()
	fs.StringVar(&flags.kind, "kind", "map", "container kind: map, set or multiset")
	fs.IntVar(&flags.trees, "trees", 64, "number of containers, one per task")
	fs.Int64Var(&flags.ops, "ops", 20_000, "operations per container")
	fs.Uint64Var(&flags.keys, "keys", 4096, "keys are drawn from [1, keys]")
	fs.IntVar(&flags.workers, "workers", 8, "worker pool size")
	fs.Int64Var(&flags.check, "check", 1000, "validate every n operations, 0 validates at the end only")
	fs.Uint64Var(&flags.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.StringVar(&flags.metrics, "metrics", "none", "metrics exporter: stdout, prometheus or none")
	fs.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.DurationVar(&flags.interval, "metrics-interval", 10*time.Second, "stdout metrics export interval")
	fs.StringVar(&flags.logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN or ERROR")
	fs.BoolVar(&flags.plainText, "plain", false, "plain text logs instead of JSON")
	mainCommand.AddCommand(commandRun)
}

func run(ctx context.Context, flags *runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.DebugLevel, format, args...)
	}))
	if err != nil {
		logger.Warn("set GOMAXPROCS failed")
	}
	defer undo()

	code, err := runApp(ctx, newApp(flags, logger))
	if err != nil {
		return err
	}
	if code != 0 {
		return exitCodeError(code)
	}
	return nil
}

// runApp starts app, waits for the soak to shut it down and stops it.
func runApp(ctx context.Context, app *fx.App) (int, error) {
	wait := app.Wait()
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return 1, err
	}

	var code int
	select {
	case sig := <-wait:
		code = sig.ExitCode
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return 1, err
	}
	return code, nil
}

func newLogger(flags *runFlags) (xlog.XLogger, error) {
	encoder := xlog.JSON
	if flags.plainText {
		encoder = xlog.PlainText
	}
	opts := []xlog.XLoggerOption{
		xlog.WithXLoggerEncoder(encoder),
		xlog.WithXLoggerWriter(xlog.StdOut),
		xlog.WithXLoggerLevelText(flags.logLevel),
	}
	return xlog.TryNewXLogger(opts...)
}
