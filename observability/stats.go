package observability

import (
	"context"
	"runtime"
	"strings"
	"time"

	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

const appStatsPrefix = "xcontainer/app"

func appStatsName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString(appStatsPrefix)
	builder.WriteString("/")
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

// StartAppStats registers goroutine and GOMAXPROCS gauges and the
// go runtime instrumentation on provider.
func StartAppStats(name string, provider metric.MeterProvider) error {
	meter := provider.Meter(
		appStatsName(name),
		metric.WithInstrumentationVersion(otelruntime.Version()),
	)
	_, goroutinesErr := meter.Int64ObservableUpDownCounter(
		"app.core.goroutines",
		metric.WithDescription(`The application goroutines' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	_, processesErr := meter.Int64ObservableUpDownCounter(
		"app.core.processes",
		metric.WithDescription(`The application processes' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.GOMAXPROCS(0)))
			return nil
		}),
	)
	return multierr.Combine(
		goroutinesErr,
		processesErr,
		otelruntime.Start(
			otelruntime.WithMeterProvider(provider),
			otelruntime.WithMinimumReadMemStatsInterval(time.Second),
		),
	)
}
