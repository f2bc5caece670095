package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsExporterType string

const (
	StdOutMetrics     MetricsExporterType = "stdout"
	PrometheusMetrics MetricsExporterType = "prometheus"
	NoopMetrics       MetricsExporterType = "none"
)

var ErrUnknownMetricsExporter = errors.New("[observability] unknown metrics exporter")

func ParseMetricsExporterType(text string) (MetricsExporterType, error) {
	switch typ := MetricsExporterType(strings.ToLower(strings.TrimSpace(text))); typ {
	case StdOutMetrics, PrometheusMetrics, NoopMetrics:
		return typ, nil
	case "":
		return NoopMetrics, nil
	default:
	}
	return "", ErrUnknownMetricsExporter
}

type exporterCfg struct {
	interval time.Duration
	timeout  time.Duration
	writer   io.Writer
	global   bool
}

type ExporterOption func(*exporterCfg)

func WithExportInterval(interval time.Duration) ExporterOption {
	return func(cfg *exporterCfg) {
		if interval > 0 {
			cfg.interval = interval
		}
	}
}

func WithExportTimeout(timeout time.Duration) ExporterOption {
	return func(cfg *exporterCfg) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithExportWriter redirects the stdout exporter.
func WithExportWriter(w io.Writer) ExporterOption {
	return func(cfg *exporterCfg) {
		if w != nil {
			cfg.writer = w
		}
	}
}

// WithGlobalMeterProvider installs the provider as the otel global.
func WithGlobalMeterProvider() ExporterOption {
	return func(cfg *exporterCfg) {
		cfg.global = true
	}
}

// MeterProvider is an otel meter provider bound to one exporter.
type MeterProvider struct {
	metric.MeterProvider
	typ      MetricsExporterType
	sdk      *sdkmetric.MeterProvider
	registry *promclient.Registry
}

func (mp *MeterProvider) Type() MetricsExporterType {
	return mp.typ
}

// Handler serves the prometheus text exposition. It is nil for the
// other exporters.
func (mp *MeterProvider) Handler() http.Handler {
	if mp.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{})
}

func (mp *MeterProvider) ForceFlush(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return mp.sdk.ForceFlush(ctx)
}

func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return mp.sdk.Shutdown(ctx)
}

func NewMeterProvider(typ MetricsExporterType, opts ...ExporterOption) (*MeterProvider, error) {
	cfg := &exporterCfg{
		interval: 10 * time.Second,
		timeout:  5 * time.Second,
		writer:   os.Stdout,
	}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}

	var (
		mp  *MeterProvider
		err error
	)
	switch typ {
	case StdOutMetrics:
		mp, err = newConsoleMetricsExporter(cfg)
	case PrometheusMetrics:
		mp, err = newPrometheusMetricsExporter()
	case NoopMetrics:
		mp = &MeterProvider{MeterProvider: noop.NewMeterProvider(), typ: NoopMetrics}
	default:
		return nil, ErrUnknownMetricsExporter
	}
	if err != nil {
		return nil, err
	}
	if cfg.global {
		otel.SetMeterProvider(mp.MeterProvider)
	}
	return mp, nil
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(cfg *exporterCfg) (*MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.writer))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(cfg.interval),
		sdkmetric.WithTimeout(cfg.timeout),
	)))
	return &MeterProvider{MeterProvider: mp, typ: StdOutMetrics, sdk: mp}, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// Every provider owns its registry.
func newPrometheusMetricsExporter() (*MeterProvider, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &MeterProvider{MeterProvider: mp, typ: PrometheusMetrics, sdk: mp, registry: registry}, nil
}
