package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// New 创建 Meter 实例
//
// 每个 Meter 使用独立的 Prometheus Registry，同一进程内可以创建多个实例。
func New(cfg *Config, opts ...Option) (Meter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if cfg.Runtime {
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
		}
	}

	m := &meterImpl{
		meter:    mp.Meter(cfg.ServiceName),
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger:   o.logger,
	}

	if cfg.Port > 0 {
		m.serve(fmt.Sprintf(":%d", cfg.Port), cfg.Path)
	}
	return m, nil
}

// Must 类似 New，出错时 panic，仅用于初始化阶段
func Must(cfg *Config, opts ...Option) Meter {
	m, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create metrics: %v", err))
	}
	return m
}

type meterImpl struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	server   *http.Server
	logger   clog.Logger
}

func (m *meterImpl) serve(addr, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m.handler)
	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		m.logger.Info("starting prometheus metrics server", clog.String("addr", addr), clog.String("path", path))
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("prometheus server error", clog.Error(err))
		}
	}()
}

func (m *meterImpl) Counter(name string, desc string, _ ...MetricOption) (Counter, error) {
	c, err := m.meter.Float64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return nil, err
	}
	return &counterImpl{c: c}, nil
}

func (m *meterImpl) Gauge(name string, desc string, opts ...MetricOption) (Gauge, error) {
	mo := applyMetricOptions(opts)
	otelOpts := []metric.Float64GaugeOption{metric.WithDescription(desc)}
	if mo.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(mo.Unit))
	}
	g, err := m.meter.Float64Gauge(name, otelOpts...)
	if err != nil {
		return nil, err
	}
	return &gaugeImpl{g: g, values: make(map[string]float64)}, nil
}

func (m *meterImpl) Histogram(name string, desc string, opts ...MetricOption) (Histogram, error) {
	mo := applyMetricOptions(opts)
	otelOpts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if mo.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(mo.Unit))
	}
	if len(mo.Buckets) > 0 {
		otelOpts = append(otelOpts, metric.WithExplicitBucketBoundaries(mo.Buckets...))
	}
	h, err := m.meter.Float64Histogram(name, otelOpts...)
	if err != nil {
		return nil, err
	}
	return &histogramImpl{h: h}, nil
}

func (m *meterImpl) Handler() http.Handler {
	return m.handler
}

// Shutdown 先关闭 HTTP 服务，再刷新 MeterProvider
func (m *meterImpl) Shutdown(ctx context.Context) error {
	var serverErr error
	if m.server != nil {
		serverErr = m.server.Shutdown(ctx)
	}
	return errors.Join(serverErr, m.provider.Shutdown(ctx))
}

type counterImpl struct {
	c metric.Float64Counter
}

func (c *counterImpl) Inc(ctx context.Context, labels ...Label) {
	c.c.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (c *counterImpl) Add(ctx context.Context, val float64, labels ...Label) {
	if val < 0 {
		return
	}
	c.c.Add(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

// gaugeImpl 在本地保存每组标签的当前值以支持 Inc/Dec
type gaugeImpl struct {
	g      metric.Float64Gauge
	mu     sync.Mutex
	values map[string]float64
}

func (g *gaugeImpl) Set(ctx context.Context, val float64, labels ...Label) {
	g.mu.Lock()
	g.values[labelKey(labels)] = val
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func (g *gaugeImpl) Inc(ctx context.Context, labels ...Label) {
	g.add(ctx, 1, labels)
}

func (g *gaugeImpl) Dec(ctx context.Context, labels ...Label) {
	g.add(ctx, -1, labels)
}

func (g *gaugeImpl) add(ctx context.Context, delta float64, labels []Label) {
	key := labelKey(labels)
	g.mu.Lock()
	g.values[key] += delta
	val := g.values[key]
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

type histogramImpl struct {
	h metric.Float64Histogram
}

func (h *histogramImpl) Record(ctx context.Context, val float64, labels ...Label) {
	h.h.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func applyMetricOptions(opts []MetricOption) *MetricOptions {
	mo := &MetricOptions{}
	for _, o := range opts {
		o(mo)
	}
	return mo
}

func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}

func labelKey(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Key + "=" + l.Value
	}
	return strings.Join(parts, "|")
}
