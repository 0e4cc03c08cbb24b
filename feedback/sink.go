package feedback

import (
	"context"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// MeterSink 将性能快照记录为 OpenTelemetry Gauge
type MeterSink struct {
	successRate metrics.Gauge
	latency     metrics.Gauge
}

// NewMeterSink 创建基于 Meter 的 MetricsSink
func NewMeterSink(meter metrics.Meter) (*MeterSink, error) {
	rate, err := meter.Gauge(metrics.MetricProviderSuccessRate, "Provider success rate EMA (0-100).")
	if err != nil {
		return nil, err
	}
	latency, err := meter.Gauge(metrics.MetricProviderLatencyMs, "Provider average latency EMA in milliseconds.")
	if err != nil {
		return nil, err
	}
	return &MeterSink{successRate: rate, latency: latency}, nil
}

// Persist 实现 MetricsSink
func (s *MeterSink) Persist(ctx context.Context, name string, successRate, latencyMs float64) error {
	label := metrics.L(metrics.LabelProvider, name)
	s.successRate.Set(ctx, successRate, label)
	s.latency.Set(ctx, latencyMs, label)
	return nil
}

// SinkFunc 将函数适配为 MetricsSink
type SinkFunc func(ctx context.Context, name string, successRate, latencyMs float64) error

// Persist 实现 MetricsSink
func (f SinkFunc) Persist(ctx context.Context, name string, successRate, latencyMs float64) error {
	return f(ctx, name, successRate, latencyMs)
}
