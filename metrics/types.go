// Package metrics 为 paygate 提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，通过 Prometheus Exporter 暴露。
//
// 快速开始：
//
//	meter, err := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "paygate",
//	    Port:        9090,
//	})
//	if err != nil {
//	    return err
//	}
//	defer meter.Shutdown(ctx)
//
//	attempts, _ := meter.Counter(metrics.MetricAttemptsTotal, "Provider attempts by outcome.")
//	attempts.Inc(ctx, metrics.L(metrics.LabelProvider, "stripe"), metrics.L(metrics.LabelOutcome, "success"))
package metrics

import (
	"context"
	"net/http"
)

// Counter 计数器，只增不减
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)

	// Add 将计数器增加给定的值，负数会被忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘，记录可任意增减的瞬时值
type Gauge interface {
	// Set 覆盖当前值
	Set(ctx context.Context, val float64, labels ...Label)

	// Inc 等价于 Set(current + 1)
	Inc(ctx context.Context, labels ...Label)

	// Dec 等价于 Set(current - 1)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图，记录值的分布
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂
//
// Meter 创建的指标是并发安全的，可以在多个 goroutine 中使用。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Handler 返回 Prometheus 采集端点，可挂载到业务 HTTP 服务上
	Handler() http.Handler

	// Shutdown 刷新并关闭，通常在进程退出时调用
	Shutdown(ctx context.Context) error
}

// MetricOption 指标配置选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit 建议使用 UCUM 单位代码，如 "s"、"ms"、"By"
	Unit string

	// Buckets 直方图的显式桶边界
	Buckets []float64
}

// WithUnit 设置指标的单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图桶边界，仅对 Histogram 生效
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}
