// Package feedback 根据每次尝试的结果更新提供方的性能快照。
//
// 成功率与延迟都使用指数移动平均：
//
//	successRate' = α·(success ? 100 : 0) + (1-α)·successRate
//	latency'     = α·latencyMs + (1-α)·latency
//
// 首次观测直接以本次延迟作为初值。更新结果写回注册表，并交给 MetricsSink 持久化；
// MetricsSink 的错误只记录日志，不影响编排结果。
package feedback

import (
	"context"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

// DefaultAlpha 默认平滑系数
const DefaultAlpha = 0.1

// Config 反馈配置
//
//	feedback:
//	  alpha: 0.1
type Config struct {
	Alpha float64 `json:"alpha" mapstructure:"alpha"`
}

// Store 性能快照的读写，由 provider.Registry 实现
type Store interface {
	Snapshot(name string) (provider.Performance, bool)
	UpdatePerformance(name string, perf provider.Performance) bool
}

// MetricsSink 性能数据的外部持久化
type MetricsSink interface {
	Persist(ctx context.Context, name string, successRate, latencyMs float64) error
}

// Loop 性能反馈环
type Loop struct {
	alpha  float64
	store  Store
	sinks  []MetricsSink
	now    func() time.Time
	logger clog.Logger
}

// Option 反馈环选项
type Option func(*Loop)

// WithSink 追加一个 MetricsSink
func WithSink(sink MetricsSink) Option {
	return func(l *Loop) {
		if sink != nil {
			l.sinks = append(l.sinks, sink)
		}
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger 设置 Logger，内部添加 namespace: "feedback"
func WithLogger(logger clog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger.WithNamespace("feedback")
		}
	}
}

// New 创建反馈环，Alpha 不在 (0, 1] 内时使用 DefaultAlpha
func New(store Store, cfg *Config, opts ...Option) *Loop {
	l := &Loop{
		alpha:  DefaultAlpha,
		store:  store,
		now:    time.Now,
		logger: clog.Discard(),
	}
	if cfg != nil && cfg.Alpha > 0 && cfg.Alpha <= 1 {
		l.alpha = cfg.Alpha
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe 记录一次尝试结果，返回更新后的快照；未注册的提供方返回 false
func (l *Loop) Observe(ctx context.Context, name string, success bool, latency time.Duration) (provider.Performance, bool) {
	prev, ok := l.store.Snapshot(name)
	if !ok {
		l.logger.WarnContext(ctx, "observation for unknown provider dropped", clog.String("provider", name))
		return provider.Performance{}, false
	}

	next := l.next(prev, success, latency)
	if !l.store.UpdatePerformance(name, next) {
		return provider.Performance{}, false
	}

	for _, sink := range l.sinks {
		if err := sink.Persist(ctx, name, next.SuccessRate, next.AverageLatencyMs); err != nil {
			l.logger.WarnContext(ctx, "persist provider metrics failed",
				clog.String("provider", name),
				clog.Error(err))
		}
	}

	l.logger.DebugContext(ctx, "provider performance updated",
		clog.String("provider", name),
		clog.Bool("success", success),
		clog.Float64("success_rate", next.SuccessRate),
		clog.Float64("latency_ms", next.AverageLatencyMs))
	return next, true
}

func (l *Loop) next(prev provider.Performance, success bool, latency time.Duration) provider.Performance {
	outcome := 0.0
	if success {
		outcome = 100
	}
	latencyMs := float64(latency) / float64(time.Millisecond)

	next := provider.Performance{
		SuccessRate:  l.alpha*outcome + (1-l.alpha)*prev.SuccessRate,
		Observations: prev.Observations + 1,
		LastUpdated:  l.now(),
	}
	if prev.Observations == 0 {
		next.AverageLatencyMs = latencyMs
	} else {
		next.AverageLatencyMs = l.alpha*latencyMs + (1-l.alpha)*prev.AverageLatencyMs
	}
	return next
}
