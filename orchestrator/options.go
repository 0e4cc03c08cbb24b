package orchestrator

import (
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/feedback"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/fraud"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idem"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idgen"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/retry"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
)

// Option 编排器选项
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	fraud      fraud.Gate
	compliance compliance.Gate
	storage    storage.Storage
	publisher  notify.Publisher
	idem       idem.Idempotency
	retry      *retry.Executor
	feedback   *feedback.Loop
	ids        idgen.Generator
	now        func() time.Time
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "orchestrator"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("orchestrator")
		}
	}
}

// WithMeter 设置指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// WithFraudGate 设置欺诈评估，默认全部放行
func WithFraudGate(g fraud.Gate) Option {
	return func(o *options) { o.fraud = g }
}

// WithComplianceGate 设置合规校验，默认全部通过
func WithComplianceGate(g compliance.Gate) Option {
	return func(o *options) { o.compliance = g }
}

// WithStorage 设置审计存储，默认内存实现
func WithStorage(s storage.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithPublisher 设置事件发布，默认丢弃
func WithPublisher(p notify.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithIdempotency 设置调用方幂等键的保护，未设置时忽略调用方幂等键
func WithIdempotency(i idem.Idempotency) Option {
	return func(o *options) { o.idem = i }
}

// WithRetry 设置重试执行器
func WithRetry(e *retry.Executor) Option {
	return func(o *options) { o.retry = e }
}

// WithFeedback 设置性能反馈环
func WithFeedback(l *feedback.Loop) Option {
	return func(o *options) { o.feedback = l }
}

// WithIDGenerator 设置编排 ID 与关联 ID 的生成器
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
