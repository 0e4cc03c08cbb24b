package ratelimit

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// Option 限流器选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	redis  redis.UniversalClient
	now    func() time.Time
}

func (o *options) setDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.now == nil {
		o.now = time.Now
	}
}

// WithLogger 设置 Logger，内部添加 namespace: "ratelimit"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("ratelimit")
		}
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithRedisClient 设置 Redis 客户端，redis 模式必需
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// withClock 替换时间来源，仅测试使用
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
