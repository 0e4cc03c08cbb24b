package api

import (
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idgen"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/ratelimit"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
)

// Option 路由选项
type Option func(*options)

type options struct {
	logger      clog.Logger
	audit       storage.Reader
	httpMetrics *metrics.HTTPServerMetrics
	limiter     ratelimit.Limiter
	serviceName string
	tracing     bool
	ids         idgen.Generator
}

// WithLogger 设置 Logger，内部添加 namespace: "api"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("api")
		}
	}
}

// WithAuditReader 启用 GET /v1/orchestrations/:id
func WithAuditReader(r storage.Reader) Option {
	return func(o *options) { o.audit = r }
}

// WithHTTPMetrics 记录 HTTP RED 指标
func WithHTTPMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(o *options) { o.httpMetrics = m }
}

// WithRateLimiter 对 /v1 路由按租户限流
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithTracing 启用 otelgin 中间件
func WithTracing(serviceName string) Option {
	return func(o *options) {
		o.tracing = true
		o.serviceName = serviceName
	}
}

// WithIDGenerator 设置关联 ID 生成器
func WithIDGenerator(g idgen.Generator) Option {
	return func(o *options) { o.ids = g }
}
