package clog

import "bytes"

// ContextField 定义从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项
type Option func(*options)

type options struct {
	namespaceParts        []string
	contextFields         []ContextField
	buffer                *bytes.Buffer // 测试用缓冲区
	enableTraceExtraction bool
}

// WithNamespace 设置日志命名空间，多级以 "." 连接
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 添加自定义的 Context 字段提取规则
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{Key: key, FieldName: fieldName})
	}
}

// WithPaymentContext 提取支付链路的标准字段：
// correlation_id、orchestration_id、tenant_id
func WithPaymentContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: correlationIDKey, FieldName: "correlation_id"},
			ContextField{Key: orchestrationIDKey, FieldName: "orchestration_id"},
			ContextField{Key: tenantIDKey, FieldName: "tenant_id"},
		)
	}
}

// WithTraceContext 开启 OpenTelemetry TraceID/SpanID 自动提取
func WithTraceContext() Option {
	return func(o *options) {
		o.enableTraceExtraction = true
	}
}

// withBuffer 将输出写入 buf，仅用于测试，需配合 Output: "buffer"
func withBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
