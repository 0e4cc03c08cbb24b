package clog

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// NamespaceKey 日志中命名空间的字段名
const NamespaceKey = "namespace"

type ctxKey string

const (
	correlationIDKey   ctxKey = "correlation_id"
	orchestrationIDKey ctxKey = "orchestration_id"
	tenantIDKey        ctxKey = "tenant_id"
)

// WithCorrelationID 将调用方提供的关联 ID 写入 ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// WithOrchestrationID 将本次编排 ID 写入 ctx
func WithOrchestrationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orchestrationIDKey, id)
}

// WithTenantID 将租户 ID 写入 ctx
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// CorrelationID 读取 ctx 中的关联 ID
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// extractContextFields 按规则从 ctx 提取字段追加到 attrs
func extractContextFields(ctx context.Context, o *options, attrs *[]slog.Attr) {
	if ctx == nil || o == nil {
		return
	}

	for _, cf := range o.contextFields {
		val := ctx.Value(cf.Key)
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok && s == "" {
			continue
		}
		*attrs = append(*attrs, slog.Any(cf.FieldName, val))
	}

	if o.enableTraceExtraction {
		sc := trace.SpanContextFromContext(ctx)
		if sc.IsValid() {
			*attrs = append(*attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()))
		}
	}
}

// addNamespaceFields 追加命名空间字段
func addNamespaceFields(o *options, attrs *[]slog.Attr) {
	if o == nil || len(o.namespaceParts) == 0 {
		return
	}
	*attrs = append(*attrs, slog.String(NamespaceKey, strings.Join(o.namespaceParts, ".")))
}
