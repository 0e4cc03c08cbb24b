package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OrchestrationMeta 编排 Span 的标识信息
type OrchestrationMeta struct {
	Kind            string // payment | refund
	OrchestrationID string
	CorrelationID   string
	TenantID        string
}

// StartOrchestration 为一次 ProcessPayment / ProcessRefund 创建 Span
func StartOrchestration(ctx context.Context, meta OrchestrationMeta) (context.Context, oteltrace.Span) {
	ctx = normalizeContext(ctx)
	return otel.Tracer(tracerName).Start(ctx, SpanNameOrchestration(meta.Kind),
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(
			attribute.String(AttrKind, meta.Kind),
			attribute.String(AttrOrchestrationID, meta.OrchestrationID),
			attribute.String(AttrCorrelationID, meta.CorrelationID),
			attribute.String(AttrTenantID, meta.TenantID),
		),
	)
}

// StartAttempt 为候选提供方的一次尝试创建子 Span
func StartAttempt(ctx context.Context, provider string, attempt int) (context.Context, oteltrace.Span) {
	ctx = normalizeContext(ctx)
	return otel.Tracer(tracerName).Start(ctx, SpanNameAttempt(provider),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.Int(AttrAttempt, attempt),
		),
	)
}

// EndSpan 写入结果并结束 Span
func EndSpan(span oteltrace.Span, outcome string, err error) {
	if span == nil {
		return
	}
	if outcome != "" {
		span.SetAttributes(attribute.String(AttrOutcome, outcome))
	}
	if err != nil {
		MarkSpanError(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
