package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// MessagingMeta 描述标准化的消息属性
type MessagingMeta struct {
	System      string
	Destination string
	Operation   string
}

func normalizeContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeTracer(tracer oteltrace.Tracer) oteltrace.Tracer {
	if tracer == nil {
		return otel.Tracer(tracerName)
	}
	return tracer
}

func messagingAttributes(meta MessagingMeta, attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+3)
	if meta.System != "" {
		out = append(out, attribute.String(AttrMessagingSystem, meta.System))
	}
	if meta.Destination != "" {
		out = append(out, attribute.String(AttrMessagingDestination, meta.Destination))
	}
	if meta.Operation != "" {
		out = append(out, attribute.String(AttrMessagingOperation, meta.Operation))
	}
	return append(out, attrs...)
}

// StartProducerSpan 启动生产者 Span，并将上下文注入到返回的 headers
func StartProducerSpan(
	ctx context.Context,
	tracer oteltrace.Tracer,
	spanName string,
	meta MessagingMeta,
	attrs ...attribute.KeyValue,
) (context.Context, oteltrace.Span, map[string]string) {
	ctx = normalizeContext(ctx)
	tracer = normalizeTracer(tracer)

	spanCtx, span := tracer.Start(ctx, spanName, oteltrace.WithSpanKind(oteltrace.SpanKindProducer))
	span.SetAttributes(messagingAttributes(meta, attrs...)...)

	headers := map[string]string{}
	Inject(spanCtx, headers)
	return spanCtx, span, headers
}

// MarkSpanError err 不为 nil 时记录错误并标记 Span 状态
func MarkSpanError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
