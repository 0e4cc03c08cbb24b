package trace

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Discard 创建不导出的 TracerProvider，仅生成 TraceID。
func Discard(serviceName string) (func(context.Context) error, error) {
	var resOpts []resource.Option
	if serviceName != "" {
		resOpts = append(resOpts, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		))
	}

	res, err := resource.New(context.Background(), resOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1.0))),
	)
	install(tp)
	return tp.Shutdown, nil
}
