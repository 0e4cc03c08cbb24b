// Package trace 封装 OpenTelemetry 链路追踪的初始化与支付链路的 Span 约定。
//
// 进程启动时调用 Init（或 Discard）设置全局 TracerProvider，
// 之后各组件通过 StartOrchestration / StartAttempt 创建 Span。
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Init 初始化全局 TracerProvider
//
// cfg.Enabled 为 false 时退化为 Discard：仍生成 TraceID 供日志关联，但不导出。
// 返回的 Shutdown 函数应在进程退出时调用以刷新剩余数据。
func Init(cfg *Config) (func(context.Context) error, error) {
	if cfg != nil && !cfg.Enabled {
		return Discard(cfg.ServiceName)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(5 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create otlp exporter")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create resource")
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Sampler))),
	}
	if cfg.Batcher == "simple" {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
	} else {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	install(tp)
	return tp.Shutdown, nil
}

func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	// TraceContext: W3C traceparent；Baggage: 透传自定义 KV
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "config is required")
	}
	if cfg.ServiceName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "service_name is required")
	}
	if cfg.Endpoint == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "endpoint is required")
	}
	if cfg.Sampler < 0 || cfg.Sampler > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "sampler must be between 0 and 1, got %v", cfg.Sampler)
	}
	if cfg.Batcher != "" && cfg.Batcher != "batch" && cfg.Batcher != "simple" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "batcher must be \"batch\" or \"simple\", got %q", cfg.Batcher)
	}
	return nil
}

// Inject 将 ctx 中的链路信息写入 carrier（如消息头）
func Inject(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// Extract 从 carrier 中恢复链路信息
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}
