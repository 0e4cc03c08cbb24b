// Package clog 为 paygate 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 层级命名空间，每个组件通过 WithNamespace 标识自己
//   - 从 Context 自动提取支付链路字段（correlation_id、orchestration_id、tenant_id）
//   - 可选提取 OpenTelemetry 的 trace_id / span_id
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}, clog.WithNamespace("paygate"), clog.WithPaymentContext())
//
//	ctx = clog.WithCorrelationID(ctx, req.CorrelationID)
//	logger.InfoContext(ctx, "payment accepted", clog.String("provider", "adyen"))
package clog

import "context"

// Logger 日志接口
//
// 每个级别都有带 Context 和不带 Context 的版本，带 Context 的版本
// 会按 Option 配置从 ctx 中提取字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger
	//
	//   logger.WithNamespace("orchestrator").WithNamespace("refund")
	//   // namespace=paygate.orchestrator.refund
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别
	SetLevel(level Level) error

	// Flush 强制同步缓冲区
	Flush()
}
