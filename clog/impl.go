package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// loggerImpl 是 Logger 接口的实现
type loggerImpl struct {
	handler   *clogHandler
	options   *options
	baseAttrs []slog.Attr
}

func newLogger(config *Config, o *options) (Logger, error) {
	handler, err := newHandler(config, o)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{handler: handler, options: o}, nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields...)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields...)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields...)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields...)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields...)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields...)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields...)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields...)
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	o := *l.options
	o.namespaceParts = append(append([]string(nil), l.options.namespaceParts...), parts...)
	return &loggerImpl{
		handler:   l.handler,
		options:   &o,
		baseAttrs: l.baseAttrs,
	}
}

func (l *loggerImpl) With(fields ...Field) Logger {
	return &loggerImpl{
		handler:   l.handler,
		options:   l.options,
		baseAttrs: append(append([]slog.Attr(nil), l.baseAttrs...), fields...),
	}
}

func (l *loggerImpl) SetLevel(level Level) error {
	return l.handler.SetLevel(level)
}

// Flush slog 的内置 handler 为同步写，无需刷新
func (l *loggerImpl) Flush() {}

func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields ...Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	sl := level.slogLevel()
	if !l.handler.Enabled(ctx, sl) {
		return
	}

	// baseAttrs + fields + context 字段 + namespace
	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields)+6)
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)
	extractContextFields(ctx, l.options, &attrs)
	addNamespaceFields(l.options, &attrs)

	// skip: runtime.Callers, log, Info/InfoContext 等
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), sl, msg, pcs[0])
	record.AddAttrs(attrs...)

	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		os.Exit(1)
	}
}
