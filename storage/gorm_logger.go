package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// gormLogger 将 GORM 日志适配到 clog
type gormLogger struct {
	logger clog.Logger
	level  logger.LogLevel
	slow   time.Duration
}

// newGormLogger verbose 为 false 时只输出错误与慢查询
func newGormLogger(log clog.Logger, slow time.Duration, verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return &gormLogger{logger: log, level: level, slow: slow}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	n := *l
	n.level = level
	return &n
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace 记录 SQL 执行日志，携带 ctx 中的 correlation_id 与 trace_id
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []clog.Field{
		clog.Duration("duration", elapsed),
		clog.String("sql", sql),
		clog.Int64("rows", rows),
	}

	switch {
	case err != nil && !xerrors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		l.logger.ErrorContext(ctx, "sql error", append(fields, clog.Error(err))...)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		l.logger.WarnContext(ctx, "slow sql", fields...)
	case l.level >= logger.Info:
		l.logger.DebugContext(ctx, "sql", fields...)
	}
}
