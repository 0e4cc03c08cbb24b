// Package testkit 测试公共依赖：logger、meter、上下文、唯一 ID 以及外部存储。
//
// 依赖外部服务的帮助函数在对应环境变量未设置时调用 t.Skip。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包，Meter 在测试结束时关闭
func NewKit(t *testing.T) *Kit {
	meter := NewMeter()
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 返回一个用于测试的 logger，开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("paygate"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回启用的 meter，不启动独立的 HTTP 服务，可通过 Handler 抓取
func NewMeter() metrics.Meter {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "paygate-test"})
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key 前缀或幂等键，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}
