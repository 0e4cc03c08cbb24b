package breaker

import (
	"context"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// stateChangeCounter 创建状态变更计数器，meter 为空或创建失败时返回空操作计数器
func stateChangeCounter(meter metrics.Meter) metrics.Counter {
	if meter == nil {
		meter = metrics.Discard()
	}
	c, err := meter.Counter(metrics.MetricBreakerStateChangeTotal, "Circuit breaker state transitions per provider.")
	if err != nil {
		c, _ = metrics.Discard().Counter("", "")
	}
	return c
}

func recordStateChange(c metrics.Counter, name string, from, to State) {
	c.Inc(context.Background(),
		metrics.L(metrics.LabelProvider, name),
		metrics.L(metrics.LabelFrom, from.String()),
		metrics.L(metrics.LabelTo, to.String()),
	)
}
