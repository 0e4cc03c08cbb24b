package ratelimit

import (
	"context"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

const (
	// MetricDecisions 限流判定次数 (Counter)
	MetricDecisions = "paygate_ratelimit_decisions_total"

	// LabelMode 模式标签 (memory/redis)
	LabelMode = "mode"

	// LabelDecision 判定结果标签 (allowed/denied)
	LabelDecision = "decision"
)

func decisionCounter(meter metrics.Meter) metrics.Counter {
	c, err := meter.Counter(MetricDecisions, "Rate limit decisions by mode and result.")
	if err != nil {
		c, _ = metrics.Discard().Counter(MetricDecisions, "")
	}
	return c
}

func recordDecision(ctx context.Context, c metrics.Counter, mode string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	c.Inc(ctx, metrics.L(LabelMode, mode), metrics.L(LabelDecision, decision))
}
