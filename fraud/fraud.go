// Package fraud 定义欺诈评估的协作方契约，并提供基于规则的默认实现。
//
// 评估结果为 high 时编排器直接拒绝请求，不会联系任何提供方。
package fraud

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

// Level 风险等级
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Assessment 一次欺诈评估的结果
type Assessment struct {
	Level   Level    `json:"level" msgpack:"level"`
	Score   float64  `json:"score" msgpack:"score"`
	Reasons []string `json:"reasons,omitempty" msgpack:"reasons"`
}

// Reason 将原因拼接为可读文本
func (a Assessment) Reason() string {
	if len(a.Reasons) == 0 {
		return string(a.Level) + " risk"
	}
	return strings.Join(a.Reasons, "; ")
}

// Gate 欺诈评估协作方
type Gate interface {
	Assess(ctx context.Context, req provider.PaymentRequest) (Assessment, error)
}

// GateFunc 将函数适配为 Gate
type GateFunc func(ctx context.Context, req provider.PaymentRequest) (Assessment, error)

// Assess 实现 Gate
func (f GateFunc) Assess(ctx context.Context, req provider.PaymentRequest) (Assessment, error) {
	return f(ctx, req)
}

// Config 规则评估配置
//
//	fraud:
//	  review_amount: 5000
//	  block_amount: 50000
//	  blocked_countries: [KP]
type Config struct {
	// ReviewAmount 金额达到该值评为 medium，0 表示不启用
	ReviewAmount float64 `json:"review_amount" mapstructure:"review_amount"`
	// BlockAmount 金额达到该值评为 high，0 表示不启用
	BlockAmount float64 `json:"block_amount" mapstructure:"block_amount"`
	// BlockedCountries 来自这些国家的请求评为 high
	BlockedCountries []string `json:"blocked_countries" mapstructure:"blocked_countries"`
}

// RuleGate 基于金额与国家规则的评估器
type RuleGate struct {
	cfg    Config
	logger clog.Logger
}

// NewRuleGate 创建规则评估器
func NewRuleGate(cfg Config, logger clog.Logger) *RuleGate {
	if logger == nil {
		logger = clog.Discard()
	}
	return &RuleGate{cfg: cfg, logger: logger.WithNamespace("fraud")}
}

// Assess 实现 Gate，分数为命中规则的权重之和，上限 1
func (g *RuleGate) Assess(ctx context.Context, req provider.PaymentRequest) (Assessment, error) {
	a := Assessment{Level: LevelLow}

	for _, c := range g.cfg.BlockedCountries {
		if strings.EqualFold(c, req.Country) {
			a.Level = LevelHigh
			a.Score += 1
			a.Reasons = append(a.Reasons, fmt.Sprintf("country %s is blocked", strings.ToUpper(req.Country)))
			break
		}
	}

	switch {
	case g.cfg.BlockAmount > 0 && req.Amount >= g.cfg.BlockAmount:
		a.Level = LevelHigh
		a.Score += 0.9
		a.Reasons = append(a.Reasons, fmt.Sprintf("amount %.2f exceeds block threshold %.2f", req.Amount, g.cfg.BlockAmount))
	case g.cfg.ReviewAmount > 0 && req.Amount >= g.cfg.ReviewAmount:
		if a.Level != LevelHigh {
			a.Level = LevelMedium
		}
		a.Score += 0.5
		a.Reasons = append(a.Reasons, fmt.Sprintf("amount %.2f exceeds review threshold %.2f", req.Amount, g.cfg.ReviewAmount))
	}

	if a.Score > 1 {
		a.Score = 1
	}
	if a.Level != LevelLow {
		g.logger.InfoContext(ctx, "fraud rule matched",
			clog.String("level", string(a.Level)),
			clog.String("reason", a.Reason()))
	}
	return a, nil
}
