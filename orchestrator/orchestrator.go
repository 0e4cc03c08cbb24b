// Package orchestrator 协调一次支付从校验到提供方尝试的完整流程。
//
// 支付流程：
//
//	VALIDATING → FRAUD_CHECK → COMPLIANCE_CHECK → ROUTING → ATTEMPTING(i) → SUCCEEDED | ALL_FAILED
//
// 任何前置检查失败进入 REJECTED，不会联系提供方。ATTEMPTING 阶段按路由顺序逐个尝试：
// 熔断打开的提供方被跳过；临时失败切换到下一个候选；永久失败立即停止。
// 每次尝试写入一条审计记录，每次编排结束写入一条编排日志并发布事件。
//
// 退款没有故障转移：只能由原交易的提供方处理，熔断打开即失败，也不重试。
package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/feedback"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/fraud"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idgen"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/retry"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/router"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Result 支付编排结果
type Result struct {
	Success               bool             `json:"success" msgpack:"success"`
	Provider              string           `json:"provider,omitempty" msgpack:"provider"`
	ProviderTransactionID string           `json:"provider_transaction_id,omitempty" msgpack:"provider_transaction_id"`
	Status                string           `json:"status,omitempty" msgpack:"status"`
	ProcessingTimeMs      int64            `json:"processing_time_ms" msgpack:"processing_time_ms"`
	Fraud                 fraud.Assessment `json:"fraud" msgpack:"fraud"`
	OrchestrationID       string           `json:"orchestration_id" msgpack:"orchestration_id"`
	CorrelationID         string           `json:"correlation_id" msgpack:"correlation_id"`
	// Replayed 结果来自幂等缓存，本次调用没有联系提供方
	Replayed bool `json:"replayed,omitempty" msgpack:"-"`
}

// RefundResult 退款编排结果
type RefundResult struct {
	Success          bool   `json:"success" msgpack:"success"`
	Provider         string `json:"provider" msgpack:"provider"`
	TransactionID    string `json:"transaction_id" msgpack:"transaction_id"`
	RefundID         string `json:"refund_id,omitempty" msgpack:"refund_id"`
	Status           string `json:"status,omitempty" msgpack:"status"`
	ProcessingTimeMs int64  `json:"processing_time_ms" msgpack:"processing_time_ms"`
	OrchestrationID  string `json:"orchestration_id" msgpack:"orchestration_id"`
	CorrelationID    string `json:"correlation_id" msgpack:"correlation_id"`
	Replayed         bool   `json:"replayed,omitempty" msgpack:"-"`
}

// Health 单个提供方的健康视图
type Health struct {
	BreakerState        breaker.State `json:"breaker_state"`
	ConsecutiveFailures uint32        `json:"consecutive_failures"`
	ReopenAt            time.Time     `json:"reopen_at,omitzero"`
	SuccessRate         float64       `json:"success_rate"`
	AverageLatencyMs    float64       `json:"average_latency_ms"`
	LastUpdated         time.Time     `json:"last_updated,omitzero"`
}

// Orchestrator 编排协调器，并发安全
type Orchestrator struct {
	cfg      Config
	registry *provider.Registry
	breaker  breaker.Breaker
	router   *router.Router
	opts     options
	tenants  atomic.Pointer[map[string]compliance.TenantConfig]
	txIndex  *otter.Cache[string, string]
	inst     instruments
}

// New 创建编排器
//
//	o, err := orchestrator.New(registry, brk, rt, &orchestrator.Config{MaxAmount: 50000},
//	    orchestrator.WithFraudGate(gate),
//	    orchestrator.WithStorage(store),
//	    orchestrator.WithLogger(logger))
func New(registry *provider.Registry, brk breaker.Breaker, rt *router.Router, cfg *Config, opts ...Option) (*Orchestrator, error) {
	if registry == nil || brk == nil || rt == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "orchestrator: registry, breaker and router are required")
	}

	o := &Orchestrator{registry: registry, breaker: brk, router: rt}
	if cfg != nil {
		o.cfg = *cfg
	}
	o.cfg.setDefaults()

	o.opts = options{
		logger:     clog.Discard(),
		meter:      metrics.Discard(),
		compliance: compliance.NewChecker(compliance.Config{}),
		publisher:  notify.Discard(),
		ids:        idgen.NewUUID(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	if o.opts.fraud == nil {
		o.opts.fraud = fraud.GateFunc(func(context.Context, provider.PaymentRequest) (fraud.Assessment, error) {
			return fraud.Assessment{Level: fraud.LevelLow}, nil
		})
	}
	if o.opts.storage == nil {
		o.opts.storage = storage.NewMemory()
	}
	if o.opts.retry == nil {
		o.opts.retry = retry.New(nil, retry.WithLogger(o.opts.logger))
	}
	if o.opts.feedback == nil {
		o.opts.feedback = feedback.New(registry, nil, feedback.WithLogger(o.opts.logger))
	}

	idx, err := otter.New(&otter.Options[string, string]{
		MaximumSize:      o.cfg.TransactionIndexSize,
		ExpiryCalculator: otter.ExpiryWriting[string, string](o.cfg.TransactionIndexTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "orchestrator: build transaction index")
	}
	o.txIndex = idx

	o.inst, err = newInstruments(o.opts.meter)
	if err != nil {
		return nil, err
	}

	o.SetTenants(o.cfg.Tenants)
	return o, nil
}

// SetTenants 整体替换租户配置
func (o *Orchestrator) SetTenants(tenants map[string]compliance.TenantConfig) {
	cp := make(map[string]compliance.TenantConfig, len(tenants))
	for k, v := range tenants {
		cp[k] = v
	}
	o.tenants.Store(&cp)
}

// tenant 先按原样匹配，再按小写匹配；配置文件中的租户 ID 会被转为小写
func (o *Orchestrator) tenant(id string) compliance.TenantConfig {
	tenants := *o.tenants.Load()
	if t, ok := tenants[id]; ok {
		return t
	}
	return tenants[strings.ToLower(id)]
}

// ProviderHealth 返回所有已注册提供方的熔断状态与性能快照
func (o *Orchestrator) ProviderHealth() map[string]Health {
	out := make(map[string]Health)
	for _, name := range o.registry.Names() {
		h := Health{BreakerState: breaker.StateClosed}
		if snap, ok := o.breaker.Snapshot(name); ok {
			h.BreakerState = snap.State
			h.ConsecutiveFailures = snap.ConsecutiveFailures
			h.ReopenAt = snap.ReopenAt
		}
		if perf, ok := o.registry.Snapshot(name); ok {
			h.SuccessRate = perf.SuccessRate
			h.AverageLatencyMs = perf.AverageLatencyMs
			h.LastUpdated = perf.LastUpdated
		}
		out[name] = h
	}
	return out
}

// indexTransaction 记录交易号所属的提供方，退款时使用
func (o *Orchestrator) indexTransaction(transactionID, providerName string) {
	if transactionID == "" {
		return
	}
	o.txIndex.Set(transactionID, providerName)
}

// lookupTransaction 查询交易号所属的提供方
func (o *Orchestrator) lookupTransaction(transactionID string) (string, bool) {
	return o.txIndex.GetIfPresent(transactionID)
}
