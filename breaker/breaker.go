// Package breaker 为每个支付提供方维护独立的熔断器，基于 gobreaker 的两段式熔断器实现。
//
// 状态机：
//   - CLOSED：正常放行，连续失败达到阈值后转为 OPEN
//   - OPEN：拒绝所有请求，冷却期结束后在下一次检查时惰性转为 HALF_OPEN
//   - HALF_OPEN：只放行一个探测请求，成功转 CLOSED 并清零计数，失败转 OPEN 并重新计时
//
// 熔断器只做判定与记录，从不调用提供方：
//
//	done, err := brk.Allow("stripe")
//	if err != nil {
//		// 熔断中，跳过该提供方
//	}
//	resp, callErr := adapter.ProcessPayment(ctx, req)
//	done(callErr == nil)
//
// 熔断状态仅保存在进程内存中，进程重启后全部回到 CLOSED。
package breaker

import (
	"encoding"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Breaker 按提供方名称管理熔断器
type Breaker interface {
	// Register 为 name 创建熔断器（初始 CLOSED），重复注册为空操作
	Register(name string)

	// Allow 判断是否放行一次调用
	//
	// 熔断中（包括半开探测已被占用）返回 ErrOpenState；
	// 否则返回 Done 回调，调用方必须且只能调用一次以上报结果。
	Allow(name string) (Done, error)

	// IsOpen 当前是否处于 OPEN 状态，会触发冷却期到期的惰性转换
	IsOpen(name string) bool

	// RecordOutcome 直接上报一次结果，等价于 Allow 后立即调用 Done
	RecordOutcome(name string, success bool)

	// State 获取指定提供方的熔断状态，未注册视为 CLOSED
	State(name string) State

	// Snapshot 获取状态快照，未注册返回 false
	Snapshot(name string) (Snapshot, bool)
}

// Done 上报一次调用的结果
type Done func(success bool)

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

var _ encoding.TextMarshaler = State(0)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 使 State 在 JSON 中输出为字符串
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot 单个提供方的熔断状态快照
type Snapshot struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	ReopenAt            time.Time `json:"reopen_at,omitzero"` // 仅在 OPEN 状态下有意义
}

// Config 熔断器配置
//
//	breaker:
//	  failure_threshold: 5
//	  cooldown: 60s
type Config struct {
	// FailureThreshold 连续失败多少次后熔断（默认：5）
	FailureThreshold uint32 `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// Cooldown OPEN 状态持续时间（默认：60s），到期后进入 HALF_OPEN
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
}

func (c *Config) setDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
}

// New 创建熔断器实例
//
// cfg 为 nil 时使用默认配置（阈值 5，冷却 60s）。
//
//	brk, _ := breaker.New(&breaker.Config{
//		FailureThreshold: 5,
//		Cooldown:         time.Minute,
//	}, breaker.WithLogger(logger), breaker.WithMeter(meter))
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()

	opt := options{logger: clog.Discard()}
	for _, o := range opts {
		o(&opt)
	}

	opt.logger.Info("creating circuit breaker",
		clog.Int("failure_threshold", int(c.FailureThreshold)),
		clog.Duration("cooldown", c.Cooldown))

	return newBreaker(&c, opt)
}
