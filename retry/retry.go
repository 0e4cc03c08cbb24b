// Package retry 对单个提供方执行有界重试：临时错误按指数退避重试，永久错误立即放弃。
//
// 默认最多调用 3 次，等待时间为 1s、2s（BaseDelay * Multiplier^(i-1)），无抖动。
// 等待期间可以通过 ctx 取消，不会阻塞其他编排。
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Config 重试配置
//
//	retry:
//	  max_retries: 3
//	  base_delay: 1s
//	  multiplier: 2
type Config struct {
	// MaxRetries 最多调用次数（含首次），默认 3
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
	// BaseDelay 第一次重试前的等待时间，默认 1s
	BaseDelay time.Duration `json:"base_delay" mapstructure:"base_delay"`
	// Multiplier 每次重试等待时间的倍数，默认 2
	Multiplier float64 `json:"multiplier" mapstructure:"multiplier"`
}

func (c *Config) setDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
}

// Result 一次 Attempt 的执行情况
type Result struct {
	// Tries 实际调用 fn 的次数
	Tries int
	// Temporary 最后一次错误是否为临时错误，成功时为 false
	Temporary bool
}

// Executor 重试执行器，并发安全
type Executor struct {
	cfg      Config
	newTimer func() backoff.Timer
	logger   clog.Logger
}

// Option 执行器选项
type Option func(*Executor)

// WithTimer 替换等待计时器，测试中用于跳过真实等待
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(e *Executor) {
		if newTimer != nil {
			e.newTimer = newTimer
		}
	}
}

// WithLogger 设置 Logger，内部添加 namespace: "retry"
func WithLogger(logger clog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger.WithNamespace("retry")
		}
	}
}

// New 创建执行器，cfg 为 nil 时使用默认值
func New(cfg *Config, opts ...Option) *Executor {
	e := &Executor{
		// nil 计时器由 backoff 使用其内置的 time.Timer 实现
		newTimer: func() backoff.Timer { return nil },
		logger:   clog.Discard(),
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.cfg.setDefaults()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config 返回生效的配置
func (e *Executor) Config() Config {
	return e.cfg
}

// Attempt 执行 fn，成功立即返回；临时错误退避后重试，永久错误原样返回
//
// 用尽次数后返回最后一次的错误。
func (e *Executor) Attempt(ctx context.Context, fn func(ctx context.Context) error) (Result, error) {
	var res Result

	op := func() error {
		res.Tries++
		err := fn(ctx)
		if err == nil {
			res.Temporary = false
			return nil
		}
		res.Temporary = IsTemporary(err)
		if !res.Temporary {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.WarnContext(ctx, "temporary failure, backing off",
			clog.Int("try", res.Tries),
			clog.Duration("wait", wait),
			clog.Error(err))
	}

	err := backoff.RetryNotifyWithTimer(op, e.policy(ctx), notify, e.newTimer())
	return res, err
}

// policy 构造无抖动的指数退避，最多 MaxRetries-1 次等待
func (e *Executor) policy(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     e.cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          e.cfg.Multiplier,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(e.cfg.MaxRetries-1)), ctx)
}
