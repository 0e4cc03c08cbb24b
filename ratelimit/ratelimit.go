// Package ratelimit 为 HTTP 接口提供按租户的请求限流，支持单机和 Redis 两种模式。
//
// 两种模式都使用令牌桶：
//   - memory：基于 golang.org/x/time/rate，每个键一个桶，空闲的桶定期清理
//   - redis：基于 Redis + Lua 的时间戳令牌桶，多个实例共享配额
//
// 基本使用：
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Rate: 50, Burst: 100}, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter, limiter.Limit(), nil))
package ratelimit

import (
	"context"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Limit 限流规则（令牌桶）
type Limit struct {
	Rate  float64 // 每秒生成的令牌数
	Burst int     // 桶容量
}

// Limiter 限流器
type Limiter interface {
	// Allow 尝试获取 1 个令牌，不阻塞
	Allow(ctx context.Context, key string, limit Limit) (bool, error)
	// Limit 配置的默认规则
	Limit() Limit
	Close() error
}

// Config 限流配置
//
//	ratelimit:
//	  enabled: true
//	  driver: memory
//	  rate: 50
//	  burst: 100
type Config struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Driver  string `json:"driver" mapstructure:"driver"`
	// Rate 每个租户每秒允许的请求数，默认 50
	Rate float64 `json:"rate" mapstructure:"rate"`
	// Burst 突发容量，默认 100
	Burst int `json:"burst" mapstructure:"burst"`
	// Prefix Redis 键前缀，默认 "paygate:ratelimit:"
	Prefix string `json:"prefix" mapstructure:"prefix"`
	// CleanupInterval 清理空闲桶的间隔，默认 1 分钟（仅 memory）
	CleanupInterval time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval"`
	// IdleTimeout 桶空闲多久后被清理，默认 5 分钟（仅 memory）
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Rate <= 0 {
		c.Rate = 50
	}
	if c.Burst <= 0 {
		c.Burst = 100
	}
	if c.Prefix == "" {
		c.Prefix = "paygate:ratelimit:"
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// New 创建限流器，cfg 为 nil 时使用单机默认配置
func New(cfg *Config, opts ...Option) (Limiter, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.setDefaults()

	switch c.Driver {
	case DriverMemory:
		return newStandalone(c, opt), nil
	case DriverRedis:
		if opt.redis == nil {
			return nil, xerrors.WithCode(ErrClientNil, "redis_client_required")
		}
		return newRedisLimiter(c, opt), nil
	default:
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "ratelimit: unsupported driver %q", c.Driver)
	}
}
