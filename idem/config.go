package idem

import (
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// DriverType 幂等组件驱动类型
type DriverType string

const (
	// DriverRedis 使用 Redis 作为后端
	DriverRedis DriverType = "redis"
	// DriverMemory 使用内存作为后端（仅单机）
	DriverMemory DriverType = "memory"
)

// Config 幂等组件配置
type Config struct {
	// Driver 后端类型: "redis" | "memory"，默认 "memory"
	Driver DriverType `mapstructure:"driver"`

	// Prefix 键前缀，默认 "paygate:idem:"
	Prefix string `mapstructure:"prefix"`

	// DefaultTTL 结果缓存有效期，默认 24h
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// LockTTL 处理中锁的超时时间，默认 30s；执行期间每 LockTTL/3 续期，进程崩溃后最迟 LockTTL 释放
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = "paygate:idem:"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverRedis, DriverMemory:
		return nil
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "idem: unsupported driver: %s", c.Driver)
	}
}
