package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "storage"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("storage")
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New 按配置创建存储后端，cfg 为 nil 时使用内存实现
func New(ctx context.Context, cfg *Config, opts ...Option) (Store, error) {
	o := applyOptions(opts)
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()

	if c.Driver == "memory" {
		o.logger.Info("storage using memory backend")
		return NewMemory(), nil
	}
	return openGorm(ctx, &c, o.logger)
}

// NewWithDB 基于已建立的 GORM 连接创建存储，常用于测试
func NewWithDB(ctx context.Context, db *gorm.DB, cfg *Config, opts ...Option) (Store, error) {
	o := applyOptions(opts)
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	return newGormStore(ctx, db, &c, o.logger)
}
