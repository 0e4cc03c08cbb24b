package idem

import (
	"github.com/redis/go-redis/v9"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	redis  redis.UniversalClient
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "idem"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("idem")
		}
	}
}

// WithRedisClient 注入 Redis 客户端
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redis = client
		}
	}
}
