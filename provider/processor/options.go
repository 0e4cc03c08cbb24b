package processor

import (
	"net"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Option 适配器选项
type Option func(*options)

type options struct {
	logger clog.Logger
	dial   func(addr string) (net.Conn, error)
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "processor"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("processor")
		}
	}
}

// WithDialer 替换底层拨号函数
func WithDialer(dial func(addr string) (net.Conn, error)) Option {
	return func(o *options) {
		o.dial = dial
	}
}
