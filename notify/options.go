package notify

import (
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	conn   conn
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "notify"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("notify")
		}
	}
}

// withConn 注入已建立的连接，用于测试
func withConn(c conn) Option {
	return func(o *options) {
		o.conn = c
	}
}

// New 按配置创建 Publisher
//
//	pub, err := notify.New(&notify.Config{Driver: "nats", URL: "nats://127.0.0.1:4222"}, notify.WithLogger(logger))
func New(cfg *Config, opts ...Option) (Publisher, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	switch c.Driver {
	case "memory":
		return NewRecorder(), nil
	case "nats":
		nc := o.conn
		if nc == nil {
			live, err := connectNATS(&c, o.logger)
			if err != nil {
				return nil, err
			}
			nc = live
		}
		o.logger.Info("nats publisher ready", clog.String("subject_prefix", c.SubjectPrefix))
		return newNATSPublisher(nc, &c, o.logger), nil
	default:
		return Discard(), nil
	}
}
