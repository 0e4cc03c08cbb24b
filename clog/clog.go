package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用生产默认配置；opts 用于命名空间、Context 字段等。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewProdDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 类似 New，出错时 panic
func Must(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("clog: %v", err))
	}
	return l
}
