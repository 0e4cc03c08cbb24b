package config

import (
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "paygate"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型 (yaml, json, etc.)
	EnvPrefix string   // 环境变量前缀，默认 "PAYGATE"
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "paygate"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "PAYGATE"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// Option 加载器选项
type Option func(*loader)

// WithLogger 设置 Logger，内部添加 namespace: "config"
func WithLogger(logger clog.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger.WithNamespace("config")
		}
	}
}

// New 创建配置加载器。
//
// 如果 cfg 为 nil，使用默认配置。
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}
	return newLoader(&c, opts...), nil
}
