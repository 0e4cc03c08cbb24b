package clog

import (
	"fmt"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config 日志配置
//
//	log:
//	  level: info        # debug|info|warn|error|fatal
//	  format: json       # json|console
//	  output: stdout     # stdout|stderr|<file path>
//	  add_source: true
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	Output     string `json:"output" yaml:"output" mapstructure:"output"`
	AddSource  bool   `json:"add_source" yaml:"add_source" mapstructure:"add_source"`
	SourceRoot string `json:"source_root" yaml:"source_root" mapstructure:"source_root"` // 用于裁剪文件路径
}

// NewDevDefaultConfig 返回开发环境默认配置：debug 级别、console 格式
func NewDevDefaultConfig(sourceRoot string) *Config {
	return &Config{
		Level:      "debug",
		Format:     "console",
		Output:     "stdout",
		AddSource:  true,
		SourceRoot: sourceRoot,
	}
}

// NewProdDefaultConfig 返回生产环境默认配置：info 级别、json 格式
func NewProdDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// validate 设置默认值并校验（内部使用）
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	return nil
}
