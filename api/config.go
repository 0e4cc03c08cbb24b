package api

import "time"

// Config HTTP 服务配置
//
//	server:
//	  addr: ":8080"
//	  mode: release
//	  read_timeout: 10s
//	  write_timeout: 60s
//	  shutdown_timeout: 15s
type Config struct {
	Addr string `mapstructure:"addr"`
	// Mode gin 运行模式：debug | release | test
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	// 一次支付可能依次尝试多个提供方并退避重试，写超时需要覆盖最坏情况
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}
