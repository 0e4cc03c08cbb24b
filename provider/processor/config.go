package processor

import (
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// Config HTTP 支付处理方配置，Name 与 Capabilities 由 providers 条目填充
//
//	providers:
//	  - name: stripe
//	    driver: http
//	    capabilities: {...}
//	    http:
//	      base_url: https://processor.internal/stripe
//	      api_key: sk_live_xxx
//	      timeout: 5s
//	      rate_limit: 50
//	      burst: 10
type Config struct {
	Name         string                `mapstructure:"name"`
	BaseURL      string                `mapstructure:"base_url"`
	APIKey       string                `mapstructure:"api_key"`
	Timeout      time.Duration         `mapstructure:"timeout"`
	RateLimit    float64               `mapstructure:"rate_limit"` // 每秒请求数，0 表示不限流
	Burst        int                   `mapstructure:"burst"`
	MaxConns     int                   `mapstructure:"max_conns"`
	Capabilities provider.Capabilities `mapstructure:"capabilities"`
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RateLimit > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 512
	}
}

func (c *Config) validate() error {
	if c.Name == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "processor: name is required")
	}
	if c.BaseURL == "" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "processor %s: base_url is required", c.Name)
	}
	return nil
}
