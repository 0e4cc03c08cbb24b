package orchestrator

import (
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
)

// Config 编排器配置
//
//	limits:
//	  max_amount: 100000
//	  transaction_index_size: 100000
//	  transaction_index_ttl: 720h
type Config struct {
	// MaxAmount 单笔金额上限，租户配置的 MaxAmount 大于 0 时覆盖
	MaxAmount float64 `mapstructure:"max_amount"`

	// TransactionIndexSize 交易号 → 提供方索引的容量，用于退款时定位提供方
	TransactionIndexSize int `mapstructure:"transaction_index_size"`

	// TransactionIndexTTL 索引条目的有效期
	TransactionIndexTTL time.Duration `mapstructure:"transaction_index_ttl"`

	// Tenants 租户配置，可通过 SetTenants 热更新
	Tenants map[string]compliance.TenantConfig `mapstructure:"-"`
}

func (c *Config) setDefaults() {
	if c.MaxAmount <= 0 {
		c.MaxAmount = 100000
	}
	if c.TransactionIndexSize <= 0 {
		c.TransactionIndexSize = 100000
	}
	if c.TransactionIndexTTL <= 0 {
		c.TransactionIndexTTL = 30 * 24 * time.Hour
	}
}
