// Package compliance 定义合规校验的协作方契约，并提供基于租户配置的规则检查。
//
// 校验失败时编排器拒绝请求并返回全部违规项。
package compliance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
)

// TenantConfig 租户级配置
//
//	tenants:
//	  acme:
//	    provider_preference: [adyen, stripe]
//	    max_amount: 20000
//	    allowed_currencies: [EUR, USD]
//	    allowed_methods: [card]
//	    blocked_countries: [RU]
type TenantConfig struct {
	// ProviderPreference 国家不在路由表中时使用的候选顺序
	ProviderPreference []string `json:"provider_preference" mapstructure:"provider_preference"`
	// MaxAmount 覆盖全局金额上限，0 表示使用全局值
	MaxAmount         float64  `json:"max_amount" mapstructure:"max_amount"`
	AllowedCurrencies []string `json:"allowed_currencies" mapstructure:"allowed_currencies"`
	AllowedMethods    []string `json:"allowed_methods" mapstructure:"allowed_methods"`
	BlockedCountries  []string `json:"blocked_countries" mapstructure:"blocked_countries"`
}

// Result 合规校验结果
type Result struct {
	Compliant  bool     `json:"compliant"`
	Violations []string `json:"violations,omitempty"`
}

// Gate 合规校验协作方
type Gate interface {
	Validate(ctx context.Context, req provider.PaymentRequest, tenant TenantConfig) (Result, error)
}

// Config 全局合规规则
//
//	compliance:
//	  sanctioned_countries: [KP, IR]
//	  required_metadata: [customer_id]
type Config struct {
	SanctionedCountries []string `json:"sanctioned_countries" mapstructure:"sanctioned_countries"`
	RequiredMetadata    []string `json:"required_metadata" mapstructure:"required_metadata"`
}

// Checker 规则检查器，先检查全局规则再检查租户规则，收集全部违规项
type Checker struct {
	cfg Config
}

// NewChecker 创建规则检查器
func NewChecker(cfg Config) *Checker {
	return &Checker{cfg: cfg}
}

// Validate 实现 Gate
func (c *Checker) Validate(_ context.Context, req provider.PaymentRequest, tenant TenantConfig) (Result, error) {
	var violations []string

	if containsFold(c.cfg.SanctionedCountries, req.Country) {
		violations = append(violations, fmt.Sprintf("country %s is sanctioned", strings.ToUpper(req.Country)))
	}
	for _, key := range c.cfg.RequiredMetadata {
		if req.Metadata[key] == "" {
			violations = append(violations, fmt.Sprintf("metadata %q is required", key))
		}
	}

	if len(tenant.AllowedCurrencies) > 0 && !containsFold(tenant.AllowedCurrencies, req.Currency) {
		violations = append(violations, fmt.Sprintf("currency %s is not allowed for tenant", strings.ToUpper(req.Currency)))
	}
	if len(tenant.AllowedMethods) > 0 && !containsFold(tenant.AllowedMethods, req.PaymentMethod) {
		violations = append(violations, fmt.Sprintf("payment method %s is not allowed for tenant", req.PaymentMethod))
	}
	if containsFold(tenant.BlockedCountries, req.Country) {
		violations = append(violations, fmt.Sprintf("country %s is blocked for tenant", strings.ToUpper(req.Country)))
	}

	return Result{Compliant: len(violations) == 0, Violations: violations}, nil
}

func containsFold(set []string, v string) bool {
	return slices.ContainsFunc(set, func(s string) bool { return strings.EqualFold(s, v) })
}
