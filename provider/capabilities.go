package provider

import "strings"

// Capabilities 提供方的能力声明
//
// MinAmount / MaxAmount 为 0 表示未声明对应边界。
//
//	capabilities:
//	  currencies: [USD, EUR]
//	  payment_methods: [card]
//	  countries: [global]
//	  min_amount: 0.5
//	  max_amount: 10000
type Capabilities struct {
	Currencies     []string `json:"currencies" mapstructure:"currencies"`
	PaymentMethods []string `json:"payment_methods" mapstructure:"payment_methods"`
	Countries      []string `json:"countries" mapstructure:"countries"`
	MinAmount      float64  `json:"min_amount,omitempty" mapstructure:"min_amount"`
	MaxAmount      float64  `json:"max_amount,omitempty" mapstructure:"max_amount"`
}

// Accepts 判断能力是否同时接受币种、国家、支付方式与金额，大小写不敏感
func (c Capabilities) Accepts(currency, country, method string, amount float64) bool {
	if c.MinAmount > 0 && amount < c.MinAmount {
		return false
	}
	if c.MaxAmount > 0 && amount > c.MaxAmount {
		return false
	}
	return contains(c.Currencies, currency) &&
		contains(c.Countries, country) &&
		contains(c.PaymentMethods, method)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, Global) || strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Clone 返回深拷贝，注册表不与调用方共享切片
func (c Capabilities) Clone() Capabilities {
	c.Currencies = append([]string(nil), c.Currencies...)
	c.PaymentMethods = append([]string(nil), c.PaymentMethods...)
	c.Countries = append([]string(nil), c.Countries...)
	return c
}
