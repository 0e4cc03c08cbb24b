package router

import "strings"

// Tiers 一个国家的三级候选列表
type Tiers struct {
	Primary  []string `json:"primary" mapstructure:"primary"`
	Regional []string `json:"regional" mapstructure:"regional"`
	Fallback []string `json:"fallback" mapstructure:"fallback"`
}

// Table 区域路由表
//
//	routing:
//	  default: [paypal, stripe]
//	  regions:
//	    DE:
//	      primary: [adyen]
//	      regional: [stripe]
//	      fallback: [paypal]
type Table struct {
	Regions map[string]Tiers `json:"regions" mapstructure:"regions"`
	Default []string         `json:"default" mapstructure:"default"`
}

// normalize 将国家代码统一为大写（viper 会把 map key 转为小写）并复制切片
func (t Table) normalize() Table {
	out := Table{
		Regions: make(map[string]Tiers, len(t.Regions)),
		Default: append([]string(nil), t.Default...),
	}
	for country, tiers := range t.Regions {
		out.Regions[strings.ToUpper(country)] = Tiers{
			Primary:  append([]string(nil), tiers.Primary...),
			Regional: append([]string(nil), tiers.Regional...),
			Fallback: append([]string(nil), tiers.Fallback...),
		}
	}
	return out
}

func (t Table) lookup(country string) (Tiers, bool) {
	tiers, ok := t.Regions[strings.ToUpper(country)]
	return tiers, ok
}
