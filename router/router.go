// Package router 按国家区域表为一次支付生成有序的候选提供方列表。
//
// 列表由 primary、regional、fallback 三级拼接而成：每一级先按能力过滤，
// 跨级按名称去重（先出现者保留），级内按成功率降序稳定排序。
// 延迟不参与排序；级别顺序永远优先于成功率。
package router

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Source 路由所需的提供方信息，由 provider.Registry 实现
type Source interface {
	Suitable(name, currency, country, method string, amount float64) bool
	SuccessRate(name string) float64
}

// Router 区域路由器，路由表可在运行时整体替换
type Router struct {
	source Source
	table  atomic.Pointer[Table]
	logger clog.Logger
}

// Option 路由器选项
type Option func(*Router)

// WithLogger 设置 Logger，内部添加 namespace: "router"
func WithLogger(logger clog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger.WithNamespace("router")
		}
	}
}

// New 创建路由器
func New(source Source, table Table, opts ...Option) *Router {
	r := &Router{source: source, logger: clog.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.SetTable(table)
	return r
}

// SetTable 替换路由表，进行中的 Route 调用继续使用旧表
func (r *Router) SetTable(table Table) {
	t := table.normalize()
	r.table.Store(&t)
	r.logger.Info("routing table loaded",
		clog.Int("regions", len(t.Regions)),
		clog.String("default", strings.Join(t.Default, ",")))
}

// Table 返回当前路由表
func (r *Router) Table() Table {
	return r.table.Load().normalize()
}

// Route 返回有序的候选提供方名称，可能为空
//
// 国家不在路由表中时，使用租户偏好作为唯一一级；租户没有偏好时使用全局默认列表。
func (r *Router) Route(country, currency, method string, amount float64, tenantPreference []string) []string {
	table := r.table.Load()

	var tiers [][]string
	if t, ok := table.lookup(country); ok {
		tiers = [][]string{t.Primary, t.Regional, t.Fallback}
	} else if len(tenantPreference) > 0 {
		tiers = [][]string{tenantPreference}
	} else {
		tiers = [][]string{table.Default}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, tier := range tiers {
		var kept []string
		for _, name := range tier {
			if _, dup := seen[name]; dup {
				continue
			}
			if !r.source.Suitable(name, currency, country, method, amount) {
				continue
			}
			seen[name] = struct{}{}
			kept = append(kept, name)
		}
		out = append(out, r.rank(kept)...)
	}

	r.logger.Debug("candidates resolved",
		clog.String("country", country),
		clog.String("currency", currency),
		clog.String("method", method),
		clog.String("candidates", strings.Join(out, ",")))
	return out
}

// rank 级内按成功率降序稳定排序
func (r *Router) rank(names []string) []string {
	if len(names) < 2 {
		return names
	}
	rates := make(map[string]float64, len(names))
	for _, n := range names {
		rates[n] = r.source.SuccessRate(n)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		switch {
		case rates[a] > rates[b]:
			return -1
		case rates[a] < rates[b]:
			return 1
		default:
			return 0
		}
	})
	return names
}
