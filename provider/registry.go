package provider

import (
	"strings"
	"sync"
	"time"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
)

// Registry 提供方注册表
//
// 读多写少：路由与健康查询持读锁，注册与性能更新持写锁。
// 性能快照整体替换，不会出现结构损坏；并发的 EMA 更新可能丢失其中一次，这是可以接受的。
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string

	breaker breaker.Breaker
	logger  clog.Logger
}

// RegistryOption 注册表选项
type RegistryOption func(*Registry)

// WithBreaker 注册提供方时同步为其创建 CLOSED 熔断器
func WithBreaker(b breaker.Breaker) RegistryOption {
	return func(r *Registry) {
		r.breaker = b
	}
}

// WithLogger 设置 Logger，内部添加 namespace: "registry"
func WithLogger(logger clog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.WithNamespace("registry")
		}
	}
}

// NewRegistry 创建空的注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		records: make(map[string]*Record),
		logger:  clog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册提供方，性能初始化为 {SuccessRate: 100, AverageLatencyMs: 0}
func (r *Registry) Register(name string, adapter Adapter, caps Capabilities) error {
	if name == "" {
		return ErrEmptyName
	}
	if adapter == nil {
		return ErrNilAdapter
	}

	r.mu.Lock()
	if _, exists := r.records[name]; exists {
		r.mu.Unlock()
		return ErrDuplicateName
	}
	perf := InitialPerformance()
	perf.LastUpdated = time.Now()
	r.records[name] = &Record{
		Name:         name,
		Capabilities: caps.Clone(),
		Performance:  perf,
		Adapter:      adapter,
	}
	r.order = append(r.order, name)
	r.mu.Unlock()

	if r.breaker != nil {
		r.breaker.Register(name)
	}

	r.logger.Info("provider registered",
		clog.String("provider", name),
		clog.String("currencies", strings.Join(caps.Currencies, ",")),
		clog.String("countries", strings.Join(caps.Countries, ",")),
		clog.String("methods", strings.Join(caps.PaymentMethods, ",")))
	return nil
}

// Candidates 返回所有能力匹配的提供方，按注册顺序
func (r *Registry) Candidates(currency, country, method string, amount float64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.order {
		if r.records[name].Capabilities.Accepts(currency, country, method, amount) {
			out = append(out, name)
		}
	}
	return out
}

// Suitable 判断单个提供方是否匹配，未注册返回 false
func (r *Registry) Suitable(name, currency, country, method string, amount float64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	return ok && rec.Capabilities.Accepts(currency, country, method, amount)
}

// Get 返回记录的副本
func (r *Registry) Get(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Capabilities = rec.Capabilities.Clone()
	return out, true
}

// Adapter 返回提供方的适配器
func (r *Registry) Adapter(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return nil, false
	}
	return rec.Adapter, true
}

// Names 返回按注册顺序排列的提供方名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Snapshot 返回提供方的性能快照
func (r *Registry) Snapshot(name string) (Performance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return Performance{}, false
	}
	return rec.Performance, true
}

// SuccessRate 返回提供方的成功率，未注册返回 0
func (r *Registry) SuccessRate(name string) float64 {
	perf, _ := r.Snapshot(name)
	return perf.SuccessRate
}

// UpdatePerformance 整体替换性能快照，仅供 feedback 包调用
func (r *Registry) UpdatePerformance(name string, perf Performance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return false
	}
	rec.Performance = perf
	return true
}
