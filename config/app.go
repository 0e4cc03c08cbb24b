package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/api"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/feedback"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/fraud"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idem"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/notify"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/orchestrator"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider/processor"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/provider/sandbox"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/ratelimit"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/retry"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/router"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// 提供方驱动
const (
	ProviderDriverHTTP    = "http"
	ProviderDriverSandbox = "sandbox"
)

// ProviderConfig 一个提供方的接入配置
//
//	providers:
//	  - name: stripe
//	    driver: http
//	    capabilities:
//	      currencies: [USD, EUR]
//	      payment_methods: [card]
//	      countries: [global]
//	    http:
//	      base_url: https://processor.internal/stripe
//	      timeout: 5s
//	  - name: adyen
//	    driver: sandbox
//	    sandbox:
//	      failure_rate: 0.05
type ProviderConfig struct {
	Name         string                `mapstructure:"name"`
	Driver       string                `mapstructure:"driver"`
	Capabilities provider.Capabilities `mapstructure:"capabilities"`
	HTTP         processor.Config      `mapstructure:"http"`
	Sandbox      sandbox.Config        `mapstructure:"sandbox"`
}

// AppConfig paygate 进程的完整配置
type AppConfig struct {
	Server     api.Config                         `mapstructure:"server"`
	Log        clog.Config                        `mapstructure:"log"`
	Metrics    metrics.Config                     `mapstructure:"metrics"`
	Trace      trace.Config                       `mapstructure:"trace"`
	Breaker    breaker.Config                     `mapstructure:"breaker"`
	Retry      retry.Config                       `mapstructure:"retry"`
	Feedback   feedback.Config                    `mapstructure:"feedback"`
	Limits     orchestrator.Config                `mapstructure:"limits"`
	Routing    router.Table                       `mapstructure:"routing"`
	Tenants    map[string]compliance.TenantConfig `mapstructure:"tenants"`
	Providers  []ProviderConfig                   `mapstructure:"providers"`
	Storage    storage.Config                     `mapstructure:"storage"`
	Redis      idem.RedisConfig                   `mapstructure:"redis"`
	Idem       idem.Config                        `mapstructure:"idem"`
	Notify     notify.Config                      `mapstructure:"notify"`
	RateLimit  ratelimit.Config                   `mapstructure:"ratelimit"`
	Fraud      fraud.Config                       `mapstructure:"fraud"`
	Compliance compliance.Config                  `mapstructure:"compliance"`
}

// SetDefaults 补全进程级默认值，组件级默认值由各组件的 New 负责
func (c *AppConfig) SetDefaults() {
	if c.Log.Level == "" {
		c.Log = *clog.NewProdDefaultConfig()
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = "paygate"
	}
	if c.Trace.ServiceName == "" {
		c.Trace.ServiceName = "paygate"
	}
	for i := range c.Providers {
		if c.Providers[i].Driver == "" {
			c.Providers[i].Driver = ProviderDriverSandbox
		}
	}
	c.Tenants = normalizeTenants(c.Tenants)
}

// Validate 校验跨组件的约束
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("at least one provider is required"))
	}

	known := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		case p.Driver != ProviderDriverHTTP && p.Driver != ProviderDriverSandbox:
			errs = append(errs, fmt.Errorf("provider %s: unknown driver %q", p.Name, p.Driver))
		case p.Driver == ProviderDriverHTTP && p.HTTP.BaseURL == "":
			errs = append(errs, fmt.Errorf("provider %s: http.base_url is required", p.Name))
		}
		if _, dup := known[p.Name]; dup {
			errs = append(errs, fmt.Errorf("provider %s: declared twice", p.Name))
		}
		known[p.Name] = struct{}{}
	}

	for _, name := range routedProviders(c.Routing, c.Tenants) {
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Errorf("routing references unknown provider %s", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidationFailed, xerrors.Combine(errs...))
	}
	return nil
}

// LoadApp 从已加载的 Loader 解析完整配置
func LoadApp(l Loader) (*AppConfig, error) {
	var cfg AppConfig
	if err := l.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "config: unmarshal")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Reloadable 运行期间可热更新的配置
type Reloadable struct {
	Routing router.Table
	Tenants map[string]compliance.TenantConfig
}

// WatchReloadable 监听 routing 与 tenants，任一变化时重新解析两者并调用 apply
//
// 解析失败时保留旧配置。ctx 取消后停止监听。
func WatchReloadable(ctx context.Context, l Loader, apply func(Reloadable), logger clog.Logger) error {
	if logger == nil {
		logger = clog.Discard()
	}
	routing, err := l.Watch(ctx, "routing")
	if err != nil {
		return err
	}
	tenants, err := l.Watch(ctx, "tenants")
	if err != nil {
		return err
	}

	reload := func(key string) {
		var r Reloadable
		if err := l.UnmarshalKey("routing", &r.Routing); err != nil {
			logger.Error("reload routing failed, keeping previous configuration", clog.Error(err))
			return
		}
		if err := l.UnmarshalKey("tenants", &r.Tenants); err != nil {
			logger.Error("reload tenants failed, keeping previous configuration", clog.Error(err))
			return
		}
		r.Tenants = normalizeTenants(r.Tenants)
		apply(r)
		logger.Info("configuration reloaded", clog.String("trigger", key))
	}

	go func() {
		for routing != nil || tenants != nil {
			select {
			case evt, ok := <-routing:
				if !ok {
					routing = nil
					continue
				}
				reload(evt.Key)
			case evt, ok := <-tenants:
				if !ok {
					tenants = nil
					continue
				}
				reload(evt.Key)
			}
		}
	}()
	return nil
}

// normalizeTenants viper 将 map key 转为小写，租户 ID 统一按小写匹配
func normalizeTenants(in map[string]compliance.TenantConfig) map[string]compliance.TenantConfig {
	out := make(map[string]compliance.TenantConfig, len(in))
	for id, t := range in {
		out[strings.ToLower(id)] = t
	}
	return out
}

func routedProviders(t router.Table, tenants map[string]compliance.TenantConfig) []string {
	var names []string
	names = append(names, t.Default...)
	for _, tiers := range t.Regions {
		names = append(names, tiers.Primary...)
		names = append(names, tiers.Regional...)
		names = append(names, tiers.Fallback...)
	}
	for _, tenant := range tenants {
		names = append(names, tenant.ProviderPreference...)
	}
	return names
}
