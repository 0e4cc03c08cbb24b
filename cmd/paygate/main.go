// Command paygate 启动支付编排 HTTP 服务。
//
// 配置按 paygate.yaml → paygate.<PAYGATE_ENV>.yaml → .env → PAYGATE_* 环境变量的顺序合并，
// routing 与 tenants 修改后无需重启即可生效。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/api"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/breaker"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/compliance"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/config"
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
)

func main() {
	configDir := flag.String("config", "", "directory containing paygate.yaml (default: . and ./config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir); err != nil {
		fmt.Fprintf(os.Stderr, "paygate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir string) error {
	loaderCfg := &config.Config{}
	if configDir != "" {
		loaderCfg.Paths = []string{configDir}
	}
	loader, err := config.New(loaderCfg)
	if err != nil {
		return err
	}
	if err := loader.Load(ctx); err != nil {
		return err
	}
	cfg, err := config.LoadApp(loader)
	if err != nil {
		return err
	}

	logger, err := clog.New(&cfg.Log)
	if err != nil {
		return err
	}

	meter, err := metrics.New(&cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return err
	}
	defer shutdown(logger, "metrics", meter.Shutdown)

	shutdownTrace, err := trace.Init(&cfg.Trace)
	if err != nil {
		return err
	}
	defer shutdown(logger, "trace", shutdownTrace)

	brk, err := breaker.New(&cfg.Breaker, breaker.WithLogger(logger), breaker.WithMeter(meter))
	if err != nil {
		return err
	}
	registry := provider.NewRegistry(provider.WithBreaker(brk), provider.WithLogger(logger))
	if err := registerProviders(registry, cfg.Providers, logger); err != nil {
		return err
	}

	rt := router.New(registry, cfg.Routing, router.WithLogger(logger))

	sink, err := feedback.NewMeterSink(meter)
	if err != nil {
		return err
	}
	loop := feedback.New(registry, &cfg.Feedback, feedback.WithSink(sink), feedback.WithLogger(logger))

	store, err := storage.New(ctx, &cfg.Storage, storage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer closeWith(logger, "storage", store.Close)

	var rdb *redis.Client
	if cfg.Idem.Driver == idem.DriverRedis || cfg.RateLimit.Driver == ratelimit.DriverRedis {
		rdb, err = idem.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeWith(logger, "redis", rdb.Close)
	}

	idemOpts := []idem.Option{idem.WithLogger(logger)}
	if rdb != nil {
		idemOpts = append(idemOpts, idem.WithRedisClient(rdb))
	}
	guard, err := idem.New(&cfg.Idem, idemOpts...)
	if err != nil {
		return err
	}

	publisher, err := notify.New(&cfg.Notify, notify.WithLogger(logger))
	if err != nil {
		return err
	}
	defer closeWith(logger, "notify", publisher.Close)

	limits := cfg.Limits
	limits.Tenants = cfg.Tenants
	orch, err := orchestrator.New(registry, brk, rt, &limits,
		orchestrator.WithLogger(logger),
		orchestrator.WithMeter(meter),
		orchestrator.WithFraudGate(fraud.NewRuleGate(cfg.Fraud, logger)),
		orchestrator.WithComplianceGate(compliance.NewChecker(cfg.Compliance)),
		orchestrator.WithStorage(store),
		orchestrator.WithPublisher(publisher),
		orchestrator.WithIdempotency(guard),
		orchestrator.WithRetry(retry.New(&cfg.Retry, retry.WithLogger(logger))),
		orchestrator.WithFeedback(loop))
	if err != nil {
		return err
	}

	if err := config.WatchReloadable(ctx, loader, func(r config.Reloadable) {
		rt.SetTable(r.Routing)
		orch.SetTenants(r.Tenants)
	}, logger); err != nil {
		return err
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(meter, metrics.DefaultHTTPServerMetricsConfig(cfg.Metrics.ServiceName))
	if err != nil {
		return err
	}
	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithAuditReader(store),
		api.WithHTTPMetrics(httpMetrics),
	}
	if cfg.Trace.Enabled {
		apiOpts = append(apiOpts, api.WithTracing(cfg.Trace.ServiceName))
	}
	if cfg.RateLimit.Enabled {
		rlOpts := []ratelimit.Option{ratelimit.WithLogger(logger), ratelimit.WithMeter(meter)}
		if rdb != nil {
			rlOpts = append(rlOpts, ratelimit.WithRedisClient(rdb))
		}
		limiter, err := ratelimit.New(&cfg.RateLimit, rlOpts...)
		if err != nil {
			return err
		}
		defer closeWith(logger, "ratelimit", limiter.Close)
		apiOpts = append(apiOpts, api.WithRateLimiter(limiter))
	}

	server := api.NewServer(&cfg.Server, api.NewRouter(orch, apiOpts...), logger)
	logger.Info("paygate started",
		clog.Int("providers", len(cfg.Providers)),
		clog.String("storage", cfg.Storage.Driver),
		clog.String("idempotency", string(cfg.Idem.Driver)))
	return server.Run(ctx)
}

// registerProviders 按 driver 创建适配器并注册，Name 与 Capabilities 以 providers 条目为准
func registerProviders(registry *provider.Registry, providers []config.ProviderConfig, logger clog.Logger) error {
	for _, p := range providers {
		var adapter provider.Adapter
		switch p.Driver {
		case config.ProviderDriverHTTP:
			httpCfg := p.HTTP
			httpCfg.Name = p.Name
			httpCfg.Capabilities = p.Capabilities
			a, err := processor.New(httpCfg, processor.WithLogger(logger))
			if err != nil {
				return err
			}
			adapter = a
		default:
			sbCfg := p.Sandbox
			sbCfg.Capabilities = p.Capabilities
			adapter = sandbox.New(p.Name, sbCfg)
		}
		if err := registry.Register(p.Name, adapter, p.Capabilities); err != nil {
			return err
		}
	}
	return nil
}

func shutdown(logger clog.Logger, name string, fn func(context.Context) error) {
	if err := fn(context.Background()); err != nil {
		logger.Warn("shutdown failed", clog.String("component", name), clog.Error(err))
	}
}

func closeWith(logger clog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close failed", clog.String("component", name), clog.Error(err))
	}
}
