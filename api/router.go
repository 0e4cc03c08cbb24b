package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/idgen"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/ratelimit"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/trace"
)

// NewRouter 创建 gin 路由
//
//	r := api.NewRouter(orch,
//	    api.WithAuditReader(store),
//	    api.WithHTTPMetrics(httpMetrics),
//	    api.WithTracing("paygate"),
//	    api.WithLogger(logger))
func NewRouter(svc Service, opts ...Option) *gin.Engine {
	o := options{
		logger: clog.Discard(),
		ids:    idgen.NewUUID(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handler{svc: svc, opts: o}

	r := gin.New()
	r.Use(gin.Recovery())
	if o.tracing {
		r.Use(trace.GinMiddleware(o.serviceName))
	}
	r.Use(metrics.GinHTTPMiddleware(o.httpMetrics))

	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	if o.limiter != nil {
		v1.Use(ratelimit.GinMiddleware(o.limiter, o.limiter.Limit(), nil))
	}
	v1.Use(h.correlation)
	v1.POST("/payments", h.createPayment)
	v1.POST("/refunds", h.createRefund)
	v1.GET("/payments/:provider/:id", h.paymentStatus)
	v1.GET("/providers/health", h.providerHealth)
	v1.GET("/orchestrations/:id", h.orchestration)
	return r
}
