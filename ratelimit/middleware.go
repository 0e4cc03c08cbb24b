package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/metrics"
)

// TenantHeader 用于按租户限流的请求头
const TenantHeader = "X-Tenant-ID"

// TenantKey 默认的限流键：优先使用租户，没有租户时使用客户端 IP
func TenantKey(c *gin.Context) string {
	if tenant := c.GetHeader(TenantHeader); tenant != "" {
		return "tenant:" + tenant
	}
	return "ip:" + c.ClientIP()
}

// GinMiddleware 创建 Gin 限流中间件，超出配额返回 429
//
// keyFunc 为 nil 时使用 TenantKey。限流器出错时放行，不影响支付请求。
//
//	r.Use(ratelimit.GinMiddleware(limiter, limiter.Limit(), nil))
func GinMiddleware(limiter Limiter, limit Limit, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = TenantKey
	}
	header := fmt.Sprintf("rate=%.2f, burst=%d", limit.Rate, limit.Burst)

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" || limiter == nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", header)
		allowed, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Set(metrics.ContextKeyErrorKind, "rate_limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"kind":    "rate_limited",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
