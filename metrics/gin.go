package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ContextKeyErrorKind 处理器通过 c.Set 写入的错误类型，作为 error_kind 标签
const ContextKeyErrorKind = "metrics.error_kind"

// GinHTTPMiddleware 返回记录 HTTP RED 指标的 Gin 中间件
//
// route 取路由模板，未命中时收敛为 UnknownRoute；error_kind 取 ContextKeyErrorKind。
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpMetrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnknownRoute
		}

		httpMetrics.Observe(c.Request.Context(), c.Request.Method, route, c.GetString(ContextKeyErrorKind),
			c.Writer.Status(), time.Since(start))
	}
}
