package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cashup.com/pkg/common"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/ratelimit"
)

const RateLimitedCode = 1003001

func RateLimit(service string, store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.ClientIP() + ":" + route

		if !store.Allow(key) {
			// 限流属于“可控拒绝”，不要打堆栈（压测会炸日志）
			logger.Warn(c.Request.Context(), "http rate limited",
				zap.String("ip", c.ClientIP()),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues(service, route, "ip_route").Inc()
			common.Fail(c, http.StatusTooManyRequests, RateLimitedCode, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}
