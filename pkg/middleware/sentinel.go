package middleware

import (
	"net/http"

	sentinels "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cashup.com/pkg/common"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
)

// Sentinel 每个路由是一个资源，资源名: "POST:/api/withdrawals"
// 规则没加载时 Entry 直接放行
func Sentinel(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		resource := c.Request.Method + ":" + route

		entry, blockErr := sentinels.Entry(resource, sentinels.WithTrafficType(base.Inbound))
		if blockErr != nil {
			logger.Warn(c.Request.Context(), "request blocked by sentinel",
				zap.String("resource", resource),
				zap.String("blockType", blockErr.BlockType().String()),
				zap.String("blockMsg", blockErr.Error()),
			)
			metrics.CBRejectTotal.WithLabelValues(service, resource, blockErr.BlockType().String()).Inc()
			common.Fail(c, http.StatusServiceUnavailable, 1004001, "服务繁忙")
			c.Abort()
			return
		}
		defer entry.Exit()

		c.Next()

		// 只有 5xx 计入熔断统计，业务拒绝不算
		if c.Writer.Status() >= http.StatusInternalServerError {
			sentinels.TraceError(entry, errHTTP5xx)
		}
	}
}

type httpErr string

func (e httpErr) Error() string { return string(e) }

const errHTTP5xx = httpErr("http 5xx")
