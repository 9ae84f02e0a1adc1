package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cashup.com/internal/ledger/stream"
	"cashup.com/pkg/logger"
)

// Stream 升级成 websocket，推送当前账户已提交的账本事件
func (h *Ledger) Stream(srv *stream.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		if err := srv.ServeWS(c.Writer, c.Request, id); err != nil {
			logger.Warn(c.Request.Context(), "stream upgrade failed", zap.Int64("account", id), zap.Error(err))
		}
	}
}
