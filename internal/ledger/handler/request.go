package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"cashup.com/internal/ledger/domain"
	"cashup.com/internal/ledger/service"
	"cashup.com/pkg/common"
	"cashup.com/pkg/xerr"
)

const (
	// 网关鉴权后注入
	HeaderAccountID      = "X-Account-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// caller 当前调用方账户 id，缺失时直接回 400
func caller(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(HeaderAccountID), 10, 64)
	if err != nil || id <= 0 {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, "missing account"))
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, "invalid "+name))
		return 0, false
	}
	return id, true
}

// self 路径上的账户必须是调用方自己
func self(c *gin.Context) (int64, bool) {
	id, ok := caller(c)
	if !ok {
		return 0, false
	}
	target, ok := pathID(c, "id")
	if !ok {
		return 0, false
	}
	if target != id {
		common.FailFromErr(c, xerr.NewErrCode(xerr.Forbidden))
		return 0, false
	}
	return id, true
}

// bind 用 ShouldBindBodyWith 保留原始 body，幂等键要对 body 做摘要
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindBodyWithJSON(req); err != nil {
		common.FailFromErr(c, xerr.Wrap(err, xerr.RequestParamsError, "bind"))
		return false
	}
	return true
}

func reqCtx(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		return ctx
	}
	var body []byte
	if v, ok := c.Get(gin.BodyBytesKey); ok {
		body, _ = v.([]byte)
	}
	return service.WithIdempotency(ctx, key, body)
}

// reply 账本操作统一出口：失败也带上结果记录
func reply(c *gin.Context, res *domain.Result, err error) {
	if err != nil {
		if res == nil {
			common.FailFromErr(c, err)
			return
		}
		common.FailFromErrWithData(c, err, res)
		return
	}
	common.Success(c, res)
}
