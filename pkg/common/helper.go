package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cashup.com/pkg/logger"
	"cashup.com/pkg/xerr"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailWithData 失败时仍然带上 data（账本操作的结果记录）
func FailWithData(c *gin.Context, httpStatus int, code int, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// FailFromErr 对外只回 biz_code + 固定文案，原始错误只进日志
func FailFromErr(c *gin.Context, err error) {
	FailFromErrWithData(c, err, nil)
}

func FailFromErrWithData(c *gin.Context, err error, data interface{}) {
	code, msg, httpStatus := MapErr(err)
	logErr(c, code, err)
	FailWithData(c, httpStatus, code, msg, data)
}

// MapErr 业务码 -> (code, 对外文案, http 状态码)
func MapErr(err error) (int, string, int) {
	code := xerr.CodeOf(err)
	return code, xerr.MapErrMsg(code), HTTPStatus(code)
}

func HTTPStatus(code int) int {
	switch code {
	case xerr.OK:
		return http.StatusOK
	case xerr.RequestParamsError, xerr.InvalidAmount, xerr.SelfTransferNotAllowed,
		xerr.EmptyCart, xerr.ReferralCodeInvalid:
		return http.StatusBadRequest
	case xerr.Forbidden:
		return http.StatusForbidden
	case xerr.RecordNotFound, xerr.AccountNotFound, xerr.BucketNotFound:
		return http.StatusNotFound
	case xerr.InsufficientFunds:
		return http.StatusUnprocessableEntity
	case xerr.AlreadyRedeemed, xerr.ApprovalRace, xerr.AlreadyProcessed,
		xerr.ConcurrentUpdate, xerr.IdempotencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func logErr(c *gin.Context, code int, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", RequestIDFromGin(c)),
		zap.Int("biz_code", code),
		zap.Error(err),
	}
	if HTTPStatus(code) >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "http error", fields...)
		return
	}
	// 业务拒绝属于可预期结果，不打堆栈
	logger.Warn(c.Request.Context(), "http rejected", fields...)
}
