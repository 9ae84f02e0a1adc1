package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	Forbidden          = 403
	DbError            = 501
	RecordNotFound     = 404
)

// 账本业务错误码
const (
	InsufficientFunds      = 1001
	InvalidAmount          = 1002
	AccountNotFound        = 1003
	BucketNotFound         = 1004
	SelfTransferNotAllowed = 1005
	AlreadyRedeemed        = 1006
	ApprovalRace           = 1007
	AlreadyProcessed       = 1008
	ConcurrentUpdate       = 1009
	EmptyCart              = 1010
	IdempotencyConflict    = 1011
	ReferralCodeInvalid    = 1012
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

// Is 按错误码比较，方便 errors.Is(err, domain.ErrInsufficientFunds)
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 保留业务码，把底层错误拼进消息（只用于日志，不直接回给客户端）
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: fmt.Sprintf("%s: %v", msg, err)}
}

// As 取出链路上的 CodeError
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf 非 CodeError 一律当作 ServerCommonError
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ServerCommonError
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case Forbidden:
		return "access denied"
	case InsufficientFunds:
		return "insufficient funds"
	case InvalidAmount:
		return "amount must be greater than zero"
	case AccountNotFound:
		return "account not found"
	case BucketNotFound:
		return "bucket not found"
	case SelfTransferNotAllowed:
		return "cannot send money to yourself"
	case AlreadyRedeemed:
		return "referral code already redeemed"
	case ApprovalRace:
		return "request was processed concurrently"
	case AlreadyProcessed:
		return "request already processed"
	case ConcurrentUpdate:
		return "balance changed concurrently, retry"
	case EmptyCart:
		return "no unconfirmed purchases"
	case IdempotencyConflict:
		return "idempotency key reused with different parameters"
	case ReferralCodeInvalid:
		return "referral code is not valid"
	default:
		return "未知错误"
	}
}

// KindOf 对外暴露的 error_kind
func KindOf(code int) string {
	switch code {
	case OK:
		return ""
	case RequestParamsError:
		return "InvalidRequest"
	case RecordNotFound:
		return "NotFound"
	case Forbidden:
		return "Forbidden"
	case InsufficientFunds:
		return "InsufficientFunds"
	case InvalidAmount:
		return "InvalidAmount"
	case AccountNotFound:
		return "AccountNotFound"
	case BucketNotFound:
		return "BucketNotFound"
	case SelfTransferNotAllowed:
		return "SelfTransferNotAllowed"
	case AlreadyRedeemed:
		return "AlreadyRedeemed"
	case ApprovalRace:
		return "ApprovalRace"
	case AlreadyProcessed:
		return "AlreadyProcessed"
	case ConcurrentUpdate:
		return "ConcurrentUpdate"
	case EmptyCart:
		return "EmptyCart"
	case IdempotencyConflict:
		return "IdempotencyConflict"
	case ReferralCodeInvalid:
		return "ReferralCodeInvalid"
	default:
		return "Internal"
	}
}
