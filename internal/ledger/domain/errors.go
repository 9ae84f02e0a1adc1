package domain

import "cashup.com/pkg/xerr"

// 账本错误，errors.Is 按错误码匹配
var (
	ErrInsufficientFunds   = xerr.NewErrCode(xerr.InsufficientFunds)
	ErrInvalidAmount       = xerr.NewErrCode(xerr.InvalidAmount)
	ErrAccountNotFound     = xerr.NewErrCode(xerr.AccountNotFound)
	ErrBucketNotFound      = xerr.NewErrCode(xerr.BucketNotFound)
	ErrSelfTransfer        = xerr.NewErrCode(xerr.SelfTransferNotAllowed)
	ErrAlreadyRedeemed     = xerr.NewErrCode(xerr.AlreadyRedeemed)
	ErrApprovalRace        = xerr.NewErrCode(xerr.ApprovalRace)
	ErrAlreadyProcessed    = xerr.NewErrCode(xerr.AlreadyProcessed)
	ErrConcurrentUpdate    = xerr.NewErrCode(xerr.ConcurrentUpdate)
	ErrEmptyCart           = xerr.NewErrCode(xerr.EmptyCart)
	ErrIdempotencyConflict = xerr.NewErrCode(xerr.IdempotencyConflict)
	ErrReferralCodeInvalid = xerr.NewErrCode(xerr.ReferralCodeInvalid)
	ErrRecordNotFound      = xerr.NewErrCode(xerr.RecordNotFound)
	ErrInvalidRequest      = xerr.NewErrCode(xerr.RequestParamsError)
)
