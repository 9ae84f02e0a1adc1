package domain

import (
	"context"
	"time"

	"cashup.com/pkg/orm"
)

// Repository 账本仓储。所有写方法都要在 Transaction 的 txCtx 里调用
type Repository interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error

	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// LockAccount 行锁读取，不存在返回 ErrAccountNotFound
	LockAccount(ctx context.Context, id int64) (*Account, error)

	// LockOrCreateBucket 不存在就插入 h 的初始值，然后行锁读回 h
	LockOrCreateBucket(ctx context.Context, h Holder) error
	// GetBucket 只读，不存在返回 false
	GetBucket(ctx context.Context, h Holder, accountID int64) (bool, error)
	// SaveHolder 按 version 条件更新，冲突返回 ErrConcurrentUpdate
	SaveHolder(ctx context.Context, h Holder) error
	AppendAudit(ctx context.Context, rows AuditRows) error

	CreateTransfer(ctx context.Context, t *TransferHistory) error
	VerifyTransfers(ctx context.Context, owingDepositID int64) (int64, error)

	CreateReferralCode(ctx context.Context, c *ReferralCode) error
	GetReferralCodeByCreator(ctx context.Context, creatorID int64) (*ReferralCode, error)
	LockReferralCode(ctx context.Context, code string) (*ReferralCode, error)
	// MarkReferralAwarded 只在 affiliate_profit_awarded=false 时生效
	MarkReferralAwarded(ctx context.Context, id, usedBy int64, at time.Time) (bool, error)

	CreateWithdrawal(ctx context.Context, w *WithdrawalRequest) error
	LockWithdrawal(ctx context.Context, id int64) (*WithdrawalRequest, error)
	// FinishWithdrawal pending -> status，返回是否抢到
	FinishWithdrawal(ctx context.Context, w *WithdrawalRequest, status WithdrawalStatus, by int64, at time.Time) (bool, error)

	CreateTransaction(ctx context.Context, t *Transaction) error

	CreateBuyerTransaction(ctx context.Context, t *BuyerTransaction) error
	LockBuyerTransaction(ctx context.Context, id int64) (*BuyerTransaction, error)
	MarkBuyerTransactionVerified(ctx context.Context, id, by int64, at time.Time) (bool, error)

	CreatePurchase(ctx context.Context, p *Purchase) error
	LockCart(ctx context.Context, accountID int64) ([]Purchase, error)
	ConfirmPurchase(ctx context.Context, p *Purchase, at time.Time) (bool, error)

	CreateRecharge(ctx context.Context, r *MobileRecharge) error
	LockRecharge(ctx context.Context, id int64) (*MobileRecharge, error)
	CompleteRecharge(ctx context.Context, id, by int64, at time.Time) (bool, error)

	// ClaimIdempotency 插入成功返回 true，已存在返回 false
	ClaimIdempotency(ctx context.Context, rec *IdempotencyRecord) (bool, error)
	LockIdempotency(ctx context.Context, scope, key string) (*IdempotencyRecord, error)
	SaveIdempotencyResponse(ctx context.Context, id int64, resp []byte) error

	Queries
}

// Queries 只读分页查询，都按 account 过滤
type Queries interface {
	ListTransfers(ctx context.Context, accountID int64, p orm.Page) ([]TransferHistory, int64, error)
	ListCashupDepositHistory(ctx context.Context, accountID int64, p orm.Page) ([]CashupDepositHistory, int64, error)
	ListCashupProfitHistory(ctx context.Context, accountID int64, p orm.Page) ([]CashupProfitHistory, int64, error)
	ListOwingProfitHistory(ctx context.Context, accountID int64, p orm.Page) ([]CashupOwingProfitHistory, int64, error)
	ListBucketHistory(ctx context.Context, accountID int64, p orm.Page) ([]BucketHistory, int64, error)
	ListWithdrawals(ctx context.Context, accountID int64, p orm.Page) ([]WithdrawalRequest, int64, error)
	ListSentTransactions(ctx context.Context, accountID int64, p orm.Page) ([]Transaction, int64, error)
	ListReceivedTransactions(ctx context.Context, accountID int64, p orm.Page) ([]Transaction, int64, error)
	ListBuyerTransactions(ctx context.Context, accountID int64, p orm.Page) ([]BuyerTransaction, int64, error)
	ListPurchases(ctx context.Context, accountID int64, confirmed bool, p orm.Page) ([]Purchase, int64, error)
	ListRecharges(ctx context.Context, accountID int64, p orm.Page) ([]MobileRecharge, int64, error)
}
