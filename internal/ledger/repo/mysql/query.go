package mysql

import (
	"context"

	"gorm.io/gorm"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/orm"
)

// page 统一的分页查询：先 count 再取当前页，新的在前
func page[T any](ctx context.Context, r *Repo, p orm.Page, scope func(db *gorm.DB) *gorm.DB) ([]T, int64, error) {
	var total int64
	if err := r.getDb(ctx).Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "count")
	}
	out := make([]T, 0)
	if total == 0 {
		return out, 0, nil
	}
	err := r.getDb(ctx).Model(new(T)).Scopes(scope, orm.Paginate(p)).Order("id DESC").Find(&out).Error
	return out, total, dbErr(err, "list")
}

func byAccount(accountID int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("account_id = ?", accountID) }
}

func (r *Repo) ListTransfers(ctx context.Context, accountID int64, p orm.Page) ([]domain.TransferHistory, int64, error) {
	return page[domain.TransferHistory](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListCashupDepositHistory(ctx context.Context, accountID int64, p orm.Page) ([]domain.CashupDepositHistory, int64, error) {
	return page[domain.CashupDepositHistory](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListCashupProfitHistory(ctx context.Context, accountID int64, p orm.Page) ([]domain.CashupProfitHistory, int64, error) {
	return page[domain.CashupProfitHistory](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListOwingProfitHistory(ctx context.Context, accountID int64, p orm.Page) ([]domain.CashupOwingProfitHistory, int64, error) {
	return page[domain.CashupOwingProfitHistory](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListBucketHistory(ctx context.Context, accountID int64, p orm.Page) ([]domain.BucketHistory, int64, error) {
	return page[domain.BucketHistory](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListWithdrawals(ctx context.Context, accountID int64, p orm.Page) ([]domain.WithdrawalRequest, int64, error) {
	return page[domain.WithdrawalRequest](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListSentTransactions(ctx context.Context, accountID int64, p orm.Page) ([]domain.Transaction, int64, error) {
	return page[domain.Transaction](ctx, r, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("sender_id = ?", accountID)
	})
}

func (r *Repo) ListReceivedTransactions(ctx context.Context, accountID int64, p orm.Page) ([]domain.Transaction, int64, error) {
	return page[domain.Transaction](ctx, r, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("recipient_id = ?", accountID)
	})
}

func (r *Repo) ListBuyerTransactions(ctx context.Context, accountID int64, p orm.Page) ([]domain.BuyerTransaction, int64, error) {
	return page[domain.BuyerTransaction](ctx, r, p, byAccount(accountID))
}

func (r *Repo) ListPurchases(ctx context.Context, accountID int64, confirmed bool, p orm.Page) ([]domain.Purchase, int64, error) {
	return page[domain.Purchase](ctx, r, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("account_id = ? AND confirmed = ?", accountID, confirmed)
	})
}

func (r *Repo) ListRecharges(ctx context.Context, accountID int64, p orm.Page) ([]domain.MobileRecharge, int64, error) {
	return page[domain.MobileRecharge](ctx, r, p, byAccount(accountID))
}
