package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

func (r *Repo) CreateAccount(ctx context.Context, a *domain.Account) error {
	err := r.getDb(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return xerr.New(xerr.RequestParamsError, "username already taken")
	}
	return dbErr(err, "create account")
}

func (r *Repo) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	if err := r.getDb(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	return &a, nil
}

func (r *Repo) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	if err := r.getDb(ctx).Clauses(forUpdate).First(&a, id).Error; err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "lock account")
	}
	return &a, nil
}

// LockOrCreateBucket 先加锁读，没有再插入。并发插入撞唯一索引时重读一次
func (r *Repo) LockOrCreateBucket(ctx context.Context, h domain.Holder) error {
	db := r.getDb(ctx)
	owner := h.OwnerID()
	err := db.Clauses(forUpdate).Where("account_id = ?", owner).Take(h).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dbErr(err, "lock bucket")
	}

	err = db.Create(h).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = db.Clauses(forUpdate).Where("account_id = ?", owner).Take(h).Error
	}
	return dbErr(err, "create bucket")
}

func (r *Repo) GetBucket(ctx context.Context, h domain.Holder, accountID int64) (bool, error) {
	err := r.getDb(ctx).Where("account_id = ?", accountID).Take(h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dbErr(err, "get bucket")
	}
	return true, nil
}

// SaveHolder 整行回写，where version = 旧版本
func (r *Repo) SaveHolder(ctx context.Context, h domain.Holder) error {
	prev := h.CurrentVersion()
	h.BumpVersion()
	res := r.getDb(ctx).Model(h).
		Select("*").Omit("id", "created_at").
		Where("version = ?", prev).
		Updates(h)
	if res.Error != nil {
		return dbErr(res.Error, "save "+string(h.Kind()))
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (r *Repo) AppendAudit(ctx context.Context, rows domain.AuditRows) error {
	db := r.getDb(ctx)
	if len(rows.CashupDeposit) > 0 {
		if err := db.Create(&rows.CashupDeposit).Error; err != nil {
			return dbErr(err, "append cashup deposit history")
		}
	}
	if len(rows.CashupProfit) > 0 {
		if err := db.Create(&rows.CashupProfit).Error; err != nil {
			return dbErr(err, "append cashup profit history")
		}
	}
	if len(rows.OwingProfit) > 0 {
		if err := db.Create(&rows.OwingProfit).Error; err != nil {
			return dbErr(err, "append owing profit history")
		}
	}
	if len(rows.Bucket) > 0 {
		if err := db.Create(&rows.Bucket).Error; err != nil {
			return dbErr(err, "append bucket history")
		}
	}
	return nil
}

func (r *Repo) CreateTransfer(ctx context.Context, t *domain.TransferHistory) error {
	return dbErr(r.getDb(ctx).Create(t).Error, "create transfer history")
}

// VerifyTransfers 欠款核实后，挂在该欠款桶上的划转记录全部置为已核实
func (r *Repo) VerifyTransfers(ctx context.Context, owingDepositID int64) (int64, error) {
	res := r.getDb(ctx).Model(&domain.TransferHistory{}).
		Where("owing_deposit_id = ? AND verified = ?", owingDepositID, false).
		Update("verified", true)
	return res.RowsAffected, dbErr(res.Error, "verify transfers")
}
