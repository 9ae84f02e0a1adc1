package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

// ===== 推荐码 =====

// CreateReferralCode 唯一索引冲突原样返回 gorm.ErrDuplicatedKey，由上层重试
func (r *Repo) CreateReferralCode(ctx context.Context, c *domain.ReferralCode) error {
	err := r.getDb(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return dbErr(err, "create referral code")
}

func (r *Repo) GetReferralCodeByCreator(ctx context.Context, creatorID int64) (*domain.ReferralCode, error) {
	var c domain.ReferralCode
	if err := r.getDb(ctx).Where("creator_id = ?", creatorID).Take(&c).Error; err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "get referral code")
	}
	return &c, nil
}

func (r *Repo) LockReferralCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	var c domain.ReferralCode
	if err := r.getDb(ctx).Clauses(forUpdate).Where("code = ?", code).Take(&c).Error; err != nil {
		return nil, notFound(err, domain.ErrReferralCodeInvalid, "lock referral code")
	}
	return &c, nil
}

func (r *Repo) MarkReferralAwarded(ctx context.Context, id, usedBy int64, at time.Time) (bool, error) {
	res := r.getDb(ctx).Model(&domain.ReferralCode{}).
		Where("id = ? AND affiliate_profit_awarded = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":                  true,
			"affiliate_profit_awarded": true,
			"used_by":                  usedBy,
			"awarded_at":               at,
		})
	return res.RowsAffected == 1, dbErr(res.Error, "mark referral awarded")
}

// ===== 提现 =====

func (r *Repo) CreateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	return dbErr(r.getDb(ctx).Create(w).Error, "create withdrawal")
}

func (r *Repo) LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	if err := r.getDb(ctx).Clauses(forUpdate).First(&w, id).Error; err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "lock withdrawal")
	}
	return &w, nil
}

// FinishWithdrawal 状态 CAS：只有 pending 能被改
func (r *Repo) FinishWithdrawal(ctx context.Context, w *domain.WithdrawalRequest, status domain.WithdrawalStatus, by int64, at time.Time) (bool, error) {
	res := r.getDb(ctx).Model(&domain.WithdrawalRequest{}).
		Where("id = ? AND status = ?", w.ID, domain.WithdrawalPending).
		Updates(map[string]interface{}{
			"status":       status,
			"reason":       w.Reason,
			"processed_by": by,
			"processed_at": at,
		})
	if res.Error != nil {
		return false, dbErr(res.Error, "finish withdrawal")
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	w.Status = status
	w.ProcessedBy = &by
	w.ProcessedAt = &at
	return true, nil
}

// ===== 转账 / 外部付款 =====

func (r *Repo) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return dbErr(r.getDb(ctx).Create(t).Error, "create transaction")
}

func (r *Repo) CreateBuyerTransaction(ctx context.Context, t *domain.BuyerTransaction) error {
	err := r.getDb(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return xerr.New(xerr.RequestParamsError, "transaction id already submitted")
	}
	return dbErr(err, "create buyer transaction")
}

func (r *Repo) LockBuyerTransaction(ctx context.Context, id int64) (*domain.BuyerTransaction, error) {
	var t domain.BuyerTransaction
	if err := r.getDb(ctx).Clauses(forUpdate).First(&t, id).Error; err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "lock buyer transaction")
	}
	return &t, nil
}

func (r *Repo) MarkBuyerTransactionVerified(ctx context.Context, id, by int64, at time.Time) (bool, error) {
	res := r.getDb(ctx).Model(&domain.BuyerTransaction{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]interface{}{"verified": true, "verified_by": by, "verified_at": at})
	return res.RowsAffected == 1, dbErr(res.Error, "verify buyer transaction")
}

// ===== 购物车 =====

func (r *Repo) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	return dbErr(r.getDb(ctx).Create(p).Error, "create purchase")
}

func (r *Repo) LockCart(ctx context.Context, accountID int64) ([]domain.Purchase, error) {
	var lines []domain.Purchase
	err := r.getDb(ctx).Clauses(forUpdate).
		Where("account_id = ? AND confirmed = ?", accountID, false).
		Order("id").
		Find(&lines).Error
	return lines, dbErr(err, "lock cart")
}

func (r *Repo) ConfirmPurchase(ctx context.Context, p *domain.Purchase, at time.Time) (bool, error) {
	res := r.getDb(ctx).Model(&domain.Purchase{}).
		Where("id = ? AND confirmed = ?", p.ID, false).
		Updates(map[string]interface{}{
			"confirmed":     true,
			"paid":          true,
			"charged_price": p.ChargedPrice,
			"confirmed_at":  at,
		})
	return res.RowsAffected == 1, dbErr(res.Error, "confirm purchase")
}

// ===== 话费充值 =====

func (r *Repo) CreateRecharge(ctx context.Context, m *domain.MobileRecharge) error {
	return dbErr(r.getDb(ctx).Create(m).Error, "create recharge")
}

func (r *Repo) LockRecharge(ctx context.Context, id int64) (*domain.MobileRecharge, error) {
	var m domain.MobileRecharge
	if err := r.getDb(ctx).Clauses(forUpdate).First(&m, id).Error; err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "lock recharge")
	}
	return &m, nil
}

func (r *Repo) CompleteRecharge(ctx context.Context, id, by int64, at time.Time) (bool, error) {
	res := r.getDb(ctx).Model(&domain.MobileRecharge{}).
		Where("id = ? AND status = ?", id, domain.RechargePending).
		Updates(map[string]interface{}{"status": domain.RechargeCompleted, "completed_by": by, "completed_at": at})
	return res.RowsAffected == 1, dbErr(res.Error, "complete recharge")
}

// ===== 幂等 =====

func (r *Repo) ClaimIdempotency(ctx context.Context, rec *domain.IdempotencyRecord) (bool, error) {
	res := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, dbErr(res.Error, "claim idempotency")
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) LockIdempotency(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.getDb(ctx).Clauses(forUpdate).
		Where("scope = ? AND idem_key = ?", scope, key).
		Take(&rec).Error
	if err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "lock idempotency")
	}
	return &rec, nil
}

func (r *Repo) SaveIdempotencyResponse(ctx context.Context, id int64, resp []byte) error {
	err := r.getDb(ctx).Model(&domain.IdempotencyRecord{}).
		Where("id = ?", id).
		Update("response", resp).Error
	return dbErr(err, "save idempotency response")
}
