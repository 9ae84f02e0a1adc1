package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/orm"
	"cashup.com/pkg/xerr"
)

type RegisterInput struct {
	Username     string
	Name         string
	Phone        string
	ReferralCode string
}

// Register 开户，同时建好 cashup 和欠款两个桶。RecordID 为新账户 id
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Result, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, xerr.New(xerr.RequestParamsError, "username is required")
	}
	return s.exec(ctx, opMeta{op: "register"}, func(u *unit) error {
		a := &domain.Account{Username: in.Username, Name: in.Name, Phone: in.Phone, MainBalance: decimal.Zero}
		if code := strings.TrimSpace(in.ReferralCode); code != "" {
			if _, err := u.checkReferralCode(code, 0); err != nil {
				return err
			}
			a.ReferralCodeUsed = &code
		}
		if err := u.s.repo.CreateAccount(u.ctx, a); err != nil {
			return err
		}
		u.put(holderKey{domain.KindMain, a.ID}, a)
		u.meta.account = a.ID
		u.recordID = a.ID

		if _, err := u.cashup(a.ID); err != nil {
			return err
		}
		if _, err := u.owing(a.ID); err != nil {
			return err
		}
		u.emit("register", a.ID, decimal.Zero)
		return nil
	})
}

// checkReferralCode 可挂靠的码：存在、有效、没用过、不是自己的
func (u *unit) checkReferralCode(code string, accountID int64) (*domain.ReferralCode, error) {
	rc, err := u.s.repo.LockReferralCode(u.ctx, code)
	if err != nil {
		return nil, err
	}
	if !rc.IsValid || (accountID != 0 && rc.CreatorID == accountID) {
		return nil, domain.ErrReferralCodeInvalid
	}
	if rc.IsUsed || rc.AffiliateProfitAwarded {
		return nil, domain.ErrAlreadyRedeemed
	}
	return rc, nil
}

// AttachReferral 已有账户补挂推荐码，只能挂一次
func (s *Service) AttachReferral(ctx context.Context, accountID int64, code string) (*domain.Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrReferralCodeInvalid
	}
	m := opMeta{op: "referral-attach", actor: accountID, account: accountID}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		if a.ReferralCodeUsed != nil {
			return domain.ErrAlreadyRedeemed
		}
		// 佣金只在首次入金 cashup 时发，入过金就不能再挂
		funded, err := u.cashupEverFunded(accountID)
		if err != nil {
			return err
		}
		if funded {
			return domain.ErrAlreadyRedeemed
		}
		rc, err := u.checkReferralCode(code, accountID)
		if err != nil {
			return err
		}
		a.ReferralCodeUsed = &rc.Code
		u.markDirty(a)
		u.recordID = rc.ID
		return nil
	})
}

func (u *unit) cashupEverFunded(accountID int64) (bool, error) {
	c, err := u.cashup(accountID)
	if err != nil {
		return false, err
	}
	if !c.CashupMainBalance.IsZero() || !c.Withdraw.IsZero() {
		return true, nil
	}
	_, n, err := u.s.repo.ListCashupDepositHistory(u.ctx, accountID, orm.Page{Page: 1, Limit: 1})
	return n > 0, err
}

const referralAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomBytes uuid v4 里没有版本位和变体位的字节
func randomBytes(id uuid.UUID) []byte {
	out := make([]byte, 0, len(id)-2)
	for i, b := range id {
		if i == 6 || i == 8 {
			continue
		}
		out = append(out, b)
	}
	return out
}

func newReferralCode() string {
	src := randomBytes(uuid.New())
	b := make([]byte, domain.ReferralCodeLen)
	for i := range b {
		b[i] = referralAlphabet[int(src[i])%len(referralAlphabet)]
	}
	return string(b)
}

// IssueReferralCode 每个账户一个码，已有就直接返回
func (s *Service) IssueReferralCode(ctx context.Context, accountID int64) (*domain.ReferralCode, error) {
	var out *domain.ReferralCode
	err := s.repo.Transaction(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.LockAccount(txCtx, accountID); err != nil {
			return err
		}
		existing, err := s.repo.GetReferralCodeByCreator(txCtx, accountID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}
		for i := 0; i < 5; i++ {
			rc := &domain.ReferralCode{Code: newReferralCode(), CreatorID: accountID, IsValid: true}
			err = s.repo.CreateReferralCode(txCtx, rc)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				return err
			}
			out = rc
			return nil
		}
		return xerr.Wrap(err, xerr.ServerCommonError, "generate referral code")
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "referral code issued", zap.Int64("account", accountID), zap.String("code", out.Code))
	return out, nil
}

func (s *Service) MyReferralCode(ctx context.Context, accountID int64) (*domain.ReferralCode, error) {
	return s.repo.GetReferralCodeByCreator(ctx, accountID)
}

// Accrue 显式触发三个利润桶计息，和写路径同一段代码
func (s *Service) Accrue(ctx context.Context, accountID int64) (*domain.Result, error) {
	m := opMeta{op: "accrue", actor: accountID, account: accountID}
	return s.exec(ctx, m, func(u *unit) error {
		for _, k := range domain.ProfitKinds {
			if _, err := u.bucket(k, accountID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Balances 余额快照，缓存优先，未命中用 singleflight 合并回源
func (s *Service) Balances(ctx context.Context, accountID int64) (*domain.Balances, error) {
	b, ok, err := s.opt.Cache.GetBalances(ctx, accountID)
	metrics.CacheTotal.WithLabelValues(cacheResult(ok, err)).Inc()
	if err == nil && ok {
		return b, nil
	}

	v, err, _ := s.sf.Do(strconv.FormatInt(accountID, 10), func() (interface{}, error) {
		b, err := s.loadBalances(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := s.opt.Cache.SetBalances(ctx, b, s.opt.CacheTTL); err != nil {
			logger.Warn(ctx, "set balance cache failed", zap.Int64("account", accountID), zap.Error(err))
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Balances), nil
}

func (s *Service) loadBalances(ctx context.Context, accountID int64) (*domain.Balances, error) {
	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	kinds := []domain.Kind{domain.KindCashup, domain.KindOwing, domain.KindDaily, domain.KindMonthly, domain.KindCompounding}
	holders := make([]domain.Holder, 0, len(kinds))
	for _, k := range kinds {
		h := s.newBucket(k, accountID, s.now())
		// 没建过的桶按全零展示
		if _, err := s.repo.GetBucket(ctx, h, accountID); err != nil {
			return nil, err
		}
		holders = append(holders, h)
	}
	return domain.NewBalances(a, holders...), nil
}
