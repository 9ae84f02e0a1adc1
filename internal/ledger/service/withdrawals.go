package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/xerr"
	"cashup.com/pkg/xredis"
)

type WithdrawalInput struct {
	Source domain.WithdrawalSource
	Amount decimal.Decimal
	Method string
	Number string
}

// RequestWithdrawal 建一笔待审批提现。余额在这里只做预检，审批时还会再查
func (s *Service) RequestWithdrawal(ctx context.Context, accountID int64, in WithdrawalInput) (*domain.Result, error) {
	rule, ok := in.Source.Spec()
	if !ok {
		return nil, xerr.New(xerr.RequestParamsError, "unknown withdrawal source")
	}
	amount, err := amountOf(in.Amount)
	if err != nil {
		return nil, err
	}
	if in.Source == domain.SourceMain {
		if !domain.ValidPayoutMethod(in.Method) || strings.TrimSpace(in.Number) == "" {
			return nil, xerr.New(xerr.RequestParamsError, "payout method and number are required")
		}
	}

	m := opMeta{op: "withdraw-request", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		h, err := u.bucket(rule.Kind, accountID)
		if err != nil {
			return err
		}
		if h.Pocket(rule.Field).LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		w := &domain.WithdrawalRequest{
			AccountID: accountID,
			Source:    in.Source,
			Amount:    amount,
			Method:    strings.ToLower(in.Method),
			Number:    strings.TrimSpace(in.Number),
			Status:    domain.WithdrawalPending,
		}
		if err := u.s.repo.CreateWithdrawal(u.ctx, w); err != nil {
			return err
		}
		u.recordID = w.ID
		u.emit(m.op, accountID, amount)
		return nil
	})
}

// ApproveWithdrawal 审批通过。先拿分布式锁，事务里再锁行重查余额；
// 余额不足时单据转为 rejected 并返回 success=false
func (s *Service) ApproveWithdrawal(ctx context.Context, adminID, id int64) (*domain.Result, error) {
	var res *domain.Result
	err := s.opt.Locker.WithLock(ctx, withdrawalLockKey(id), func() error {
		var err error
		res, err = s.approve(ctx, adminID, id)
		return err
	})
	if errors.Is(err, xredis.ErrLockNotAcquired) {
		return &domain.Result{ErrorKind: xerr.KindOf(xerr.ApprovalRace)}, domain.ErrApprovalRace
	}
	return res, err
}

func (s *Service) approve(ctx context.Context, adminID, id int64) (*domain.Result, error) {
	m := opMeta{op: "withdraw-approve", actor: adminID, target: id}
	return s.exec(ctx, m, func(u *unit) error {
		w, err := u.pendingWithdrawal(id)
		if err != nil {
			return err
		}
		rule, _ := w.Source.Spec()

		h, err := u.bucket(rule.Kind, w.AccountID)
		if err != nil {
			return err
		}
		if h.Pocket(rule.Field).LessThan(w.Amount) {
			w.Reason = "insufficient funds"
			if err := u.finishWithdrawal(w, domain.WithdrawalRejected); err != nil {
				return err
			}
			u.failKind = xerr.KindOf(xerr.InsufficientFunds)
			return nil
		}

		if err := u.debit(h, rule.Field, w.Amount); err != nil {
			return err
		}
		if rule.Counter != "" {
			if err := u.credit(h, rule.Counter, w.Amount); err != nil {
				return err
			}
		}
		if rule.CreditMain {
			a, err := u.account(w.AccountID)
			if err != nil {
				return err
			}
			if err := u.credit(a, domain.FieldMainBalance, w.Amount); err != nil {
				return err
			}
		}
		if err := u.finishWithdrawal(w, domain.WithdrawalApproved); err != nil {
			return err
		}
		u.emit(m.op, w.AccountID, w.Amount)
		return nil
	})
}

// RejectWithdrawal 人工驳回，不动余额
func (s *Service) RejectWithdrawal(ctx context.Context, adminID, id int64, reason string) (*domain.Result, error) {
	m := opMeta{op: "withdraw-reject", actor: adminID, target: id}
	return s.exec(ctx, m, func(u *unit) error {
		w, err := u.pendingWithdrawal(id)
		if err != nil {
			return err
		}
		w.Reason = reason
		if err := u.finishWithdrawal(w, domain.WithdrawalRejected); err != nil {
			return err
		}
		u.emit(m.op, w.AccountID, w.Amount)
		return nil
	})
}

func (u *unit) pendingWithdrawal(id int64) (*domain.WithdrawalRequest, error) {
	w, err := u.s.repo.LockWithdrawal(u.ctx, id)
	if err != nil {
		return nil, err
	}
	if w.IsTerminal() {
		return nil, domain.ErrAlreadyProcessed
	}
	u.meta.account = w.AccountID
	u.meta.amount = w.Amount
	u.recordID = w.ID
	if _, err := u.account(w.AccountID); err != nil {
		return nil, err
	}
	return w, nil
}

func (u *unit) finishWithdrawal(w *domain.WithdrawalRequest, status domain.WithdrawalStatus) error {
	won, err := u.s.repo.FinishWithdrawal(u.ctx, w, status, u.meta.actor, u.now)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrApprovalRace
	}
	metrics.WithdrawalDecisionTotal.WithLabelValues(string(w.Source), status.String()).Inc()
	return nil
}
