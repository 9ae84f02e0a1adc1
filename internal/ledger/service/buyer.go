package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

type BuyerPayment struct {
	TransactionID string
	PhoneNumber   string
	Method        string
	Amount        decimal.Decimal
}

// SubmitBuyerTransaction 买家登记一笔外部付款，等管理员核实
func (s *Service) SubmitBuyerTransaction(ctx context.Context, accountID int64, in BuyerPayment) (*domain.Result, error) {
	amount, err := amountOf(in.Amount)
	if err != nil {
		return nil, err
	}
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.TransactionID == "" {
		return nil, xerr.New(xerr.RequestParamsError, "transaction id is required")
	}
	if !domain.ValidPayoutMethod(in.Method) {
		return nil, xerr.New(xerr.RequestParamsError, "unsupported payment method")
	}
	m := opMeta{op: "buyer-submit", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		if _, err := u.account(accountID); err != nil {
			return err
		}
		t := &domain.BuyerTransaction{
			AccountID:     accountID,
			TransactionID: in.TransactionID,
			PhoneNumber:   in.PhoneNumber,
			Amount:        amount,
			Method:        strings.ToLower(in.Method),
			CreatedAt:     u.now,
		}
		if err := u.s.repo.CreateBuyerTransaction(u.ctx, t); err != nil {
			return err
		}
		u.recordID = t.ID
		return nil
	})
}

// VerifyBuyerTransaction 管理员核实付款，只生效一次。
// 还款顺序：先清 DPS（转入 cashup），再冲欠款主余额，剩余进主余额
func (s *Service) VerifyBuyerTransaction(ctx context.Context, adminID, txID int64) (*domain.Result, error) {
	m := opMeta{op: "buyer-verify", actor: adminID, target: txID}
	return s.exec(ctx, m, func(u *unit) error {
		t, err := u.s.repo.LockBuyerTransaction(u.ctx, txID)
		if err != nil {
			return err
		}
		if t.Verified {
			return domain.ErrAlreadyProcessed
		}
		u.meta.account = t.AccountID
		u.meta.amount = t.Amount
		u.recordID = t.ID

		if err := u.repay(t.AccountID, t.Amount); err != nil {
			return err
		}
		won, err := u.s.repo.MarkBuyerTransactionVerified(u.ctx, t.ID, adminID, u.now)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}
		u.emit(m.op, t.AccountID, t.Amount)
		return nil
	})
}

func (u *unit) repay(accountID int64, amount decimal.Decimal) error {
	o, err := u.owing(accountID)
	if err != nil {
		return err
	}
	left := amount

	if dps := decimal.Min(left, o.OwingDPS); dps.IsPositive() {
		c, err := u.cashup(accountID)
		if err != nil {
			return err
		}
		if err := u.move(o, domain.FieldOwingDPS, c, domain.FieldCashupMainBalance, dps); err != nil {
			return err
		}
		left = left.Sub(dps)
	}

	if debt := decimal.Min(left, o.OwingMainBalance); debt.IsPositive() {
		if err := u.debit(o, domain.FieldOwingMainBalance, debt); err != nil {
			return err
		}
		left = left.Sub(debt)
	}

	if left.IsPositive() {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		return u.credit(a, domain.FieldMainBalance, left)
	}
	return nil
}
