package service

import (
	"context"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
)

// amountOf 金额统一两位小数，非正数直接拒绝
func amountOf(v decimal.Decimal) (decimal.Decimal, error) {
	v = domain.Round(v)
	if !v.IsPositive() {
		return v, domain.ErrInvalidAmount
	}
	return v, nil
}

// DepositMain 外部资金入主余额
func (s *Service) DepositMain(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Result, error) {
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "deposit-main", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		if err := u.credit(a, domain.FieldMainBalance, amount); err != nil {
			return err
		}
		u.emit(m.op, accountID, amount)
		return nil
	})
}

// DepositToBucket 主余额转入利润桶本金，计息在同一次写入里跑
func (s *Service) DepositToBucket(ctx context.Context, accountID int64, kind domain.Kind, amount decimal.Decimal) (*domain.Result, error) {
	if !kind.IsProfit() {
		return nil, domain.ErrBucketNotFound
	}
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "deposit-" + string(kind), actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		b, err := u.bucket(kind, accountID)
		if err != nil {
			return err
		}
		if err := u.move(a, domain.FieldMainBalance, b, domain.FieldDepositBalance, amount); err != nil {
			return err
		}
		u.recordID = b.HolderID()
		u.emit(m.op, accountID, amount)
		return nil
	})
}

func (s *Service) TransferToCashup(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Result, error) {
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "transfer-cashup", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		c, err := u.cashup(accountID)
		if err != nil {
			return err
		}
		if err := u.move(a, domain.FieldMainBalance, c, domain.FieldCashupMainBalance, amount); err != nil {
			return err
		}
		return u.transferRecord(accountID, domain.TransferCashup, amount, true, nil)
	})
}

// TransferCashupToMain cashup 退回主余额
func (s *Service) TransferCashupToMain(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Result, error) {
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "transfer-cashup-to-main", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		c, err := u.cashup(accountID)
		if err != nil {
			return err
		}
		if err := u.move(c, domain.FieldCashupMainBalance, a, domain.FieldMainBalance, amount); err != nil {
			return err
		}
		return u.transferRecord(accountID, domain.TransferCashupToMain, amount, true, nil)
	})
}

// TransferToOwing 申请欠款额度，只记到 requested，管理员核实后才可用
func (s *Service) TransferToOwing(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Result, error) {
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "transfer-owing", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		o, err := u.owing(accountID)
		if err != nil {
			return err
		}
		if err := u.credit(o, domain.FieldRequestedOwing, amount); err != nil {
			return err
		}
		if o.Verified {
			o.Verified = false
		}
		id := o.ID
		return u.transferRecord(accountID, domain.TransferOwing, amount, false, &id)
	})
}

func (s *Service) TransferOwingToDPS(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Result, error) {
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "transfer-owing-dps", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		o, err := u.owing(accountID)
		if err != nil {
			return err
		}
		if err := u.move(o, domain.FieldOwingMainBalance, o, domain.FieldOwingDPS, amount); err != nil {
			return err
		}
		id := o.ID
		return u.transferRecord(accountID, domain.TransferOwingDPS, amount, true, &id)
	})
}

// VerifyOwing 管理员核实欠款申请：requested 并入欠款主余额并清零，关联划转记录置为已核实
func (s *Service) VerifyOwing(ctx context.Context, adminID, accountID int64) (*domain.Result, error) {
	m := opMeta{op: "verify-owing", actor: adminID, account: accountID}
	return s.exec(ctx, m, func(u *unit) error {
		o, err := u.owing(accountID)
		if err != nil {
			return err
		}
		requested := o.RequestedOwing
		if !requested.IsPositive() {
			return domain.ErrAlreadyProcessed
		}
		if err := u.move(o, domain.FieldRequestedOwing, o, domain.FieldOwingMainBalance, requested); err != nil {
			return err
		}
		o.Verified = true
		o.UpdatedBy = &adminID
		if _, err := u.s.repo.VerifyTransfers(u.ctx, o.ID); err != nil {
			return err
		}
		u.recordID = o.ID
		u.emit(m.op, accountID, requested)
		return nil
	})
}

func (u *unit) transferRecord(accountID int64, kind domain.TransferKind, amount decimal.Decimal, verified bool, owingID *int64) error {
	t := &domain.TransferHistory{
		AccountID:      accountID,
		Kind:           kind,
		Amount:         amount,
		Verified:       verified,
		OwingDepositID: owingID,
		CreatedAt:      u.now,
	}
	if err := u.s.repo.CreateTransfer(u.ctx, t); err != nil {
		return err
	}
	u.recordID = t.ID
	u.emit("transfer-"+string(kind), accountID, amount)
	return nil
}

// SendMoney 账户间转账，两边主余额同一事务
func (s *Service) SendMoney(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*domain.Result, error) {
	if senderID == recipientID {
		return nil, domain.ErrSelfTransfer
	}
	amount, err := amountOf(amount)
	if err != nil {
		return nil, err
	}
	m := opMeta{op: "send-money", actor: senderID, account: senderID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		if err := u.lockAccounts(senderID, recipientID); err != nil {
			return err
		}
		from, _ := u.account(senderID)
		to, _ := u.account(recipientID)
		if err := u.move(from, domain.FieldMainBalance, to, domain.FieldMainBalance, amount); err != nil {
			return err
		}
		t := &domain.Transaction{
			SenderID:    senderID,
			RecipientID: recipientID,
			Amount:      amount,
			Status:      domain.TransactionCompleted,
			CreatedAt:   u.now,
		}
		if err := u.s.repo.CreateTransaction(u.ctx, t); err != nil {
			return err
		}
		u.recordID = t.ID
		u.emit(m.op, senderID, amount)
		u.emit("receive-money", recipientID, amount)
		return nil
	})
}
