package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

// CartLine 商品价格由上游目录带进来，这里只做快照
type CartLine struct {
	ItemID        int64
	ItemName      string
	Quantity      int
	UnitPrice     decimal.Decimal
	DiscountPrice decimal.Decimal
	MemberPrice   decimal.Decimal
}

func (s *Service) AddToCart(ctx context.Context, accountID int64, in CartLine) (*domain.Result, error) {
	if in.Quantity <= 0 || in.ItemID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid item or quantity")
	}
	if !in.UnitPrice.IsPositive() || in.DiscountPrice.IsNegative() || in.MemberPrice.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	m := opMeta{op: "cart-add", actor: accountID, account: accountID}
	return s.exec(ctx, m, func(u *unit) error {
		if _, err := u.account(accountID); err != nil {
			return err
		}
		p := &domain.Purchase{
			AccountID:     accountID,
			ItemID:        in.ItemID,
			ItemName:      in.ItemName,
			Quantity:      in.Quantity,
			UnitPrice:     domain.Round(in.UnitPrice),
			DiscountPrice: domain.Round(in.DiscountPrice),
			MemberPrice:   domain.Round(in.MemberPrice),
			CreatedAt:     u.now,
		}
		if p.MemberPrice.IsZero() {
			p.MemberPrice = p.UnitPrice
		}
		p.PriceLine()
		if err := u.s.repo.CreatePurchase(u.ctx, p); err != nil {
			return err
		}
		u.recordID = p.ID
		return nil
	})
}

// Checkout 一次性结算购物车所有未确认行
func (s *Service) Checkout(ctx context.Context, accountID int64) (*domain.Result, error) {
	m := opMeta{op: "checkout", actor: accountID, account: accountID}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		lines, err := u.s.repo.LockCart(u.ctx, accountID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		c, err := u.cashup(accountID)
		if err != nil {
			return err
		}

		charge, member := domain.CheckoutCharge(lines, c.CashupMainBalance)
		u.meta.amount = charge
		if charge.IsPositive() {
			if err := u.debit(a, domain.FieldMainBalance, charge); err != nil {
				return err
			}
		}
		for i := range lines {
			p := &lines[i]
			p.ChargedPrice = p.TotalPrice
			if member {
				p.ChargedPrice = p.TotalMembershipPrice
			}
			ok, err := u.s.repo.ConfirmPurchase(u.ctx, p, u.now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrConcurrentUpdate
			}
		}
		u.recordID = lines[len(lines)-1].ID
		u.emit(m.op, accountID, charge)
		return nil
	})
}

type RechargeInput struct {
	Phone    string
	Operator string
	Amount   decimal.Decimal
}

// RequestMobileRecharge 预检余额后建单，完成时才扣款
func (s *Service) RequestMobileRecharge(ctx context.Context, accountID int64, in RechargeInput) (*domain.Result, error) {
	amount, err := amountOf(in.Amount)
	if err != nil {
		return nil, err
	}
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Phone == "" {
		return nil, xerr.New(xerr.RequestParamsError, "phone is required")
	}
	m := opMeta{op: "recharge-request", actor: accountID, account: accountID, amount: amount}
	return s.exec(ctx, m, func(u *unit) error {
		a, err := u.account(accountID)
		if err != nil {
			return err
		}
		if a.MainBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		r := &domain.MobileRecharge{
			AccountID: accountID,
			Phone:     in.Phone,
			Operator:  in.Operator,
			Amount:    amount,
			Status:    domain.RechargePending,
			CreatedAt: u.now,
		}
		if err := u.s.repo.CreateRecharge(u.ctx, r); err != nil {
			return err
		}
		u.recordID = r.ID
		return nil
	})
}

func (s *Service) CompleteMobileRecharge(ctx context.Context, adminID, id int64) (*domain.Result, error) {
	m := opMeta{op: "recharge-complete", actor: adminID, target: id}
	return s.exec(ctx, m, func(u *unit) error {
		r, err := u.s.repo.LockRecharge(u.ctx, id)
		if err != nil {
			return err
		}
		if r.Status != domain.RechargePending {
			return domain.ErrAlreadyProcessed
		}
		u.meta.account, u.meta.amount = r.AccountID, r.Amount
		u.recordID = r.ID

		a, err := u.account(r.AccountID)
		if err != nil {
			return err
		}
		if err := u.debit(a, domain.FieldMainBalance, r.Amount); err != nil {
			return err
		}
		ok, err := u.s.repo.CompleteRecharge(u.ctx, r.ID, adminID, u.now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyProcessed
		}
		u.emit(m.op, r.AccountID, r.Amount)
		return nil
	})
}
