package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/metrics"
)

type holderKey struct {
	kind    domain.Kind
	account int64
}

// unit 一次账本操作的工作单元。
// 所有桶都经它加锁读取，改动记在内存里，commit 时统一计息、回写、写审计
type unit struct {
	s    *Service
	ctx  context.Context
	meta opMeta
	now  time.Time

	holders map[holderKey]domain.Holder
	order   []holderKey
	dirty   map[holderKey]bool
	changes []domain.FieldChange

	// 本次第一次给 cashup_main_balance 入账的金额，用于推荐佣金
	funded      map[int64]decimal.Decimal
	fundedOrder []int64

	touched  map[int64]struct{}
	events   []Event
	recordID int64
	failKind string
}

func newUnit(s *Service, txCtx context.Context, m opMeta) *unit {
	return &unit{
		s:       s,
		ctx:     txCtx,
		meta:    m,
		now:     s.now(),
		holders: make(map[holderKey]domain.Holder),
		dirty:   make(map[holderKey]bool),
		funded:  make(map[int64]decimal.Decimal),
		touched: make(map[int64]struct{}),
	}
}

func (u *unit) put(k holderKey, h domain.Holder) {
	u.holders[k] = h
	u.order = append(u.order, k)
}

func (u *unit) account(id int64) (*domain.Account, error) {
	k := holderKey{domain.KindMain, id}
	if h, ok := u.holders[k]; ok {
		return h.(*domain.Account), nil
	}
	a, err := u.s.repo.LockAccount(u.ctx, id)
	if err != nil {
		return nil, err
	}
	u.put(k, a)
	return a, nil
}

// lockAccounts 按 id 升序加锁，避免交叉转账死锁
func (u *unit) lockAccounts(ids ...int64) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range sorted {
		if _, err := u.account(id); err != nil {
			return err
		}
	}
	return nil
}

// bucket 取桶（不存在就建），先锁账户再锁桶
func (u *unit) bucket(kind domain.Kind, accountID int64) (domain.Holder, error) {
	if kind == domain.KindMain {
		return u.account(accountID)
	}
	k := holderKey{kind, accountID}
	if h, ok := u.holders[k]; ok {
		return h, nil
	}
	if _, err := u.account(accountID); err != nil {
		return nil, err
	}
	h := u.s.newBucket(kind, accountID, u.now)
	if h == nil {
		return nil, domain.ErrBucketNotFound
	}
	if err := u.s.repo.LockOrCreateBucket(u.ctx, h); err != nil {
		return nil, err
	}
	u.put(k, h)
	return h, nil
}

func (u *unit) cashup(accountID int64) (*domain.CashupDeposit, error) {
	h, err := u.bucket(domain.KindCashup, accountID)
	if err != nil {
		return nil, err
	}
	return h.(*domain.CashupDeposit), nil
}

func (u *unit) owing(accountID int64) (*domain.CashupOwingDeposit, error) {
	h, err := u.bucket(domain.KindOwing, accountID)
	if err != nil {
		return nil, err
	}
	return h.(*domain.CashupOwingDeposit), nil
}

func (u *unit) credit(h domain.Holder, f domain.Field, amount decimal.Decimal) error {
	c, err := domain.Credit(h, f, amount)
	if err != nil {
		return err
	}
	u.record(c)
	if c.Kind == domain.KindCashup && f == domain.FieldCashupMainBalance {
		if _, seen := u.funded[c.OwnerID]; !seen {
			u.funded[c.OwnerID] = amount
			u.fundedOrder = append(u.fundedOrder, c.OwnerID)
		}
	}
	return nil
}

func (u *unit) debit(h domain.Holder, f domain.Field, amount decimal.Decimal) error {
	c, err := domain.Debit(h, f, amount)
	if err != nil {
		return err
	}
	u.record(c)
	return nil
}

// move 同一事务里先扣后加
func (u *unit) move(from domain.Holder, ff domain.Field, to domain.Holder, tf domain.Field, amount decimal.Decimal) error {
	if err := u.debit(from, ff, amount); err != nil {
		return err
	}
	return u.credit(to, tf, amount)
}

func (u *unit) record(c domain.FieldChange) {
	u.changes = append(u.changes, c)
	u.dirty[holderKey{c.Kind, c.OwnerID}] = true
	u.touched[c.OwnerID] = struct{}{}
}

func (u *unit) markDirty(h domain.Holder) {
	u.dirty[holderKey{h.Kind(), h.OwnerID()}] = true
	u.touched[h.OwnerID()] = struct{}{}
}

func (u *unit) emit(op string, accountID int64, amount decimal.Decimal) {
	u.events = append(u.events, Event{
		Op:        op,
		AccountID: accountID,
		Amount:    amount,
		RecordID:  u.recordID,
		RequestID: requestID(u.ctx),
		At:        u.now,
	})
}

// commit 顺序：推荐佣金 -> 计息 -> 会员状态 -> 回写 -> 审计
func (u *unit) commit() error {
	for _, id := range u.fundedOrder {
		if err := u.awardReferral(id, u.funded[id]); err != nil {
			return err
		}
	}

	for _, k := range u.order {
		acc, ok := u.holders[k].(domain.Accruable)
		if !ok {
			continue
		}
		changes, out := domain.Accrue(acc, u.s.opt.Policy, u.now)
		for _, c := range changes {
			u.record(c)
		}
		if out.Changed() {
			u.markDirty(acc)
		}
		if out.Fired {
			metrics.AccrualTotal.WithLabelValues(string(k.kind), "profit").Inc()
			if out.Compound.IsPositive() {
				metrics.AccrualTotal.WithLabelValues(string(k.kind), "compound").Inc()
			}
		}
		if out.Reset {
			metrics.AccrualTotal.WithLabelValues(string(k.kind), "reset").Inc()
		}
	}

	for _, k := range u.order {
		b, ok := u.holders[k].(*domain.CashupDeposit)
		if !ok {
			continue
		}
		a, err := u.account(b.AccountID)
		if err != nil {
			return err
		}
		member := b.CashupMainBalance.IsPositive()
		if a.MembershipStatus != member {
			a.MembershipStatus = member
			u.markDirty(a)
		}
	}

	for _, k := range u.order {
		if !u.dirty[k] {
			continue
		}
		h := u.holders[k]
		switch b := h.(type) {
		case *domain.CashupDeposit:
			b.Touch(u.now)
		case *domain.CashupOwingDeposit:
			b.Touch(u.now)
		}
		if err := u.s.repo.SaveHolder(u.ctx, h); err != nil {
			return err
		}
	}

	rows := domain.BuildAudit(u.changes, u.meta.actor, u.meta.op, u.now)
	if rows.Len() == 0 {
		return nil
	}
	return u.s.repo.AppendAudit(u.ctx, rows)
}

// result 主账户本次涉及到的桶的最新余额
func (u *unit) result() *domain.Result {
	res := &domain.Result{
		Success:     u.failKind == "",
		NewBalances: make(map[string]decimal.Decimal),
		ErrorKind:   u.failKind,
		RecordID:    u.recordID,
	}
	for _, k := range u.order {
		if k.account != u.meta.account {
			continue
		}
		h := u.holders[k]
		for f, v := range domain.Snapshot(h) {
			res.NewBalances[domain.BalanceKey(h.Kind(), f)] = v
		}
	}
	return res
}

// awardReferral 被推荐账户首次入账 cashup 时给推荐人记佣金，一个码只发一次
func (u *unit) awardReferral(accountID int64, funded decimal.Decimal) error {
	a, err := u.account(accountID)
	if err != nil {
		return err
	}
	if a.ReferralCodeUsed == nil {
		return nil
	}
	code, err := u.s.repo.LockReferralCode(u.ctx, *a.ReferralCodeUsed)
	if errors.Is(err, domain.ErrReferralCodeInvalid) {
		return nil
	}
	if err != nil {
		return err
	}
	if !code.Redeemable() || code.CreatorID == accountID {
		return nil
	}
	won, err := u.s.repo.MarkReferralAwarded(u.ctx, code.ID, accountID, u.now)
	if err != nil || !won {
		return err
	}

	commission := domain.Round(funded.Mul(u.s.opt.ReferralRate))
	if !commission.IsPositive() {
		return nil
	}
	ref, err := u.cashup(code.CreatorID)
	if err != nil {
		return err
	}
	if err := u.credit(ref, domain.FieldAffiliateProfit, commission); err != nil {
		return err
	}
	metrics.ReferralAwardTotal.Inc()
	u.emit("referral-award", code.CreatorID, commission)
	return nil
}
