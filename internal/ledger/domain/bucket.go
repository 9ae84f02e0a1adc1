package domain

import (
	"github.com/shopspring/decimal"
)

// Kind 余额桶类型
type Kind string

const (
	KindMain        Kind = "main"
	KindCashup      Kind = "cashup"
	KindOwing       Kind = "owing"
	KindDaily       Kind = "daily"
	KindMonthly     Kind = "monthly"
	KindCompounding Kind = "compounding"
)

// ProfitKinds 会计息的三个桶
var ProfitKinds = []Kind{KindDaily, KindMonthly, KindCompounding}

func (k Kind) IsProfit() bool {
	return k == KindDaily || k == KindMonthly || k == KindCompounding
}

// Field 桶里的一个金额字段，同时也是数据库列名
type Field string

const (
	FieldMainBalance Field = "main_balance"

	FieldCashupMainBalance Field = "cashup_main_balance"
	FieldAffiliateProfit   Field = "affiliate_profit"
	FieldAffiliateWithdraw Field = "affiliate_withdraw"
	FieldWithdraw          Field = "withdraw"

	FieldRequestedOwing   Field = "requested_cashup_owing_main_balance"
	FieldOwingMainBalance Field = "cashup_owing_main_balance"
	FieldOwingDPS         Field = "cashup_owing_dps"

	FieldDepositBalance            Field = "deposit_balance"
	FieldDailyProfit               Field = "daily_profit"
	FieldMonthlyProfit             Field = "monthly_profit"
	FieldDailyProfitWithdraw       Field = "daily_profit_withdraw"
	FieldDepositProfitWithdraw     Field = "deposit_profit_withdraw"
	FieldCompoundingBalance        Field = "compounding_balance"
	FieldDailyCompoundingProfit    Field = "daily_compounding_profit"
	FieldMonthlyCompoundingProfit  Field = "monthly_compounding_profit"
	FieldCompoundingProfitWithdraw Field = "compounding_profit_withdraw"
)

// Holder 持有金额字段的实体：账户本身或者某个桶
type Holder interface {
	Kind() Kind
	HolderID() int64
	OwnerID() int64
	// Pocket 返回字段地址，不属于该桶返回 nil
	Pocket(f Field) *decimal.Decimal
	Fields() []Field
	CurrentVersion() int64
	BumpVersion()
}

// Versioned 乐观锁版本号，保存时 where version = 旧值
type Versioned struct {
	Version int64 `gorm:"not null;default:0"`
}

func (v *Versioned) CurrentVersion() int64 { return v.Version }
func (v *Versioned) BumpVersion()          { v.Version++ }

// FieldChange 一次字段变化，审计日志的原始材料
type FieldChange struct {
	Kind     Kind
	HolderID int64
	OwnerID  int64
	Field    Field
	Prev     decimal.Decimal
	New      decimal.Decimal
}

func (c FieldChange) Delta() decimal.Decimal { return c.New.Sub(c.Prev) }

// Round 存储边界统一保留两位小数
func Round(d decimal.Decimal) decimal.Decimal { return d.RoundBank(2) }

// Credit 给字段加钱
func Credit(h Holder, f Field, amount decimal.Decimal) (FieldChange, error) {
	if !amount.IsPositive() {
		return FieldChange{}, ErrInvalidAmount
	}
	p := h.Pocket(f)
	if p == nil {
		return FieldChange{}, ErrBucketNotFound
	}
	prev := *p
	*p = Round(prev.Add(amount))
	return change(h, f, prev, *p), nil
}

// Debit 扣钱，余额不够直接拒绝，不做任何修改
func Debit(h Holder, f Field, amount decimal.Decimal) (FieldChange, error) {
	if !amount.IsPositive() {
		return FieldChange{}, ErrInvalidAmount
	}
	p := h.Pocket(f)
	if p == nil {
		return FieldChange{}, ErrBucketNotFound
	}
	if p.LessThan(amount) {
		return FieldChange{}, ErrInsufficientFunds
	}
	prev := *p
	*p = Round(prev.Sub(amount))
	return change(h, f, prev, *p), nil
}

// Set 直接改写字段（计息/月度清零用），没变化返回 false
func Set(h Holder, f Field, value decimal.Decimal) (FieldChange, bool) {
	p := h.Pocket(f)
	if p == nil {
		return FieldChange{}, false
	}
	value = Round(value)
	if p.Equal(value) {
		return FieldChange{}, false
	}
	prev := *p
	*p = value
	return change(h, f, prev, value), true
}

// Snapshot 桶内全部字段的当前值
func Snapshot(h Holder) map[Field]decimal.Decimal {
	out := make(map[Field]decimal.Decimal, len(h.Fields()))
	for _, f := range h.Fields() {
		if p := h.Pocket(f); p != nil {
			out[f] = *p
		}
	}
	return out
}

func change(h Holder, f Field, prev, next decimal.Decimal) FieldChange {
	return FieldChange{
		Kind:     h.Kind(),
		HolderID: h.HolderID(),
		OwnerID:  h.OwnerID(),
		Field:    f,
		Prev:     prev,
		New:      next,
	}
}
