package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 买家账户，main_balance 是唯一可直接消费的余额
type Account struct {
	ID               int64
	Username         string          `gorm:"size:64;uniqueIndex;not null"`
	Name             string          `gorm:"size:128"`
	Phone            string          `gorm:"size:32;index"`
	MainBalance      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MembershipStatus bool            `gorm:"not null;default:false"`
	// 只能写一次
	ReferralCodeUsed *string `gorm:"size:16;index"`
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Account) TableName() string { return "accounts" }

func (a *Account) Kind() Kind      { return KindMain }
func (a *Account) HolderID() int64 { return a.ID }
func (a *Account) OwnerID() int64  { return a.ID }
func (a *Account) Fields() []Field { return []Field{FieldMainBalance} }

func (a *Account) Pocket(f Field) *decimal.Decimal {
	if f == FieldMainBalance {
		return &a.MainBalance
	}
	return nil
}

// CashupDeposit 会员存款桶，cashup_main_balance > 0 即为会员
type CashupDeposit struct {
	ID                int64
	AccountID         int64           `gorm:"uniqueIndex;not null"`
	CashupMainBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	AffiliateProfit   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	AffiliateWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Withdraw          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// 历史列，只保留表结构，账本不读不写，也不在 Fields 里
	DailyProfit         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingProfit   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MonthlyProfit       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LastUpdated         *time.Time
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashupDeposit) TableName() string { return "cashup_deposits" }

func (b *CashupDeposit) Kind() Kind      { return KindCashup }
func (b *CashupDeposit) HolderID() int64 { return b.ID }
func (b *CashupDeposit) OwnerID() int64  { return b.AccountID }

func (b *CashupDeposit) Fields() []Field {
	return []Field{FieldCashupMainBalance, FieldAffiliateProfit, FieldAffiliateWithdraw, FieldWithdraw}
}

func (b *CashupDeposit) Pocket(f Field) *decimal.Decimal {
	switch f {
	case FieldCashupMainBalance:
		return &b.CashupMainBalance
	case FieldAffiliateProfit:
		return &b.AffiliateProfit
	case FieldAffiliateWithdraw:
		return &b.AffiliateWithdraw
	case FieldWithdraw:
		return &b.Withdraw
	}
	return nil
}

// CashupOwingDeposit 待核实的欠款桶
// requested 是暂存额，管理员核实后并入 owing main
type CashupOwingDeposit struct {
	ID               int64
	AccountID        int64           `gorm:"uniqueIndex;not null"`
	RequestedOwing   decimal.Decimal `gorm:"column:requested_cashup_owing_main_balance;type:decimal(12,2);not null;default:0"`
	OwingMainBalance decimal.Decimal `gorm:"column:cashup_owing_main_balance;type:decimal(12,2);not null;default:0"`
	OwingDPS         decimal.Decimal `gorm:"column:cashup_owing_dps;type:decimal(12,2);not null;default:0"`
	// 历史列，同 CashupDeposit
	DailyProfit         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingProfit   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MonthlyProfit       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Withdraw            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Verified            bool            `gorm:"not null;default:false"`
	UpdatedBy           *int64
	LastUpdated         *time.Time
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashupOwingDeposit) TableName() string { return "cashup_owing_deposits" }

func (b *CashupOwingDeposit) Kind() Kind      { return KindOwing }
func (b *CashupOwingDeposit) HolderID() int64 { return b.ID }
func (b *CashupOwingDeposit) OwnerID() int64  { return b.AccountID }

func (b *CashupOwingDeposit) Fields() []Field {
	return []Field{FieldRequestedOwing, FieldOwingMainBalance, FieldOwingDPS}
}

func (b *CashupOwingDeposit) Pocket(f Field) *decimal.Decimal {
	switch f {
	case FieldRequestedOwing:
		return &b.RequestedOwing
	case FieldOwingMainBalance:
		return &b.OwingMainBalance
	case FieldOwingDPS:
		return &b.OwingDPS
	}
	return nil
}

// Touch 记录最后变动时间
func (b *CashupDeposit) Touch(now time.Time)      { b.LastUpdated = &now }
func (b *CashupOwingDeposit) Touch(now time.Time) { b.LastUpdated = &now }
