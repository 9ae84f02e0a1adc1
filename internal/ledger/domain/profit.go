package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/accrual"
)

// CashUpDaily 日利润桶
type CashUpDaily struct {
	ID                  int64
	AccountID           int64           `gorm:"uniqueIndex;not null"`
	DepositBalance      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DailyProfit         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ProfitPercentage    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.20"`
	DailyProfitWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LastUpdated         *time.Time
	MonthlyResetDate    *time.Time
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashUpDaily) TableName() string { return "cashup_dailies" }

func (b *CashUpDaily) Kind() Kind      { return KindDaily }
func (b *CashUpDaily) HolderID() int64 { return b.ID }
func (b *CashUpDaily) OwnerID() int64  { return b.AccountID }

func (b *CashUpDaily) Fields() []Field {
	return []Field{FieldDepositBalance, FieldDailyProfit, FieldDailyProfitWithdraw}
}

func (b *CashUpDaily) Pocket(f Field) *decimal.Decimal {
	switch f {
	case FieldDepositBalance:
		return &b.DepositBalance
	case FieldDailyProfit:
		return &b.DailyProfit
	case FieldDailyProfitWithdraw:
		return &b.DailyProfitWithdraw
	}
	return nil
}

func (b *CashUpDaily) Accrual() Pockets {
	return Pockets{
		Percentage:       b.ProfitPercentage,
		LastUpdated:      &b.LastUpdated,
		MonthlyResetDate: &b.MonthlyResetDate,
		CreatedAt:        b.CreatedAt,
	}
}

// CashupMonthly 月利润桶
type CashupMonthly struct {
	ID                    int64
	AccountID             int64           `gorm:"uniqueIndex;not null"`
	DepositBalance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DailyProfit           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MonthlyProfit         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DepositProfitWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ProfitPercentage      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.20"`
	LastUpdated           *time.Time
	MonthlyResetDate      *time.Time
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashupMonthly) TableName() string { return "cashup_monthlies" }

func (b *CashupMonthly) Kind() Kind      { return KindMonthly }
func (b *CashupMonthly) HolderID() int64 { return b.ID }
func (b *CashupMonthly) OwnerID() int64  { return b.AccountID }

func (b *CashupMonthly) Fields() []Field {
	return []Field{FieldDepositBalance, FieldDailyProfit, FieldMonthlyProfit, FieldDepositProfitWithdraw}
}

func (b *CashupMonthly) Pocket(f Field) *decimal.Decimal {
	switch f {
	case FieldDepositBalance:
		return &b.DepositBalance
	case FieldDailyProfit:
		return &b.DailyProfit
	case FieldMonthlyProfit:
		return &b.MonthlyProfit
	case FieldDepositProfitWithdraw:
		return &b.DepositProfitWithdraw
	}
	return nil
}

func (b *CashupMonthly) Accrual() Pockets {
	return Pockets{
		Monthly:          true,
		Percentage:       b.ProfitPercentage,
		LastUpdated:      &b.LastUpdated,
		MonthlyResetDate: &b.MonthlyResetDate,
		CreatedAt:        b.CreatedAt,
	}
}

// CashupDepositMonthlyCompounding 复利桶，成熟后按本金加日利润复利
type CashupDepositMonthlyCompounding struct {
	ID                        int64
	AccountID                 int64           `gorm:"uniqueIndex;not null"`
	DepositBalance            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DailyProfit               decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MonthlyProfit             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingBalance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DailyCompoundingProfit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MonthlyCompoundingProfit  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ProfitPercentage          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.20"`
	DepositProfitWithdraw     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CompoundingProfitWithdraw decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LastUpdated               *time.Time
	MonthlyResetDate          *time.Time
	Versioned
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CashupDepositMonthlyCompounding) TableName() string { return "cashup_compoundings" }

func (b *CashupDepositMonthlyCompounding) Kind() Kind      { return KindCompounding }
func (b *CashupDepositMonthlyCompounding) HolderID() int64 { return b.ID }
func (b *CashupDepositMonthlyCompounding) OwnerID() int64  { return b.AccountID }

func (b *CashupDepositMonthlyCompounding) Fields() []Field {
	return []Field{FieldDepositBalance, FieldDailyProfit, FieldMonthlyProfit, FieldCompoundingBalance,
		FieldDailyCompoundingProfit, FieldMonthlyCompoundingProfit, FieldDepositProfitWithdraw, FieldCompoundingProfitWithdraw}
}

func (b *CashupDepositMonthlyCompounding) Pocket(f Field) *decimal.Decimal {
	switch f {
	case FieldDepositBalance:
		return &b.DepositBalance
	case FieldDailyProfit:
		return &b.DailyProfit
	case FieldMonthlyProfit:
		return &b.MonthlyProfit
	case FieldCompoundingBalance:
		return &b.CompoundingBalance
	case FieldDailyCompoundingProfit:
		return &b.DailyCompoundingProfit
	case FieldMonthlyCompoundingProfit:
		return &b.MonthlyCompoundingProfit
	case FieldDepositProfitWithdraw:
		return &b.DepositProfitWithdraw
	case FieldCompoundingProfitWithdraw:
		return &b.CompoundingProfitWithdraw
	}
	return nil
}

func (b *CashupDepositMonthlyCompounding) Accrual() Pockets {
	return Pockets{
		Monthly:          true,
		Compounding:      true,
		Percentage:       b.ProfitPercentage,
		LastUpdated:      &b.LastUpdated,
		MonthlyResetDate: &b.MonthlyResetDate,
		CreatedAt:        b.CreatedAt,
	}
}

// Pockets 计息需要的状态，金额字段通过 Holder.Pocket 访问
type Pockets struct {
	Monthly          bool
	Compounding      bool
	Percentage       decimal.Decimal
	LastUpdated      **time.Time
	MonthlyResetDate **time.Time
	CreatedAt        time.Time
}

// Accruable 会计息的桶
type Accruable interface {
	Holder
	Accrual() Pockets
}

// Accrue 对桶执行一次计息，返回字段变化和是否需要回写
func Accrue(h Accruable, p accrual.Policy, now time.Time) ([]FieldChange, accrual.Outcome) {
	pk := h.Accrual()
	out := p.Evaluate(accrual.Input{
		Deposit:          *h.Pocket(FieldDepositBalance),
		DailyProfit:      *h.Pocket(FieldDailyProfit),
		Percentage:       pk.Percentage,
		LastUpdated:      *pk.LastUpdated,
		MonthlyResetDate: *pk.MonthlyResetDate,
		CreatedAt:        pk.CreatedAt,
		Compounding:      pk.Compounding,
		HasMonthly:       pk.Monthly,
	}, now)

	var changes []FieldChange
	add := func(f Field, amt decimal.Decimal) {
		if !amt.IsPositive() {
			return
		}
		if c, err := Credit(h, f, amt); err == nil {
			changes = append(changes, c)
		}
	}
	if out.Fired {
		add(FieldDailyProfit, out.Profit)
		if pk.Monthly {
			add(FieldMonthlyProfit, out.Profit)
		}
		if pk.Compounding {
			add(FieldCompoundingBalance, out.Compound)
			add(FieldMonthlyCompoundingProfit, out.Compound)
			if c, ok := Set(h, FieldDailyCompoundingProfit, out.Compound); ok {
				changes = append(changes, c)
			}
		}
		*pk.LastUpdated = out.LastUpdated
	}
	// 先加后清，当天的日利润不受影响
	if out.Reset {
		for _, f := range []Field{FieldMonthlyProfit, FieldMonthlyCompoundingProfit} {
			if c, ok := Set(h, f, decimal.Zero); ok {
				changes = append(changes, c)
			}
		}
		*pk.MonthlyResetDate = out.MonthlyResetDate
	}
	return changes, out
}
