// Package accrual 计算利润桶的惰性计息，不做任何 IO
//
// 每次写桶时调用 Evaluate：
//  1. 距上次计息满一个日窗口且今天不是休息日，按 deposit × pct/100 记一次日利润
//  2. 复利桶在第 1 步触发且已过成熟期时，再按 (deposit + daily_profit) × pct/100 复利
//  3. 距上次月度清零满一个月窗口，月度累计清零
//
// 窗口内重复调用不会产生新的变化。
package accrual

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Policy struct {
	RestDays       []time.Weekday
	DailyWindow    time.Duration
	MaturityWindow time.Duration
	ResetWindow    time.Duration
	// 判断休息日用的时区
	Location *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		RestDays:       []time.Weekday{time.Friday, time.Saturday},
		DailyWindow:    24 * time.Hour,
		MaturityWindow: 30 * 24 * time.Hour,
		ResetWindow:    30 * 24 * time.Hour,
		Location:       time.UTC,
	}
}

// Input 计息前的桶状态
type Input struct {
	Deposit     decimal.Decimal
	DailyProfit decimal.Decimal
	// 0.20 表示 0.20%
	Percentage       decimal.Decimal
	LastUpdated      *time.Time
	MonthlyResetDate *time.Time
	CreatedAt        time.Time
	Compounding      bool
	HasMonthly       bool
}

// Outcome 本次应当应用的变化
type Outcome struct {
	Fired    bool
	RestDay  bool
	Profit   decimal.Decimal
	Compound decimal.Decimal
	Reset    bool
	// 新的时间戳，未变化时为 nil
	LastUpdated      *time.Time
	MonthlyResetDate *time.Time
}

// Changed 是否需要回写
func (o Outcome) Changed() bool {
	return o.LastUpdated != nil || o.MonthlyResetDate != nil
}

func (p Policy) Evaluate(in Input, now time.Time) Outcome {
	p = p.withDefaults()
	out := Outcome{Profit: decimal.Zero, Compound: decimal.Zero}

	if in.LastUpdated == nil || now.Sub(*in.LastUpdated) >= p.DailyWindow {
		if p.isRestDay(now) {
			out.RestDay = true
		} else {
			rate := in.Percentage.Div(hundred)
			out.Fired = true
			out.Profit = in.Deposit.Mul(rate).RoundBank(2)
			ts := now
			out.LastUpdated = &ts
			if in.Compounding && !in.CreatedAt.IsZero() && now.Sub(in.CreatedAt) >= p.MaturityWindow {
				base := in.Deposit.Add(in.DailyProfit).Add(out.Profit)
				out.Compound = base.Mul(rate).RoundBank(2)
			}
		}
	}

	if in.HasMonthly && (in.MonthlyResetDate == nil || now.Sub(*in.MonthlyResetDate) >= p.ResetWindow) {
		out.Reset = true
		ts := now
		out.MonthlyResetDate = &ts
	}
	return out
}

func (p Policy) isRestDay(now time.Time) bool {
	wd := now.In(p.Location).Weekday()
	for _, d := range p.RestDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.DailyWindow <= 0 {
		p.DailyWindow = def.DailyWindow
	}
	if p.MaturityWindow <= 0 {
		p.MaturityWindow = def.MaturityWindow
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = def.ResetWindow
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}
