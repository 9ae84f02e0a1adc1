package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/internal/ledger/accrual"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreditDebit(t *testing.T) {
	tests := []struct {
		name    string
		op      func(h Holder) (FieldChange, error)
		wantErr error
		want    string
	}{
		{"入账", func(h Holder) (FieldChange, error) { return Credit(h, FieldCashupMainBalance, dec("10.005")) }, nil, "110.00"},
		{"扣款", func(h Holder) (FieldChange, error) { return Debit(h, FieldCashupMainBalance, dec("40")) }, nil, "60.00"},
		{"扣光", func(h Holder) (FieldChange, error) { return Debit(h, FieldCashupMainBalance, dec("100")) }, nil, "0.00"},
		{"余额不足", func(h Holder) (FieldChange, error) { return Debit(h, FieldCashupMainBalance, dec("100.01")) }, ErrInsufficientFunds, "100.00"},
		{"金额为零", func(h Holder) (FieldChange, error) { return Credit(h, FieldCashupMainBalance, decimal.Zero) }, ErrInvalidAmount, "100.00"},
		{"负数金额", func(h Holder) (FieldChange, error) { return Debit(h, FieldCashupMainBalance, dec("-1")) }, ErrInvalidAmount, "100.00"},
		{"字段不属于该桶", func(h Holder) (FieldChange, error) { return Credit(h, FieldOwingDPS, dec("1")) }, ErrBucketNotFound, "100.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &CashupDeposit{ID: 7, AccountID: 3, CashupMainBalance: dec("100")}
			c, err := tt.op(b)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err=%v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, KindCashup, c.Kind)
				assert.Equal(t, int64(7), c.HolderID)
				assert.Equal(t, int64(3), c.OwnerID)
				assert.Equal(t, "100.00", c.Prev.StringFixed(2))
			}
			assert.Equal(t, tt.want, b.CashupMainBalance.StringFixed(2))
		})
	}
}

func TestBuildAudit_Routing(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 31, 45, 123, time.UTC)
	changes := []FieldChange{
		{Kind: KindCashup, HolderID: 1, OwnerID: 9, Field: FieldCashupMainBalance, Prev: dec("0"), New: dec("10")},
		{Kind: KindCashup, HolderID: 1, OwnerID: 9, Field: FieldAffiliateProfit, Prev: dec("0"), New: dec("0.5")},
		{Kind: KindOwing, HolderID: 2, OwnerID: 9, Field: FieldOwingDPS, Prev: dec("30"), New: dec("0")},
		{Kind: KindMain, HolderID: 9, OwnerID: 9, Field: FieldMainBalance, Prev: dec("5"), New: dec("25")},
		{Kind: KindDaily, HolderID: 4, OwnerID: 9, Field: FieldDailyProfit, Prev: dec("0"), New: dec("2")},
	}
	rows := BuildAudit(changes, 9, "test", at)

	require.Len(t, rows.CashupDeposit, 1)
	require.Len(t, rows.CashupProfit, 1)
	require.Len(t, rows.OwingProfit, 1)
	require.Len(t, rows.Bucket, 2)
	assert.Equal(t, 5, rows.Len())
	assert.Equal(t, int64(2), rows.OwingProfit[0].OwingDepositID)
	assert.Equal(t, KindDaily, rows.Bucket[1].Kind)
	// 精确到分钟
	assert.Equal(t, time.Date(2026, 10, 19, 10, 31, 0, 0, time.UTC), rows.CashupDeposit[0].ChangedAt)
}

func TestAccrue_CompoundingBucket(t *testing.T) {
	created := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC) // 周一
	b := &CashupDepositMonthlyCompounding{
		ID: 1, AccountID: 2,
		DepositBalance:   dec("1000"),
		DailyProfit:      dec("8"),
		MonthlyProfit:    dec("8"),
		ProfitPercentage: dec("0.20"),
		CreatedAt:        created,
	}
	changes, out := Accrue(b, accrual.DefaultPolicy(), now)
	require.True(t, out.Fired)
	require.True(t, out.Reset)

	assert.Equal(t, "10.00", b.DailyProfit.StringFixed(2))
	// 首次写入，月度累计在加完之后被清零
	assert.Equal(t, "0.00", b.MonthlyProfit.StringFixed(2))
	assert.Equal(t, "2.02", b.CompoundingBalance.StringFixed(2))
	assert.Equal(t, "2.02", b.DailyCompoundingProfit.StringFixed(2))
	assert.Equal(t, "0.00", b.MonthlyCompoundingProfit.StringFixed(2))
	require.NotNil(t, b.LastUpdated)
	require.NotNil(t, b.MonthlyResetDate)
	assert.NotEmpty(t, changes)

	// 窗口内再来一次没有变化
	again, out2 := Accrue(b, accrual.DefaultPolicy(), now.Add(time.Hour))
	assert.Empty(t, again)
	assert.False(t, out2.Changed())
	assert.Equal(t, "10.00", b.DailyProfit.StringFixed(2))
}

func TestCheckoutCharge(t *testing.T) {
	line := func(unit, discount, member string, qty int) Purchase {
		p := Purchase{UnitPrice: dec(unit), DiscountPrice: dec(discount), MemberPrice: dec(member), Quantity: qty}
		p.PriceLine()
		return p
	}
	cart := []Purchase{line("200", "0", "180", 2), line("120", "100", "90", 1)}

	tests := []struct {
		name       string
		cashup     string
		wantCharge string
		wantMember bool
	}{
		{"非会员按原价", "0", "500.00", false},
		{"会员余额覆盖整单", "600", "450.00", true},
		{"刚好覆盖", "500", "450.00", true},
		{"会员余额不够", "499.99", "500.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge, member := CheckoutCharge(cart, dec(tt.cashup))
			assert.Equal(t, tt.wantCharge, charge.StringFixed(2))
			assert.Equal(t, tt.wantMember, member)
		})
	}
}

func TestWithdrawalSource_Spec(t *testing.T) {
	for _, s := range []WithdrawalSource{SourceMain, SourceCashup, SourceDaily, SourceMonthly, SourceCompounding, SourceAffiliate} {
		spec, ok := s.Spec()
		require.True(t, ok, s)
		assert.Equal(t, s != SourceMain, spec.CreditMain, s)
	}
	_, ok := WithdrawalSource("owing").Spec()
	assert.False(t, ok)
	assert.True(t, ValidPayoutMethod("Bkash"))
	assert.False(t, ValidPayoutMethod("paypal"))
}

func TestCashupBuckets_LegacyColumnsNotWritable(t *testing.T) {
	tests := []struct {
		name  string
		h     Holder
		field Field
	}{
		{"cashup 日利润", &CashupDeposit{}, FieldDailyProfit},
		{"cashup 月利润", &CashupDeposit{}, FieldMonthlyProfit},
		{"欠款桶提现", &CashupOwingDeposit{}, FieldWithdraw},
		{"欠款桶日利润", &CashupOwingDeposit{}, FieldDailyProfit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, tt.h.Fields(), tt.field)
			_, err := Credit(tt.h, tt.field, dec("1"))
			assert.ErrorIs(t, err, ErrBucketNotFound)
		})
	}
}
