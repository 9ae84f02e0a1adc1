package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/orm"
)

// 原价合计 500，会员价合计 450
func fillCart(t *testing.T, f *fixture, id int64) {
	t.Helper()
	lines := []CartLine{
		{ItemID: 1, ItemName: "rice", Quantity: 2, UnitPrice: dec("150"), MemberPrice: dec("130")},
		{ItemID: 2, ItemName: "oil", Quantity: 1, UnitPrice: dec("250"), DiscountPrice: dec("200"), MemberPrice: dec("190")},
	}
	for _, l := range lines {
		_, err := f.svc.AddToCart(context.Background(), id, l)
		require.NoError(t, err)
	}
}

func TestCheckout_PriceTier(t *testing.T) {
	tests := []struct {
		name       string
		cashup     string
		wantCharge string
		wantMain   string
	}{
		{"没有 cashup 按原价", "", "500.00", "500.00"},
		{"cashup 覆盖原价按会员价", "600", "450.00", "550.00"},
		{"cashup 不够原价仍按原价", "499.99", "500.00", "500.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			id := f.register(t, "shopper", "")
			f.fund(t, id, "1000")
			if tt.cashup != "" {
				f.fund(t, id, tt.cashup)
				_, err := f.svc.TransferToCashup(ctx, id, dec(tt.cashup))
				require.NoError(t, err)
			}
			fillCart(t, f, id)

			res, err := f.svc.Checkout(ctx, id)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantMain, res.NewBalances["main.main_balance"].StringFixed(2))

			done, total, err := f.repo.ListPurchases(ctx, id, true, orm.Page{})
			require.NoError(t, err)
			assert.EqualValues(t, 2, total)
			charged := dec("0")
			for _, p := range done {
				assert.True(t, p.Paid)
				charged = charged.Add(p.ChargedPrice)
			}
			assert.Equal(t, tt.wantCharge, charged.StringFixed(2))

			_, err = f.svc.Checkout(ctx, id)
			assert.True(t, errors.Is(err, domain.ErrEmptyCart))
		})
	}
}

func TestCheckout_InsufficientLeavesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "broke", "")
	f.fund(t, id, "100")
	fillCart(t, f, id)

	_, err := f.svc.Checkout(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	_, open, err := f.repo.ListPurchases(ctx, id, false, orm.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, open)
	assert.Equal(t, "100.00", f.balances(t, id).MainBalance.StringFixed(2))
}

func TestMobileRecharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "phone", "")
	f.fund(t, id, "50")

	_, err := f.svc.RequestMobileRecharge(ctx, id, RechargeInput{Phone: "01711111111", Operator: "GP", Amount: dec("80")})
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	res, err := f.svc.RequestMobileRecharge(ctx, id, RechargeInput{Phone: "01711111111", Operator: "GP", Amount: dec("30")})
	require.NoError(t, err)
	rid := res.RecordID

	res, err = f.svc.CompleteMobileRecharge(ctx, adminID, rid)
	require.NoError(t, err)
	assert.Equal(t, "20.00", res.NewBalances["main.main_balance"].StringFixed(2))

	_, err = f.svc.CompleteMobileRecharge(ctx, adminID, rid)
	assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))

	list, _, err := f.repo.ListRecharges(ctx, id, orm.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.RechargeCompleted, list[0].Status)
}
