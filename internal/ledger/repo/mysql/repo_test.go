package mysql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/internal/ledger/domain"
	"cashup.com/internal/ledger/ledgertest"
	"cashup.com/pkg/orm"
)

func TestRepo_LockOrCreateBucket(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	acc := &domain.Account{Username: "alice"}
	require.NoError(t, repo.CreateAccount(ctx, acc))

	var firstID int64
	for i := 0; i < 2; i++ {
		err := repo.Transaction(ctx, func(txCtx context.Context) error {
			b := &domain.CashupDeposit{AccountID: acc.ID}
			if err := repo.LockOrCreateBucket(txCtx, b); err != nil {
				return err
			}
			if firstID == 0 {
				firstID = b.ID
			}
			assert.Equal(t, firstID, b.ID)
			return nil
		})
		require.NoError(t, err)
	}

	var got domain.CashupDeposit
	ok, err := repo.GetBucket(ctx, &got, acc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var missing domain.CashUpDaily
	ok, err = repo.GetBucket(ctx, &missing, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepo_SaveHolderVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	acc := &domain.Account{Username: "bob", MainBalance: decimal.NewFromInt(10)}
	require.NoError(t, repo.CreateAccount(ctx, acc))

	stale, err := repo.GetAccount(ctx, acc.ID)
	require.NoError(t, err)

	fresh, err := repo.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	fresh.MainBalance = decimal.NewFromInt(20)
	require.NoError(t, repo.SaveHolder(ctx, fresh))

	stale.MainBalance = decimal.NewFromInt(99)
	err = repo.SaveHolder(ctx, stale)
	assert.True(t, errors.Is(err, domain.ErrConcurrentUpdate))

	got, err := repo.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", got.MainBalance.StringFixed(2))
	assert.Equal(t, int64(1), got.Version)
}

func TestRepo_LockAccountNotFound(t *testing.T) {
	repo := ledgertest.NewRepo(t)
	_, err := repo.LockAccount(context.Background(), 404)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestRepo_FinishWithdrawalOnce(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	w := &domain.WithdrawalRequest{AccountID: 1, Source: domain.SourceCashup, Amount: decimal.NewFromInt(5)}
	require.NoError(t, repo.CreateWithdrawal(ctx, w))

	now := time.Now()
	ok, err := repo.FinishWithdrawal(ctx, w, domain.WithdrawalApproved, 99, now)
	require.NoError(t, err)
	assert.True(t, ok)

	again := &domain.WithdrawalRequest{ID: w.ID}
	ok, err = repo.FinishWithdrawal(ctx, again, domain.WithdrawalRejected, 99, now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.LockWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalApproved, got.Status)
}

func TestRepo_ReferralAwardedOnce(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	code := &domain.ReferralCode{Code: "ABCD1234", CreatorID: 1, IsValid: true}
	require.NoError(t, repo.CreateReferralCode(ctx, code))

	dup := &domain.ReferralCode{Code: "ABCD1234", CreatorID: 2, IsValid: true}
	assert.Error(t, repo.CreateReferralCode(ctx, dup))

	ok, err := repo.MarkReferralAwarded(ctx, code.ID, 2, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkReferralAwarded(ctx, code.ID, 3, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.LockReferralCode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.False(t, got.Redeemable())
}

func TestRepo_ClaimIdempotency(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	rec := &domain.IdempotencyRecord{Scope: "send-money", Key: "k1", RequestHash: "h1"}
	ok, err := repo.ClaimIdempotency(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, repo.SaveIdempotencyResponse(ctx, rec.ID, []byte(`{"success":true}`)))

	ok, err = repo.ClaimIdempotency(ctx, &domain.IdempotencyRecord{Scope: "send-money", Key: "k1", RequestHash: "h2"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.LockIdempotency(ctx, "send-money", "k1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.RequestHash)
	assert.JSONEq(t, `{"success":true}`, string(got.Response))
}

func TestRepo_ListPaged(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.NewRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateTransfer(ctx, &domain.TransferHistory{
			AccountID: 1, Kind: domain.TransferCashup, Amount: decimal.NewFromInt(int64(i + 1)), Verified: true,
		}))
	}
	require.NoError(t, repo.CreateTransfer(ctx, &domain.TransferHistory{AccountID: 2, Kind: domain.TransferOwing, Amount: decimal.NewFromInt(1)}))

	rows, total, err := repo.ListTransfers(ctx, 1, orm.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, rows, 2)
	// 新的在前
	assert.Equal(t, "5.00", rows[0].Amount.StringFixed(2))

	rows, total, err = repo.ListTransfers(ctx, 3, orm.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}
