package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/internal/ledger/domain"
	"cashup.com/internal/ledger/ledgertest"
	"cashup.com/internal/ledger/repo/mysql"
	"cashup.com/pkg/orm"
	"cashup.com/pkg/xerr"
)

const adminID = 9000

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Op)
	}
	return out
}

type fixture struct {
	svc  *Service
	repo *mysql.Repo
	pub  *recordingPublisher

	mu  sync.Mutex
	now time.Time
}

// 2026-10-19 是周一
var monday = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{repo: ledgertest.NewRepo(t), pub: &recordingPublisher{}, now: monday}
	opt := Options{Publisher: f.pub, Clock: f.clock}
	for _, o := range opts {
		o(&opt)
	}
	f.svc = New(f.repo, opt)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) register(t *testing.T, username, code string) int64 {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Username: username, Name: username, ReferralCode: code})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.RecordID
}

func (f *fixture) fund(t *testing.T, id int64, amount string) {
	t.Helper()
	_, err := f.svc.DepositMain(context.Background(), id, dec(amount))
	require.NoError(t, err)
}

func (f *fixture) balances(t *testing.T, id int64) *domain.Balances {
	t.Helper()
	b, err := f.svc.loadBalances(context.Background(), id)
	require.NoError(t, err)
	return b
}

func bucketValue(b *domain.Balances, k domain.Kind, field domain.Field) string {
	return b.Buckets[k][field].StringFixed(2)
}

func TestRegister_CreatesBuckets(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "alice", "")

	b := f.balances(t, id)
	assert.Equal(t, "0.00", b.MainBalance.StringFixed(2))
	assert.False(t, b.MembershipStatus)
	assert.Equal(t, "0.00", bucketValue(b, domain.KindCashup, domain.FieldCashupMainBalance))
	assert.Equal(t, "0.00", bucketValue(b, domain.KindOwing, domain.FieldOwingMainBalance))

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice"})
	assert.Equal(t, 400, xerr.CodeOf(err))
	assert.Contains(t, f.pub.ops(), "register")
}

func TestTransfer_CashupRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "bob", "")
	f.fund(t, id, "1000")

	res, err := f.svc.TransferToCashup(ctx, id, dec("300"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "700.00", res.NewBalances["main.main_balance"].StringFixed(2))
	assert.Equal(t, "300.00", res.NewBalances["cashup.cashup_main_balance"].StringFixed(2))
	assert.True(t, f.balances(t, id).MembershipStatus)

	_, err = f.svc.TransferCashupToMain(ctx, id, dec("300"))
	require.NoError(t, err)

	b := f.balances(t, id)
	assert.Equal(t, "1000.00", b.MainBalance.StringFixed(2))
	assert.Equal(t, "0.00", bucketValue(b, domain.KindCashup, domain.FieldCashupMainBalance))
	assert.False(t, b.MembershipStatus)

	hist, total, err := f.repo.ListCashupDepositHistory(ctx, id, orm.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "300.00", hist[0].PreviousValue.StringFixed(2))
	assert.Equal(t, "0.00", hist[0].NewValue.StringFixed(2))
	assert.Equal(t, 0, hist[0].ChangedAt.Second())

	transfers, _, err := f.repo.ListTransfers(ctx, id, orm.Page{})
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, domain.TransferCashupToMain, transfers[0].Kind)
	assert.True(t, transfers[1].Verified)
}

func TestTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "carol", "")
	f.fund(t, id, "100")

	tests := []struct {
		name    string
		call    func() (*domain.Result, error)
		wantErr error
	}{
		{"余额不足", func() (*domain.Result, error) { return f.svc.TransferToCashup(ctx, id, dec("100.01")) }, domain.ErrInsufficientFunds},
		{"金额为零", func() (*domain.Result, error) { return f.svc.TransferToCashup(ctx, id, decimal.Zero) }, domain.ErrInvalidAmount},
		{"负数金额", func() (*domain.Result, error) { return f.svc.DepositMain(ctx, id, dec("-5")) }, domain.ErrInvalidAmount},
		{"账户不存在", func() (*domain.Result, error) { return f.svc.DepositMain(ctx, 424242, dec("5")) }, domain.ErrAccountNotFound},
		{"欠款主余额不足", func() (*domain.Result, error) { return f.svc.TransferOwingToDPS(ctx, id, dec("1")) }, domain.ErrInsufficientFunds},
		{"非利润桶", func() (*domain.Result, error) { return f.svc.DepositToBucket(ctx, id, domain.KindOwing, dec("1")) }, domain.ErrBucketNotFound},
		{"给自己转账", func() (*domain.Result, error) { return f.svc.SendMoney(ctx, id, id, dec("1")) }, domain.ErrSelfTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			assert.True(t, errors.Is(err, tt.wantErr), "err=%v", err)
			if res != nil {
				assert.False(t, res.Success)
				assert.NotEmpty(t, res.ErrorKind)
			}
		})
	}

	b := f.balances(t, id)
	assert.Equal(t, "100.00", b.MainBalance.StringFixed(2))
	_, total, err := f.repo.ListTransfers(ctx, id, orm.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSendMoney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "sender", "")
	b := f.register(t, "recipient", "")
	f.fund(t, a, "80")

	res, err := f.svc.SendMoney(ctx, a, b, dec("50"))
	require.NoError(t, err)
	assert.Equal(t, "30.00", res.NewBalances["main.main_balance"].StringFixed(2))
	assert.Equal(t, "50.00", f.balances(t, b).MainBalance.StringFixed(2))

	_, err = f.svc.SendMoney(ctx, a, b, dec("30.01"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	sent, _, err := f.repo.ListSentTransactions(ctx, a, orm.Page{})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TransactionCompleted, sent[0].Status)
	received, _, err := f.repo.ListReceivedTransactions(ctx, b, orm.Page{})
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestOwing_VerifyAndBuyerCascade(t *testing.T) {
	tests := []struct {
		name      string
		pay       string
		wantDPS   string
		wantOwing string
		wantMain  string
	}{
		{"付款小于欠款总额", "70", "0.00", "10.00", "0.00"},
		{"付款超过欠款总额", "100", "0.00", "0.00", "20.00"},
		{"只够清 DPS 一部分", "10", "20.00", "50.00", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			id := f.register(t, "buyer", "")

			_, err := f.svc.TransferToOwing(ctx, id, dec("80"))
			require.NoError(t, err)
			_, err = f.svc.VerifyOwing(ctx, adminID, id)
			require.NoError(t, err)
			_, err = f.svc.VerifyOwing(ctx, adminID, id)
			assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))

			_, err = f.svc.TransferOwingToDPS(ctx, id, dec("30"))
			require.NoError(t, err)

			res, err := f.svc.SubmitBuyerTransaction(ctx, id, BuyerPayment{TransactionID: "TX-" + tt.pay, Method: "bkash", Amount: dec(tt.pay)})
			require.NoError(t, err)
			txID := res.RecordID

			_, err = f.svc.VerifyBuyerTransaction(ctx, adminID, txID)
			require.NoError(t, err)

			b := f.balances(t, id)
			assert.Equal(t, tt.wantDPS, bucketValue(b, domain.KindOwing, domain.FieldOwingDPS))
			assert.Equal(t, tt.wantOwing, bucketValue(b, domain.KindOwing, domain.FieldOwingMainBalance))
			assert.Equal(t, tt.wantMain, b.MainBalance.StringFixed(2))

			_, err = f.svc.VerifyBuyerTransaction(ctx, adminID, txID)
			assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))
		})
	}
}

func TestOwing_TransfersFlipVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "dana", "")

	_, err := f.svc.TransferToOwing(ctx, id, dec("40"))
	require.NoError(t, err)
	list, _, err := f.repo.ListTransfers(ctx, id, orm.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Verified)
	require.NotNil(t, list[0].OwingDepositID)

	res, err := f.svc.VerifyOwing(ctx, adminID, id)
	require.NoError(t, err)
	assert.Equal(t, "0.00", res.NewBalances["owing.requested_cashup_owing_main_balance"].StringFixed(2))
	assert.Equal(t, "40.00", res.NewBalances["owing.cashup_owing_main_balance"].StringFixed(2))

	list, _, err = f.repo.ListTransfers(ctx, id, orm.Page{})
	require.NoError(t, err)
	assert.True(t, list[0].Verified)

	hist, _, err := f.repo.ListOwingProfitHistory(ctx, id, orm.Page{})
	require.NoError(t, err)
	byAdmin := 0
	for _, h := range hist {
		if h.ActorID == adminID {
			byAdmin++
		}
	}
	assert.Equal(t, 2, byAdmin)
}

func TestBuyerTransaction_DuplicateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "erin", "")

	in := BuyerPayment{TransactionID: "8N7A6B", Method: "nagad", Amount: dec("10")}
	_, err := f.svc.SubmitBuyerTransaction(ctx, id, in)
	require.NoError(t, err)
	_, err = f.svc.SubmitBuyerTransaction(ctx, id, in)
	assert.Equal(t, 400, xerr.CodeOf(err))

	in.Method = "paypal"
	in.TransactionID = "other"
	_, err = f.svc.SubmitBuyerTransaction(ctx, id, in)
	assert.Equal(t, 400, xerr.CodeOf(err))
}

// conflictRepo 前 n 次事务跑完业务后按死锁回滚
type conflictRepo struct {
	*mysql.Repo
	mu sync.Mutex
	n  int
}

func (r *conflictRepo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.Repo.Transaction(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.n > 0 {
			r.n--
			return xerr.New(xerr.ConcurrentUpdate, "deadlock")
		}
		return nil
	})
}

func TestExec_RetriesLockConflict(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   error
		wantMain  string
	}{
		{"重试后成功只记一次账", 2, nil, "100.00"},
		{"超过重试次数报并发冲突", maxAttempts, domain.ErrConcurrentUpdate, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.register(t, "retry", "")
			repo := &conflictRepo{Repo: f.repo, n: tt.conflicts}
			svc := New(repo, Options{Publisher: f.pub, Clock: f.clock})

			res, err := svc.DepositMain(context.Background(), id, dec("100"))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err=%v", err)
			} else {
				require.NoError(t, err)
				assert.True(t, res.Success)
			}
			assert.Equal(t, tt.wantMain, f.balances(t, id).MainBalance.StringFixed(2))
		})
	}
}
