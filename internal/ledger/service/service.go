package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cashup.com/internal/ledger/accrual"
	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/safe"
	"cashup.com/pkg/trace"
	"cashup.com/pkg/xerr"
)

type Options struct {
	Policy           accrual.Policy
	ProfitPercentage decimal.Decimal
	ReferralRate     decimal.Decimal
	CacheTTL         time.Duration

	Cache     BalanceCache
	Publisher Publisher
	Locker    Locker
	// 测试里注入固定时间
	Clock func() time.Time
}

// Service 账本引擎：每个操作一个数据库事务，事务里完成记账、计息、佣金、审计
type Service struct {
	repo   domain.Repository
	opt    Options
	sf     singleflight.Group
	tracer oteltrace.Tracer
}

func New(repo domain.Repository, opt Options) *Service {
	if opt.ProfitPercentage.IsZero() {
		opt.ProfitPercentage = decimal.RequireFromString("0.20")
	}
	if opt.ReferralRate.IsZero() {
		opt.ReferralRate = decimal.RequireFromString("0.05")
	}
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = 10 * time.Minute
	}
	if opt.Cache == nil {
		opt.Cache = noopCache{}
	}
	if opt.Publisher == nil {
		opt.Publisher = noopPublisher{}
	}
	if opt.Locker == nil {
		opt.Locker = localLocker{}
	}
	if opt.Clock == nil {
		opt.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:   repo,
		opt:    opt,
		tracer: trace.Tracer("cashup.com/internal/ledger/service"),
	}
}

func (s *Service) now() time.Time { return s.opt.Clock() }

// opMeta 一次操作的日志/指标维度
type opMeta struct {
	op      string
	actor   int64
	account int64
	// 审批类操作的目标记录 id
	target int64
	amount decimal.Decimal
}

// exec 开事务跑 fn，提交后删缓存、发事件
func (s *Service) exec(ctx context.Context, m opMeta, fn func(u *unit) error) (*domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ledger."+m.op, oteltrace.WithAttributes(
		attribute.String("ledger.op", m.op),
		attribute.Int64("ledger.account", m.account),
		attribute.String("ledger.amount", m.amount.String()),
	))
	defer span.End()
	start := time.Now()

	var (
		res *domain.Result
		u   *unit
		err error
	)
	// 锁冲突（死锁、版本号冲突）时事务已回滚，整体重来
	for attempt := 1; ; attempt++ {
		res, u = nil, nil
		err = s.tx(ctx, m, fn, &res, &u)
		if attempt >= maxAttempts || !errors.Is(err, domain.ErrConcurrentUpdate) || ctx.Err() != nil {
			break
		}
		logger.Debug(ctx, "ledger op retry", zap.String("op", m.op), zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}

	if u != nil {
		m.account, m.amount = u.meta.account, u.meta.amount
	}
	metrics.LedgerOpDuration.WithLabelValues(m.op).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := xerr.KindOf(xerr.CodeOf(err))
		metrics.LedgerOpTotal.WithLabelValues(m.op, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		logger.Warn(ctx, "ledger op failed",
			zap.String("op", m.op),
			zap.Int64("account", m.account),
			zap.String("amount", m.amount.String()),
			zap.String("result", kind),
			zap.Error(err),
		)
		return &domain.Result{Success: false, ErrorKind: kind}, err
	}

	result := "ok"
	if !res.Success {
		result = res.ErrorKind
	}
	metrics.LedgerOpTotal.WithLabelValues(m.op, result).Inc()
	logger.Info(ctx, "ledger op",
		zap.String("op", m.op),
		zap.Int64("account", m.account),
		zap.String("amount", m.amount.String()),
		zap.String("result", result),
		zap.Bool("replay", u == nil),
	)
	if u != nil {
		s.afterCommit(ctx, u)
	}
	return res, nil
}

const maxAttempts = 3

func (s *Service) tx(ctx context.Context, m opMeta, fn func(u *unit) error, res **domain.Result, out **unit) error {
	return s.repo.Transaction(ctx, func(txCtx context.Context) error {
		rec, replay, err := s.claimIdempotency(txCtx, m)
		if err != nil {
			return err
		}
		if replay != nil {
			*res = replay
			return nil
		}

		u := newUnit(s, txCtx, m)
		*out = u
		if err := fn(u); err != nil {
			return err
		}
		if err := u.commit(); err != nil {
			return err
		}
		*res = u.result()
		return s.storeIdempotency(txCtx, rec, *res)
	})
}

func (s *Service) afterCommit(ctx context.Context, u *unit) {
	for id := range u.touched {
		if err := s.opt.Cache.DelBalances(ctx, id); err != nil {
			logger.Warn(ctx, "invalidate balance cache failed", zap.Int64("account", id), zap.Error(err))
		}
	}
	if len(u.events) == 0 {
		return
	}
	safe.Run(ctx, func() { publishAll(ctx, s.opt.Publisher, u.events) })
}

// newBucket 新桶的初始值，利率取配置
func (s *Service) newBucket(kind domain.Kind, accountID int64, now time.Time) domain.Holder {
	switch kind {
	case domain.KindCashup:
		return &domain.CashupDeposit{AccountID: accountID, CreatedAt: now}
	case domain.KindOwing:
		return &domain.CashupOwingDeposit{AccountID: accountID, CreatedAt: now}
	case domain.KindDaily:
		return &domain.CashUpDaily{AccountID: accountID, ProfitPercentage: s.opt.ProfitPercentage, CreatedAt: now}
	case domain.KindMonthly:
		return &domain.CashupMonthly{AccountID: accountID, ProfitPercentage: s.opt.ProfitPercentage, CreatedAt: now}
	case domain.KindCompounding:
		return &domain.CashupDepositMonthlyCompounding{AccountID: accountID, ProfitPercentage: s.opt.ProfitPercentage, CreatedAt: now}
	}
	return nil
}

func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(logger.RequestIdKey).(string); ok {
		return v
	}
	return ""
}

// Query 只读列表，直接走仓储
func (s *Service) Query() domain.Queries { return s.repo }
