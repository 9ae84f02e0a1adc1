package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cashup.com/internal/ledger"
	"cashup.com/internal/ledger/accrual"
	ledgerhttp "cashup.com/internal/ledger/http"
	"cashup.com/internal/ledger/repo/mysql"
	"cashup.com/internal/ledger/service"
	"cashup.com/internal/ledger/stream"
	"cashup.com/pkg/bootstrap"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/orm"
	"cashup.com/pkg/ratelimit"
	"cashup.com/pkg/trace"
	"cashup.com/pkg/xredis"
)

// Run 启动账本服务，ctx 取消后优雅退出
func Run(ctx context.Context) error {
	cfg := &ledger.Cfg{}

	return bootstrap.Run(ctx, bootstrap.Options{
		ConfigName: ledger.ServiceName,
		ConfigPtr:  cfg,
		ServiceName: func(_ interface{}) string {
			if cfg.Name == "" {
				return ledger.ServiceName
			}
			return cfg.Name
		},
		HTTPAddr: func(_ interface{}) string {
			return cfg.HTTP.Addr
		},
		LogLevel: func(_ interface{}) string {
			return cfg.LogLevel
		},
		EtcdConfig: func(_ interface{}) *bootstrap.EtcdCfg {
			return &cfg.Etcd
		},
		InitTracer: func(_ interface{}) (func(context.Context) error, error) {
			if !cfg.OTel.Enabled {
				return nil, nil
			}
			return trace.InitTrace(cfg.Name, cfg.OTel.Addr)
		},
		InitSentinel: bootstrap.InitSentinelFromCfg(func(_ interface{}) *bootstrap.SentinelCfg {
			return &cfg.Sentinel
		}),
		BuildDB: func(c context.Context, _ interface{}) (*sql.DB, error) {
			return orm.OpenSQL(c, &cfg.Db)
		},
		BuildRedis: func(c context.Context, _ interface{}) (*redis.Client, error) {
			// 没配 redis 时余额缓存和审批锁退化为进程内实现
			if cfg.Redis.Addr == "" {
				return nil, nil
			}
			return xredis.NewRedis(c, &cfg.Redis)
		},
		OnDBReady: func(c context.Context, db *sql.DB) {
			metrics.ObserveDBStats(c, db, 5*time.Second)
		},
		OnRedisReady: func(c context.Context, rdb *redis.Client) {
			metrics.ObserveRedisStats(c, rdb, 5*time.Second)
		},
		BuildHandler: func(c context.Context, _ interface{}, deps bootstrap.Deps) (http.Handler, func(), error) {
			return buildHandler(c, cfg, deps)
		},
		MetricsAddr: func(_ interface{}) string {
			return cfg.MetricsAddr
		},
		PprofAddr: func(_ interface{}) string {
			return cfg.PprofAddr
		},
	})
}

func buildHandler(ctx context.Context, cfg *ledger.Cfg, deps bootstrap.Deps) (http.Handler, func(), error) {
	gdb, err := orm.NewGorm(deps.DB, cfg.Db.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	repo := mysql.New(gdb)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, nil, err
	}

	rules := cfg.Ledger
	opt := service.Options{
		Policy: accrual.Policy{
			RestDays:       rules.Weekdays(),
			DailyWindow:    rules.DailyWindow,
			MaturityWindow: rules.MaturityWindow,
			ResetWindow:    rules.ResetWindow,
			Location:       rules.Location(),
		},
		ProfitPercentage: rules.ProfitPct(),
		ReferralRate:     rules.ReferralPct(),
		CacheTTL:         rules.CacheTTL,
	}
	if deps.Redis != nil {
		breaker := ratelimit.NewManager(cfg.Name, cfg.Breaker, nil)
		opt.Cache = service.NewRedisCache(deps.Redis, breaker)
		opt.Locker = service.NewRedisLocker(deps.Redis, rules.ApprovalLockTTL)
	}

	hub := stream.NewHub(cfg.HTTP.StreamBuffer)
	pubs := []service.Publisher{hub}
	if cfg.Nats.URL != "" {
		pub, err := service.NewNatsPublisher(cfg.Nats.URL, cfg.Nats.SubjectPrefix,
			nats.Name(cfg.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, pub)
	}
	opt.Publisher = service.MultiPublisher(pubs...)
	cleanup := func() {
		if err := opt.Publisher.Close(); err != nil {
			logger.Warn(context.Background(), "close event publishers failed", zap.Error(err))
		}
	}

	svc := service.New(repo, opt)
	router := ledgerhttp.NewRouter(ctx, svc, ledgerhttp.Options{
		Service:   cfg.Name,
		RateLimit: cfg.HTTP.RateLimit,
		Burst:     cfg.HTTP.Burst,
		Stream:    hub,
	})
	logger.Info(ctx, "ledger service ready", zap.String("addr", cfg.HTTP.Addr))
	return router, cleanup, nil
}
