package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strings"
	"time"

	sentinels "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"cashup.com/pkg/config"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/register"
	"cashup.com/pkg/register/etcd"
)

// Deps 启动阶段准备好的公共依赖
type Deps struct {
	DB    *sql.DB
	Redis *redis.Client
}

type EtcdCfg struct {
	Endpoints     []string `yaml:"endpoints" mapstructure:"endpoints"`
	ServicePrefix string   `yaml:"service_prefix" mapstructure:"service_prefix"`
}

type SentinelCfg struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Flow    FlowSection   `yaml:"flow" mapstructure:"flow"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

type FlowSection struct {
	Enabled bool       `yaml:"enabled" mapstructure:"enabled"`
	Rules   []FlowRule `yaml:"rules" mapstructure:"rules"`
}

type FlowRule struct {
	Resource         string  `yaml:"resource" mapstructure:"resource"`
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`
	StatIntervalMs   uint32  `yaml:"stat_interval_ms" mapstructure:"stat_interval_ms"`
	Strategy         string  `yaml:"strategy" mapstructure:"strategy"`
	Control          string  `yaml:"control" mapstructure:"control"`
	MaxQueueWaitMs   uint32  `yaml:"max_queue_wait_ms" mapstructure:"max_queue_wait_ms"`
	WarmUpSec        uint32  `yaml:"warmup_sec" mapstructure:"warmup_sec"`
	WarmUpColdFactor uint32  `yaml:"warmup_cold_factor" mapstructure:"warmup_cold_factor"`
}

type BreakerConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Rules   []BreakerRule `yaml:"rules" mapstructure:"rules"`
}

type BreakerRule struct {
	Resource         string  `yaml:"resource" mapstructure:"resource"`
	Strategy         string  `yaml:"strategy" mapstructure:"strategy"`
	Threshold        float64 `yaml:"threshold" mapstructure:"threshold"`
	StatIntervalMs   uint32  `yaml:"stat_interval_ms" mapstructure:"stat_interval_ms"`
	MinRequestAmount uint64  `yaml:"min_request_amount" mapstructure:"min_request_amount"`
	RetryTimeoutMs   uint64  `yaml:"retry_timeout_ms" mapstructure:"retry_timeout_ms"`
}

// Options 控制启动流程，服务相关的部分通过 hook 注入
type Options struct {
	// 必填：配置名和目标结构体
	ConfigName string
	ConfigPtr  interface{}

	// 必填：从配置里取服务名和 HTTP 监听地址
	ServiceName func(cfg interface{}) string
	HTTPAddr    func(cfg interface{}) string
	LogLevel    func(cfg interface{}) string

	// 可选：返回 nil 或没有 endpoints 时跳过注册
	EtcdConfig func(cfg interface{}) *EtcdCfg

	InitTracer   func(cfg interface{}) (func(context.Context) error, error)
	InitSentinel func(cfg interface{}) error

	// 可选 builder，nil 表示不需要
	BuildDB    func(ctx context.Context, cfg interface{}) (*sql.DB, error)
	BuildRedis func(ctx context.Context, cfg interface{}) (*redis.Client, error)

	OnDBReady    func(ctx context.Context, db *sql.DB)
	OnRedisReady func(ctx context.Context, rdb *redis.Client)

	// 必填：组装业务，返回 HTTP handler 和退出时的清理函数
	BuildHandler func(ctx context.Context, cfg interface{}, deps Deps) (http.Handler, func(), error)

	// 可选：返回空串时不开对应端口
	MetricsAddr func(cfg interface{}) string
	PprofAddr   func(cfg interface{}) string
}

// Run 通用启动流程：配置 -> 日志 -> sentinel -> DB/Redis -> tracer -> 业务 -> pprof/metrics -> etcd 注册 -> 监听
func Run(ctx context.Context, opt Options) error {
	if opt.ConfigName == "" || opt.ConfigPtr == nil || opt.ServiceName == nil || opt.HTTPAddr == nil || opt.BuildHandler == nil {
		return fmt.Errorf("bootstrap: missing required options")
	}

	if _, err := config.LoadAndWatch(opt.ConfigName, opt.ConfigPtr); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svcName := opt.ServiceName(opt.ConfigPtr)
	level := "info"
	if opt.LogLevel != nil {
		if l := opt.LogLevel(opt.ConfigPtr); l != "" {
			level = l
		}
	}
	logger.Init(svcName, level)
	defer logger.Sync()
	metrics.MustRegister()

	if opt.InitSentinel != nil {
		if err := opt.InitSentinel(opt.ConfigPtr); err != nil {
			return fmt.Errorf("init sentinel: %w", err)
		}
	}

	var deps Deps
	var err error
	if opt.BuildDB != nil {
		deps.DB, err = opt.BuildDB(ctx, opt.ConfigPtr)
		if err != nil {
			return fmt.Errorf("init db: %w", err)
		}
		defer func() { _ = deps.DB.Close() }()
		if opt.OnDBReady != nil {
			opt.OnDBReady(ctx, deps.DB)
		}
	}
	if opt.BuildRedis != nil {
		deps.Redis, err = opt.BuildRedis(ctx, opt.ConfigPtr)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		if deps.Redis != nil {
			defer func() { _ = deps.Redis.Close() }()
			if opt.OnRedisReady != nil {
				opt.OnRedisReady(ctx, deps.Redis)
			}
		}
	}

	var shutdownTracer func(context.Context) error
	if opt.InitTracer != nil {
		shutdownTracer, err = opt.InitTracer(opt.ConfigPtr)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
	}

	handler, cleanup, err := opt.BuildHandler(ctx, opt.ConfigPtr, deps)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if opt.PprofAddr != nil {
		if addr := opt.PprofAddr(opt.ConfigPtr); addr != "" {
			startPprof(addr)
		}
	}
	if opt.MetricsAddr != nil {
		if addr := opt.MetricsAddr(opt.ConfigPtr); addr != "" {
			startMetrics(addr)
		}
	}

	addr := opt.HTTPAddr(opt.ConfigPtr)
	if ec := opt.EtcdConfig; ec != nil {
		if eCfg := ec(opt.ConfigPtr); eCfg != nil && len(eCfg.Endpoints) > 0 {
			cli, err := clientv3.New(clientv3.Config{
				Endpoints:   eCfg.Endpoints,
				DialTimeout: 5 * time.Second,
			})
			if err != nil {
				return fmt.Errorf("connect etcd: %w", err)
			}
			defer cli.Close()
			var reg register.Register = etcd.NewEtcdRegister(cli, eCfg.ServicePrefix, 10)
			ins := &register.Instance{
				ID:   fmt.Sprintf("%s-%s", svcName, addr),
				Name: svcName,
				Addr: addr,
				MetaData: map[string]string{
					"version":  "v1",
					"protocol": "http",
				},
			}
			if err := reg.Register(ctx, ins); err != nil {
				return fmt.Errorf("register etcd: %w", err)
			}
			defer func() { _ = reg.UnRegister(context.Background(), ins) }()
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case serveErr = <-errCh:
		log.Printf("server error: %v", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if shutdownTracer != nil {
		_ = shutdownTracer(shutdownCtx)
	}
	log.Println("service stopped")
	return serveErr
}

func startPprof(addr string) {
	runtime.SetMutexProfileFraction(10)
	runtime.SetBlockProfileRate(10000)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("pprof listening on %s", srv.Addr)
		if e := srv.ListenAndServe(); e != nil && e != http.ErrServerClosed {
			log.Printf("pprof listen error: %v", e)
		}
	}()
}

func startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		log.Printf("metrics listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

// InitSentinelFromCfg 把 sentinel 配置转成 InitSentinel hook
func InitSentinelFromCfg(getCfg func(cfg interface{}) *SentinelCfg) func(cfg interface{}) error {
	return func(cfg interface{}) error {
		sc := getCfg(cfg)
		if sc == nil || !(sc.Enabled || sc.Flow.Enabled || sc.Breaker.Enabled) {
			return nil
		}
		if err := sentinels.InitDefault(); err != nil {
			return fmt.Errorf("init sentinel: %w", err)
		}

		var flowRules []*flow.Rule
		if sc.Flow.Enabled {
			for _, rule := range sc.Flow.Rules {
				if rule.Resource == "" {
					continue
				}
				r := &flow.Rule{
					Resource:         rule.Resource,
					Threshold:        rule.Threshold,
					StatIntervalInMs: rule.StatIntervalMs,
				}
				switch strings.ToLower(rule.Strategy) {
				case "direct", "":
					r.TokenCalculateStrategy = flow.Direct
				case "warmup":
					r.TokenCalculateStrategy = flow.WarmUp
					r.WarmUpPeriodSec = rule.WarmUpSec
					r.WarmUpColdFactor = rule.WarmUpColdFactor
				case "memory_adaptive":
					r.TokenCalculateStrategy = flow.MemoryAdaptive
				default:
					r.TokenCalculateStrategy = flow.Direct
				}

				switch strings.ToLower(rule.Control) {
				case "throttling":
					r.ControlBehavior = flow.Throttling
					r.MaxQueueingTimeMs = rule.MaxQueueWaitMs
				default:
					r.ControlBehavior = flow.Reject
				}
				flowRules = append(flowRules, r)
			}
		}

		if len(flowRules) > 0 {
			if _, err := flow.LoadRules(flowRules); err != nil {
				return fmt.Errorf("load flow rules: %w", err)
			}
		}

		if sc.Breaker.Enabled {
			var breakerRules []*circuitbreaker.Rule
			for _, rule := range sc.Breaker.Rules {
				if rule.Resource == "" {
					continue
				}
				r := &circuitbreaker.Rule{
					Resource:         rule.Resource,
					Threshold:        rule.Threshold,
					StatIntervalMs:   rule.StatIntervalMs,
					MinRequestAmount: rule.MinRequestAmount,
					RetryTimeoutMs:   uint32(rule.RetryTimeoutMs),
				}
				switch strings.ToLower(rule.Strategy) {
				case "error_count":
					r.Strategy = circuitbreaker.ErrorCount
				case "slow_request_ratio":
					r.Strategy = circuitbreaker.SlowRequestRatio
				default:
					r.Strategy = circuitbreaker.ErrorRatio
				}
				breakerRules = append(breakerRules, r)
			}
			if len(breakerRules) > 0 {
				if _, err := circuitbreaker.LoadRules(breakerRules); err != nil {
					return fmt.Errorf("load circuit breaker rules: %w", err)
				}
				log.Println("✅ 熔断器已启用")
			}
		}

		log.Println("✅ Sentinel 初始化完成，规则已加载")
		return nil
	}
}
