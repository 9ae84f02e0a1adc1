package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cashup"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"service", "route", "reason"},
	)

	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"service", "name", "reason"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0/1).",
		},
		[]string{"service", "name", "state"}, // state: closed/open/half_open
	)
)

// 账本业务指标
var (
	LedgerOpTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_op_total",
		Help:      "Ledger operations by op and result kind.",
	}, []string{"op", "result"})

	LedgerOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_op_duration_seconds",
		Help:      "Ledger operation latency including the db transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"op"})

	WithdrawalDecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "withdrawal_decision_total",
		Help:      "Withdrawal approvals/rejections by source bucket.",
	}, []string{"source", "status"})

	AccrualTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accrual_total",
		Help:      "Profit accrual steps fired, by bucket kind and step.",
	}, []string{"bucket", "step"})

	ReferralAwardTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "referral_award_total",
		Help:      "Referral commissions credited.",
	})

	CacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_cache_total",
		Help:      "Balance cache lookups by result (hit/miss/error/bypass).",
	}, []string{"result"})

	EventPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_total",
		Help:      "Ledger events published to nats.",
	}, []string{"subject", "result"})

	StreamConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_conns",
		Help:      "Open websocket event stream connections.",
	})

	StreamDropTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_drop_total",
		Help:      "Stream connections closed because the client could not keep up.",
	})
)

var registerOnce sync.Once

// MustRegister 注册非 promauto 的指标，重复调用无副作用
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RateLimitBlockTotal, CBRejectTotal, CBState)
	})
}
