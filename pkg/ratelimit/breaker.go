package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"cashup.com/pkg/metrics"
	"cashup.com/pkg/xerr"
)

type Rule struct {
	// Half-Open 状态允许通过的探测请求数
	MaxRequests uint32 `yaml:"max_requests" mapstructure:"max_requests"`

	// Closed 状态计数窗口
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Rolling window 每个 bucket 周期（>0 启用 rolling window）
	BucketPeriod time.Duration `yaml:"bucket_period" mapstructure:"bucket_period"`

	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// 触发熔断条件（两种之一即可）
	TripConsecutiveFailures uint32  `yaml:"trip_consecutive_failures" mapstructure:"trip_consecutive_failures"`
	TripFailureRate         float64 `yaml:"trip_failure_rate" mapstructure:"trip_failure_rate"`
	TripMinRequests         uint32  `yaml:"trip_min_requests" mapstructure:"trip_min_requests"`
}

// Manager 按名字管理熔断器，一个下游依赖一个
type Manager struct {
	service string

	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[any]

	defaultRule Rule
	rules       map[string]Rule
}

func NewManager(service string, defaultRule Rule, perName map[string]Rule) *Manager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 5
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 3 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = 10 * time.Second
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 10
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}

	return &Manager{
		service:     service,
		m:           make(map[string]*gobreaker.CircuitBreaker[any], 8),
		defaultRule: defaultRule,
		rules:       perName,
	}
}

func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[any] {
	// 快路径：读锁
	m.mu.RLock()
	cb := m.m[name]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb = m.m[name]; cb != nil {
		return cb
	}

	rule, ok := m.rules[name]
	if !ok {
		rule = m.defaultRule
	}
	st := gobreaker.Settings{
		Name:         name,
		MaxRequests:  rule.MaxRequests,
		Interval:     rule.Interval,
		BucketPeriod: rule.BucketPeriod,
		Timeout:      rule.Timeout,

		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				failRate := float64(c.TotalFailures) / float64(c.Requests)
				return failRate >= rule.TripFailureRate
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CBState.WithLabelValues(m.service, name, from.String()).Set(0)
			metrics.CBState.WithLabelValues(m.service, name, to.String()).Set(1)
		},
		IsSuccessful: isSuccessfulForBreaker,
	}

	cb = gobreaker.NewCircuitBreaker[any](st)
	m.m[name] = cb
	return cb
}

// Do 在熔断器保护下执行 fn，熔断打开时直接返回 gobreaker 的错误
func Do[T any](m *Manager, name string, fn func() (T, error)) (T, error) {
	v, err := m.Get(name).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if IsOpen(err) {
			metrics.CBRejectTotal.WithLabelValues(m.service, name, err.Error()).Inc()
		}
		var zero T
		if v == nil {
			return zero, err
		}
		if t, ok := v.(T); ok {
			return t, err
		}
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// IsOpen 熔断打开或半开探测名额已满
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// 业务错误不代表依赖不健康，不计入失败
func isSuccessfulForBreaker(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	ce, ok := xerr.As(err)
	if !ok {
		return false
	}
	switch ce.Code {
	case xerr.ServerCommonError, xerr.DbError:
		return false
	default:
		return true
	}
}
