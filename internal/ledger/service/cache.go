package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/metrics"
	"cashup.com/pkg/ratelimit"
)

// BalanceCache 余额快照缓存，写操作提交后删除
type BalanceCache interface {
	GetBalances(ctx context.Context, accountID int64) (*domain.Balances, bool, error)
	SetBalances(ctx context.Context, b *domain.Balances, ttl time.Duration) error
	DelBalances(ctx context.Context, accountID int64) error
}

type redisCache struct {
	client  redis.UniversalClient
	breaker *ratelimit.Manager
}

const cacheBreaker = "redis-balance-cache"

// NewRedisCache redis 调用套熔断器，熔断打开时直接走数据库
func NewRedisCache(c redis.UniversalClient, breaker *ratelimit.Manager) BalanceCache {
	return &redisCache{client: c, breaker: breaker}
}

func (r *redisCache) GetBalances(ctx context.Context, accountID int64) (*domain.Balances, bool, error) {
	key := balanceKey(accountID)

	b, err := r.do(ctx, "get", func() ([]byte, error) {
		b, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, nil
	}

	res := &domain.Balances{}
	if err := json.Unmarshal(b, res); err != nil {
		// 缓存脏了就删掉，避免持续命中错误
		_ = r.client.Del(ctx, key).Err()
		return nil, false, err
	}
	return res, true, nil
}

func (r *redisCache) SetBalances(ctx context.Context, res *domain.Balances, ttl time.Duration) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	// 加入随机时间 防止同时过期
	_, err = r.do(ctx, "set", func() ([]byte, error) {
		return nil, r.client.Set(ctx, balanceKey(res.AccountID), b, withJitter(ttl, 300*time.Millisecond)).Err()
	})
	return err
}

func (r *redisCache) DelBalances(ctx context.Context, accountID int64) error {
	_, err := r.do(ctx, "del", func() ([]byte, error) {
		return nil, r.client.Del(ctx, balanceKey(accountID)).Err()
	})
	return err
}

func (r *redisCache) do(ctx context.Context, cmd string, fn func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	var (
		b   []byte
		err error
	)
	if r.breaker != nil {
		b, err = ratelimit.Do(r.breaker, cacheBreaker, fn)
	} else {
		b, err = fn()
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RedisCmdDuration.WithLabelValues(cmd, status).Observe(time.Since(start).Seconds())
	return b, err
}

func balanceKey(accountID int64) string {
	return fmt.Sprintf("ledger:bal:%d", accountID)
}

func withJitter(ttl time.Duration, jitter time.Duration) time.Duration {
	if ttl <= 0 || jitter <= 0 {
		return ttl
	}
	// [0, jitter) 的随机
	j := time.Duration(rand.Int63n(int64(jitter)))
	return ttl + j
}

// noopCache 没配 redis 时使用
type noopCache struct{}

func (noopCache) GetBalances(context.Context, int64) (*domain.Balances, bool, error) {
	return nil, false, nil
}
func (noopCache) SetBalances(context.Context, *domain.Balances, time.Duration) error { return nil }
func (noopCache) DelBalances(context.Context, int64) error                           { return nil }

func cacheResult(hit bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}
