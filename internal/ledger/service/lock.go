package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cashup.com/pkg/xredis"
)

// Locker 审批类操作的跨实例互斥，真正的一致性仍由数据库行锁保证
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

type redisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLocker(c redis.UniversalClient, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisLocker{client: c, ttl: ttl}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	return xredis.WithLock(ctx, l.client, key, l.ttl, fn)
}

type localLocker struct{}

func (localLocker) WithLock(_ context.Context, _ string, fn func() error) error { return fn() }

func withdrawalLockKey(id int64) string { return fmt.Sprintf("ledger:lock:withdrawal:%d", id) }
