package xredis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("redis lock not acquired")

// Lua 脚本：释放锁
// KEYS[1]: 锁的 key
// ARGV[1]: 锁的 value (token)，防止误删别人的锁
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

type DistLock struct {
	client     redis.UniversalClient
	key        string
	token      string        // 谁加锁谁解锁
	expiration time.Duration // 自动过期，持有者挂了也不会死锁
}

func NewDistLock(client redis.UniversalClient, key string, expiration time.Duration) *DistLock {
	return &DistLock{
		client:     client,
		key:        key,
		token:      uuid.NewString(),
		expiration: expiration,
	}
}

func (l *DistLock) Key() string { return l.key }

// TryLock 非阻塞，只试一次
func (l *DistLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Lock 自旋重试，间隔带随机抖动
func (l *DistLock) Lock(ctx context.Context, retryTimes int, retryInterval time.Duration) (bool, error) {
	if retryTimes <= 0 {
		retryTimes = 1
	}
	for i := 0; i < retryTimes; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if i == retryTimes-1 {
			break
		}
		sleep := retryInterval + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return false, nil
}

// Unlock 只删自己的锁
func (l *DistLock) Unlock(ctx context.Context) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// WithLock 拿到锁才执行 fn，结束后释放
func WithLock(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, fn func() error) error {
	l := NewDistLock(client, key, ttl)
	ok, err := l.Lock(ctx, 20, 25*time.Millisecond)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotAcquired
	}
	defer func() { _, _ = l.Unlock(context.WithoutCancel(ctx)) }()
	return fn()
}
