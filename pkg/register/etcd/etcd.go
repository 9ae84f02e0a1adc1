package etcd

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"cashup.com/pkg/logger"
	"cashup.com/pkg/register"
)

type EtcdRegister struct {
	client   *clientv3.Client
	basePath string // 比如 "/cashup/services"
	ttl      int64  // 租约秒数
	leaseID  clientv3.LeaseID
}

var _ register.Register = (*EtcdRegister)(nil)

func NewEtcdRegister(c *clientv3.Client, basePath string, ttl int64) *EtcdRegister {
	if ttl <= 0 {
		ttl = 10
	}
	return &EtcdRegister{
		client:   c,
		basePath: basePath,
		ttl:      ttl,
	}
}

func Key(basePath string, ins *register.Instance) string {
	return fmt.Sprintf("%s/%s/%s", basePath, ins.Name, ins.ID)
}

func (e *EtcdRegister) Register(ctx context.Context, ins *register.Instance) error {
	lease, err := e.client.Grant(ctx, e.ttl)
	if err != nil {
		return err
	}
	e.leaseID = lease.ID

	val, err := json.Marshal(ins)
	if err != nil {
		return err
	}
	if _, err = e.client.Put(ctx, Key(e.basePath, ins), string(val), clientv3.WithLease(e.leaseID)); err != nil {
		return err
	}
	// 心跳续约，ctx 结束时停止
	ch, err := e.client.KeepAlive(ctx, e.leaseID)
	if err != nil {
		return err
	}
	go e.drain(ctx, ch)
	return nil
}

func (e *EtcdRegister) UnRegister(ctx context.Context, ins *register.Instance) error {
	if _, err := e.client.Delete(ctx, Key(e.basePath, ins)); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if _, err := e.client.Revoke(ctx, e.leaseID); err != nil {
		return fmt.Errorf("revoke lease: %w", err)
	}
	return nil
}

func (e *EtcdRegister) drain(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				logger.Warn(ctx, "etcd keepalive channel closed", zap.Int64("lease_id", int64(e.leaseID)))
				return
			}
		}
	}
}
