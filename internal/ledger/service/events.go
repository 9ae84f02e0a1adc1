package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
)

// Event 账本操作提交后对外广播的消息
type Event struct {
	Op        string          `json:"op"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	RecordID  int64           `json:"record_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	At        time.Time       `json:"at"`
}

// Publisher 事件发布，失败只记日志，不影响已提交的账本
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(url, prefix string, opts ...nats.Option) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ledger"
	}
	return &NatsPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) error {
	subj := Subject(p.prefix, e.Op)
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subj, b)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EventPublishTotal.WithLabelValues(subj, result).Inc()
	return err
}

func (p *NatsPublisher) Close() error {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
	return nil
}

// Subject ledger + send-money -> ledger.send_money
func Subject(prefix, op string) string {
	op = strings.NewReplacer("-", "_", ":", ".").Replace(op)
	return prefix + "." + op
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }

// MultiPublisher 依次发给每个下游，单个失败不影响其他
func MultiPublisher(pubs ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multiPublisher []Publisher

func (m multiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func publishAll(ctx context.Context, pub Publisher, events []Event) {
	for _, e := range events {
		if err := pub.Publish(ctx, e); err != nil {
			logger.Warn(ctx, "publish ledger event failed", zap.String("op", e.Op), zap.Int64("account", e.AccountID), zap.Error(err))
		}
	}
}
