// Package stream 把已提交的账本事件实时推给账户自己的 websocket 连接
//
// Hub 实现 service.Publisher，和 nats 发布器并列挂在 service 上。
// 每个连接一个有界发送队列，队列满说明客户端跟不上，直接断开，
// 客户端重连后用余额接口补齐状态。
package stream

import (
	"context"
	"sync"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"cashup.com/internal/ledger/service"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/metrics"
)

const defaultSendBuf = 64

type Hub struct {
	mu      sync.RWMutex
	conns   map[int64]map[*Conn]struct{}
	sendBuf int
}

func NewHub(sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	return &Hub{
		conns:   make(map[int64]map[*Conn]struct{}, 256),
		sendBuf: sendBuf,
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	set := h.conns[c.account]
	if set == nil {
		set = make(map[*Conn]struct{}, 2)
		h.conns[c.account] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamConns.Inc()
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	set := h.conns[c.account]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.account)
		}
	}
	h.mu.Unlock()
	if ok {
		metrics.StreamConns.Dec()
	}
}

// Count 某个账户当前在线的连接数
func (h *Hub) Count(accountID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[accountID])
}

func (h *Hub) Publish(ctx context.Context, e service.Event) error {
	h.mu.RLock()
	set := h.conns[e.AccountID]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if !c.offer(payload) {
			metrics.StreamDropTotal.Inc()
			logger.Warn(ctx, "stream client too slow, dropped",
				zap.Int64("account", c.account),
				zap.String("op", e.Op),
			)
		}
	}
	return nil
}

// Close 断开所有连接，写协程各自退出
func (h *Hub) Close() error {
	h.mu.RLock()
	var all []*Conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
	return nil
}
