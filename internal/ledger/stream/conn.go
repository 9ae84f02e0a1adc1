package stream

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cashup.com/pkg/logger"
)

type Conn struct {
	account int64
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func newConn(account int64, ws *websocket.Conn, buf int) *Conn {
	return &Conn{
		account: account,
		ws:      ws,
		send:    make(chan []byte, buf),
		done:    make(chan struct{}),
	}
}

// offer 不阻塞发布方：队列满就关连接
func (c *Conn) offer(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.close()
		return false
	}
}

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

type Server struct {
	hub      *Hub
	ctx      context.Context
	Upgrader websocket.Upgrader

	PongWait   time.Duration
	PingPeriod time.Duration
	PingJitter time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
}

// NewServer ctx 结束时所有连接的写协程退出
func NewServer(ctx context.Context, h *Hub) *Server {
	return &Server{
		hub: h,
		ctx: ctx,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 跨域由网关把关
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		PongWait:   60 * time.Second,
		PingPeriod: 30 * time.Second,
		PingJitter: time.Second,
		WriteWait:  5 * time.Second,
		ReadLimit:  512,
	}
}

// ServeWS 升级失败时 Upgrader 已经回了 HTTP 错误
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request, accountID int64) error {
	ws, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newConn(accountID, ws, s.hub.sendBuf)
	s.hub.add(c)
	logger.Info(r.Context(), "stream connected", zap.Int64("account", accountID))

	go s.writePump(c)
	go s.readPump(c)
	return nil
}

// readPump 客户端不发业务消息，只处理 pong 和关闭
func (s *Server) readPump(c *Conn) {
	defer c.close()

	c.ws.SetReadLimit(s.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Debug(s.ctx, "stream pong timeout", zap.Int64("account", c.account))
			}
			return
		}
	}
}

func (s *Server) writePump(c *Conn) {
	defer func() {
		s.hub.remove(c)
		_ = c.ws.Close()
		logger.Info(s.ctx, "stream closed", zap.Int64("account", c.account))
	}()

	// 错开 ping，避免大量连接同一时刻发
	period := s.PingPeriod
	if s.PingJitter > 0 {
		period += time.Duration(rand.Int63n(int64(s.PingJitter)))
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.WriteWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(s.WriteWait))
			return
		case <-s.ctx.Done():
			c.close()
			return
		}
	}
}
