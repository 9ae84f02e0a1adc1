package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/internal/ledger/ledgertest"
	"cashup.com/internal/ledger/service"
	"cashup.com/internal/ledger/stream"
	"cashup.com/pkg/xerr"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type result struct {
	Success     bool              `json:"success"`
	NewBalances map[string]string `json:"new_balances"`
	ErrorKind   string            `json:"error_kind"`
	RecordID    int64             `json:"record_id"`
}

type client struct {
	t *testing.T
	r *gin.Engine
}

func newClient(t *testing.T) *client {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc := service.New(ledgertest.NewRepo(t), service.Options{})
	r := NewRouter(ctx, svc, Options{Service: "ledger-test", RateLimit: 1000, Burst: 1000, DisableMetrics: true})
	return &client{t: t, r: r}
}

func (c *client) do(method, path string, account int64, body string, headers ...string) (int, envelope) {
	c.t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if account > 0 {
		req.Header.Set("X-Account-Id", strconv.FormatInt(account, 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (c *client) result(env envelope) result {
	c.t.Helper()
	var res result
	require.NoError(c.t, json.Unmarshal(env.Data, &res))
	return res
}

func (c *client) register(username string) int64 {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/accounts", 0, `{"username":"`+username+`"}`)
	require.Equal(c.t, http.StatusOK, status)
	return c.result(env).RecordID
}

func TestRouter_MoneyFlow(t *testing.T) {
	c := newClient(t)
	id := c.register("alice")

	status, env := c.do(http.MethodPost, "/api/deposits/main", id, `{"amount":"1000"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000", c.result(env).NewBalances["main.main_balance"])

	status, env = c.do(http.MethodPost, "/api/transfers/cashup", id, `{"amount":"400"}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, c.result(env).Success)

	status, env = c.do(http.MethodPost, "/api/withdrawals", id, `{"source":"cashup","amount":"100"}`)
	require.Equal(t, http.StatusOK, status)
	wid := c.result(env).RecordID

	path := "/api/admin/withdrawals/" + strconv.FormatInt(wid, 10) + "/approve"
	status, env = c.do(http.MethodPost, path, 9000, "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, c.result(env).Success)

	status, env = c.do(http.MethodPost, path, 9000, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, xerr.AlreadyProcessed, env.Code)

	status, env = c.do(http.MethodGet, "/api/accounts/"+strconv.FormatInt(id, 10)+"/balances", id, "")
	require.Equal(t, http.StatusOK, status)
	var b struct {
		MainBalance string                       `json:"main_balance"`
		Buckets     map[string]map[string]string `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, "700", b.MainBalance)
	assert.Equal(t, "300", b.Buckets["cashup"]["cashup_main_balance"])

	status, env = c.do(http.MethodGet, "/api/history/transfers?page=1&limit=10", id, "")
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 10, page.Limit)
}

func TestRouter_Errors(t *testing.T) {
	c := newClient(t)
	id := c.register("bob")
	other := c.register("carol")

	tests := []struct {
		name       string
		method     string
		path       string
		account    int64
		body       string
		wantStatus int
		wantCode   int
		wantKind   string
	}{
		{"缺少账户头", http.MethodPost, "/api/deposits/main", 0, `{"amount":"1"}`, http.StatusBadRequest, xerr.RequestParamsError, ""},
		{"金额非法", http.MethodPost, "/api/deposits/main", id, `{"amount":"0"}`, http.StatusBadRequest, xerr.InvalidAmount, ""},
		{"余额不足", http.MethodPost, "/api/transfers/cashup", id, `{"amount":"5"}`, http.StatusUnprocessableEntity, xerr.InsufficientFunds, "InsufficientFunds"},
		{"转给自己", http.MethodPost, "/api/send-money", id, `{"recipient_id":` + strconv.FormatInt(id, 10) + `,"amount":"1"}`, http.StatusBadRequest, xerr.SelfTransferNotAllowed, ""},
		{"收款人不存在", http.MethodPost, "/api/send-money", id, `{"recipient_id":999,"amount":"1"}`, http.StatusNotFound, xerr.AccountNotFound, "AccountNotFound"},
		{"不认识的桶", http.MethodPost, "/api/deposits/owing", id, `{"amount":"1"}`, http.StatusNotFound, xerr.BucketNotFound, ""},
		{"查别人的余额", http.MethodGet, "/api/accounts/" + strconv.FormatInt(other, 10) + "/balances", id, "", http.StatusForbidden, xerr.Forbidden, ""},
		{"给别人计息", http.MethodPost, "/api/accounts/" + strconv.FormatInt(other, 10) + "/accrue", id, "", http.StatusForbidden, xerr.Forbidden, ""},
		{"购物车为空", http.MethodPost, "/api/checkout", other, "", http.StatusBadRequest, xerr.EmptyCart, "EmptyCart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := c.do(tt.method, tt.path, tt.account, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantKind != "" {
				res := c.result(env)
				assert.False(t, res.Success)
				assert.Equal(t, tt.wantKind, res.ErrorKind)
			}
		})
	}
}

func TestRouter_IdempotencyKey(t *testing.T) {
	c := newClient(t)
	id := c.register("dave")

	status, env := c.do(http.MethodPost, "/api/deposits/main", id, `{"amount":"50"}`, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, status)
	first := c.result(env)

	status, env = c.do(http.MethodPost, "/api/deposits/main", id, `{"amount":"50"}`, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first.NewBalances, c.result(env).NewBalances)

	status, env = c.do(http.MethodPost, "/api/deposits/main", id, `{"amount":"60"}`, "Idempotency-Key", "abc")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, xerr.IdempotencyConflict, env.Code)

	status, env = c.do(http.MethodGet, "/api/accounts/"+strconv.FormatInt(id, 10)+"/balances", id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"main_balance":"50"`)
}

func TestRouter_Stream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := stream.NewHub(8)
	svc := service.New(ledgertest.NewRepo(t), service.Options{Publisher: hub})
	r := NewRouter(ctx, svc, Options{Service: "ledger-test", RateLimit: 1000, Burst: 1000, DisableMetrics: true, Stream: hub})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	c := &client{t: t, r: r}
	id := c.register("erin")

	header := http.Header{}
	header.Set("X-Account-Id", strconv.FormatInt(id, 10))
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	require.Eventually(t, func() bool { return hub.Count(id) == 1 }, time.Second, 10*time.Millisecond)

	status, _ := c.do(http.MethodPost, "/api/deposits/main", id, `{"amount":"12.5"}`)
	require.Equal(t, http.StatusOK, status)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	var e service.Event
	require.NoError(t, json.Unmarshal(b, &e))
	assert.Equal(t, "deposit-main", e.Op)
	assert.Equal(t, "12.5", e.Amount.String())

	// 没带账户头不允许升级
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
