package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"cashup.com/pkg/common"
	"cashup.com/pkg/logger"
	"cashup.com/pkg/ratelimit"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestReqId_PropagatesToContext(t *testing.T) {
	r := newEngine(ReqId())
	var fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromCtx, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
		c.Status(http.StatusOK)
	})

	t.Run("沿用上游的 request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(common.HeaderRequestID, "rid-123")
		r.ServeHTTP(w, req)
		assert.Equal(t, "rid-123", fromCtx)
		assert.Equal(t, "rid-123", w.Header().Get(common.HeaderRequestID))
	})

	t.Run("没有就生成", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.NotEmpty(t, fromCtx)
		assert.Equal(t, fromCtx, w.Header().Get(common.HeaderRequestID))
	})
}

func TestRecover_Returns500(t *testing.T) {
	r := newEngine(Recover())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimit_Blocks(t *testing.T) {
	store := ratelimit.NewStore(1, 2, time.Minute)
	r := newEngine(RateLimit("test", store))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
