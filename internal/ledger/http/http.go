package http

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"cashup.com/internal/ledger/handler"
	"cashup.com/internal/ledger/service"
	"cashup.com/internal/ledger/stream"
	"cashup.com/pkg/middleware"
	"cashup.com/pkg/ratelimit"
)

type Options struct {
	Service   string
	RateLimit float64
	Burst     int
	// 单测里关掉 gin 自带的 prometheus 中间件
	DisableMetrics bool
	// 非空时挂 GET /api/stream，hub 同时要作为 service 的 Publisher
	Stream *stream.Hub
}

// NewRouter 账本 HTTP 入口，ctx 结束时限流表的清理协程退出
func NewRouter(ctx context.Context, svc *service.Service, opt Options) *gin.Engine {
	if opt.RateLimit <= 0 {
		opt.RateLimit = 50
	}
	if opt.Burst <= 0 {
		opt.Burst = 100
	}
	store := ratelimit.NewStore(rate.Limit(opt.RateLimit), opt.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	if !opt.DisableMetrics {
		p := ginprom.NewPrometheus("ledger")
		p.Use(r)
	}
	r.Use(
		otelgin.Middleware(opt.Service),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(opt.Service, store),
		middleware.Sentinel(opt.Service),
	)

	h := handler.NewLedger(svc)
	api := r.Group("/api")
	accounts(api, h)
	money(api, h)
	admin(api.Group("/admin"), h)
	listings(api, h)
	if opt.Stream != nil {
		api.GET("/stream", h.Stream(stream.NewServer(ctx, opt.Stream)))
	}
	return r
}

func accounts(api *gin.RouterGroup, h *handler.Ledger) {
	api.POST("/accounts", h.Register)
	api.GET("/accounts/:id/balances", h.Balances)
	api.POST("/accounts/:id/accrue", h.Accrue)

	api.POST("/referral-codes", h.IssueReferralCode)
	api.GET("/referral-codes/mine", h.MyReferralCode)
	api.POST("/referral-codes/redeem", h.AttachReferral)
}

func money(api *gin.RouterGroup, h *handler.Ledger) {
	api.POST("/deposits/main", h.DepositMain())
	api.POST("/deposits/:bucket", h.DepositToBucket())

	transfers := api.Group("/transfers")
	{
		transfers.POST("/cashup", h.TransferToCashup())
		transfers.POST("/cashup-to-main", h.TransferCashupToMain())
		transfers.POST("/owing", h.TransferToOwing())
		transfers.POST("/owing-dps", h.TransferOwingToDPS())
	}

	api.POST("/buyer-transactions", h.SubmitBuyerTransaction)
	api.POST("/withdrawals", h.RequestWithdrawal)
	api.POST("/send-money", h.SendMoney)
	api.POST("/cart", h.AddToCart)
	api.POST("/checkout", h.Checkout)
	api.POST("/mobile-recharges", h.RequestMobileRecharge)
}

func admin(g *gin.RouterGroup, h *handler.Ledger) {
	g.POST("/owing/:account/verify", h.VerifyOwing())
	g.POST("/buyer-transactions/:id/verify", h.VerifyBuyerTransaction())
	g.POST("/withdrawals/:id/approve", h.ApproveWithdrawal())
	g.POST("/withdrawals/:id/reject", h.RejectWithdrawal())
	g.POST("/mobile-recharges/:id/complete", h.CompleteMobileRecharge())
}

func listings(api *gin.RouterGroup, h *handler.Ledger) {
	q := h.Query()
	history := api.Group("/history")
	{
		history.GET("/transfers", handler.List(q.ListTransfers))
		history.GET("/cashup-deposits", handler.List(q.ListCashupDepositHistory))
		history.GET("/cashup-profits", handler.List(q.ListCashupProfitHistory))
		history.GET("/owing-profits", handler.List(q.ListOwingProfitHistory))
		history.GET("/buckets", handler.List(q.ListBucketHistory))
	}
	api.GET("/withdrawals", handler.List(q.ListWithdrawals))
	api.GET("/transactions/sent", handler.List(q.ListSentTransactions))
	api.GET("/transactions/received", handler.List(q.ListReceivedTransactions))
	api.GET("/buyer-transactions", handler.List(q.ListBuyerTransactions))
	api.GET("/purchases", h.Purchases)
	api.GET("/mobile-recharges", handler.List(q.ListRecharges))
}
