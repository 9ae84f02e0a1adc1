package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cashup.com/internal/ledger/domain"
	"cashup.com/internal/ledger/service"
	"cashup.com/pkg/common"
)

type Ledger struct {
	svc *service.Service
}

func NewLedger(svc *service.Service) *Ledger {
	return &Ledger{svc: svc}
}

type registerReq struct {
	Username     string `json:"username" binding:"required"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type amountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type codeReq struct {
	Code string `json:"code" binding:"required"`
}

type sendReq struct {
	RecipientID int64           `json:"recipient_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type buyerReq struct {
	TransactionID string          `json:"transaction_id" binding:"required"`
	PhoneNumber   string          `json:"phone_number"`
	Method        string          `json:"method" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

type withdrawReq struct {
	Source string          `json:"source" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Number string          `json:"number"`
}

type cartReq struct {
	ItemID        int64           `json:"item_id" binding:"required"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	MemberPrice   decimal.Decimal `json:"member_price"`
}

type rechargeReq struct {
	Phone    string          `json:"phone" binding:"required"`
	Operator string          `json:"operator"`
	Amount   decimal.Decimal `json:"amount"`
}

type rejectReq struct {
	Reason string `json:"reason"`
}

// ===== 账户 / 推荐码 =====

func (h *Ledger) Register(c *gin.Context) {
	var req registerReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Register(reqCtx(c), service.RegisterInput{
		Username:     req.Username,
		Name:         req.Name,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
	})
	reply(c, res, err)
}

func (h *Ledger) Balances(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	b, err := h.svc.Balances(c.Request.Context(), id)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, b)
}

func (h *Ledger) Accrue(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	res, err := h.svc.Accrue(reqCtx(c), id)
	reply(c, res, err)
}

func (h *Ledger) IssueReferralCode(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	code, err := h.svc.IssueReferralCode(c.Request.Context(), id)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, code)
}

func (h *Ledger) MyReferralCode(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	code, err := h.svc.MyReferralCode(c.Request.Context(), id)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, code)
}

func (h *Ledger) AttachReferral(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req codeReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.AttachReferral(reqCtx(c), id, req.Code)
	reply(c, res, err)
}

// ===== 入金 / 划转 =====

// amountOp 只带金额的操作共用一套绑定
func (h *Ledger) amountOp(fn func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req amountReq
		if !bind(c, &req) {
			return
		}
		res, err := fn(c, id, req.Amount)
		reply(c, res, err)
	}
}

func (h *Ledger) DepositMain() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.DepositMain(reqCtx(c), id, amount)
	})
}

func (h *Ledger) DepositToBucket() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.DepositToBucket(reqCtx(c), id, domain.Kind(c.Param("bucket")), amount)
	})
}

func (h *Ledger) TransferToCashup() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.TransferToCashup(reqCtx(c), id, amount)
	})
}

func (h *Ledger) TransferCashupToMain() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.TransferCashupToMain(reqCtx(c), id, amount)
	})
}

func (h *Ledger) TransferToOwing() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.TransferToOwing(reqCtx(c), id, amount)
	})
}

func (h *Ledger) TransferOwingToDPS() gin.HandlerFunc {
	return h.amountOp(func(c *gin.Context, id int64, amount decimal.Decimal) (*domain.Result, error) {
		return h.svc.TransferOwingToDPS(reqCtx(c), id, amount)
	})
}

func (h *Ledger) SendMoney(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req sendReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.SendMoney(reqCtx(c), id, req.RecipientID, req.Amount)
	reply(c, res, err)
}

// ===== 外部付款 / 提现 =====

func (h *Ledger) SubmitBuyerTransaction(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req buyerReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.SubmitBuyerTransaction(reqCtx(c), id, service.BuyerPayment{
		TransactionID: req.TransactionID,
		PhoneNumber:   req.PhoneNumber,
		Method:        req.Method,
		Amount:        req.Amount,
	})
	reply(c, res, err)
}

func (h *Ledger) RequestWithdrawal(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req withdrawReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.RequestWithdrawal(reqCtx(c), id, service.WithdrawalInput{
		Source: domain.WithdrawalSource(req.Source),
		Amount: req.Amount,
		Method: req.Method,
		Number: req.Number,
	})
	reply(c, res, err)
}

// ===== 购物 / 充值 =====

func (h *Ledger) AddToCart(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req cartReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.AddToCart(reqCtx(c), id, service.CartLine{
		ItemID:        req.ItemID,
		ItemName:      req.ItemName,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		DiscountPrice: req.DiscountPrice,
		MemberPrice:   req.MemberPrice,
	})
	reply(c, res, err)
}

func (h *Ledger) Checkout(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.svc.Checkout(reqCtx(c), id)
	reply(c, res, err)
}

func (h *Ledger) RequestMobileRecharge(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req rechargeReq
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.RequestMobileRecharge(reqCtx(c), id, service.RechargeInput{
		Phone:    req.Phone,
		Operator: req.Operator,
		Amount:   req.Amount,
	})
	reply(c, res, err)
}

// ===== 管理员 =====

// adminOp 管理员对某条记录的处理，:param 为记录 id
func (h *Ledger) adminOp(param string, fn func(c *gin.Context, admin, id int64) (*domain.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := caller(c)
		if !ok {
			return
		}
		id, ok := pathID(c, param)
		if !ok {
			return
		}
		res, err := fn(c, admin, id)
		if c.IsAborted() {
			return
		}
		reply(c, res, err)
	}
}

func (h *Ledger) VerifyOwing() gin.HandlerFunc {
	return h.adminOp("account", func(c *gin.Context, admin, account int64) (*domain.Result, error) {
		return h.svc.VerifyOwing(reqCtx(c), admin, account)
	})
}

func (h *Ledger) VerifyBuyerTransaction() gin.HandlerFunc {
	return h.adminOp("id", func(c *gin.Context, admin, id int64) (*domain.Result, error) {
		return h.svc.VerifyBuyerTransaction(reqCtx(c), admin, id)
	})
}

func (h *Ledger) ApproveWithdrawal() gin.HandlerFunc {
	return h.adminOp("id", func(c *gin.Context, admin, id int64) (*domain.Result, error) {
		return h.svc.ApproveWithdrawal(reqCtx(c), admin, id)
	})
}

func (h *Ledger) RejectWithdrawal() gin.HandlerFunc {
	return h.adminOp("id", func(c *gin.Context, admin, id int64) (*domain.Result, error) {
		var req rejectReq
		// 驳回原因可以不填
		if c.Request.ContentLength > 0 && !bind(c, &req) {
			c.Abort()
			return nil, nil
		}
		return h.svc.RejectWithdrawal(reqCtx(c), admin, id, req.Reason)
	})
}

func (h *Ledger) CompleteMobileRecharge() gin.HandlerFunc {
	return h.adminOp("id", func(c *gin.Context, admin, id int64) (*domain.Result, error) {
		return h.svc.CompleteMobileRecharge(reqCtx(c), admin, id)
	})
}
