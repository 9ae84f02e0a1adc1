package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalSource string

const (
	SourceMain        WithdrawalSource = "main"
	SourceCashup      WithdrawalSource = "cashup"
	SourceDaily       WithdrawalSource = "daily"
	SourceMonthly     WithdrawalSource = "monthly"
	SourceCompounding WithdrawalSource = "compounding"
	SourceAffiliate   WithdrawalSource = "affiliate"
)

type WithdrawalStatus uint8

const (
	WithdrawalPending  WithdrawalStatus = iota // 0: 待审批
	WithdrawalApproved                         // 1: 已通过，资金已划走
	WithdrawalRejected                         // 2: 已驳回
)

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalPending:
		return "pending"
	case WithdrawalApproved:
		return "approved"
	case WithdrawalRejected:
		return "rejected"
	}
	return "unknown"
}

// 主余额提现的外部渠道
const (
	MethodBkash  = "bkash"
	MethodNagad  = "nagad"
	MethodRocket = "rocket"
)

func ValidPayoutMethod(m string) bool {
	switch strings.ToLower(m) {
	case MethodBkash, MethodNagad, MethodRocket:
		return true
	}
	return false
}

// WithdrawalRequest 所有来源共用一张表，source 决定扣哪个桶
type WithdrawalRequest struct {
	ID          int64
	AccountID   int64            `gorm:"index;not null"`
	Source      WithdrawalSource `gorm:"size:16;not null;index"`
	Amount      decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	Method      string           `gorm:"size:16"`
	Number      string           `gorm:"size:32"`
	Status      WithdrawalStatus `gorm:"not null;default:0;index"`
	Reason      string           `gorm:"size:255"`
	ProcessedBy *int64
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }

func (w *WithdrawalRequest) IsTerminal() bool { return w.Status != WithdrawalPending }

// SourceSpec 审批时扣哪个字段、累加哪个提现计数、是否回到主余额
type SourceSpec struct {
	Kind       Kind
	Field      Field
	Counter    Field
	CreditMain bool
}

var sourceSpecs = map[WithdrawalSource]SourceSpec{
	// 主余额提现走外部渠道，不回主余额
	SourceMain:        {Kind: KindMain, Field: FieldMainBalance},
	SourceCashup:      {Kind: KindCashup, Field: FieldCashupMainBalance, Counter: FieldWithdraw, CreditMain: true},
	SourceDaily:       {Kind: KindDaily, Field: FieldDailyProfit, Counter: FieldDailyProfitWithdraw, CreditMain: true},
	SourceMonthly:     {Kind: KindMonthly, Field: FieldMonthlyProfit, Counter: FieldDepositProfitWithdraw, CreditMain: true},
	SourceCompounding: {Kind: KindCompounding, Field: FieldCompoundingBalance, Counter: FieldCompoundingProfitWithdraw, CreditMain: true},
	SourceAffiliate:   {Kind: KindCashup, Field: FieldAffiliateProfit, Counter: FieldAffiliateWithdraw, CreditMain: true},
}

func (s WithdrawalSource) Spec() (SourceSpec, bool) {
	spec, ok := sourceSpecs[s]
	return spec, ok
}
