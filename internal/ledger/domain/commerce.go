package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const TransactionCompleted = "completed"

// Transaction 账户间转账
type Transaction struct {
	ID          int64
	SenderID    int64           `gorm:"index;not null"`
	RecipientID int64           `gorm:"index;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status      string          `gorm:"size:16;not null"`
	CreatedAt   time.Time
}

func (Transaction) TableName() string { return "transactions" }

// BuyerTransaction 买家提交的外部付款，核实后走还款瀑布
type BuyerTransaction struct {
	ID            int64
	AccountID     int64           `gorm:"index;not null"`
	TransactionID string          `gorm:"size:64;uniqueIndex;not null"`
	PhoneNumber   string          `gorm:"size:32"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method        string          `gorm:"size:16"`
	Verified      bool            `gorm:"not null;default:false"`
	VerifiedBy    *int64
	VerifiedAt    *time.Time
	CreatedAt     time.Time
}

func (BuyerTransaction) TableName() string { return "buyer_transactions" }

// Purchase 购物车行，价格在加入购物车时快照
type Purchase struct {
	ID                   int64
	AccountID            int64           `gorm:"index:idx_account_confirmed;not null"`
	ItemID               int64           `gorm:"not null"`
	ItemName             string          `gorm:"size:128"`
	Quantity             int             `gorm:"not null"`
	UnitPrice            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MemberPrice          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalMembershipPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ChargedPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Confirmed            bool            `gorm:"index:idx_account_confirmed;not null;default:false"`
	Paid                 bool            `gorm:"not null;default:false"`
	ConfirmedAt          *time.Time
	CreatedAt            time.Time
}

func (Purchase) TableName() string { return "purchases" }

// PriceLine 计算行总价：有折扣价按折扣价，否则按原价
func (p *Purchase) PriceLine() {
	qty := decimal.NewFromInt(int64(p.Quantity))
	unit := p.UnitPrice
	if p.DiscountPrice.IsPositive() {
		unit = p.DiscountPrice
	}
	p.TotalPrice = Round(unit.Mul(qty))
	p.TotalMembershipPrice = Round(p.MemberPrice.Mul(qty))
}

// CheckoutCharge 会员价条件：cashup 余额为正且覆盖整单原价
func CheckoutCharge(lines []Purchase, cashup decimal.Decimal) (charge decimal.Decimal, member bool) {
	total, memberTotal := decimal.Zero, decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice)
		memberTotal = memberTotal.Add(l.TotalMembershipPrice)
	}
	if cashup.IsPositive() && total.LessThanOrEqual(cashup) {
		return memberTotal, true
	}
	return total, false
}

const (
	RechargePending   = "pending"
	RechargeCompleted = "completed"
)

type MobileRecharge struct {
	ID          int64
	AccountID   int64           `gorm:"index;not null"`
	Phone       string          `gorm:"size:32;not null"`
	Operator    string          `gorm:"size:32"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status      string          `gorm:"size:16;not null;index"`
	CompletedBy *int64
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (MobileRecharge) TableName() string { return "mobile_recharges" }

// IdempotencyRecord 幂等键，和业务写入在同一事务里
type IdempotencyRecord struct {
	ID          int64
	Scope       string `gorm:"size:64;uniqueIndex:uk_scope_key;not null"`
	Key         string `gorm:"column:idem_key;size:128;uniqueIndex:uk_scope_key;not null"`
	RequestHash string `gorm:"size:64;not null"`
	Response    []byte
	CreatedAt   time.Time
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }
