package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferKind string

const (
	TransferCashup       TransferKind = "cashup"
	TransferCashupToMain TransferKind = "cashup_to_main"
	TransferOwing        TransferKind = "owing"
	TransferOwingDPS     TransferKind = "owing_dps"
)

// TransferHistory 桶间划转记录，只有 verified 会在核实后翻转
type TransferHistory struct {
	ID             int64
	AccountID      int64           `gorm:"index;not null"`
	Kind           TransferKind    `gorm:"size:32;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Verified       bool            `gorm:"not null;default:false"`
	OwingDepositID *int64          `gorm:"index"`
	CreatedAt      time.Time
}

func (TransferHistory) TableName() string { return "transfer_histories" }

// AuditEntry 字段变化的公共列，时间精确到分钟
type AuditEntry struct {
	AccountID     int64           `gorm:"index;not null"`
	Field         Field           `gorm:"size:64;not null"`
	PreviousValue decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NewValue      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ActorID       int64           `gorm:"not null"`
	Op            string          `gorm:"size:32"`
	ChangedAt     time.Time       `gorm:"index"`
}

// CashupDepositHistory cashup_main_balance 的每次变化
type CashupDepositHistory struct {
	ID              int64
	CashupDepositID int64 `gorm:"index;not null"`
	AuditEntry
}

func (CashupDepositHistory) TableName() string { return "cashup_deposit_histories" }

// CashupProfitHistory cashup 桶其它字段的变化
type CashupProfitHistory struct {
	ID              int64
	CashupDepositID int64 `gorm:"index;not null"`
	AuditEntry
}

func (CashupProfitHistory) TableName() string { return "cashup_profit_histories" }

type CashupOwingProfitHistory struct {
	ID             int64
	OwingDepositID int64 `gorm:"index;not null"`
	AuditEntry
}

func (CashupOwingProfitHistory) TableName() string { return "cashup_owing_profit_histories" }

// BucketHistory 主余额和三个利润桶的变化
type BucketHistory struct {
	ID       int64
	Kind     Kind  `gorm:"size:16;not null;index"`
	HolderID int64 `gorm:"not null"`
	AuditEntry
}

func (BucketHistory) TableName() string { return "bucket_histories" }

// AuditRows 按桶类型把字段变化分派到对应的历史表
type AuditRows struct {
	CashupDeposit []CashupDepositHistory
	CashupProfit  []CashupProfitHistory
	OwingProfit   []CashupOwingProfitHistory
	Bucket        []BucketHistory
}

func (r *AuditRows) Len() int {
	return len(r.CashupDeposit) + len(r.CashupProfit) + len(r.OwingProfit) + len(r.Bucket)
}

func BuildAudit(changes []FieldChange, actor int64, op string, at time.Time) AuditRows {
	var rows AuditRows
	at = at.Truncate(time.Minute)
	for _, c := range changes {
		e := AuditEntry{
			AccountID:     c.OwnerID,
			Field:         c.Field,
			PreviousValue: c.Prev,
			NewValue:      c.New,
			ActorID:       actor,
			Op:            op,
			ChangedAt:     at,
		}
		switch {
		case c.Kind == KindCashup && c.Field == FieldCashupMainBalance:
			rows.CashupDeposit = append(rows.CashupDeposit, CashupDepositHistory{CashupDepositID: c.HolderID, AuditEntry: e})
		case c.Kind == KindCashup:
			rows.CashupProfit = append(rows.CashupProfit, CashupProfitHistory{CashupDepositID: c.HolderID, AuditEntry: e})
		case c.Kind == KindOwing:
			rows.OwingProfit = append(rows.OwingProfit, CashupOwingProfitHistory{OwingDepositID: c.HolderID, AuditEntry: e})
		default:
			rows.Bucket = append(rows.Bucket, BucketHistory{Kind: c.Kind, HolderID: c.HolderID, AuditEntry: e})
		}
	}
	return rows
}
