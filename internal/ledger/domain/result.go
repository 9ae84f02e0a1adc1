package domain

import (
	"github.com/shopspring/decimal"
)

// Result 每个账本操作的返回
type Result struct {
	Success bool `json:"success"`
	// key 形如 "cashup.cashup_main_balance"
	NewBalances map[string]decimal.Decimal `json:"new_balances"`
	ErrorKind   string                     `json:"error_kind,omitempty"`
	// 本次创建或处理的记录 id
	RecordID int64 `json:"record_id,omitempty"`
}

func BalanceKey(k Kind, f Field) string { return string(k) + "." + string(f) }

// Balances 账户全部余额快照
type Balances struct {
	AccountID        int64                              `json:"account_id"`
	MainBalance      decimal.Decimal                    `json:"main_balance"`
	MembershipStatus bool                               `json:"membership_status"`
	Buckets          map[Kind]map[Field]decimal.Decimal `json:"buckets"`
}

func NewBalances(a *Account, buckets ...Holder) *Balances {
	b := &Balances{
		AccountID:        a.ID,
		MainBalance:      a.MainBalance,
		MembershipStatus: a.MembershipStatus,
		Buckets:          make(map[Kind]map[Field]decimal.Decimal, len(buckets)),
	}
	for _, h := range buckets {
		if h == nil {
			continue
		}
		b.Buckets[h.Kind()] = Snapshot(h)
	}
	return b
}
